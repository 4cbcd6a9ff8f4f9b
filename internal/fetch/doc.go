// Package fetch resolves resource keys against the cache, coalescing
// concurrent misses for the same key into one upstream fetch.
//
// A resolution either returns a value decoded from the cache or runs the
// key's producer exactly once per miss window. Producer failures are
// returned to every waiter and never cached, so the next call retries.
// A caller that stops waiting does not cancel the shared fetch; it
// completes and populates the cache for everyone else.
package fetch
