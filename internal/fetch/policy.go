package fetch

import "time"

// Category groups resource keys that share a freshness policy.
type Category string

const (
	CategoryLatest   Category = "latest"
	CategoryList     Category = "list"
	CategoryForecast Category = "forecast"
	CategoryNowcast  Category = "nowcast"
	CategoryStatic   Category = "static"
)

// TTLPolicy maps a category to how long its entries are served. A zero
// duration means no expiry until invalidated.
type TTLPolicy map[Category]time.Duration

// DefaultTTLPolicy returns the relay's default freshness windows.
func DefaultTTLPolicy() TTLPolicy {
	return TTLPolicy{
		CategoryLatest:   60 * time.Second,
		CategoryList:     5 * time.Minute,
		CategoryForecast: 15 * time.Minute,
		CategoryNowcast:  2 * time.Minute,
		CategoryStatic:   0,
	}
}

// TTL returns the category's TTL. Unknown categories use the shortest
// configured window.
func (p TTLPolicy) TTL(c Category) time.Duration {
	if d, ok := p[c]; ok {
		return d
	}
	return p[CategoryLatest]
}
