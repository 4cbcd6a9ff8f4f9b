// Package parser converts upstream BMKG payloads into normalized domain
// entities. Every function here is a pure transform: no I/O, no clock, no
// caching. Malformed input yields a *domain.ParseError and never a partially
// built entity.
package parser
