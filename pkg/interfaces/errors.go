package interfaces

import "errors"

// Shared error taxonomy used across components. Admission errors terminate a
// connection attempt; SessionNotFound surfaces only to the requesting
// connection; UpstreamUnavailable degrades status reads instead of failing
// them.
var (
	ErrUnauthenticated     = errors.New("unauthenticated")
	ErrRateLimited         = errors.New("rate limited")
	ErrSessionNotFound     = errors.New("session not found")
	ErrUpstreamUnavailable = errors.New("inventory service unavailable")
	ErrCacheMiss           = errors.New("cache entry not found")
)
