package ratelimit

import "time"

// RouteKey scopes a record to an HTTP route, caller address, and user.
func RouteKey(route, addr, user string) string {
	return route + "|" + addr + "|" + user
}

// CredentialKey scopes a record to an API credential.
func CredentialKey(apiKey string) string {
	return "key|" + apiKey
}

// NewForRoute returns a limiter with route-scoped defaults: 60 requests per
// minute, 5-minute block.
func NewForRoute() *Limiter {
	return New(Config{
		MaxRequests:   60,
		Window:        time.Minute,
		BlockDuration: 5 * time.Minute,
	})
}

// NewForCredential returns a limiter with credential-scoped defaults: 1000
// requests per hour, 1-hour block.
func NewForCredential() *Limiter {
	return New(Config{
		MaxRequests:   1000,
		Window:        time.Hour,
		BlockDuration: time.Hour,
	})
}
