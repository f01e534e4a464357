package redis

import "fmt"

// SettingsKey holds the merged store settings as JSON.
func SettingsKey() string {
	return "genmart:settings"
}

// CheckoutLockKey marks a user's checkout as in flight.
func CheckoutLockKey(userID string) string {
	return fmt.Sprintf("genmart:checkout:lock:%s", userID)
}

// IdempotencyKey maps a client Idempotency-Key to the order it produced.
func IdempotencyKey(userID, idemKey string) string {
	return fmt.Sprintf("genmart:idem:%s:%s", userID, idemKey)
}

// OnceKey marks a side effect (e.g. an e-mail for an event id) as done.
func OnceKey(scope, id string) string {
	return fmt.Sprintf("genmart:once:%s:%s", scope, id)
}

// RateLimitKey is the sliding window set for one caller of one route group.
func RateLimitKey(scope, kind, id string) string {
	return fmt.Sprintf("genmart:rate_limit:%s:%s:%s", scope, kind, id)
}
