package redis

import "strings"

const (
	keyNamespace      = "benchlot"
	idempotencyPrefix = "idempotency"
	lockPrefix        = "lock"
	rateLimitPrefix   = "rate_limit"
)

// key joins non-empty parts under the benchlot namespace with ':'.
func key(parts ...string) string {
	b := strings.Builder{}
	b.WriteString(keyNamespace)
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		b.WriteByte(':')
		b.WriteString(part)
	}
	return b.String()
}

// IdempotencyKey namespaces a replay guard, e.g. benchlot:idempotency:stripe_webhook:evt_1.
func (c *Client) IdempotencyKey(scope, id string) string {
	return key(idempotencyPrefix, scope, id)
}

// LockKey namespaces a worker lock.
func (c *Client) LockKey(name string) string {
	return key(lockPrefix, name)
}

// RateLimitKey namespaces a fixed-window counter.
func (c *Client) RateLimitKey(scope string) string {
	return key(rateLimitPrefix, scope)
}
