package shared

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrTooManyAttempts indicates the login throttle window is exhausted.
var ErrTooManyAttempts = errors.New("too many login attempts")

// LoginThrottle bounds failed-login pressure per (email, ip) with a
// fixed window counter in Redis. It sits in front of credential
// verification so a brute-force run burns the throttle, not bcrypt.
type LoginThrottle struct {
	client *redis.Client
	limit  int64
	window time.Duration
}

// NewLoginThrottle constructs a throttle. Zero limit or window fall
// back to 10 attempts per minute.
func NewLoginThrottle(client *redis.Client, limit int64, window time.Duration) *LoginThrottle {
	if limit <= 0 {
		limit = 10
	}
	if window <= 0 {
		window = time.Minute
	}
	return &LoginThrottle{client: client, limit: limit, window: window}
}

// Allow counts one attempt and reports whether it is within the limit.
// A nil throttle or an unreachable Redis admits the attempt: the
// throttle is a shield for the credential store, not an authorization
// decision, so it degrades open while authorization stays closed.
func (t *LoginThrottle) Allow(ctx context.Context, email, ip string) error {
	if t == nil || t.client == nil {
		return nil
	}
	key := t.key(email, ip)
	count, err := t.client.Incr(ctx, key).Result()
	if err != nil {
		return nil
	}
	if count == 1 {
		t.client.Expire(ctx, key, t.window)
	}
	if count > t.limit {
		return ErrTooManyAttempts
	}
	return nil
}

// Reset clears the counter after a successful login.
func (t *LoginThrottle) Reset(ctx context.Context, email, ip string) {
	if t == nil || t.client == nil {
		return
	}
	t.client.Del(ctx, t.key(email, ip))
}

func (t *LoginThrottle) key(email, ip string) string {
	host := ip
	if i := strings.LastIndex(ip, ":"); i >= 0 {
		host = ip[:i]
	}
	return fmt.Sprintf("login_throttle:%s:%s", email, host)
}
