package utils

import (
	"context"
	"sync"
	"time"
)

const stateKeyPrefix = "oauth:state:"

var (
	statesMu sync.Mutex
	states   = map[string]time.Time{}
)

// SaveState records an OAuth state nonce for later single-use validation.
// Redis keeps the nonce visible across instances; the in-memory map is the
// single-instance fallback.
func SaveState(state string, ttl time.Duration) {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}

	if rc := GetRedis(); rc != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = rc.Set(ctx, stateKeyPrefix+state, "1", ttl).Err()
		return
	}

	statesMu.Lock()
	states[state] = time.Now().Add(ttl)
	statesMu.Unlock()
}

// ConsumeState checks a state nonce and burns it. Each nonce validates at
// most once.
func ConsumeState(state string) bool {
	if rc := GetRedis(); rc != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		v, err := rc.GetDel(ctx, stateKeyPrefix+state).Result()
		return err == nil && v != ""
	}

	statesMu.Lock()
	expiresAt, ok := states[state]
	if ok {
		delete(states, state)
	}
	statesMu.Unlock()

	return ok && time.Now().Before(expiresAt)
}
