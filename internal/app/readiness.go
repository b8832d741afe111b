package app

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"

	httpserver "github.com/fairyhunter13/ai-interview-evaluator/internal/adapter/httpserver"
)

// Pinger is the minimal interface for a dependency capable of Ping.
type Pinger interface{ Ping(ctx context.Context) error }

type redisPinger struct{ c redis.UniversalClient }

func (p redisPinger) Ping(ctx context.Context) error { return p.c.Ping(ctx).Err() }

// RedisPinger adapts a go-redis client to Pinger. A nil client yields nil.
func RedisPinger(c redis.UniversalClient) Pinger {
	if c == nil {
		return nil
	}
	return redisPinger{c: c}
}

// BuildReadinessChecks returns the db check plus redis and queue checks when
// those dependencies are configured.
func BuildReadinessChecks(db, rdb, queue Pinger) []httpserver.ReadinessCheck {
	checks := []httpserver.ReadinessCheck{{
		Name: "db",
		Check: func(ctx context.Context) error {
			if db == nil {
				return fmt.Errorf("db not configured")
			}
			return db.Ping(ctx)
		},
	}}
	if rdb != nil {
		checks = append(checks, httpserver.ReadinessCheck{Name: "redis", Check: rdb.Ping})
	}
	if queue != nil {
		checks = append(checks, httpserver.ReadinessCheck{Name: "queue", Check: queue.Ping})
	}
	return checks
}
