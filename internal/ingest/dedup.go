package ingest

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const receiptKeyPrefix = "ticket-bridge:receipt:"

// ReceiptDeduper detects duplicate webhook deliveries by remembering
// platform message ids in Redis with a TTL. Ticket state itself is
// already idempotent at the persistence layer; this only saves the
// double routing work and the double acknowledgement send.
type ReceiptDeduper struct {
	client *redis.Client
	ttl    time.Duration
	logger *zap.Logger
}

// NewReceiptDeduper builds a deduper. A nil client disables dedup.
func NewReceiptDeduper(client *redis.Client, ttl time.Duration, logger *zap.Logger) *ReceiptDeduper {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &ReceiptDeduper{client: client, ttl: ttl, logger: logger}
}

// Seen marks the receipt id and reports whether it was already marked.
// Redis failures degrade to not-seen so an unreachable cache never
// drops legitimate messages.
func (d *ReceiptDeduper) Seen(ctx context.Context, receiptID string) bool {
	if d == nil || d.client == nil || receiptID == "" {
		return false
	}
	set, err := d.client.SetNX(ctx, receiptKeyPrefix+receiptID, 1, d.ttl).Result()
	if err != nil {
		d.logger.Warn("receipt dedup unavailable", zap.Error(err))
		return false
	}
	return !set
}
