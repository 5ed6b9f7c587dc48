package redisx

import "time"

const (
	// Idempotency place order: idem:order:place:{user_id}:{idempotency_key} -> order_id
	KeyIdemOrderPlace = "idem:order:place:%s:%s"

	// Dedup event processing: dedup:{service}:{event_id}
	KeyDedup = "dedup:%s:%s"
)

// prefix nilai sementara selama request pertama masih berjalan: pending:{token}
const pendingMarker = "pending:"

var (
	TTLIdempotency = 24 * time.Hour
	TTLPending     = 30 * time.Second
	TTLDedup       = 48 * time.Hour
)
