package feed

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/marisolvega/campuseats-backend/pkg/enums"
)

// Event is one change-feed item delivered to a subscriber. Snapshot events
// are synthesized from authoritative rows during catch-up; live events come
// off the wire.
type Event struct {
	EventID       string
	EventType     enums.OutboxEventType
	AggregateType enums.OutboxAggregateType
	AggregateID   uuid.UUID
	OccurredAt    time.Time
	Payload       json.RawMessage
	Snapshot      bool
}

// Handler receives feed events for one subscription. Handlers run on the
// bridge's receive goroutine and must not block.
type Handler func(event Event)

// Unsubscribe detaches a subscription. Safe to call more than once and
// before the first event arrives.
type Unsubscribe func()
