package clientsync

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/marisolvega/campuseats-backend/pkg/enums"
)

// OrderSnapshot is the client's persisted view of one order.
type OrderSnapshot struct {
	OrderID            uuid.UUID          `json:"orderId"`
	Variant            enums.OrderVariant `json:"variant"`
	Status             enums.OrderStatus  `json:"status"`
	EstimatedReadyTime *time.Time         `json:"estimatedReadyTime,omitempty"`
	UpdatedAt          time.Time          `json:"updatedAt"`
}

// StateStore persists per-session client sync state. Snapshots, fired
// sentinels and dismissals live under independent keys so a crash between
// writes never corrupts the others.
type StateStore interface {
	// LoadSnapshot returns (nil, false, nil) when the key is absent or the
	// stored value does not parse; malformed state reads as absent.
	LoadSnapshot(ctx context.Context, sessionID string, orderID uuid.UUID) (*OrderSnapshot, bool, error)
	SaveSnapshot(ctx context.Context, sessionID string, snapshot OrderSnapshot) error
	// MarkFired writes the (orderID, kind) sentinel and reports whether this
	// call was the first. The sentinel lands before the effect fires.
	MarkFired(ctx context.Context, sessionID string, orderID uuid.UUID, kind enums.TransitionKind) (bool, error)
	IsDismissed(ctx context.Context, sessionID string, orderID uuid.UUID) (bool, error)
	MarkDismissed(ctx context.Context, sessionID string, orderID uuid.UUID) error
	// PurgeOrder drops every key the session holds for the order.
	PurgeOrder(ctx context.Context, sessionID string, orderID uuid.UUID) error
}

// MemoryStore is an in-process StateStore for tests and single-node use.
type MemoryStore struct {
	mu   sync.Mutex
	data map[string]string
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{data: map[string]string{}}
}

func memKey(sessionID string, orderID uuid.UUID, suffix string) string {
	return sessionID + ":" + orderID.String() + ":" + suffix
}

func (m *MemoryStore) LoadSnapshot(ctx context.Context, sessionID string, orderID uuid.UUID) (*OrderSnapshot, bool, error) {
	m.mu.Lock()
	raw, ok := m.data[memKey(sessionID, orderID, "snapshot")]
	m.mu.Unlock()
	if !ok {
		return nil, false, nil
	}
	var snapshot OrderSnapshot
	if err := json.Unmarshal([]byte(raw), &snapshot); err != nil {
		return nil, false, nil
	}
	return &snapshot, true, nil
}

func (m *MemoryStore) SaveSnapshot(ctx context.Context, sessionID string, snapshot OrderSnapshot) error {
	raw, err := json.Marshal(snapshot)
	if err != nil {
		return err
	}
	m.mu.Lock()
	m.data[memKey(sessionID, snapshot.OrderID, "snapshot")] = string(raw)
	m.mu.Unlock()
	return nil
}

func (m *MemoryStore) MarkFired(ctx context.Context, sessionID string, orderID uuid.UUID, kind enums.TransitionKind) (bool, error) {
	key := memKey(sessionID, orderID, "fired:"+kind.String())
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.data[key]; exists {
		return false, nil
	}
	m.data[key] = "1"
	return true, nil
}

func (m *MemoryStore) IsDismissed(ctx context.Context, sessionID string, orderID uuid.UUID) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.data[memKey(sessionID, orderID, "dismissed")]
	return ok, nil
}

func (m *MemoryStore) MarkDismissed(ctx context.Context, sessionID string, orderID uuid.UUID) error {
	m.mu.Lock()
	m.data[memKey(sessionID, orderID, "dismissed")] = "1"
	m.mu.Unlock()
	return nil
}

func (m *MemoryStore) PurgeOrder(ctx context.Context, sessionID string, orderID uuid.UUID) error {
	prefix := sessionID + ":" + orderID.String() + ":"
	m.mu.Lock()
	for key := range m.data {
		if len(key) >= len(prefix) && key[:len(prefix)] == prefix {
			delete(m.data, key)
		}
	}
	m.mu.Unlock()
	return nil
}

// Corrupt overwrites a session's snapshot with an unparseable value. Test
// hook for the malformed-state-reads-as-absent contract.
func (m *MemoryStore) Corrupt(sessionID string, orderID uuid.UUID) {
	m.mu.Lock()
	m.data[memKey(sessionID, orderID, "snapshot")] = "{not json"
	m.mu.Unlock()
}
