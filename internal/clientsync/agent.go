package clientsync

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/marisolvega/campuseats-backend/internal/feed"
	"github.com/marisolvega/campuseats-backend/pkg/enums"
	"github.com/marisolvega/campuseats-backend/pkg/logger"
	"github.com/marisolvega/campuseats-backend/pkg/outbox/payloads"
)

const defaultOverdueTick = 30 * time.Second

// Effects are the client-side callbacks the agent drives. Implementations
// render sound, banners and badge counts; the agent guarantees each
// (order, transition) fires at most once per session.
type Effects interface {
	PlaySound(kind enums.TransitionKind)
	ShowBanner(orderID uuid.UUID, kind enums.TransitionKind, message string)
	UpdateBadge(activeOrders int)
}

// feedSource is the slice of feed.Bridge the agent consumes.
type feedSource interface {
	SubscribeOrder(ctx context.Context, variant enums.OrderVariant, orderID uuid.UUID, handler feed.Handler) (feed.Unsubscribe, error)
}

type mountState struct {
	snapshot OrderSnapshot
	unsub    feed.Unsubscribe
}

// Agent keeps one client session in sync with its orders: persisted
// snapshots, catch-up on mount, live feed events and an overdue ticker.
type Agent struct {
	sessionID string
	store     StateStore
	source    feedSource
	effects   Effects
	logg      *logger.Logger
	now       func() time.Time
	tickEvery time.Duration

	mu         sync.Mutex
	mounts     map[uuid.UUID]*mountState
	closed     bool
	stopTicker chan struct{}
	closeOnce  sync.Once
}

// NewAgent builds the sync agent for one client session.
func NewAgent(sessionID string, store StateStore, source feedSource, effects Effects, logg *logger.Logger) (*Agent, error) {
	if sessionID == "" {
		return nil, errors.New("session id required")
	}
	if store == nil {
		return nil, errors.New("state store required")
	}
	if source == nil {
		return nil, errors.New("feed source required")
	}
	if effects == nil {
		return nil, errors.New("effects required")
	}
	if logg == nil {
		return nil, errors.New("logger required")
	}
	return &Agent{
		sessionID: sessionID,
		store:     store,
		source:    source,
		effects:   effects,
		logg:      logg,
		now:       time.Now,
		tickEvery: defaultOverdueTick,
		mounts:    map[uuid.UUID]*mountState{},
	}, nil
}

// Mount attaches the session to an order: persisted state first, then the
// feed's catch-up read, then the live stream.
func (a *Agent) Mount(ctx context.Context, variant enums.OrderVariant, orderID uuid.UUID) error {
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return errors.New("agent closed")
	}
	if _, exists := a.mounts[orderID]; exists {
		a.mu.Unlock()
		return nil
	}
	entry := &mountState{snapshot: OrderSnapshot{OrderID: orderID, Variant: variant}}
	if persisted, ok, err := a.store.LoadSnapshot(ctx, a.sessionID, orderID); err != nil {
		a.mu.Unlock()
		return err
	} else if ok {
		entry.snapshot = *persisted
	}
	a.mounts[orderID] = entry
	a.ensureTickerLocked()
	a.mu.Unlock()

	// The catch-up read fires synchronously through this handler before
	// SubscribeOrder returns.
	unsub, err := a.source.SubscribeOrder(ctx, variant, orderID, func(event feed.Event) {
		a.handleEvent(orderID, event)
	})
	if err != nil {
		a.mu.Lock()
		delete(a.mounts, orderID)
		a.mu.Unlock()
		return err
	}

	a.mu.Lock()
	if current, exists := a.mounts[orderID]; exists {
		current.unsub = unsub
		unsub = nil
	}
	active := len(a.mounts)
	a.mu.Unlock()
	if unsub != nil {
		// The order went terminal during catch-up and the mount is gone.
		unsub()
	}
	a.effects.UpdateBadge(active)
	return nil
}

// Dismiss hides an order's banners for this session. Scoped to the order;
// other orders keep notifying.
func (a *Agent) Dismiss(ctx context.Context, orderID uuid.UUID) error {
	return a.store.MarkDismissed(ctx, a.sessionID, orderID)
}

// Close detaches every subscription and stops the overdue ticker. Safe to
// call repeatedly.
func (a *Agent) Close() {
	a.closeOnce.Do(func() {
		a.mu.Lock()
		a.closed = true
		unsubs := make([]feed.Unsubscribe, 0, len(a.mounts))
		for _, entry := range a.mounts {
			if entry.unsub != nil {
				unsubs = append(unsubs, entry.unsub)
			}
		}
		a.mounts = map[uuid.UUID]*mountState{}
		if a.stopTicker != nil {
			close(a.stopTicker)
			a.stopTicker = nil
		}
		a.mu.Unlock()
		for _, unsub := range unsubs {
			unsub()
		}
	})
}

func (a *Agent) ensureTickerLocked() {
	if a.stopTicker != nil {
		return
	}
	stop := make(chan struct{})
	a.stopTicker = stop
	go func() {
		ticker := time.NewTicker(a.tickEvery)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				a.evaluateOverdue(a.now())
			}
		}
	}()
}

// evaluateOverdue recomputes overdue from the frozen estimate and server
// time; client clocks never participate.
func (a *Agent) evaluateOverdue(now time.Time) {
	a.mu.Lock()
	overdue := make([]uuid.UUID, 0)
	for orderID, entry := range a.mounts {
		snap := entry.snapshot
		if snap.EstimatedReadyTime == nil || snap.Status.IsTerminal() {
			continue
		}
		if !now.Before(*snap.EstimatedReadyTime) {
			overdue = append(overdue, orderID)
		}
	}
	a.mu.Unlock()

	for _, orderID := range overdue {
		a.fire(context.Background(), orderID, enums.TransitionOverdue)
	}
}

func (a *Agent) handleEvent(orderID uuid.UUID, event feed.Event) {
	if event.AggregateType != enums.AggregateOrder {
		return
	}
	var transition payloads.OrderTransitionEvent
	if err := json.Unmarshal(event.Payload, &transition); err != nil {
		a.logg.Warn(a.logg.WithOrderID(context.Background(), orderID.String()), "undecodable order event payload")
		return
	}

	ctx := a.logg.WithSessionID(context.Background(), a.sessionID)
	status := transition.ToStatus
	if status == "" {
		status = enums.OrderStatusPending
	}

	a.mu.Lock()
	entry, mounted := a.mounts[orderID]
	if !mounted {
		a.mu.Unlock()
		return
	}
	entry.snapshot.Status = status
	entry.snapshot.EstimatedReadyTime = transition.EstimatedReadyTime
	entry.snapshot.UpdatedAt = event.OccurredAt
	snapshot := entry.snapshot
	a.mu.Unlock()

	if err := a.store.SaveSnapshot(ctx, a.sessionID, snapshot); err != nil {
		a.logg.Error(ctx, "persist order snapshot failed", err)
	}

	if kind, ok := transitionKind(event.EventType); ok {
		a.fire(ctx, orderID, kind)
	}

	if status.IsTerminal() {
		a.purge(ctx, orderID)
	}
}

// fire writes the sentinel first, then runs the effect. A crash between the
// two loses the notification; it is never shown twice.
func (a *Agent) fire(ctx context.Context, orderID uuid.UUID, kind enums.TransitionKind) {
	first, err := a.store.MarkFired(ctx, a.sessionID, orderID, kind)
	if err != nil {
		a.logg.Error(ctx, "sentinel write failed, skipping effect", err)
		return
	}
	if !first {
		return
	}
	a.effects.PlaySound(kind)
	dismissed, err := a.store.IsDismissed(ctx, a.sessionID, orderID)
	if err != nil {
		a.logg.Error(ctx, "dismissal lookup failed", err)
		return
	}
	if dismissed {
		return
	}
	a.effects.ShowBanner(orderID, kind, bannerMessage(kind))
}

func (a *Agent) purge(ctx context.Context, orderID uuid.UUID) {
	a.mu.Lock()
	entry, mounted := a.mounts[orderID]
	delete(a.mounts, orderID)
	active := len(a.mounts)
	a.mu.Unlock()

	if mounted && entry.unsub != nil {
		entry.unsub()
	}
	if err := a.store.PurgeOrder(ctx, a.sessionID, orderID); err != nil {
		a.logg.Error(ctx, "purge order state failed", err)
	}
	a.effects.UpdateBadge(active)
}

func transitionKind(eventType enums.OutboxEventType) (enums.TransitionKind, bool) {
	switch eventType {
	case enums.EventOrderAccepted:
		return enums.TransitionAccepted, true
	case enums.EventOrderRejected:
		return enums.TransitionRejected, true
	case enums.EventOrderReady:
		return enums.TransitionReady, true
	case enums.EventOrderCompleted, enums.EventOrderRedeemed:
		return enums.TransitionCompleted, true
	default:
		return "", false
	}
}

func bannerMessage(kind enums.TransitionKind) string {
	switch kind {
	case enums.TransitionAccepted:
		return "Your order was accepted and is being prepared."
	case enums.TransitionRejected:
		return "Your order was rejected."
	case enums.TransitionReady:
		return "Your order is ready for pickup."
	case enums.TransitionCompleted:
		return "Order picked up. Enjoy!"
	case enums.TransitionOverdue:
		return "Your order is taking longer than estimated."
	default:
		return ""
	}
}
