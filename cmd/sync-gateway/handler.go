package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/marisolvega/campuseats-backend/api/responses"
	"github.com/marisolvega/campuseats-backend/internal/clientsync"
	"github.com/marisolvega/campuseats-backend/internal/feed"
	"github.com/marisolvega/campuseats-backend/pkg/enums"
	pkgerrors "github.com/marisolvega/campuseats-backend/pkg/errors"
	"github.com/marisolvega/campuseats-backend/pkg/logger"
)

// orderFeed is the slice of feed.Bridge the SSE handler consumes.
type orderFeed interface {
	SubscribeOrder(ctx context.Context, variant enums.OrderVariant, orderID uuid.UUID, handler feed.Handler) (feed.Unsubscribe, error)
}

// orderEvents streams one order's notifications to a client session over
// server-sent events. A sync agent is mounted per connection and closed when
// the client disconnects, so the exactly-once sentinels live in redis, not
// in the connection.
func orderEvents(source orderFeed, store clientsync.StateStore, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		orderID, err := uuid.Parse(chi.URLParam(r, "orderId"))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "order id must be a uuid"))
			return
		}
		sessionID := strings.TrimSpace(r.URL.Query().Get("session"))
		if sessionID == "" {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "session query parameter is required"))
			return
		}
		variant := enums.OrderVariantCanteen
		if raw := strings.TrimSpace(r.URL.Query().Get("variant")); raw != "" {
			parsed, err := enums.ParseOrderVariant(raw)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "unknown order variant"))
				return
			}
			variant = parsed
		}
		flusher, ok := w.(http.Flusher)
		if !ok {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeDependency, "streaming unsupported"))
			return
		}

		effects := &sseEffects{w: w, flusher: flusher}
		agent, err := clientsync.NewAgent(sessionID, store, source, effects, logg)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		defer agent.Close()

		w.Header().Set("Content-Type", "text/event-stream")
		w.Header().Set("Cache-Control", "no-cache")
		w.Header().Set("Connection", "keep-alive")
		w.WriteHeader(http.StatusOK)
		flusher.Flush()

		// The feed's catch-up read streams through the effects before Mount
		// returns.
		if err := agent.Mount(r.Context(), variant, orderID); err != nil {
			logg.Error(r.Context(), "mount failed", err)
			effects.emit("error", map[string]string{"message": "order stream unavailable"})
			return
		}

		<-r.Context().Done()
	}
}

// sseEffects renders the agent's client callbacks as server-sent events.
type sseEffects struct {
	mu      sync.Mutex
	w       http.ResponseWriter
	flusher http.Flusher
}

func (e *sseEffects) PlaySound(kind enums.TransitionKind) {
	e.emit("sound", map[string]string{"kind": kind.String()})
}

func (e *sseEffects) ShowBanner(orderID uuid.UUID, kind enums.TransitionKind, message string) {
	e.emit("banner", map[string]string{
		"orderId": orderID.String(),
		"kind":    kind.String(),
		"message": message,
	})
}

func (e *sseEffects) UpdateBadge(activeOrders int) {
	e.emit("badge", map[string]int{"activeOrders": activeOrders})
}

func (e *sseEffects) emit(name string, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		return
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	fmt.Fprintf(e.w, "event: %s\ndata: %s\n\n", name, data)
	e.flusher.Flush()
}
