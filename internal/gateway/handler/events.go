package handler

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"nbcache/internal/events"
	"nbcache/internal/output"
)

const (
	eventsWSWriteWait = 10 * time.Second
	eventsWSPongWait  = 60 * time.Second
	eventsWSPingEvery = (eventsWSPongWait * 9) / 10
)

var eventsWSUpgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	CheckOrigin: func(_ *http.Request) bool {
		return true
	},
}

// EventsHandler streams output events to a viewer over a websocket. Viewers may ask
// for a unit's full listing, which is answered through the same stream.
type EventsHandler struct {
	hub       *events.Hub
	publisher *output.Publisher
	resolver  *output.Resolver
	logger    *zap.Logger
}

type eventsWSInbound struct {
	Type      string `json:"type"`
	DocID     string `json:"doc_id"`
	UnitID    string `json:"chunk_id"`
	RequestID string `json:"request_id"`
}

func NewEventsHandler(hub *events.Hub, publisher *output.Publisher, resolver *output.Resolver, logger *zap.Logger) *EventsHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EventsHandler{hub: hub, publisher: publisher, resolver: resolver, logger: logger}
}

func (h *EventsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	docID := strings.TrimSpace(r.URL.Query().Get("doc_id"))

	conn, err := eventsWSUpgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	if err := conn.SetReadDeadline(time.Now().Add(eventsWSPongWait)); err != nil {
		h.logger.Warn("events ws set read deadline failed", zap.Error(err))
		return
	}
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(eventsWSPongWait))
	})

	sub := h.hub.Subscribe(ctx, docID)
	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		defer cancel()
		ticker := time.NewTicker(eventsWSPingEvery)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-sub:
				if !ok {
					return
				}
				if err := conn.SetWriteDeadline(time.Now().Add(eventsWSWriteWait)); err != nil {
					return
				}
				if err := conn.WriteJSON(ev); err != nil {
					h.logger.Debug("events ws write failed", zap.Error(err))
					return
				}
			case <-ticker.C:
				if err := conn.SetWriteDeadline(time.Now().Add(eventsWSWriteWait)); err != nil {
					return
				}
				if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
					return
				}
			}
		}
	}()

	go func() {
		for {
			var in eventsWSInbound
			if err := conn.ReadJSON(&in); err != nil {
				cancel()
				return
			}
			h.handleInbound(ctx, in)
		}
	}()

	<-writerDone
}

func (h *EventsHandler) handleInbound(ctx context.Context, in eventsWSInbound) {
	switch strings.ToLower(strings.TrimSpace(in.Type)) {
	case "list":
		docID := strings.TrimSpace(in.DocID)
		unitID := strings.TrimSpace(in.UnitID)
		if !output.ValidSegment(docID) || !output.ValidSegment(unitID) {
			h.logger.Debug("events ws invalid list request", zap.String("doc_id", docID), zap.String("chunk_id", unitID))
			return
		}
		docPath := h.resolver.DocumentPath(ctx, docID)
		if err := h.publisher.PublishListing(ctx, docPath, docID, unitID, h.resolver.ContextID(), in.RequestID); err != nil {
			h.logger.Warn("publish listing failed", zap.String("doc_id", docID), zap.Error(err))
		}
	case "ping", "":
	default:
		h.logger.Debug("events ws unsupported message", zap.String("type", in.Type))
	}
}
