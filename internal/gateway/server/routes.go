package server

import (
	"net/http"

	"go.uber.org/zap"

	"nbcache/internal/gateway/handler"
	"nbcache/internal/gateway/middleware"
	"nbcache/internal/output"
)

const (
	ContentRoute = "/" + output.RoutePrefix + "/"
	EventsRoute  = "/" + output.RoutePrefix + "_events"
)

func NewMux(content *handler.ContentHandler, events *handler.EventsHandler, logger *zap.Logger) http.Handler {
	mux := http.NewServeMux()
	mux.Handle(ContentRoute, content)
	mux.Handle(EventsRoute, events)
	return middleware.CORS(middleware.Logging(logger, mux))
}
