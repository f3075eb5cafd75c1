package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/dgnsrekt/soapstream/internal/catalog"
	"github.com/dgnsrekt/soapstream/internal/controller"
	"github.com/dgnsrekt/soapstream/internal/history"
	"github.com/dgnsrekt/soapstream/internal/relay"
	"github.com/dgnsrekt/soapstream/internal/resolver"
	"github.com/dgnsrekt/soapstream/internal/snapshot"
)

type Service interface {
	Resolve(ctx context.Context, req controller.ResolveRequest) (resolver.ResolvedStream, error)
	Search(ctx context.Context, query string) ([]catalog.Title, error)
	Episodes(ctx context.Context, pageURL string) ([]string, error)
	History(ctx context.Context) ([]history.Entry, error)
	ListSnapshots(ctx context.Context) ([]snapshot.SnapshotMeta, error)
	Broker() *relay.Broker
}

func NewServer(svc Service) http.Handler {
	router := chi.NewMux()
	router.Use(middleware.RequestID)
	router.Use(requestLogger)
	router.Use(middleware.Recoverer)

	cfg := huma.DefaultConfig("soapstream API", "1.0.0")
	cfg.DocsPath = ""
	api := humachi.New(router, cfg)

	router.Get("/docs", htmlHandler(docsHTML))
	router.Get("/docs/events", htmlHandler(eventsDocsHTML))

	// Streaming endpoints stay outside huma; they never return a body to
	// describe.
	router.Get("/api/v1/events", relay.SSEHandler(svc.Broker()))
	router.Get("/api/v1/events/ws", relay.WSHandler(svc.Broker()))

	registerStreamHandlers(api, svc)
	registerMiscHandlers(api, svc)

	return router
}

func htmlHandler(page string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		if _, err := w.Write([]byte(page)); err != nil {
			slog.Debug("docs response write failed", "error", err)
		}
	}
}

func mapErr(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return huma.Error504GatewayTimeout(err.Error())
	}
	var coded *resolver.CodedError
	if errors.As(err, &coded) {
		switch coded.Code {
		case resolver.CodeValidation:
			return huma.Error400BadRequest(coded.Message)
		case resolver.CodeNotFound, resolver.CodeNoStream:
			return huma.Error404NotFound(fmt.Sprintf("%s: %s", coded.Code, coded.Message))
		case resolver.CodeNavigation, resolver.CodeEvalFailure:
			return huma.Error502BadGateway(fmt.Sprintf("%s: %s", coded.Code, coded.Message))
		case resolver.CodeSessionFault:
			return huma.Error503ServiceUnavailable(coded.Message)
		default:
			return huma.Error500InternalServerError(fmt.Sprintf("%s: %s", coded.Code, coded.Message))
		}
	}
	return huma.Error500InternalServerError(err.Error())
}
