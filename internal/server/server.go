// Package server assembles all HTTP handlers and starts the server.
package server

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/matthewbaird/lawoffice/internal/activity"
	"github.com/matthewbaird/lawoffice/internal/event"
	"github.com/matthewbaird/lawoffice/internal/handler"
	"github.com/matthewbaird/lawoffice/internal/ledger"
	"github.com/matthewbaird/lawoffice/internal/stream"
)

// Config holds server configuration.
type Config struct {
	Port            int
	ShutdownTimeout time.Duration
	DB              *sql.DB
	Ledger          *ledger.Ledger
	Activity        activity.Store
	Recorder        event.Recorder
	Hub             *stream.Hub // optional; /api/events is not mounted without it
	Log             logrus.FieldLogger
}

// Router registers every route on a chi router.
func Router(cfg Config) http.Handler {
	log := cfg.Log
	if log == nil {
		log = logrus.StandardLogger()
	}
	deps := handler.Deps{DB: cfg.DB, Ledger: cfg.Ledger, Recorder: cfg.Recorder, Log: log}

	r := chi.NewRouter()
	r.Use(handler.RequestID, handler.Logging(log), handler.Recovery(log))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok"}`))
	})

	r.Route("/api", func(r chi.Router) {
		ch := handler.NewClientHandler(deps)
		r.Post("/clients", ch.CreateClient)
		r.Get("/clients/{id}", ch.GetClient)
		r.Put("/clients/{id}", ch.UpdateClient)
		r.Delete("/clients/{id}", ch.DeleteClient)
		r.Get("/clients/{id}/balance", ch.GetBalance)
		r.Post("/clients/{id}/balance/repair", ch.RepairBalance)

		ph := handler.NewProcessHandler(deps)
		r.Post("/processes", ph.CreateProcess)
		r.Get("/processes/{id}", ph.GetProcess)
		r.Put("/processes/{id}", ph.UpdateProcess)
		r.Delete("/processes/{id}", ph.DeleteProcess)

		sh := handler.NewServiceHandler(deps)
		r.Post("/services", sh.CreateService)
		r.Get("/services/{id}", sh.GetService)
		r.Put("/services/{id}", sh.UpdateService)
		r.Delete("/services/{id}", sh.DeleteService)

		pay := handler.NewPaymentHandler(deps)
		r.Get("/payments/scheduled", pay.ScheduledPayments)
		r.Post("/payments", pay.SavePayment)
		r.Put("/payments/{id}", pay.UpdatePayment)
		r.Delete("/payments", pay.DeletePayment)

		eh := handler.NewExpenseHandler(deps)
		r.Post("/office-expenses", eh.CreateExpense)
		r.Patch("/office-expenses/{id}", eh.UpdateExpense)
		r.Delete("/office-expenses/{id}", eh.DeleteExpense)

		if cfg.Activity != nil {
			ah := handler.NewActivityHandler(cfg.Activity, log)
			r.Get("/activity/search", ah.HandleSearchActivity)
			r.Get("/activity/{entity_type}/{entity_id}", ah.HandleGetEntityActivity)
			r.Get("/activity/{entity_type}/{entity_id}/summary", ah.HandleGetActivitySummary)
		}

		if cfg.Hub != nil {
			r.Method(http.MethodGet, "/events", cfg.Hub)
		}
	})

	return r
}

// Run serves until ctx is cancelled, then disconnects stream clients and
// drains in-flight requests.
func Run(ctx context.Context, cfg Config) error {
	log := cfg.Log
	if log == nil {
		log = logrus.StandardLogger()
	}
	timeout := cfg.ShutdownTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           Router(cfg),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.WithField("addr", srv.Addr).Info("starting server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down server")
		// Hijacked websocket connections are not tracked by Shutdown.
		if cfg.Hub != nil {
			cfg.Hub.Close()
		}
		sctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		return srv.Shutdown(sctx)
	})
	return g.Wait()
}
