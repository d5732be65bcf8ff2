package handler

import (
	"context"
	"database/sql"

	"github.com/sirupsen/logrus"

	"github.com/matthewbaird/lawoffice/internal/event"
	"github.com/matthewbaird/lawoffice/internal/ledger"
	"github.com/matthewbaird/lawoffice/internal/store"
)

// Deps are the collaborators every resource handler shares.
type Deps struct {
	DB       *sql.DB
	Ledger   *ledger.Ledger
	Recorder event.Recorder // optional
	Log      logrus.FieldLogger
}

// base carries Deps into each resource handler.
type base struct {
	db       *sql.DB
	ledger   *ledger.Ledger
	recorder event.Recorder
	log      logrus.FieldLogger
}

func newBase(d Deps, module string) base {
	log := d.Log
	if log == nil {
		log = logrus.StandardLogger()
	}
	l := d.Ledger
	if l == nil {
		l = ledger.New(ledger.WithLogger(log))
	}
	return base{db: d.DB, ledger: l, recorder: d.Recorder, log: log.WithField("handler", module)}
}

// inTx runs fn in one transaction.
func (b base) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	return store.WithTx(ctx, b.db, fn)
}

// recordEvents records domain events after commit. Errors are logged but
// do not fail the request: the ledger change is already durable.
func (b base) recordEvents(ctx context.Context, evts ...event.DomainEvent) {
	if b.recorder == nil || len(evts) == 0 {
		return
	}
	if err := b.recorder.Record(ctx, evts...); err != nil {
		b.log.WithFields(logrus.Fields{
			"event_type": evts[0].EventType,
			"events":     len(evts),
			"request_id": RequestIDFrom(ctx),
		}).WithError(err).Warn("event recording failed")
	}
}
