package eventbus

import (
	"context"
	"errors"
	"strconv"

	"github.com/sirupsen/logrus"

	"github.com/matthewbaird/lawoffice/internal/event"
	"github.com/matthewbaird/lawoffice/internal/ledger"
	"github.com/matthewbaird/lawoffice/internal/types"
)

// DriftConsumer recomputes the balance of every client a billing or payment
// event touched and warns when the stored column no longer matches.
type DriftConsumer struct {
	db     ledger.DB
	ledger *ledger.Ledger
	log    logrus.FieldLogger
}

// NewDriftConsumer creates a consumer that reads balances through db.
func NewDriftConsumer(db ledger.DB, l *ledger.Ledger, log logrus.FieldLogger) *DriftConsumer {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &DriftConsumer{db: db, ledger: l, log: log.WithField("module", "drift")}
}

// HandleEvent checks each referenced client once.
func (c *DriftConsumer) HandleEvent(ctx context.Context, evt event.DomainEvent) error {
	if evt.Category != event.CategoryBilling && evt.Category != event.CategoryPayment {
		return nil
	}
	seen := make(map[int64]bool)
	for _, ref := range evt.AffectedEntities {
		if ref.EntityType != types.EntityClient {
			continue
		}
		id, err := strconv.ParseInt(ref.EntityID, 10, 64)
		if err != nil || seen[id] {
			continue
		}
		seen[id] = true

		report, err := c.ledger.RecomputeBalance(ctx, c.db, id)
		if errors.Is(err, ledger.ErrNotFound) {
			continue
		}
		if err != nil {
			return err
		}
		if !report.InSync() {
			c.log.WithFields(logrus.Fields{
				"client_id":  id,
				"event_type": evt.EventType,
				"stored":     report.Stored.String(),
				"computed":   report.Computed.String(),
				"drift":      report.Drift.String(),
			}).Warn("client balance drifted")
		}
	}
	return nil
}
