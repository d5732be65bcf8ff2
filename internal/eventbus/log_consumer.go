package eventbus

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/matthewbaird/lawoffice/internal/event"
)

// LogConsumer logs all domain events for observability.
type LogConsumer struct {
	log logrus.FieldLogger
}

func NewLogConsumer(log logrus.FieldLogger) *LogConsumer {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &LogConsumer{log: log.WithField("module", "events")}
}

func (c *LogConsumer) HandleEvent(_ context.Context, evt event.DomainEvent) error {
	entities := make([]string, len(evt.AffectedEntities))
	for i, ref := range evt.AffectedEntities {
		entities[i] = ref.EntityType + ":" + ref.EntityID
	}
	entry := c.log.WithFields(logrus.Fields{
		"event_id":   evt.ID,
		"event_type": evt.EventType,
		"category":   evt.Category,
		"weight":     evt.Weight,
		"entities":   entities,
	})
	if evt.Weight == "critical" || evt.Weight == "major" {
		entry.Warn(evt.Summary)
		return nil
	}
	entry.Info(evt.Summary)
	return nil
}
