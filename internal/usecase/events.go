package usecase

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"GranStocks/internal/domain/models"
	"GranStocks/internal/domain/repository"
	"GranStocks/pkg/logger"
)

// publishEvent emits a domain event. Failures are logged, never returned:
// events are notifications and the state they describe is already durable.
func publishEvent(ctx context.Context, pub repository.EventPublisher, log *logger.Logger, typ, key string, payload any) {
	if pub == nil {
		return
	}
	body, err := json.Marshal(payload)
	if err != nil {
		log.Error("encode event", logger.String("type", typ), logger.Error(err))
		return
	}
	ev := models.Event{
		ID:         uuid.NewString(),
		Type:       typ,
		Key:        key,
		OccurredAt: time.Now().UTC(),
		Payload:    body,
	}
	if err := pub.Publish(ctx, ev); err != nil {
		log.Warn("publish event failed", logger.String("type", typ), logger.String("key", key), logger.Error(err))
	}
}
