package usecase

import (
	"context"
	"encoding/json"
	"fmt"

	"GranStocks/internal/domain/models"
	"GranStocks/internal/domain/repository"
	"GranStocks/internal/domain/service"
	pkgkafka "GranStocks/pkg/kafka"
	"GranStocks/pkg/logger"
)

// WarmRequestHandler feeds warm requests published on Kafka into the warm queue.
type WarmRequestHandler struct {
	topic   string
	warm    service.WarmEnqueuer
	log     *logger.Logger
	metrics repository.Metrics
}

func NewWarmRequestHandler(topic string, warm service.WarmEnqueuer, log *logger.Logger, metrics repository.Metrics) *WarmRequestHandler {
	if log == nil {
		log = logger.NewNop()
	}
	if metrics == nil {
		metrics = repository.NopMetrics{}
	}
	return &WarmRequestHandler{topic: topic, warm: warm, log: log, metrics: metrics}
}

func (h *WarmRequestHandler) Topic() string { return h.topic }

// incoming message schema: {symbol, assetType}
func (h *WarmRequestHandler) Handle(ctx context.Context, b []byte) error {
	var req models.WarmRequest
	if err := json.Unmarshal(b, &req); err != nil {
		h.metrics.RecordError("warm_request_unmarshal")
		return pkgkafka.Permanent(fmt.Errorf("decode warm request: %w", err))
	}
	if err := checkRequest(ctx, &req); err != nil {
		h.metrics.RecordError("warm_request_invalid")
		return pkgkafka.Permanent(err)
	}
	if !h.warm.Enqueue(req) {
		// duplicates and a full queue are not worth a retry
		h.log.Debug("warm request not queued", logger.String("symbol", req.Symbol))
	}
	return nil
}

var _ pkgkafka.MessageHandler = (*WarmRequestHandler)(nil)
