package services

import (
	"context"
	"encoding/json"
	"time"

	"sku-service/models"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// EventOperationCompleted is published once per completed bulk operation.
const EventOperationCompleted = "sku.operation.completed"

// OperationCompletedEvent is the SNS payload for a finished operation.
type OperationCompletedEvent struct {
	EventID   string               `json:"event_id"`
	EventType string               `json:"event_type"`
	Operation models.OperationKind `json:"operation"`
	Detail    string               `json:"detail,omitempty"`
	Processed int                  `json:"processed"`
	Total     int64                `json:"total"`
	ReportURL string               `json:"report_url,omitempty"`
	Timestamp time.Time            `json:"timestamp"`
}

// publishOperationCompleted sends the completion event. Publishing never
// fails the operation.
func (s *skuServiceImpl) publishOperationCompleted(ctx context.Context, event OperationCompletedEvent) {
	if s.snsClient == nil || s.snsTopicArn == "" {
		s.logger.Warn("SNS not configured, skipping operation completed event",
			zap.String("operation", string(event.Operation)))
		return
	}

	event.EventID = uuid.New().String()
	event.EventType = EventOperationCompleted
	event.Timestamp = s.now().UTC()

	payload, err := json.Marshal(event)
	if err != nil {
		s.logger.Error("Failed to marshal operation completed event", zap.Error(err))
		return
	}

	if err := s.snsClient.Publish(ctx, s.snsTopicArn, payload); err != nil {
		s.logger.Error("Failed to publish operation completed event",
			zap.String("operation", string(event.Operation)),
			zap.Error(err))
		return
	}

	s.logger.Info("Published operation completed event",
		zap.String("event_id", event.EventID),
		zap.String("operation", string(event.Operation)),
		zap.Int("processed", event.Processed))
}
