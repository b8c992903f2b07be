package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/spec-kit/tasklist-service/internal/events"
	"github.com/spec-kit/tasklist-service/internal/observability"
)

// AuditService records session lifecycle events in the log and in metrics.
type AuditService struct {
	dispatcher events.Dispatcher
	logger     *zap.Logger
	metrics    *observability.Metrics
}

// NewAuditService creates the service.
func NewAuditService(dispatcher events.Dispatcher, logger *zap.Logger, metrics *observability.Metrics) *AuditService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuditService{
		dispatcher: dispatcher,
		logger:     logger,
		metrics:    metrics,
	}
}

// RegisterHandlers subscribes to events.
func (a *AuditService) RegisterHandlers() {
	if a.dispatcher == nil {
		return
	}
	a.dispatcher.Subscribe(events.EventUserRegistered, a.handleUserRegistered)
	a.dispatcher.Subscribe(events.EventSessionStarted, a.handleSessionStarted)
	a.dispatcher.Subscribe(events.EventSessionRefreshed, a.handleSessionRefreshed)
	a.dispatcher.Subscribe(events.EventSessionRevoked, a.handleSessionRevoked)
	a.dispatcher.Subscribe(events.EventSessionsSwept, a.handleSessionsSwept)
}

func (a *AuditService) handleUserRegistered(_ context.Context, event events.Event) error {
	a.logger.Info("UserRegistered", zap.String("user_id", event.UserID))
	return nil
}

func (a *AuditService) handleSessionStarted(_ context.Context, event events.Event) error {
	flow := FlowLogin
	if payload, ok := event.Payload.(events.SessionStartedPayload); ok && payload.Flow != "" {
		flow = payload.Flow
	}
	a.metrics.RecordSession(flow)
	a.logger.Info("SessionStarted", zap.String("user_id", event.UserID), zap.String("flow", flow))
	return nil
}

func (a *AuditService) handleSessionRefreshed(_ context.Context, event events.Event) error {
	a.metrics.RecordSession(FlowRefresh)
	a.logger.Info("SessionRefreshed", zap.String("user_id", event.UserID), zap.Any("payload", event.Payload))
	return nil
}

func (a *AuditService) handleSessionRevoked(_ context.Context, event events.Event) error {
	a.logger.Info("SessionRevoked", zap.String("user_id", event.UserID))
	return nil
}

func (a *AuditService) handleSessionsSwept(_ context.Context, event events.Event) error {
	a.logger.Info("SessionsSwept", zap.Any("payload", event.Payload))
	return nil
}
