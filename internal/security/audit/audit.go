package audit

import (
	"context"
	"log/slog"
	"time"
)

// Logger emits structured audit entries for state-changing operations.
// Domain errors are expected conditions and are never logged as crashes;
// audit entries record who did what to which resource.
type Logger struct {
	logger *slog.Logger
}

func NewLogger(logger *slog.Logger) *Logger {
	if logger == nil {
		logger = slog.Default()
	}
	return &Logger{logger: logger}
}

func (al *Logger) LogAction(ctx context.Context, userID, action, resource, resourceID, details string) {
	requestID := ""
	if reqID := ctx.Value("request_id"); reqID != nil {
		if s, ok := reqID.(string); ok {
			requestID = s
		}
	}

	al.logger.Info("audit",
		slog.String("action", action),
		slog.String("resource", resource),
		slog.String("resource_id", resourceID),
		slog.String("user_id", userID),
		slog.String("details", details),
		slog.String("request_id", requestID),
		slog.Time("timestamp", time.Now()),
	)
}

// LogApplication records an application lifecycle event initiated by a user
func (al *Logger) LogApplication(ctx context.Context, userID, applicationID, event, propertyID string) {
	al.LogAction(ctx, userID, event, "application", applicationID, "property="+propertyID)
}

// LogDecision records an approve/reject/withdraw decision
func (al *Logger) LogDecision(ctx context.Context, userID, applicationID, status, propertyID string) {
	al.LogAction(ctx, userID, "decision."+status, "application", applicationID, "property="+propertyID)
}

// LogRepair records a consistency repair applied to a property
func (al *Logger) LogRepair(ctx context.Context, propertyID, details string) {
	al.LogAction(ctx, "system", "repair", "property", propertyID, details)
}

// LogDenied records a rejected access attempt
func (al *Logger) LogDenied(ctx context.Context, userID, reason string) {
	al.LogAction(ctx, userID, "access_denied", "api", "", reason)
}
