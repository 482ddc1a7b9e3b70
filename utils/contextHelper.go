package utils

import (
	"context"

	"github.com/mmdatafocus/clients_backend/appctx"
)

const systemActor = "System"

// SetOperatorInContext stores the acting operator used for audit entries.
func SetOperatorInContext(ctx context.Context, operatorID int, operatorName string) context.Context {
	ctx = appctx.With(ctx, appctx.KeyOperatorID, operatorID)
	return appctx.With(ctx, appctx.KeyOperatorName, operatorName)
}

// GetOperatorFromContext returns the acting operator, "System" when none is set.
func GetOperatorFromContext(ctx context.Context) (int, string) {
	operatorID, _ := appctx.Int(ctx, appctx.KeyOperatorID)
	name, ok := appctx.String(ctx, appctx.KeyOperatorName)
	if !ok || name == "" {
		name = systemActor
	}
	return operatorID, name
}

func HasOperator(ctx context.Context) bool {
	operatorID, ok := appctx.Int(ctx, appctx.KeyOperatorID)
	return ok && operatorID > 0
}

func SetCorrelationIdInContext(ctx context.Context, correlationId string) context.Context {
	return appctx.With(ctx, appctx.KeyCorrelationID, correlationId)
}

func GetCorrelationIdFromContext(ctx context.Context) (string, bool) {
	return appctx.String(ctx, appctx.KeyCorrelationID)
}
