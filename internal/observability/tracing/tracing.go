package tracing

import (
	"context"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

func InjectTraceID(ctx context.Context) context.Context {
	id := uuid.New().String()
	logger := log.With().Str("traceId", id).Logger()
	return logger.WithContext(ctx)
}

// InjectBatchID attaches a distribution batch id to the context logger
func InjectBatchID(ctx context.Context, batchID string) context.Context {
	logger := log.Ctx(ctx).With().Str("batchId", batchID).Logger()
	return logger.WithContext(ctx)
}
