package composables

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/trakwell/pipetrak/pkg/constants"
)

var ErrNoProjectID = errors.New("no project id found in context")

func WithProjectID(ctx context.Context, id uuid.UUID) context.Context {
	return context.WithValue(ctx, constants.ProjectIDKey, id)
}

func UseProjectID(ctx context.Context) (uuid.UUID, error) {
	id, ok := ctx.Value(constants.ProjectIDKey).(uuid.UUID)
	if !ok || id == uuid.Nil {
		return uuid.Nil, ErrNoProjectID
	}
	return id, nil
}

func WithLogger(ctx context.Context, logger *logrus.Entry) context.Context {
	return context.WithValue(ctx, constants.LoggerKey, logger)
}

// UseLogger returns the logger from the context.
// Panics when none is present; request handlers always install one.
func UseLogger(ctx context.Context) *logrus.Entry {
	logger := ctx.Value(constants.LoggerKey)
	if logger == nil {
		panic("logger not found")
	}
	return logger.(*logrus.Entry)
}
