package handlers

import (
	"context"

	"github.com/sirupsen/logrus"

	"roastreel/internal/pipeline"
)

// Roaster is the pipeline the handlers drive. *pipeline.Roaster satisfies it;
// tests substitute a fake.
type Roaster interface {
	Roast(ctx context.Context, req pipeline.Request) (*pipeline.Result, error)
}

// ApplicationHandler holds shared dependencies for handlers.
type ApplicationHandler struct {
	Roaster Roaster
	Logger  *logrus.Logger
}

// NewApplicationHandler creates a new ApplicationHandler with the given dependencies.
func NewApplicationHandler(roaster Roaster, logger *logrus.Logger) *ApplicationHandler {
	return &ApplicationHandler{
		Roaster: roaster,
		Logger:  logger,
	}
}
