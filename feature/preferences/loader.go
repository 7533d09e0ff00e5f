package preferences

import (
	"time"

	"prefs-manager/core/audit"
	"prefs-manager/core/prefs"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// Feature implements the loader.Feature interface.
type Feature struct {
	service *Service
	handler *Handler
}

// NewFeature creates the preferences feature.
func NewFeature(injector *prefs.Injector, auditLog *audit.Logger, strategy prefs.Strategy, snapshotTTL time.Duration, logger *zap.Logger) *Feature {
	svc := NewService(injector, auditLog, strategy, snapshotTTL, logger)
	h := NewHandler(svc)
	return &Feature{service: svc, handler: h}
}

// Name returns the name of the feature.
func (f *Feature) Name() string {
	return "preferences"
}

// IsEnabled checks if the feature is enabled.
func (f *Feature) IsEnabled() bool {
	return true
}

// Load registers the feature's routes.
func (f *Feature) Load(app fiber.Router) error {
	f.handler.RegisterRoutes(app)
	return nil
}
