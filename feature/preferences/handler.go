package preferences

import (
	"errors"
	"time"

	"prefs-manager/core/audit"
	"prefs-manager/core/logger"
	"prefs-manager/core/prefs"
	"prefs-manager/core/reconcile"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// Handler handles HTTP requests for preferences.
type Handler struct {
	service *Service
}

// NewHandler creates a new HTTP handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// RegisterRoutes registers the preference routes.
func (h *Handler) RegisterRoutes(app fiber.Router) {
	group := app.Group("/preferences")
	group.Get("/", h.HandleList)
	group.Post("/clear", h.HandleClear)
	group.Get("/reconcile", h.HandleReconcile)
	group.Get("/audit", h.HandleAudit)
	group.Get("/:key", h.HandleGet)
	group.Put("/:key", h.HandleSet)
	group.Delete("/:key", h.HandleDelete)
}

// HandleList returns every resolved preference.
// @Summary List Preferences
// @Description Returns the resolved value for every known preference key.
// @Tags preferences
// @Produce json
// @Success 200 {object} map[string]interface{} "Resolved preferences"
// @Failure 500 {object} map[string]string "Internal Server Error"
// @Router /preferences [get]
func (h *Handler) HandleList(c *fiber.Ctx) error {
	l := logger.WithRayID(h.service.logger, c)

	all, err := h.service.List(c.Context())
	if err != nil {
		l.Error("List failed", zap.Error(err))
		return writeError(c, err)
	}
	return c.JSON(fiber.Map{"preferences": all, "count": len(all)})
}

// HandleGet resolves one preference.
// @Summary Get Preference
// @Description Resolves the value for one key across all providers.
// @Tags preferences
// @Produce json
// @Param key path string true "Preference key"
// @Param default query string false "Fallback value as JSON"
// @Param decrypt query boolean false "Decrypt encrypted values"
// @Param cache query boolean false "Set to false to bypass the cache"
// @Success 200 {object} map[string]interface{} "Resolved preference"
// @Failure 404 {object} map[string]string "Not Found"
// @Router /preferences/{key} [get]
func (h *Handler) HandleGet(c *fiber.Ctx) error {
	l := logger.WithRayID(h.service.logger, c)
	key := c.Params("key")

	opts := &prefs.GetOptions{
		NoCache: c.Query("cache") == "false",
		Decrypt: c.Query("decrypt") == "true",
	}
	if raw := c.Query("default"); raw != "" {
		def, err := prefs.ParseValue([]byte(raw))
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "default is not valid JSON",
			})
		}
		opts.Default = &def
	}

	value, err := h.service.Get(c.Context(), key, opts)
	if err != nil {
		if !prefs.IsNotFound(err) {
			l.Error("Get failed", zap.String("key", key), zap.Error(err))
		}
		return writeError(c, err)
	}
	return c.JSON(fiber.Map{"key": key, "value": value})
}

// HandleSet writes one preference to every provider.
// @Summary Set Preference
// @Description Validates and writes a value to all providers. Body: {"value": <json>}.
// @Tags preferences
// @Accept json
// @Produce json
// @Param key path string true "Preference key"
// @Param encrypt query boolean false "Encrypt string values at rest"
// @Param validate query boolean false "Set to false to skip validation"
// @Success 200 {object} map[string]interface{} "Written preference"
// @Failure 422 {object} map[string]interface{} "Validation failed"
// @Router /preferences/{key} [put]
func (h *Handler) HandleSet(c *fiber.Ctx) error {
	l := logger.WithRayID(h.service.logger, c)
	key := c.Params("key")

	doc, err := prefs.ParseValue(c.Body())
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "body is not valid JSON",
		})
	}
	obj, ok := doc.AsObject()
	if !ok {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "body must be an object with a value field",
		})
	}
	value, ok := obj.Get("value")
	if !ok {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "body must be an object with a value field",
		})
	}

	opts := &prefs.SetOptions{
		SkipValidation: c.Query("validate") == "false",
		Encrypt:        c.Query("encrypt") == "true",
	}
	if err := h.service.Set(c.Context(), key, value, opts); err != nil {
		l.Error("Set failed", zap.String("key", key), zap.Error(err))
		return writeError(c, err)
	}

	l.Info("Preference written", zap.String("key", key))
	return c.JSON(fiber.Map{"key": key, "value": value})
}

// HandleDelete removes one preference from every provider.
// @Summary Delete Preference
// @Description Removes a key from all providers.
// @Tags preferences
// @Produce json
// @Param key path string true "Preference key"
// @Success 200 {object} map[string]interface{} "Deletion result"
// @Failure 404 {object} map[string]string "Not Found"
// @Router /preferences/{key} [delete]
func (h *Handler) HandleDelete(c *fiber.Ctx) error {
	l := logger.WithRayID(h.service.logger, c)
	key := c.Params("key")

	removed, err := h.service.Delete(c.Context(), key)
	if err != nil {
		l.Error("Delete failed", zap.String("key", key), zap.Error(err))
		return writeError(c, err)
	}
	if !removed {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "preference not found",
			"key":   key,
		})
	}

	l.Info("Preference deleted", zap.String("key", key))
	return c.JSON(fiber.Map{"key": key, "deleted": true})
}

// HandleClear wipes every provider.
// @Summary Clear Preferences
// @Description Removes every preference from every provider.
// @Tags preferences
// @Produce json
// @Success 200 {object} map[string]string "Clear result"
// @Failure 500 {object} map[string]string "Internal Server Error"
// @Router /preferences/clear [post]
func (h *Handler) HandleClear(c *fiber.Ctx) error {
	l := logger.WithRayID(h.service.logger, c)

	if err := h.service.Clear(c.Context()); err != nil {
		l.Error("Clear failed", zap.Error(err))
		return writeError(c, err)
	}

	l.Warn("All preferences cleared")
	return c.JSON(fiber.Map{"status": "cleared"})
}

// HandleAudit serves the buffered audit trail.
// @Summary Audit Trail
// @Description Returns buffered audit entries, optionally filtered.
// @Tags preferences
// @Produce json
// @Param action query string false "Filter by action (GET, SET, DELETE, ...)"
// @Param key query string false "Filter by preference key"
// @Param since query string false "RFC3339 lower bound"
// @Success 200 {object} map[string]interface{} "Audit entries"
// @Router /preferences/audit [get]
func (h *Handler) HandleAudit(c *fiber.Ctx) error {
	filter := audit.Filter{
		Action: prefs.AuditAction(c.Query("action")),
		Key:    c.Query("key"),
	}
	if raw := c.Query("since"); raw != "" {
		since, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "since must be RFC3339",
			})
		}
		filter.Since = since
	}

	entries := h.service.Audit(filter)
	return c.JSON(fiber.Map{"entries": entries, "count": len(entries)})
}

// HandleReconcile reports provider drift and optionally repairs it.
// @Summary Reconcile Providers
// @Description Compares every provider against the resolved state. Repairs require apply=true and confirm=true.
// @Tags preferences
// @Produce json
// @Param apply query boolean false "Apply the planned repairs"
// @Param confirm query boolean false "Confirm destructive repairs"
// @Param remove_extra query boolean false "Delete keys outside the resolved state"
// @Success 200 {object} map[string]interface{} "Reconcile plan"
// @Failure 500 {object} map[string]string "Internal Server Error"
// @Router /preferences/reconcile [get]
func (h *Handler) HandleReconcile(c *fiber.Ctx) error {
	l := logger.WithRayID(h.service.logger, c)

	opts := reconcile.Options{
		RemoveExtra: c.Query("remove_extra") == "true",
		DryRun:      c.Query("apply") != "true",
		Confirmed:   c.Query("confirm") == "true",
	}
	plan, executed, err := h.service.Reconcile(c.Context(), opts)
	if err != nil {
		l.Error("Reconcile failed", zap.Error(err))
		return writeError(c, err)
	}

	if executed > 0 {
		l.Info("Reconcile applied repairs", zap.Int("executed", executed))
	}
	return c.JSON(fiber.Map{"plan": plan, "executed": executed})
}

// writeError maps the error taxonomy to HTTP statuses.
func writeError(c *fiber.Ctx, err error) error {
	var (
		notFound   *prefs.NotFoundError
		validation *prefs.ValidationError
		conflict   *prefs.ConflictError
		config     *prefs.ConfigError
	)

	switch {
	case errors.As(err, &notFound):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": err.Error(),
			"key":   notFound.Key,
		})
	case errors.As(err, &validation):
		return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{
			"error":  err.Error(),
			"key":    validation.Key,
			"errors": validation.Errors,
		})
	case errors.As(err, &conflict):
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{
			"error": err.Error(),
		})
	case errors.As(err, &config):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": err.Error(),
		})
	default:
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": err.Error(),
		})
	}
}
