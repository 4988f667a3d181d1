package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/eolymp/direct-printing/pkg/logger"
	"github.com/eolymp/direct-printing/pkg/printing"
)

type Catalog interface {
	List(ctx context.Context) []printing.Device
}

type Negotiator interface {
	Capability(ctx context.Context, name string) (printing.PrinterCapability, error)
}

type Dispatcher interface {
	Dispatch(ctx context.Context, payload printing.Payload) (int, error)
}

type SettingsStore interface {
	Load() (printing.PrintSettings, error)
}

const msgNoDefaultSettings = "No default settings"

type Handler struct {
	catalog    Catalog
	negotiator Negotiator
	dispatcher Dispatcher
	store      SettingsStore
}

func NewHandler(catalog Catalog, negotiator Negotiator, dispatcher Dispatcher, store SettingsStore) *Handler {
	return &Handler{
		catalog:    catalog,
		negotiator: negotiator,
		dispatcher: dispatcher,
		store:      store,
	}
}

type printRequest struct {
	File     []byte                  `json:"file" binding:"required,min=1"`
	Settings *printing.PrintSettings `json:"settings"`
}

type healthStatus struct {
	Status string `json:"status"`
}

func (h *Handler) Health(c *gin.Context) {
	success(c, http.StatusOK, healthStatus{Status: "ok"})
}

// ListPrinters returns the display names of all printers, an empty list when enumeration fails.
func (h *Handler) ListPrinters(c *gin.Context) {
	devices := h.catalog.List(c.Request.Context())

	names := make([]string, 0, len(devices))
	for _, d := range devices {
		names = append(names, d.DisplayName)
	}

	success(c, http.StatusOK, names)
}

func (h *Handler) GetPrinter(c *gin.Context) {
	capability, err := h.negotiator.Capability(c.Request.Context(), c.Param("name"))
	if err != nil {
		h.fail(c, err)
		return
	}

	success(c, http.StatusOK, capability)
}

func (h *Handler) GetSettings(c *gin.Context) {
	settings, err := h.store.Load()
	if err != nil {
		logger.FromContext(c).Info("Default settings unavailable", zap.Error(err))
		failure(c, http.StatusOK, msgNoDefaultSettings)
		return
	}

	success(c, http.StatusOK, settings)
}

// Print dispatches the document with the given settings, or with the stored defaults when none are given.
func (h *Handler) Print(c *gin.Context) {
	var req printRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		status, msg := bindError(err)
		logger.FromContext(c).Warn("Rejected print request", zap.Error(err))
		failure(c, status, msg)
		return
	}

	var settings printing.PrintSettings
	if req.Settings != nil {
		settings = *req.Settings
	} else {
		var err error
		if settings, err = h.store.Load(); err != nil {
			logger.FromContext(c).Info("Default settings unavailable", zap.Error(err))
			failure(c, http.StatusOK, msgNoDefaultSettings)
			return
		}
	}

	id, err := h.dispatcher.Dispatch(c.Request.Context(), printing.Payload{File: req.File, Settings: settings})
	if err != nil {
		h.fail(c, err)
		return
	}

	logger.FromContext(c).Info("Document printed", zap.String("printer", settings.Printer), zap.Int("job_id", id))

	success(c, http.StatusOK, "ok")
}

// fail answers with the client message of err. Faults of the spooler or of this process are
// reported as server errors, everything else is a normal negative answer.
func (h *Handler) fail(c *gin.Context, err error) {
	status := http.StatusOK

	switch {
	case printing.IsDriverFault(err):
		status = http.StatusInternalServerError
	case errors.Is(err, printing.ErrNoSuchPrinter), errors.Is(err, printing.ErrNoSuchOrientation), errors.Is(err, printing.ErrNoSuchPageSize):
	default:
		status = http.StatusInternalServerError
		logger.FromContext(c).Error("Request failed", zap.Error(err))
	}

	_ = c.Error(err)
	failure(c, status, printing.Message(err))
}
