// Package lookups provides the batch lookup bounded context: CSV upload,
// single-address lookup, result retrieval and export.
package lookups

import (
	apphttp "ean_lookup_backend/internal/http"
	"ean_lookup_backend/internal/lookups/service"
	"ean_lookup_backend/internal/lookups/store"
	"ean_lookup_backend/platform/config"
	"ean_lookup_backend/platform/logger"
	"ean_lookup_backend/platform/validator"
)

// Module wires the lookup HTTP routes.
type Module struct {
	handler *Handler
}

// NewModule creates the lookups module around an already configured processor.
func NewModule(processor *service.Processor, st store.Store, val *validator.Validator, cfg config.LookupConfig, log *logger.Logger) *Module {
	h := NewHandler(processor, st, val, cfg.GetUploadMaxBytes(), log)
	return &Module{handler: h}
}

func (m *Module) Name() string {
	return "lookups"
}

func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	ctx.Engine.GET("/", m.handler.UploadPage)

	group := ctx.V1.Group("/lookups")
	group.POST("", m.handler.Upload)
	group.POST("/address", m.handler.LookupAddress)
	group.GET("/:id", m.handler.Get)
	group.GET("/:id/export", m.handler.Export)
}

var _ apphttp.Module = (*Module)(nil)
