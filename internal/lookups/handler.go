package lookups

import (
	"bytes"
	"errors"
	"fmt"
	"net/http"

	"ean_lookup_backend/internal/lookups/export"
	"ean_lookup_backend/internal/lookups/service"
	"ean_lookup_backend/internal/lookups/store"
	"ean_lookup_backend/internal/lookups/transport"
	"ean_lookup_backend/platform/apperr"
	"ean_lookup_backend/platform/httpkit"
	"ean_lookup_backend/platform/logger"
	"ean_lookup_backend/platform/validator"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	uploadField     = "file"
	errInvalidID    = "invalid lookup id"
	errInvalidBody  = "invalid request body"
	contentTypeCSV  = "text/csv; charset=utf-8"
	contentTypeXLSX = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

// Handler exposes the upload, lookup and export endpoints.
type Handler struct {
	processor *service.Processor
	store     store.Store
	val       *validator.Validator
	maxUpload int64
	log       *logger.Logger
}

func NewHandler(processor *service.Processor, st store.Store, val *validator.Validator, maxUpload int64, log *logger.Logger) *Handler {
	return &Handler{
		processor: processor,
		store:     st,
		val:       val,
		maxUpload: maxUpload,
		log:       log,
	}
}

// Upload handles POST /api/v1/lookups with a multipart CSV in field "file".
func (h *Handler) Upload(c *gin.Context) {
	tooLarge := apperr.TooLarge(fmt.Sprintf("upload exceeds %d bytes", h.maxUpload))
	if c.Request.ContentLength > h.maxUpload {
		httpkit.HandleError(c, tooLarge)
		return
	}
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxUpload)

	fileHeader, err := c.FormFile(uploadField)
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			httpkit.HandleError(c, tooLarge)
			return
		}
		httpkit.HandleError(c, apperr.BadRequest(`no file uploaded: send the CSV in multipart field "file"`))
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		httpkit.HandleError(c, apperr.Wrap(apperr.KindBadRequest, "unable to read uploaded file", err))
		return
	}
	defer func() {
		_ = file.Close()
	}()

	h.log.WithContext(c.Request.Context()).Info("lookup upload received",
		"filename", fileHeader.Filename,
		"size", fileHeader.Size,
	)

	table, err := h.processor.ProcessCSV(c.Request.Context(), file)
	if httpkit.HandleError(c, err) {
		return
	}

	if httpkit.HandleError(c, h.store.Save(c.Request.Context(), table)) {
		return
	}

	httpkit.JSON(c, http.StatusCreated, table)
}

// LookupAddress handles POST /api/v1/lookups/address for a single address.
func (h *Handler) LookupAddress(c *gin.Context) {
	var req transport.AddressLookupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, errInvalidBody, err.Error())
		return
	}

	httpkit.OK(c, h.processor.ProcessOne(c.Request.Context(), req.RawRow()))
}

// Get handles GET /api/v1/lookups/:id.
func (h *Handler) Get(c *gin.Context) {
	table, ok := h.loadTable(c)
	if !ok {
		return
	}
	httpkit.OK(c, table)
}

// Export handles GET /api/v1/lookups/:id/export?format=csv|xlsx.
func (h *Handler) Export(c *gin.Context) {
	var query transport.ExportQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		httpkit.Error(c, http.StatusBadRequest, "invalid query", err.Error())
		return
	}
	if err := h.val.Struct(query); err != nil {
		httpkit.Error(c, http.StatusBadRequest, "format must be csv or xlsx", nil)
		return
	}

	table, ok := h.loadTable(c)
	if !ok {
		return
	}

	var (
		buf         bytes.Buffer
		err         error
		filename    = export.CSVFileName
		contentType = contentTypeCSV
	)
	if transport.ExportFormat(query.Format) == transport.FormatXLSX {
		filename, contentType = export.XLSXFileName, contentTypeXLSX
		err = export.WriteXLSX(&buf, table)
	} else {
		err = export.WriteCSV(&buf, table)
	}
	if err != nil {
		httpkit.HandleError(c, apperr.Wrap(apperr.KindInternal, "export failed", err))
		return
	}

	c.Header("Content-Disposition", "attachment; filename="+filename)
	c.Data(http.StatusOK, contentType, buf.Bytes())
}

func (h *Handler) loadTable(c *gin.Context) (transport.ResultTable, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, errInvalidID, nil)
		return transport.ResultTable{}, false
	}

	table, err := h.store.Get(c.Request.Context(), id)
	if httpkit.HandleError(c, err) {
		return transport.ResultTable{}, false
	}
	return table, true
}
