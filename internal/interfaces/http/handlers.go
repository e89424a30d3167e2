package http

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"github.com/garyjia/invoice-notifier/internal/application/port"
	"github.com/garyjia/invoice-notifier/internal/application/service"
	"github.com/garyjia/invoice-notifier/internal/domain/entity"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// HealthReport is returned by the health check
type HealthReport struct {
	Healthy    bool                   `json:"healthy"`
	Components map[string]interface{} `json:"components"`
}

// HealthFunc reports the health of the running service
type HealthFunc func(ctx context.Context) HealthReport

// Handlers contains all HTTP request handlers
type Handlers struct {
	invoiceService service.InvoiceService
	health         HealthFunc
	maxUploadBytes int64
	logger         Logger
}

// NewHandlers creates a new Handlers instance
func NewHandlers(invoiceService service.InvoiceService, health HealthFunc, maxUploadBytes int64, logger Logger) *Handlers {
	if maxUploadBytes <= 0 {
		maxUploadBytes = DefaultServerConfig().MaxUploadBytes
	}
	return &Handlers{
		invoiceService: invoiceService,
		health:         health,
		maxUploadBytes: maxUploadBytes,
		logger:         logger,
	}
}

// Response represents a standard JSON response
type Response struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

// HealthResponse represents the health check response
type HealthResponse struct {
	Status     string                 `json:"status"`
	Timestamp  string                 `json:"timestamp"`
	Version    string                 `json:"version"`
	Components map[string]interface{} `json:"components,omitempty"`
}

// InvoiceResponse represents an invoice in API responses
type InvoiceResponse struct {
	ID                string  `json:"id"`
	Status            string  `json:"status"`
	Dealer            string  `json:"dealer"`
	Phone             string  `json:"phone"`
	Total             string  `json:"total"`
	Currency          string  `json:"currency,omitempty"`
	Notes             string  `json:"notes,omitempty"`
	HasDocument       bool    `json:"has_document"`
	DeliveryStatus    string  `json:"delivery_status,omitempty"`
	DeliveryAttempts  int     `json:"delivery_attempts"`
	LastDeliveryError string  `json:"last_delivery_error,omitempty"`
	LastDeliveryAt    *string `json:"last_delivery_at,omitempty"`
	ApprovedAt        *string `json:"approved_at,omitempty"`
	CreatedAt         string  `json:"created_at"`
	UpdatedAt         string  `json:"updated_at"`
}

// CreateInvoiceRequest is the body of POST /api/invoices
type CreateInvoiceRequest struct {
	Dealer   string          `json:"dealer" binding:"required"`
	Phone    string          `json:"phone" binding:"required"`
	Total    decimal.Decimal `json:"total"`
	Currency string          `json:"currency"`
	Notes    string          `json:"notes"`
}

// UpdateInvoiceRequest is the body of PUT /api/invoices/:id
type UpdateInvoiceRequest struct {
	Dealer   *string          `json:"dealer"`
	Phone    *string          `json:"phone"`
	Total    *decimal.Decimal `json:"total"`
	Currency *string          `json:"currency"`
	Notes    *string          `json:"notes"`
}

// ListInvoicesRequest represents query parameters for listing invoices
type ListInvoicesRequest struct {
	Limit          int    `form:"limit"`
	Offset         int    `form:"offset"`
	Status         string `form:"status"`
	DeliveryStatus string `form:"delivery_status"`
}

// HealthCheck handles GET /health
func (h *Handlers) HealthCheck(c *gin.Context) {
	response := HealthResponse{
		Status:    "healthy",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Version:   "1.0.0",
	}

	code := http.StatusOK
	if h.health != nil {
		report := h.health(c.Request.Context())
		response.Components = report.Components
		if !report.Healthy {
			response.Status = "unhealthy"
			code = http.StatusServiceUnavailable
		}
	}

	c.JSON(code, Response{
		Success: code == http.StatusOK,
		Data:    response,
	})
}

// CreateInvoice handles POST /api/invoices
func (h *Handlers) CreateInvoice(c *gin.Context) {
	var req CreateInvoiceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Error("Invalid create request", "error", err)
		c.JSON(http.StatusBadRequest, Response{
			Success: false,
			Error:   "invalid request body",
		})
		return
	}

	invoice, err := h.invoiceService.CreateInvoice(c.Request.Context(), service.CreateInvoiceInput{
		Dealer:   req.Dealer,
		Phone:    req.Phone,
		Total:    req.Total,
		Currency: req.Currency,
		Notes:    req.Notes,
	})
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusCreated, Response{
		Success: true,
		Data:    toInvoiceResponse(invoice),
	})
}

// ListInvoices handles GET /api/invoices
func (h *Handlers) ListInvoices(c *gin.Context) {
	var req ListInvoicesRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		h.logger.Error("Invalid query parameters", "error", err)
		c.JSON(http.StatusBadRequest, Response{
			Success: false,
			Error:   "invalid query parameters",
		})
		return
	}

	if req.Limit <= 0 || req.Limit > 100 {
		req.Limit = 20
	}
	if req.Offset < 0 {
		req.Offset = 0
	}

	invoices, err := h.invoiceService.ListInvoices(c.Request.Context(), port.InvoiceFilter{
		Status:         entity.InvoiceStatus(req.Status),
		DeliveryStatus: entity.DeliveryStatus(req.DeliveryStatus),
		Limit:          req.Limit,
		Offset:         req.Offset,
	})
	if err != nil {
		h.writeError(c, err)
		return
	}

	responseInvoices := make([]InvoiceResponse, 0, len(invoices))
	for _, invoice := range invoices {
		responseInvoices = append(responseInvoices, toInvoiceResponse(invoice))
	}

	c.JSON(http.StatusOK, Response{
		Success: true,
		Data:    responseInvoices,
	})
}

// GetInvoice handles GET /api/invoices/:id
func (h *Handlers) GetInvoice(c *gin.Context) {
	invoice, err := h.invoiceService.GetInvoice(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, Response{
		Success: true,
		Data:    toInvoiceResponse(invoice),
	})
}

// UpdateInvoice handles PUT /api/invoices/:id
func (h *Handlers) UpdateInvoice(c *gin.Context) {
	var req UpdateInvoiceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Error("Invalid update request", "error", err)
		c.JSON(http.StatusBadRequest, Response{
			Success: false,
			Error:   "invalid request body",
		})
		return
	}

	invoice, err := h.invoiceService.UpdateInvoice(c.Request.Context(), c.Param("id"), service.UpdateInvoiceInput{
		Dealer:   req.Dealer,
		Phone:    req.Phone,
		Total:    req.Total,
		Currency: req.Currency,
		Notes:    req.Notes,
	})
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, Response{
		Success: true,
		Data:    toInvoiceResponse(invoice),
	})
}

// UploadDocument handles PUT /api/invoices/:id/document (multipart field "file")
func (h *Handlers) UploadDocument(c *gin.Context) {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, Response{
			Success: false,
			Error:   "missing file",
		})
		return
	}
	if fileHeader.Size > h.maxUploadBytes {
		c.JSON(http.StatusRequestEntityTooLarge, Response{
			Success: false,
			Error:   fmt.Sprintf("file exceeds %d bytes", h.maxUploadBytes),
		})
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		h.logger.Error("Failed to open uploaded file", "error", err)
		c.JSON(http.StatusBadRequest, Response{
			Success: false,
			Error:   "unreadable file",
		})
		return
	}
	defer file.Close()

	content, err := io.ReadAll(io.LimitReader(file, h.maxUploadBytes))
	if err != nil {
		h.logger.Error("Failed to read uploaded file", "error", err)
		c.JSON(http.StatusBadRequest, Response{
			Success: false,
			Error:   "unreadable file",
		})
		return
	}

	invoice, err := h.invoiceService.AttachDocument(c.Request.Context(), c.Param("id"), content)
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, Response{
		Success: true,
		Data:    toInvoiceResponse(invoice),
	})
}

// ApproveInvoice handles POST /api/invoices/:id/approve. The response does
// not wait for the webhook delivery.
func (h *Handlers) ApproveInvoice(c *gin.Context) {
	invoice, err := h.invoiceService.ApproveInvoice(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, Response{
		Success: true,
		Data:    toInvoiceResponse(invoice),
	})
}

// ResetDelivery handles POST /api/invoices/:id/delivery/reset
func (h *Handlers) ResetDelivery(c *gin.Context) {
	invoice, err := h.invoiceService.ResetDelivery(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, Response{
		Success: true,
		Data:    toInvoiceResponse(invoice),
	})
}

// DeliveryReport handles GET /api/deliveries/report.xlsx
func (h *Handlers) DeliveryReport(c *gin.Context) {
	filter := port.InvoiceFilter{
		Status:         entity.InvoiceStatus(c.Query("status")),
		DeliveryStatus: entity.DeliveryStatus(c.Query("delivery_status")),
	}

	var buf bytes.Buffer
	if err := h.invoiceService.ExportDeliveryReport(c.Request.Context(), &buf, filter); err != nil {
		h.writeError(c, err)
		return
	}

	filename := fmt.Sprintf("deliveries-%s.xlsx", time.Now().UTC().Format("20060102-150405"))
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, filename))
	c.Data(http.StatusOK, xlsxContentType, buf.Bytes())
}

// writeError maps domain errors to HTTP status codes
func (h *Handlers) writeError(c *gin.Context, err error) {
	status, message := http.StatusInternalServerError, "internal error"

	switch {
	case errors.Is(err, entity.ErrInvoiceNotFound):
		status, message = http.StatusNotFound, "invoice not found"
	case errors.Is(err, entity.ErrInvalidInvoice),
		errors.Is(err, entity.ErrInvalidStatus),
		errors.Is(err, entity.ErrInvalidDocument):
		status, message = http.StatusBadRequest, err.Error()
	case errors.Is(err, entity.ErrInvalidTransition),
		errors.Is(err, entity.ErrDeliveryNotApplicable):
		status, message = http.StatusConflict, err.Error()
	}

	if status == http.StatusInternalServerError {
		h.logger.Error("Request failed", "path", c.Request.URL.Path, "error", err)
	}

	c.JSON(status, Response{
		Success: false,
		Error:   message,
	})
}

func toInvoiceResponse(invoice *entity.Invoice) InvoiceResponse {
	return InvoiceResponse{
		ID:                invoice.ID,
		Status:            invoice.Status.String(),
		Dealer:            invoice.Dealer,
		Phone:             invoice.Phone,
		Total:             invoice.Total.StringFixed(2),
		Currency:          invoice.Currency,
		Notes:             invoice.Notes,
		HasDocument:       invoice.HasArtifact(),
		DeliveryStatus:    invoice.DeliveryStatus.String(),
		DeliveryAttempts:  invoice.DeliveryAttempts,
		LastDeliveryError: invoice.LastDeliveryError,
		LastDeliveryAt:    formatTime(invoice.LastDeliveryAt),
		ApprovedAt:        formatTime(invoice.ApprovedAt),
		CreatedAt:         invoice.CreatedAt.UTC().Format(time.RFC3339),
		UpdatedAt:         invoice.UpdatedAt.UTC().Format(time.RFC3339),
	}
}

func formatTime(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := t.UTC().Format(time.RFC3339)
	return &s
}
