package handler

import (
	"fmt"
	"net/http"
	"path/filepath"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/mentorconnect/mentorconnect-api/internal/models"
	"github.com/mentorconnect/mentorconnect-api/internal/service"
	appErrors "github.com/mentorconnect/mentorconnect-api/pkg/errors"
	"github.com/mentorconnect/mentorconnect-api/pkg/response"
	"github.com/mentorconnect/mentorconnect-api/pkg/storage"
)

const maxReceiptSize = 5 << 20

// PaymentHandler exposes payment submission and the finance workflow.
type PaymentHandler struct {
	payments *service.PaymentService
	exports  *service.ExportService
	uploads  *storage.UploadStore
	signer   *storage.SignedURLSigner
}

// NewPaymentHandler constructs PaymentHandler.
func NewPaymentHandler(payments *service.PaymentService, exports *service.ExportService, uploads *storage.UploadStore, signer *storage.SignedURLSigner) *PaymentHandler {
	return &PaymentHandler{payments: payments, exports: exports, uploads: uploads, signer: signer}
}

// Submit godoc
// @Summary Record a payment for an application
// @Description Multipart form with transaction details and an optional receipt image
// @Tags Payments
// @Accept multipart/form-data
// @Produce json
// @Param id path string true "Application ID"
// @Param transaction_code formData string true "Mobile money transaction code"
// @Param amount formData number true "Amount paid"
// @Param payer_phone formData string true "Payer phone number"
// @Param receipt formData file false "Receipt image or PDF"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 412 {object} response.Envelope
// @Router /applications/{id}/payments [post]
func (h *PaymentHandler) Submit(c *gin.Context) {
	amount, err := strconv.ParseFloat(c.PostForm("amount"), 64)
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid amount"))
		return
	}
	req := models.SubmitPaymentRequest{
		TransactionCode: c.PostForm("transaction_code"),
		Amount:          amount,
		PayerPhone:      c.PostForm("payer_phone"),
	}

	receiptPath := ""
	if file, err := c.FormFile("receipt"); err == nil {
		if file.Size > maxReceiptSize {
			response.Error(c, appErrors.Clone(appErrors.ErrValidation, "receipt exceeds the 5MB limit"))
			return
		}
		src, err := file.Open()
		if err != nil {
			response.Error(c, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to read receipt"))
			return
		}
		defer src.Close()

		name := fmt.Sprintf("receipts/%s%s", uuid.NewString(), filepath.Ext(file.Filename))
		receiptPath, err = h.uploads.SaveStream(name, src)
		if err != nil {
			response.Error(c, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store receipt"))
			return
		}
	}

	payment, err := h.payments.Submit(c.Request.Context(), c.Param("id"), ownerFromContext(c), req, receiptPath)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, payment)
}

// Verify godoc
// @Summary Verify the latest payment on an application
// @Tags Payments
// @Produce json
// @Param id path string true "Application ID"
// @Success 200 {object} response.Envelope
// @Failure 412 {object} response.Envelope
// @Router /applications/{id}/payments/verify [post]
func (h *PaymentHandler) Verify(c *gin.Context) {
	claims := claimsFromContext(c)
	payment, err := h.payments.Verify(c.Request.Context(), c.Param("id"), claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, payment, nil)
}

// Reject godoc
// @Summary Reject the payment on an application
// @Tags Payments
// @Accept json
// @Produce json
// @Param id path string true "Application ID"
// @Param payload body models.RejectApplicationRequest true "Rejection reason"
// @Success 200 {object} response.Envelope
// @Failure 412 {object} response.Envelope
// @Router /applications/{id}/payments/reject [post]
func (h *PaymentHandler) Reject(c *gin.Context) {
	var req models.RejectApplicationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	claims := claimsFromContext(c)
	app, err := h.payments.Reject(c.Request.Context(), c.Param("id"), claims.UserID, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, app, nil)
}

// List godoc
// @Summary List payments for the finance dashboard
// @Tags Payments
// @Produce json
// @Param verified query bool false "Filter by verification"
// @Param search query string false "Search applicant or transaction code"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /payments [get]
func (h *PaymentHandler) List(c *gin.Context) {
	filter := paymentFilterFromQuery(c)
	payments, pagination, err := h.payments.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, payments, pagination)
}

// Summary godoc
// @Summary Finance dashboard figures
// @Tags Payments
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /payments/summary [get]
func (h *PaymentHandler) Summary(c *gin.Context) {
	summary, err := h.payments.Summary(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, summary, nil)
}

// Export godoc
// @Summary Export payments as CSV or PDF
// @Tags Payments
// @Produce text/csv
// @Produce application/pdf
// @Param format query string false "csv or pdf" default(csv)
// @Param verified query bool false "Filter by verification"
// @Success 200 {file} file
// @Router /payments/export [get]
func (h *PaymentHandler) Export(c *gin.Context) {
	filter := paymentFilterFromQuery(c)
	format := service.ExportFormat(c.DefaultQuery("format", "csv"))
	result, err := h.exports.Payments(c.Request.Context(), filter, format)
	if err != nil {
		response.Error(c, err)
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", result.Filename))
	c.Data(http.StatusOK, result.ContentType, result.Content)
}

// ReceiptURL godoc
// @Summary Issue a short-lived receipt download link
// @Tags Payments
// @Produce json
// @Param id path string true "Payment ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /payments/{id}/receipt-url [get]
func (h *PaymentHandler) ReceiptURL(c *gin.Context) {
	payment, err := h.payments.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	if payment.ReceiptPath == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrNotFound, "payment has no receipt"))
		return
	}
	token, expiresAt, err := h.signer.Generate(payment.ID, payment.ReceiptPath)
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to sign receipt url"))
		return
	}
	response.JSON(c, http.StatusOK, gin.H{
		"url":        fmt.Sprintf("/api/v1/files/receipts?token=%s", token),
		"expires_at": expiresAt,
	}, nil)
}

// DownloadReceipt godoc
// @Summary Download a receipt via a signed token
// @Tags Payments
// @Produce application/octet-stream
// @Param token query string true "Signed token"
// @Success 200 {file} file
// @Failure 401 {object} response.Envelope
// @Router /files/receipts [get]
func (h *PaymentHandler) DownloadReceipt(c *gin.Context) {
	_, relPath, _, err := h.signer.Parse(c.Query("token"), false)
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrUnauthorized, "invalid or expired download token"))
		return
	}
	c.File(h.uploads.Path(relPath))
}

func paymentFilterFromQuery(c *gin.Context) models.PaymentFilter {
	var filter models.PaymentFilter
	if raw := c.Query("verified"); raw != "" {
		if verified, err := strconv.ParseBool(raw); err == nil {
			filter.Verified = &verified
		}
	}
	filter.Search = c.Query("search")
	if page, err := strconv.Atoi(c.DefaultQuery("page", "1")); err == nil {
		filter.Page = page
	}
	if size, err := strconv.Atoi(c.DefaultQuery("limit", "20")); err == nil {
		filter.PageSize = size
	}
	filter.SortBy = c.Query("sort")
	filter.SortOrder = c.Query("order")
	return filter
}
