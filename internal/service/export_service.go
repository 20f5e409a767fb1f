package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/mentorconnect/mentorconnect-api/internal/models"
	appErrors "github.com/mentorconnect/mentorconnect-api/pkg/errors"
	"github.com/mentorconnect/mentorconnect-api/pkg/export"
)

// ExportFormat identifies a supported export encoding.
type ExportFormat string

// Supported export formats.
const (
	ExportFormatCSV ExportFormat = "csv"
	ExportFormatPDF ExportFormat = "pdf"
)

// ExportResult bundles the rendered bytes with response metadata.
type ExportResult struct {
	Content     []byte
	ContentType string
	Filename    string
}

// ExportService renders finance payment listings as CSV or PDF.
type ExportService struct {
	payments paymentRepository
	csv      *export.CSVExporter
	pdf      *export.PDFExporter
	logger   *zap.Logger
}

// NewExportService constructs ExportService.
func NewExportService(payments paymentRepository, logger *zap.Logger) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ExportService{
		payments: payments,
		csv:      export.NewCSVExporter(),
		pdf:      export.NewPDFExporter(),
		logger:   logger,
	}
}

var paymentExportHeaders = []string{"Tracking Code", "Applicant", "Transaction", "Amount", "Currency", "Payer Phone", "Verified", "Verified At", "Submitted At"}

// Payments exports payments matching the filter in the requested format.
func (s *ExportService) Payments(ctx context.Context, filter models.PaymentFilter, format ExportFormat) (*ExportResult, error) {
	filter.Page = 1
	if filter.PageSize <= 0 {
		filter.PageSize = 100
	}
	payments, _, err := s.payments.List(ctx, filter)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list payments for export")
	}

	data := export.Dataset{Headers: paymentExportHeaders, Rows: make([]map[string]string, 0, len(payments))}
	for _, p := range payments {
		verified := "no"
		verifiedAt := ""
		if p.Verified {
			verified = "yes"
			if p.VerifiedAt != nil {
				verifiedAt = p.VerifiedAt.Format("2006-01-02 15:04")
			}
		}
		data.Rows = append(data.Rows, map[string]string{
			"Tracking Code": p.TrackingCode,
			"Applicant":     p.ApplicantName,
			"Transaction":   p.TransactionCode,
			"Amount":        fmt.Sprintf("%.2f", p.Amount),
			"Currency":      p.Currency,
			"Payer Phone":   p.PayerPhone,
			"Verified":      verified,
			"Verified At":   verifiedAt,
			"Submitted At":  p.SubmittedAt.Format("2006-01-02 15:04"),
		})
	}

	stamp := time.Now().UTC().Format("20060102-150405")
	switch format {
	case ExportFormatCSV:
		content, err := s.csv.Render(data)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render csv export")
		}
		return &ExportResult{Content: content, ContentType: "text/csv", Filename: fmt.Sprintf("payments-%s.csv", stamp)}, nil
	case ExportFormatPDF:
		content, err := s.pdf.Render(data, "Payment Report")
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render pdf export")
		}
		return &ExportResult{Content: content, ContentType: "application/pdf", Filename: fmt.Sprintf("payments-%s.pdf", stamp)}, nil
	default:
		return nil, appErrors.Clone(appErrors.ErrValidation, "unsupported export format")
	}
}
