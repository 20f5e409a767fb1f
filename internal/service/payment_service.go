package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/mentorconnect/mentorconnect-api/internal/models"
	appErrors "github.com/mentorconnect/mentorconnect-api/pkg/errors"
)

const financeSummaryCacheKey = "finance:summary"

type paymentRepository interface {
	Create(ctx context.Context, payment *models.Payment) error
	FindByID(ctx context.Context, id string) (*models.Payment, error)
	TransactionCodeExists(ctx context.Context, code string) (bool, error)
	FindLatestUnverified(ctx context.Context, applicationID string) (*models.Payment, error)
	MarkVerified(ctx context.Context, id, verifiedBy string, verifiedAt time.Time) (int64, error)
	List(ctx context.Context, filter models.PaymentFilter) ([]models.PaymentDetail, int, error)
	Summary(ctx context.Context) (*models.FinanceSummary, error)
}

type summaryCache interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	DeleteByPattern(ctx context.Context, pattern string) error
}

type paymentNotifier interface {
	PaymentDecision(app *models.Application, verified bool, reason string)
}

// PaymentConfig carries the fee schedule for applications.
type PaymentConfig struct {
	ApplicationFee  float64
	Currency        string
	SummaryCacheTTL time.Duration
}

// PaymentService implements the payment gate between the wizard and the
// admin review. Recording a payment is the only way an application
// leaves draft.
type PaymentService struct {
	payments  paymentRepository
	apps      applicationRepository
	slots     slotBooker
	activity  activityAppender
	cache     summaryCache
	notifier  paymentNotifier
	config    PaymentConfig
	validator *validator.Validate
	logger    *zap.Logger
}

// NewPaymentService constructs PaymentService. Cache and notifier may be
// nil; the service then skips caching and notifications.
func NewPaymentService(payments paymentRepository, apps applicationRepository, slots slotBooker, activity activityAppender, cache summaryCache, notifier paymentNotifier, config PaymentConfig, validate *validator.Validate, logger *zap.Logger) *PaymentService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if config.SummaryCacheTTL <= 0 {
		config.SummaryCacheTTL = 2 * time.Minute
	}
	return &PaymentService{payments: payments, apps: apps, slots: slots, activity: activity, cache: cache, notifier: notifier, config: config, validator: validate, logger: logger}
}

// Submit records a payment for a draft application and moves it to
// pending_finance. A duplicate transaction code fails before any status
// change; the unique index on the column backstops a race between the
// check and the insert.
func (s *PaymentService) Submit(ctx context.Context, applicationID string, owner Owner, req models.SubmitPaymentRequest, receiptPath string) (*models.Payment, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid payment payload")
	}

	app, err := s.apps.FindByID(ctx, applicationID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "application not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load application")
	}
	if !ownerMatches(app, owner) {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "application belongs to another applicant")
	}
	if app.Status != models.ApplicationStatusDraft {
		return nil, appErrors.Clone(appErrors.ErrWrongState, "a payment was already recorded for this application")
	}
	if app.SubmittedAt == nil {
		return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "the application must be submitted before paying")
	}

	exists, err := s.payments.TransactionCodeExists(ctx, req.TransactionCode)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check transaction code")
	}
	if exists {
		return nil, appErrors.Clone(appErrors.ErrDuplicateTxCode, "transaction code was already used")
	}

	payment := &models.Payment{
		ApplicationID:   applicationID,
		TransactionCode: req.TransactionCode,
		Amount:          req.Amount,
		Currency:        s.config.Currency,
		PayerPhone:      req.PayerPhone,
		ReceiptPath:     receiptPath,
		SubmittedAt:     time.Now().UTC(),
	}
	if err := s.payments.Create(ctx, payment); err != nil {
		var appErr *appErrors.Error
		if errors.As(err, &appErr) {
			return nil, appErr
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to record payment")
	}

	rows, err := s.apps.UpdateStatus(ctx, applicationID, models.ApplicationStatusDraft, models.ApplicationStatusPendingFinance, "")
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to advance application")
	}
	if rows == 0 {
		return nil, appErrors.Clone(appErrors.ErrWrongState, "application state changed concurrently")
	}

	if err := s.activity.Create(ctx, &models.ActivityLog{
		EntityKind:     models.EntityApplication,
		EntityID:       applicationID,
		ActionType:     models.ActivityPaymentSubmitted,
		PreviousStatus: string(models.ApplicationStatusDraft),
		NewStatus:      string(models.ApplicationStatusPendingFinance),
		Details:        fmt.Sprintf("transaction %s", req.TransactionCode),
	}); err != nil {
		s.logger.Warn("failed to record payment activity", zap.Error(err))
	}

	s.invalidateSummary(ctx)
	return payment, nil
}

// Verify marks the most recent unverified payment on a pending_finance
// application as verified and advances it to pending_review. An
// application without an unverified payment fails the precondition
// instead of silently advancing.
func (s *PaymentService) Verify(ctx context.Context, applicationID, officerID string) (*models.Payment, error) {
	app, err := s.apps.FindByID(ctx, applicationID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "application not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load application")
	}
	if app.Status != models.ApplicationStatusPendingFinance {
		return nil, appErrors.Clone(appErrors.ErrWrongState, fmt.Sprintf("application is %s, expected pending_finance", app.Status))
	}

	payment, err := s.payments.FindLatestUnverified(ctx, applicationID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "no unverified payment to verify")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load payment")
	}

	verifiedAt := time.Now().UTC()
	rows, err := s.payments.MarkVerified(ctx, payment.ID, officerID, verifiedAt)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to verify payment")
	}
	if rows == 0 {
		return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "payment was already verified")
	}

	moved, err := s.apps.UpdateStatus(ctx, applicationID, models.ApplicationStatusPendingFinance, models.ApplicationStatusPendingReview, "")
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to advance application")
	}
	if moved == 0 {
		return nil, appErrors.Clone(appErrors.ErrWrongState, "application state changed concurrently")
	}

	if err := s.activity.Create(ctx, &models.ActivityLog{
		EntityKind:     models.EntityApplication,
		EntityID:       applicationID,
		ActionType:     models.ActivityPaymentVerified,
		PreviousStatus: string(models.ApplicationStatusPendingFinance),
		NewStatus:      string(models.ApplicationStatusPendingReview),
		Details:        fmt.Sprintf("transaction %s", payment.TransactionCode),
		ActorID:        &officerID,
	}); err != nil {
		s.logger.Warn("failed to record verification activity", zap.Error(err))
	}

	payment.Verified = true
	payment.VerifiedBy = &officerID
	payment.VerifiedAt = &verifiedAt

	if s.notifier != nil {
		app.Status = models.ApplicationStatusPendingReview
		s.notifier.PaymentDecision(app, true, "")
	}
	s.invalidateSummary(ctx)
	return payment, nil
}

// Reject moves a pending_finance application to finance_rejected and
// releases its reserved slot.
func (s *PaymentService) Reject(ctx context.Context, applicationID, officerID string, req models.RejectApplicationRequest) (*models.Application, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "a rejection reason is required")
	}

	app, err := s.apps.FindByID(ctx, applicationID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "application not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load application")
	}
	if app.Status != models.ApplicationStatusPendingFinance {
		return nil, appErrors.Clone(appErrors.ErrWrongState, fmt.Sprintf("application is %s, expected pending_finance", app.Status))
	}

	rows, err := s.apps.UpdateStatus(ctx, applicationID, models.ApplicationStatusPendingFinance, models.ApplicationStatusFinanceRejected, req.Reason)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to reject application")
	}
	if rows == 0 {
		return nil, appErrors.Clone(appErrors.ErrWrongState, "application state changed concurrently")
	}

	if err := s.activity.Create(ctx, &models.ActivityLog{
		EntityKind:     models.EntityApplication,
		EntityID:       applicationID,
		ActionType:     models.ActivityStatusChange,
		PreviousStatus: string(models.ApplicationStatusPendingFinance),
		NewStatus:      string(models.ApplicationStatusFinanceRejected),
		Details:        req.Reason,
		ActorID:        &officerID,
	}); err != nil {
		s.logger.Warn("failed to record finance rejection activity", zap.Error(err))
	}

	if app.SlotID != nil {
		if err := s.slots.Release(ctx, *app.SlotID); err != nil {
			s.logger.Warn("failed to release slot on finance rejection",
				zap.String("application_id", applicationID),
				zap.String("slot_id", *app.SlotID),
				zap.Error(err))
		}
	}

	app.Status = models.ApplicationStatusFinanceRejected
	app.RejectionReason = req.Reason

	if s.notifier != nil {
		s.notifier.PaymentDecision(app, false, req.Reason)
	}
	s.invalidateSummary(ctx)
	return app, nil
}

// Get returns a payment by its ID.
func (s *PaymentService) Get(ctx context.Context, id string) (*models.Payment, error) {
	payment, err := s.payments.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "payment not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load payment")
	}
	return payment, nil
}

// List returns payments with pagination metadata for finance views.
func (s *PaymentService) List(ctx context.Context, filter models.PaymentFilter) ([]models.PaymentDetail, *models.Pagination, error) {
	payments, total, err := s.payments.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list payments")
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 {
		size = 20
	}
	return payments, &models.Pagination{Page: page, PageSize: size, TotalCount: total}, nil
}

// Summary returns the finance dashboard figures, cache-aside in Redis.
func (s *PaymentService) Summary(ctx context.Context) (*models.FinanceSummary, error) {
	if s.cache != nil {
		var cached models.FinanceSummary
		if err := s.cache.Get(ctx, financeSummaryCacheKey, &cached); err == nil {
			return &cached, nil
		} else if !errors.Is(err, appErrors.ErrCacheMiss) {
			s.logger.Warn("finance summary cache read failed", zap.Error(err))
		}
	}

	summary, err := s.payments.Summary(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to build finance summary")
	}
	summary.Currency = s.config.Currency

	if s.cache != nil {
		if err := s.cache.Set(ctx, financeSummaryCacheKey, summary, s.config.SummaryCacheTTL); err != nil {
			s.logger.Warn("finance summary cache write failed", zap.Error(err))
		}
	}
	return summary, nil
}

func (s *PaymentService) invalidateSummary(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.DeleteByPattern(ctx, financeSummaryCacheKey); err != nil {
		s.logger.Warn("finance summary cache invalidation failed", zap.Error(err))
	}
}
