package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/mentorconnect/mentorconnect-api/internal/models"
	appErrors "github.com/mentorconnect/mentorconnect-api/pkg/errors"
)

type mockPaymentRepo struct {
	payments  map[string]models.Payment
	codes     map[string]bool
	createErr error
}

func (m *mockPaymentRepo) Create(ctx context.Context, p *models.Payment) error {
	if m.createErr != nil {
		return m.createErr
	}
	if m.payments == nil {
		m.payments = make(map[string]models.Payment)
	}
	if p.ID == "" {
		p.ID = "new-payment"
	}
	m.payments[p.ID] = *p
	return nil
}

func (m *mockPaymentRepo) FindByID(ctx context.Context, id string) (*models.Payment, error) {
	if p, ok := m.payments[id]; ok {
		return &p, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockPaymentRepo) TransactionCodeExists(ctx context.Context, code string) (bool, error) {
	if m.codes[code] {
		return true, nil
	}
	for _, p := range m.payments {
		if p.TransactionCode == code {
			return true, nil
		}
	}
	return false, nil
}

func (m *mockPaymentRepo) FindLatestUnverified(ctx context.Context, applicationID string) (*models.Payment, error) {
	var latest *models.Payment
	for id := range m.payments {
		p := m.payments[id]
		if p.ApplicationID != applicationID || p.Verified {
			continue
		}
		if latest == nil || p.SubmittedAt.After(latest.SubmittedAt) {
			latest = &p
		}
	}
	if latest == nil {
		return nil, sql.ErrNoRows
	}
	return latest, nil
}

func (m *mockPaymentRepo) MarkVerified(ctx context.Context, id, verifiedBy string, verifiedAt time.Time) (int64, error) {
	p, ok := m.payments[id]
	if !ok || p.Verified {
		return 0, nil
	}
	p.Verified = true
	p.VerifiedBy = &verifiedBy
	p.VerifiedAt = &verifiedAt
	m.payments[id] = p
	return 1, nil
}

func (m *mockPaymentRepo) List(ctx context.Context, filter models.PaymentFilter) ([]models.PaymentDetail, int, error) {
	var out []models.PaymentDetail
	for _, p := range m.payments {
		out = append(out, models.PaymentDetail{Payment: p})
	}
	return out, len(out), nil
}

func (m *mockPaymentRepo) Summary(ctx context.Context) (*models.FinanceSummary, error) {
	return &models.FinanceSummary{PendingCount: len(m.payments)}, nil
}

func newPaymentService(payments *mockPaymentRepo, apps *mockApplicationRepo, slots *mockSlotBooker, activity *mockActivityLog) *PaymentService {
	if slots == nil {
		slots = &mockSlotBooker{}
	}
	if activity == nil {
		activity = &mockActivityLog{}
	}
	cfg := PaymentConfig{ApplicationFee: 5000, Currency: "RWF"}
	return NewPaymentService(payments, apps, slots, activity, nil, nil, cfg, validator.New(), zap.NewNop())
}

func submittedDraft(id string) models.Application {
	now := time.Now().UTC()
	return models.Application{ID: id, SessionKey: "sess-1", Status: models.ApplicationStatusDraft, CurrentStep: 5, SubmittedAt: &now}
}

func TestPaymentServiceSubmitAdvancesToPendingFinance(t *testing.T) {
	apps := &mockApplicationRepo{apps: map[string]models.Application{"app-1": submittedDraft("app-1")}}
	payments := &mockPaymentRepo{}
	activity := &mockActivityLog{}
	svc := newPaymentService(payments, apps, nil, activity)

	payment, err := svc.Submit(context.Background(), "app-1", Owner{SessionKey: "sess-1"}, models.SubmitPaymentRequest{
		TransactionCode: "TX-100", Amount: 5000, PayerPhone: "0788000000",
	}, "")
	require.NoError(t, err)
	assert.Equal(t, "RWF", payment.Currency)
	assert.Equal(t, models.ApplicationStatusPendingFinance, apps.apps["app-1"].Status)
	require.Len(t, activity.entries, 1)
	assert.Equal(t, models.ActivityPaymentSubmitted, activity.entries[0].ActionType)
}

func TestPaymentServiceSubmitRejectsDuplicateTransactionCode(t *testing.T) {
	apps := &mockApplicationRepo{apps: map[string]models.Application{"app-1": submittedDraft("app-1")}}
	payments := &mockPaymentRepo{codes: map[string]bool{"TX-100": true}}
	svc := newPaymentService(payments, apps, nil, nil)

	_, err := svc.Submit(context.Background(), "app-1", Owner{SessionKey: "sess-1"}, models.SubmitPaymentRequest{
		TransactionCode: "TX-100", Amount: 5000, PayerPhone: "0788000000",
	}, "")
	require.Error(t, err)
	appErr, ok := err.(*appErrors.Error)
	require.True(t, ok)
	assert.Equal(t, appErrors.ErrDuplicateTxCode.Code, appErr.Code)
	assert.Equal(t, models.ApplicationStatusDraft, apps.apps["app-1"].Status)
}

func TestPaymentServiceSubmitSurfacesInsertDuplicate(t *testing.T) {
	apps := &mockApplicationRepo{apps: map[string]models.Application{"app-1": submittedDraft("app-1")}}
	payments := &mockPaymentRepo{createErr: appErrors.Clone(appErrors.ErrDuplicateTxCode, "transaction code was already used")}
	svc := newPaymentService(payments, apps, nil, nil)

	_, err := svc.Submit(context.Background(), "app-1", Owner{SessionKey: "sess-1"}, models.SubmitPaymentRequest{
		TransactionCode: "TX-100", Amount: 5000, PayerPhone: "0788000000",
	}, "")
	require.Error(t, err)
	appErr, ok := err.(*appErrors.Error)
	require.True(t, ok)
	assert.Equal(t, appErrors.ErrDuplicateTxCode.Code, appErr.Code)
	assert.Equal(t, models.ApplicationStatusDraft, apps.apps["app-1"].Status)
}

func TestPaymentServiceSubmitRequiresSubmittedApplication(t *testing.T) {
	apps := &mockApplicationRepo{apps: map[string]models.Application{
		"app-1": {ID: "app-1", SessionKey: "sess-1", Status: models.ApplicationStatusDraft, CurrentStep: 5},
	}}
	svc := newPaymentService(&mockPaymentRepo{}, apps, nil, nil)

	_, err := svc.Submit(context.Background(), "app-1", Owner{SessionKey: "sess-1"}, models.SubmitPaymentRequest{
		TransactionCode: "TX-100", Amount: 5000, PayerPhone: "0788000000",
	}, "")
	require.Error(t, err)
	appErr, ok := err.(*appErrors.Error)
	require.True(t, ok)
	assert.Equal(t, appErrors.ErrPreconditionFailed.Code, appErr.Code)
}

func TestPaymentServiceSubmitWrongStateAfterPayment(t *testing.T) {
	app := submittedDraft("app-1")
	app.Status = models.ApplicationStatusPendingFinance
	apps := &mockApplicationRepo{apps: map[string]models.Application{"app-1": app}}
	svc := newPaymentService(&mockPaymentRepo{}, apps, nil, nil)

	_, err := svc.Submit(context.Background(), "app-1", Owner{SessionKey: "sess-1"}, models.SubmitPaymentRequest{
		TransactionCode: "TX-200", Amount: 5000, PayerPhone: "0788000000",
	}, "")
	require.Error(t, err)
	appErr, ok := err.(*appErrors.Error)
	require.True(t, ok)
	assert.Equal(t, appErrors.ErrWrongState.Code, appErr.Code)
}

func TestPaymentServiceVerifyAdvancesToPendingReview(t *testing.T) {
	app := submittedDraft("app-1")
	app.Status = models.ApplicationStatusPendingFinance
	apps := &mockApplicationRepo{apps: map[string]models.Application{"app-1": app}}
	payments := &mockPaymentRepo{payments: map[string]models.Payment{
		"pay-1": {ID: "pay-1", ApplicationID: "app-1", TransactionCode: "TX-100", SubmittedAt: time.Now().UTC()},
	}}
	svc := newPaymentService(payments, apps, nil, nil)

	payment, err := svc.Verify(context.Background(), "app-1", "officer-1")
	require.NoError(t, err)
	assert.True(t, payment.Verified)
	require.NotNil(t, payment.VerifiedBy)
	assert.Equal(t, "officer-1", *payment.VerifiedBy)
	assert.Equal(t, models.ApplicationStatusPendingReview, apps.apps["app-1"].Status)
}

func TestPaymentServiceVerifyWithoutPayment(t *testing.T) {
	app := submittedDraft("app-1")
	app.Status = models.ApplicationStatusPendingFinance
	apps := &mockApplicationRepo{apps: map[string]models.Application{"app-1": app}}
	svc := newPaymentService(&mockPaymentRepo{}, apps, nil, nil)

	_, err := svc.Verify(context.Background(), "app-1", "officer-1")
	require.Error(t, err)
	appErr, ok := err.(*appErrors.Error)
	require.True(t, ok)
	assert.Equal(t, appErrors.ErrPreconditionFailed.Code, appErr.Code)
	assert.Equal(t, models.ApplicationStatusPendingFinance, apps.apps["app-1"].Status)
}

func TestPaymentServiceVerifyWrongState(t *testing.T) {
	apps := &mockApplicationRepo{apps: map[string]models.Application{
		"app-1": {ID: "app-1", Status: models.ApplicationStatusDraft},
	}}
	svc := newPaymentService(&mockPaymentRepo{}, apps, nil, nil)

	_, err := svc.Verify(context.Background(), "app-1", "officer-1")
	require.Error(t, err)
	appErr, ok := err.(*appErrors.Error)
	require.True(t, ok)
	assert.Equal(t, appErrors.ErrWrongState.Code, appErr.Code)
}

func TestPaymentServiceRejectRequiresReason(t *testing.T) {
	app := submittedDraft("app-1")
	app.Status = models.ApplicationStatusPendingFinance
	apps := &mockApplicationRepo{apps: map[string]models.Application{"app-1": app}}
	svc := newPaymentService(&mockPaymentRepo{}, apps, nil, nil)

	_, err := svc.Reject(context.Background(), "app-1", "officer-1", models.RejectApplicationRequest{})
	require.Error(t, err)

	rejected, err := svc.Reject(context.Background(), "app-1", "officer-1", models.RejectApplicationRequest{Reason: "amount mismatch"})
	require.NoError(t, err)
	assert.Equal(t, models.ApplicationStatusFinanceRejected, rejected.Status)
	assert.Equal(t, "amount mismatch", rejected.RejectionReason)
}

func TestPaymentServiceRejectReleasesSlot(t *testing.T) {
	slotID := slotAID
	app := submittedDraft("app-1")
	app.Status = models.ApplicationStatusPendingFinance
	app.SlotID = &slotID
	apps := &mockApplicationRepo{apps: map[string]models.Application{"app-1": app}}
	slots := &mockSlotBooker{slots: map[string]models.AvailabilitySlot{
		slotAID: {ID: slotAID, MentorID: mentorAID, MaxBookings: 1, CurrentBookings: 1},
	}}
	svc := newPaymentService(&mockPaymentRepo{}, apps, slots, nil)

	rejected, err := svc.Reject(context.Background(), "app-1", "officer-1", models.RejectApplicationRequest{Reason: "no matching deposit"})
	require.NoError(t, err)
	assert.Equal(t, models.ApplicationStatusFinanceRejected, rejected.Status)
	assert.Contains(t, slots.released, slotAID)
	assert.Equal(t, 0, slots.slots[slotAID].CurrentBookings)
}
