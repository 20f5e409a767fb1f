package service

import (
	"context"
	"database/sql"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/mentorconnect/mentorconnect-api/internal/models"
	appErrors "github.com/mentorconnect/mentorconnect-api/pkg/errors"
)

type mockSlotRepo struct {
	slots   map[string]models.AvailabilitySlot
	deleted []string
}

func (m *mockSlotRepo) Create(ctx context.Context, slot *models.AvailabilitySlot) error {
	if m.slots == nil {
		m.slots = make(map[string]models.AvailabilitySlot)
	}
	if slot.ID == "" {
		slot.ID = "new-slot"
	}
	m.slots[slot.ID] = *slot
	return nil
}

func (m *mockSlotRepo) FindByID(ctx context.Context, id string) (*models.AvailabilitySlot, error) {
	if s, ok := m.slots[id]; ok {
		return &s, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockSlotRepo) Update(ctx context.Context, slot *models.AvailabilitySlot) error {
	m.slots[slot.ID] = *slot
	return nil
}

func (m *mockSlotRepo) Delete(ctx context.Context, id string) error {
	delete(m.slots, id)
	m.deleted = append(m.deleted, id)
	return nil
}

func (m *mockSlotRepo) Book(ctx context.Context, id string) (int64, error) {
	s, ok := m.slots[id]
	if !ok || s.CurrentBookings >= s.MaxBookings {
		return 0, nil
	}
	s.CurrentBookings++
	m.slots[id] = s
	return 1, nil
}

func (m *mockSlotRepo) Release(ctx context.Context, id string) error {
	if s, ok := m.slots[id]; ok && s.CurrentBookings > 0 {
		s.CurrentBookings--
		m.slots[id] = s
	}
	return nil
}

func (m *mockSlotRepo) List(ctx context.Context, filter models.SlotFilter) ([]models.AvailabilitySlot, int, error) {
	var out []models.AvailabilitySlot
	for _, s := range m.slots {
		if filter.MentorID != "" && s.MentorID != filter.MentorID {
			continue
		}
		if filter.OpenOnly && s.CurrentBookings >= s.MaxBookings {
			continue
		}
		out = append(out, s)
	}
	return out, len(out), nil
}

func (m *mockSlotRepo) HasOpenSlots(ctx context.Context, mentorID string) (bool, error) {
	for _, s := range m.slots {
		if s.MentorID == mentorID && s.CurrentBookings < s.MaxBookings {
			return true, nil
		}
	}
	return false, nil
}

func newSlotService(repo *mockSlotRepo) *AvailabilityService {
	return NewAvailabilityService(repo, nil, 0, validator.New(), zap.NewNop())
}

func TestAvailabilityServiceCreateValidatesTimesAndAddress(t *testing.T) {
	repo := &mockSlotRepo{}
	svc := newSlotService(repo)

	req := models.CreateSlotRequest{
		Title: "Morning mentoring", Date: "2026-09-01", StartTime: "09:00", EndTime: "11:00",
		LocationType: models.LocationVirtual, MaxBookings: 3,
	}
	slot, err := svc.Create(context.Background(), "men-1", req)
	require.NoError(t, err)
	assert.Equal(t, "men-1", slot.MentorID)
	assert.Equal(t, 0, slot.CurrentBookings)

	req.StartTime = "11:00"
	req.EndTime = "09:00"
	_, err = svc.Create(context.Background(), "men-1", req)
	require.Error(t, err)

	req.StartTime = "09:00"
	req.EndTime = "11:00"
	req.LocationType = models.LocationInPerson
	req.Address = ""
	_, err = svc.Create(context.Background(), "men-1", req)
	require.Error(t, err)
}

func TestAvailabilityServiceUpdateCannotShrinkBelowBookings(t *testing.T) {
	repo := &mockSlotRepo{slots: map[string]models.AvailabilitySlot{
		"slot-1": {ID: "slot-1", MentorID: "men-1", StartTime: "09:00", EndTime: "11:00", MaxBookings: 5, CurrentBookings: 3},
	}}
	svc := newSlotService(repo)

	two := 2
	_, err := svc.Update(context.Background(), "slot-1", "men-1", models.UpdateSlotRequest{MaxBookings: &two})
	require.Error(t, err)
	appErr, ok := err.(*appErrors.Error)
	require.True(t, ok)
	assert.Equal(t, appErrors.ErrPreconditionFailed.Code, appErr.Code)

	four := 4
	slot, err := svc.Update(context.Background(), "slot-1", "men-1", models.UpdateSlotRequest{MaxBookings: &four})
	require.NoError(t, err)
	assert.Equal(t, 4, slot.MaxBookings)
}

func TestAvailabilityServiceUpdateScopedToOwner(t *testing.T) {
	repo := &mockSlotRepo{slots: map[string]models.AvailabilitySlot{
		"slot-1": {ID: "slot-1", MentorID: "men-1", StartTime: "09:00", EndTime: "11:00", MaxBookings: 5},
	}}
	svc := newSlotService(repo)

	title := "Hijacked"
	_, err := svc.Update(context.Background(), "slot-1", "men-other", models.UpdateSlotRequest{Title: &title})
	require.Error(t, err)
	appErr, ok := err.(*appErrors.Error)
	require.True(t, ok)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErr.Code)
}

func TestAvailabilityServiceDeleteBlockedByBookings(t *testing.T) {
	repo := &mockSlotRepo{slots: map[string]models.AvailabilitySlot{
		"slot-1": {ID: "slot-1", MentorID: "men-1", MaxBookings: 2, CurrentBookings: 1},
		"slot-2": {ID: "slot-2", MentorID: "men-1", MaxBookings: 2},
	}}
	svc := newSlotService(repo)

	err := svc.Delete(context.Background(), "slot-1", "men-1")
	require.Error(t, err)

	err = svc.Delete(context.Background(), "slot-2", "men-1")
	require.NoError(t, err)
	assert.Equal(t, []string{"slot-2"}, repo.deleted)
}

func TestAvailabilityServiceBookUntilFull(t *testing.T) {
	repo := &mockSlotRepo{slots: map[string]models.AvailabilitySlot{
		"slot-1": {ID: "slot-1", MentorID: "men-1", MaxBookings: 2},
	}}
	svc := newSlotService(repo)

	require.NoError(t, svc.Book(context.Background(), "slot-1"))
	require.NoError(t, svc.Book(context.Background(), "slot-1"))

	err := svc.Book(context.Background(), "slot-1")
	require.Error(t, err)
	appErr, ok := err.(*appErrors.Error)
	require.True(t, ok)
	assert.Equal(t, appErrors.ErrSlotFull.Code, appErr.Code)

	require.NoError(t, svc.Release(context.Background(), "slot-1"))
	assert.Equal(t, 1, repo.slots["slot-1"].CurrentBookings)
	require.NoError(t, svc.Book(context.Background(), "slot-1"))
}
