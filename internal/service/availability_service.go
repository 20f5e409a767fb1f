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

const slotListCachePrefix = "slots:mentor:"

type availabilityRepository interface {
	Create(ctx context.Context, slot *models.AvailabilitySlot) error
	FindByID(ctx context.Context, id string) (*models.AvailabilitySlot, error)
	Update(ctx context.Context, slot *models.AvailabilitySlot) error
	Delete(ctx context.Context, id string) error
	Book(ctx context.Context, id string) (int64, error)
	Release(ctx context.Context, id string) error
	List(ctx context.Context, filter models.SlotFilter) ([]models.AvailabilitySlot, int, error)
	HasOpenSlots(ctx context.Context, mentorID string) (bool, error)
}

// AvailabilityService manages mentor availability slots and their
// capacity. Capacity changes go through conditional updates so two
// applicants can never share the last seat.
type AvailabilityService struct {
	repo      availabilityRepository
	cache     summaryCache
	cacheTTL  time.Duration
	validator *validator.Validate
	logger    *zap.Logger
}

// NewAvailabilityService constructs AvailabilityService. Cache may be nil.
func NewAvailabilityService(repo availabilityRepository, cache summaryCache, cacheTTL time.Duration, validate *validator.Validate, logger *zap.Logger) *AvailabilityService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cacheTTL <= 0 {
		cacheTTL = time.Minute
	}
	return &AvailabilityService{repo: repo, cache: cache, cacheTTL: cacheTTL, validator: validate, logger: logger}
}

// Create adds a new slot for a mentor.
func (s *AvailabilityService) Create(ctx context.Context, mentorID string, req models.CreateSlotRequest) (*models.AvailabilitySlot, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid slot payload")
	}
	date, err := time.Parse("2006-01-02", req.Date)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "invalid slot date")
	}
	var endDate *time.Time
	if req.EndDate != "" {
		parsed, err := time.Parse("2006-01-02", req.EndDate)
		if err != nil {
			return nil, appErrors.Clone(appErrors.ErrValidation, "invalid slot end date")
		}
		if parsed.Before(date) {
			return nil, appErrors.Clone(appErrors.ErrValidation, "end date precedes start date")
		}
		endDate = &parsed
	}
	if req.StartTime >= req.EndTime {
		return nil, appErrors.Clone(appErrors.ErrValidation, "start time must precede end time")
	}
	if req.LocationType != models.LocationVirtual && req.Address == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "an address is required for in-person sessions")
	}

	slot := &models.AvailabilitySlot{
		MentorID:     mentorID,
		Title:        req.Title,
		Description:  req.Description,
		Date:         date,
		EndDate:      endDate,
		StartTime:    req.StartTime,
		EndTime:      req.EndTime,
		LocationType: req.LocationType,
		Address:      req.Address,
		MaxBookings:  req.MaxBookings,
	}
	if err := s.repo.Create(ctx, slot); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create slot")
	}
	s.invalidateMentor(ctx, mentorID)
	return slot, nil
}

// Update modifies a slot owned by the mentor. MaxBookings can never
// shrink below the bookings already taken.
func (s *AvailabilityService) Update(ctx context.Context, id, mentorID string, req models.UpdateSlotRequest) (*models.AvailabilitySlot, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid slot payload")
	}
	slot, err := s.ownedSlot(ctx, id, mentorID)
	if err != nil {
		return nil, err
	}

	if req.Title != nil {
		slot.Title = *req.Title
	}
	if req.Description != nil {
		slot.Description = *req.Description
	}
	if req.Date != nil {
		date, err := time.Parse("2006-01-02", *req.Date)
		if err != nil {
			return nil, appErrors.Clone(appErrors.ErrValidation, "invalid slot date")
		}
		slot.Date = date
	}
	if req.EndDate != nil {
		if *req.EndDate == "" {
			slot.EndDate = nil
		} else {
			parsed, err := time.Parse("2006-01-02", *req.EndDate)
			if err != nil {
				return nil, appErrors.Clone(appErrors.ErrValidation, "invalid slot end date")
			}
			slot.EndDate = &parsed
		}
	}
	if req.StartTime != nil {
		slot.StartTime = *req.StartTime
	}
	if req.EndTime != nil {
		slot.EndTime = *req.EndTime
	}
	if slot.StartTime >= slot.EndTime {
		return nil, appErrors.Clone(appErrors.ErrValidation, "start time must precede end time")
	}
	if req.LocationType != nil {
		slot.LocationType = *req.LocationType
	}
	if req.Address != nil {
		slot.Address = *req.Address
	}
	if req.MaxBookings != nil {
		if *req.MaxBookings < slot.CurrentBookings {
			return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, fmt.Sprintf("capacity cannot drop below the %d existing bookings", slot.CurrentBookings))
		}
		slot.MaxBookings = *req.MaxBookings
	}

	if err := s.repo.Update(ctx, slot); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update slot")
	}
	s.invalidateMentor(ctx, mentorID)
	return slot, nil
}

// Delete removes a slot that has no bookings.
func (s *AvailabilityService) Delete(ctx context.Context, id, mentorID string) error {
	slot, err := s.ownedSlot(ctx, id, mentorID)
	if err != nil {
		return err
	}
	if slot.CurrentBookings > 0 {
		return appErrors.Clone(appErrors.ErrPreconditionFailed, "slot has bookings and cannot be deleted")
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete slot")
	}
	s.invalidateMentor(ctx, mentorID)
	return nil
}

// Get returns a slot by its ID.
func (s *AvailabilityService) Get(ctx context.Context, id string) (*models.AvailabilitySlot, error) {
	slot, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "slot not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load slot")
	}
	return slot, nil
}

// ListOpen returns open future slots for a mentor. The public wizard
// polls this, so results are cache-aside in Redis and invalidated on
// every mutation.
func (s *AvailabilityService) ListOpen(ctx context.Context, mentorID string) ([]models.AvailabilitySlot, error) {
	key := slotListCachePrefix + mentorID
	if s.cache != nil {
		var cached []models.AvailabilitySlot
		if err := s.cache.Get(ctx, key, &cached); err == nil {
			return cached, nil
		} else if !errors.Is(err, appErrors.ErrCacheMiss) {
			s.logger.Warn("slot list cache read failed", zap.Error(err))
		}
	}

	from := time.Now().UTC().Truncate(24 * time.Hour)
	slots, _, err := s.repo.List(ctx, models.SlotFilter{MentorID: mentorID, OpenOnly: true, From: &from, PageSize: 100})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list slots")
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, key, slots, s.cacheTTL); err != nil {
			s.logger.Warn("slot list cache write failed", zap.Error(err))
		}
	}
	return slots, nil
}

// List returns slots with pagination metadata.
func (s *AvailabilityService) List(ctx context.Context, filter models.SlotFilter) ([]models.AvailabilitySlot, *models.Pagination, error) {
	slots, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list slots")
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 {
		size = 50
	}
	return slots, &models.Pagination{Page: page, PageSize: size, TotalCount: total}, nil
}

// Book reserves one seat on a slot. Zero rows from the conditional
// update means the slot is full.
func (s *AvailabilityService) Book(ctx context.Context, id string) error {
	rows, err := s.repo.Book(ctx, id)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to book slot")
	}
	if rows == 0 {
		return appErrors.Clone(appErrors.ErrSlotFull, "availability slot is fully booked")
	}
	slot, err := s.repo.FindByID(ctx, id)
	if err == nil {
		s.invalidateMentor(ctx, slot.MentorID)
	}
	return nil
}

// Release frees one seat on a slot, flooring at zero.
func (s *AvailabilityService) Release(ctx context.Context, id string) error {
	if err := s.repo.Release(ctx, id); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to release slot")
	}
	slot, err := s.repo.FindByID(ctx, id)
	if err == nil {
		s.invalidateMentor(ctx, slot.MentorID)
	}
	return nil
}

func (s *AvailabilityService) ownedSlot(ctx context.Context, id, mentorID string) (*models.AvailabilitySlot, error) {
	slot, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "slot not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load slot")
	}
	if slot.MentorID != mentorID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "slot belongs to another mentor")
	}
	return slot, nil
}

func (s *AvailabilityService) invalidateMentor(ctx context.Context, mentorID string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.DeleteByPattern(ctx, slotListCachePrefix+mentorID); err != nil {
		s.logger.Warn("slot list cache invalidation failed", zap.Error(err))
	}
}
