package service

import (
	"context"
	"database/sql"
	"errors"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/mentorconnect/mentorconnect-api/internal/models"
	appErrors "github.com/mentorconnect/mentorconnect-api/pkg/errors"
)

// Matching weights. They sum to 1.0; CompatibilityScore is a weighted
// average of six factors each normalised to [0, 100].
const (
	weightSkills       = 0.25
	weightExpertise    = 0.20
	weightAvailability = 0.15
	weightLocation     = 0.15
	weightReputation   = 0.15
	weightSessionType  = 0.10
)

const matchingCachePrefix = "matching:student:"

type studentProfileReader interface {
	FindStudentByUser(ctx context.Context, userID string) (*models.StudentProfile, error)
	ListAvailableMentors(ctx context.Context) ([]models.MentorDirectoryEntry, error)
}

type openSlotChecker interface {
	HasOpenSlots(ctx context.Context, mentorID string) (bool, error)
}

// MatchingService ranks mentors for a student by compatibility.
type MatchingService struct {
	profiles studentProfileReader
	slots    openSlotChecker
	cache    summaryCache
	cacheTTL time.Duration
	logger   *zap.Logger
}

// NewMatchingService constructs MatchingService. Cache may be nil.
func NewMatchingService(profiles studentProfileReader, slots openSlotChecker, cache summaryCache, cacheTTL time.Duration, logger *zap.Logger) *MatchingService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cacheTTL <= 0 {
		cacheTTL = 5 * time.Minute
	}
	return &MatchingService{profiles: profiles, slots: slots, cache: cache, cacheTTL: cacheTTL, logger: logger}
}

// Suggest returns mentors ranked by compatibility with the student's
// profile, best first.
func (s *MatchingService) Suggest(ctx context.Context, studentUserID string, limit int) ([]models.MentorSuggestion, error) {
	if limit <= 0 || limit > 50 {
		limit = 10
	}

	key := matchingCachePrefix + studentUserID
	if s.cache != nil {
		var cached []models.MentorSuggestion
		if err := s.cache.Get(ctx, key, &cached); err == nil {
			if len(cached) > limit {
				cached = cached[:limit]
			}
			return cached, nil
		} else if !errors.Is(err, appErrors.ErrCacheMiss) {
			s.logger.Warn("matching cache read failed", zap.Error(err))
		}
	}

	student, err := s.profiles.FindStudentByUser(ctx, studentUserID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "complete your student profile to get suggestions")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student profile")
	}

	mentors, err := s.profiles.ListAvailableMentors(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list mentors")
	}

	suggestions := make([]models.MentorSuggestion, 0, len(mentors))
	for i := range mentors {
		mentor := &mentors[i]
		hasSlots, err := s.slots.HasOpenSlots(ctx, mentor.UserID)
		if err != nil {
			s.logger.Warn("failed to check open slots", zap.String("mentor_id", mentor.UserID), zap.Error(err))
			hasSlots = false
		}
		score, breakdown := CompatibilityScore(student, &mentor.MentorProfile, hasSlots)
		suggestions = append(suggestions, models.MentorSuggestion{
			MentorID:  mentor.UserID,
			FullName:  mentor.FullName,
			Headline:  mentor.Headline,
			Score:     score,
			Breakdown: breakdown,
		})
	}

	sort.SliceStable(suggestions, func(i, j int) bool {
		return suggestions[i].Score > suggestions[j].Score
	})

	if s.cache != nil {
		if err := s.cache.Set(ctx, key, suggestions, s.cacheTTL); err != nil {
			s.logger.Warn("matching cache write failed", zap.Error(err))
		}
	}

	if len(suggestions) > limit {
		suggestions = suggestions[:limit]
	}
	return suggestions, nil
}

// CompatibilityScore computes the weighted compatibility between a
// student and a mentor. It is deterministic in its inputs so the same
// pair always produces the same score.
func CompatibilityScore(student *models.StudentProfile, mentor *models.MentorProfile, hasOpenSlots bool) (float64, models.CompatibilityBreakdown) {
	breakdown := models.CompatibilityBreakdown{
		Skills:       overlapScore(models.ParseStringList(student.Skills), models.ParseStringList(mentor.Skills)),
		Expertise:    overlapScore(models.ParseStringList(student.Interests), models.ParseStringList(mentor.Expertise)),
		Availability: boolScore(hasOpenSlots),
		Location:     locationScore(student, mentor),
		Reputation:   reputationScore(mentor),
		SessionType:  sessionTypeScore(student.PreferredSessionType, mentor),
	}

	score := breakdown.Skills*weightSkills +
		breakdown.Expertise*weightExpertise +
		breakdown.Availability*weightAvailability +
		breakdown.Location*weightLocation +
		breakdown.Reputation*weightReputation +
		breakdown.SessionType*weightSessionType
	return score, breakdown
}

// overlapScore measures how much of the wanted list the offered list
// covers. An empty wanted list scores a neutral 50 rather than favouring
// students who left the field blank.
func overlapScore(wanted, offered models.StringList) float64 {
	if len(wanted) == 0 {
		return 50
	}
	if len(offered) == 0 {
		return 0
	}
	offeredSet := make(map[string]bool, len(offered))
	for _, item := range offered {
		offeredSet[strings.ToLower(item)] = true
	}
	matched := 0
	for _, item := range wanted {
		if offeredSet[strings.ToLower(item)] {
			matched++
		}
	}
	return float64(matched) / float64(len(wanted)) * 100
}

func boolScore(b bool) float64 {
	if b {
		return 100
	}
	return 0
}

func locationScore(student *models.StudentProfile, mentor *models.MentorProfile) float64 {
	sameCity := student.City != "" && strings.EqualFold(student.City, mentor.City)
	sameCountry := student.Country != "" && strings.EqualFold(student.Country, mentor.Country)
	switch {
	case sameCity:
		return 100
	case sameCountry:
		return 60
	case mentor.AcceptsVirtual:
		// Distance matters less when sessions can run online.
		return 40
	default:
		return 0
	}
}

func reputationScore(mentor *models.MentorProfile) float64 {
	if mentor.TotalReviews == 0 {
		return 50
	}
	score := mentor.Rating / 5 * 100
	if score > 100 {
		score = 100
	}
	if score < 0 {
		score = 0
	}
	return score
}

func sessionTypeScore(pref models.SessionType, mentor *models.MentorProfile) float64 {
	switch pref {
	case models.SessionInPerson:
		return boolScore(mentor.AcceptsInPerson)
	case models.SessionVirtual:
		return boolScore(mentor.AcceptsVirtual)
	case models.SessionHybrid:
		if mentor.AcceptsInPerson && mentor.AcceptsVirtual {
			return 100
		}
		if mentor.AcceptsInPerson || mentor.AcceptsVirtual {
			return 50
		}
		return 0
	default:
		return 50
	}
}
