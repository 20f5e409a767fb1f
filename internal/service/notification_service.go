package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/mentorconnect/mentorconnect-api/internal/models"
	appErrors "github.com/mentorconnect/mentorconnect-api/pkg/errors"
	"github.com/mentorconnect/mentorconnect-api/pkg/jobs"
)

const unreadCounterPrefix = "notifications:unread:"

const jobTypeNotify = "notify"

type notificationStore interface {
	Create(ctx context.Context, n *models.Notification) error
	List(ctx context.Context, filter models.NotificationFilter) ([]models.Notification, int, error)
	CountUnread(ctx context.Context, userID string) (int, error)
	MarkRead(ctx context.Context, id, userID string, readAt time.Time) (int64, error)
	MarkAllRead(ctx context.Context, userID string, readAt time.Time) error
}

type counterCache interface {
	IncrCounter(ctx context.Context, key string) error
	GetCounter(ctx context.Context, key string) (int, error)
	SetCounter(ctx context.Context, key string, value int, ttl time.Duration) error
}

type mailSender interface {
	Configured() bool
	Send(to, subject, body string) error
}

// NotificationConfig controls notification delivery.
type NotificationConfig struct {
	Enabled     bool
	MailEnabled bool
	SiteName    string
	SiteURL     string
	Workers     int
	Retries     int
}

type delivery struct {
	UserID  string
	Sender  *string
	Type    models.NotificationType
	Title   string
	Message string
	Email   string
}

// NotificationService creates in-app notifications and sends emails.
// Everything runs through the jobs queue: a failed delivery is retried
// and then logged, and never fails the workflow operation that caused it.
type NotificationService struct {
	store  notificationStore
	cache  counterCache
	mailer mailSender
	queue  *jobs.Queue
	config NotificationConfig
	logger *zap.Logger
}

// NewNotificationService constructs NotificationService. Cache and
// mailer may be nil.
func NewNotificationService(store notificationStore, cache counterCache, mailer mailSender, config NotificationConfig, logger *zap.Logger) *NotificationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &NotificationService{store: store, cache: cache, mailer: mailer, config: config, logger: logger}
	s.queue = jobs.NewQueue("notifications", s.process, jobs.QueueConfig{
		Workers:    config.Workers,
		MaxRetries: config.Retries,
		Logger:     logger,
	})
	return s
}

// Start launches the delivery workers.
func (s *NotificationService) Start(ctx context.Context) {
	s.queue.Start(ctx)
}

// Stop drains the delivery workers.
func (s *NotificationService) Stop() {
	s.queue.Stop()
}

// List returns notifications for a user with pagination metadata.
func (s *NotificationService) List(ctx context.Context, filter models.NotificationFilter) ([]models.Notification, *models.Pagination, error) {
	notifications, total, err := s.store.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list notifications")
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 {
		size = 20
	}
	return notifications, &models.Pagination{Page: page, PageSize: size, TotalCount: total}, nil
}

// UnreadCount returns the unread badge count, served from the Redis
// counter and resynced from SQL on a miss.
func (s *NotificationService) UnreadCount(ctx context.Context, userID string) (int, error) {
	key := unreadCounterPrefix + userID
	if s.cache != nil {
		if count, err := s.cache.GetCounter(ctx, key); err == nil {
			return count, nil
		}
	}
	count, err := s.store.CountUnread(ctx, userID)
	if err != nil {
		return 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count notifications")
	}
	if s.cache != nil {
		if err := s.cache.SetCounter(ctx, key, count, time.Hour); err != nil {
			s.logger.Warn("failed to sync unread counter", zap.Error(err))
		}
	}
	return count, nil
}

// MarkRead marks one notification as read.
func (s *NotificationService) MarkRead(ctx context.Context, id, userID string) error {
	rows, err := s.store.MarkRead(ctx, id, userID, time.Now().UTC())
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to mark notification read")
	}
	if rows == 0 {
		return appErrors.Clone(appErrors.ErrNotFound, "notification not found or already read")
	}
	s.resyncCounter(ctx, userID)
	return nil
}

// MarkAllRead marks every unread notification for a user as read.
func (s *NotificationService) MarkAllRead(ctx context.Context, userID string) error {
	if err := s.store.MarkAllRead(ctx, userID, time.Now().UTC()); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to mark notifications read")
	}
	s.resyncCounter(ctx, userID)
	return nil
}

// ApplicationDecision notifies the applicant about an admin decision.
func (s *NotificationService) ApplicationDecision(app *models.Application, approved bool, reason string) {
	nType := models.NotificationApplicationApproved
	title := "Application approved"
	message := fmt.Sprintf("Congratulations! Your application %s has been approved.", app.TrackingCode)
	if !approved {
		nType = models.NotificationApplicationRejected
		title = "Application update"
		message = fmt.Sprintf("Your application %s was not approved. Reason: %s", app.TrackingCode, reason)
	}
	s.dispatch(delivery{
		UserID:  stringOrEmpty(app.ApplicantID),
		Type:    nType,
		Title:   title,
		Message: message,
		Email:   app.Email,
	})
}

// PaymentDecision notifies the applicant about a finance decision.
func (s *NotificationService) PaymentDecision(app *models.Application, verified bool, reason string) {
	nType := models.NotificationPaymentVerified
	title := "Payment verified"
	message := fmt.Sprintf("Your payment for application %s was verified. The application is now under review.", app.TrackingCode)
	if !verified {
		nType = models.NotificationPaymentRejected
		title = "Payment rejected"
		message = fmt.Sprintf("Your payment for application %s was rejected. Reason: %s", app.TrackingCode, reason)
	}
	s.dispatch(delivery{
		UserID:  stringOrEmpty(app.ApplicantID),
		Type:    nType,
		Title:   title,
		Message: message,
		Email:   app.Email,
	})
}

// GuestDecision emails the guest about the mentor's decision; approvals
// carry the registration invitation link.
func (s *NotificationService) GuestDecision(app *models.GuestApplication, approved bool, feedback, invitationToken string) {
	nType := models.NotificationGuestApproved
	title := "Your mentorship request was approved"
	message := fmt.Sprintf("Good news! Your request was approved. Register within 7 days using this link: %s/register?invitation=%s", s.config.SiteURL, invitationToken)
	if !approved {
		nType = models.NotificationGuestRejected
		title = "Your mentorship request"
		message = "Unfortunately your request was not approved at this time."
	}
	if feedback != "" {
		message += "\n\nMentor feedback: " + feedback
	}
	s.dispatch(delivery{
		UserID:  stringOrEmpty(app.RegisteredUser),
		Sender:  &app.MentorID,
		Type:    nType,
		Title:   title,
		Message: message,
		Email:   app.Email,
	})
}

// MentorReassigned notifies the applicant that their application moved
// to a new mentor.
func (s *NotificationService) MentorReassigned(app *models.Application, mentorName string) {
	s.dispatch(delivery{
		UserID:  stringOrEmpty(app.ApplicantID),
		Type:    models.NotificationMentorReassigned,
		Title:   "Mentor reassigned",
		Message: fmt.Sprintf("Your application %s has been reassigned to %s. Please pick a new availability slot.", app.TrackingCode, mentorName),
		Email:   app.Email,
	})
}

func (s *NotificationService) dispatch(d delivery) {
	if !s.config.Enabled {
		return
	}
	if err := s.queue.Enqueue(jobs.Job{ID: uuid.NewString(), Type: jobTypeNotify, Payload: d}); err != nil {
		s.logger.Warn("failed to enqueue notification", zap.String("type", string(d.Type)), zap.Error(err))
	}
}

func (s *NotificationService) process(ctx context.Context, job jobs.Job) error {
	d, ok := job.Payload.(delivery)
	if !ok {
		s.logger.Error("notification job carries unexpected payload", zap.String("job_id", job.ID))
		return nil
	}

	if d.UserID != "" {
		if err := s.store.Create(ctx, &models.Notification{
			UserID:   d.UserID,
			SenderID: d.Sender,
			Type:     d.Type,
			Title:    d.Title,
			Message:  d.Message,
		}); err != nil {
			return fmt.Errorf("store notification: %w", err)
		}
		if s.cache != nil {
			if err := s.cache.IncrCounter(ctx, unreadCounterPrefix+d.UserID); err != nil {
				s.logger.Warn("failed to bump unread counter", zap.Error(err))
			}
		}
	}

	if s.config.MailEnabled && s.mailer != nil && s.mailer.Configured() && d.Email != "" {
		subject := fmt.Sprintf("[%s] %s", s.config.SiteName, d.Title)
		if err := s.mailer.Send(d.Email, subject, d.Message); err != nil {
			return fmt.Errorf("send notification mail: %w", err)
		}
	}
	return nil
}

func (s *NotificationService) resyncCounter(ctx context.Context, userID string) {
	if s.cache == nil {
		return
	}
	count, err := s.store.CountUnread(ctx, userID)
	if err != nil {
		s.logger.Warn("failed to recount notifications", zap.Error(err))
		return
	}
	if err := s.cache.SetCounter(ctx, unreadCounterPrefix+userID, count, time.Hour); err != nil {
		s.logger.Warn("failed to resync unread counter", zap.Error(err))
	}
}

func stringOrEmpty(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
