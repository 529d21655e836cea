package notification

import (
	"context"
	"fmt"
	"time"

	notificationRepo "coursebook/database/repository/notification"
	userRepo "coursebook/database/repository/user"
	"coursebook/models"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// NotificationService delivers the side effects of booking transitions.
type NotificationService interface {
	// Notify persists an in-app notification and pushes it to the recipient's device.
	Notify(ctx context.Context, n models.Notification) error
	// SendEmail mails a user by id.
	SendEmail(ctx context.Context, userID, subject, body string) error
	// Handle runs one queued effect.
	Handle(ctx context.Context, effect models.Effect) error
}

// DefaultNotificationService is the production implementation.
type DefaultNotificationService struct {
	repo   notificationRepo.NotificationRepository
	users  userRepo.UserRepository
	pusher Pusher
	mailer Mailer
	logger *zap.Logger
}

// NewDefaultNotificationService wires the sink. pusher and mailer may be nil,
// which disables that channel.
func NewDefaultNotificationService(
	repo notificationRepo.NotificationRepository,
	users userRepo.UserRepository,
	pusher Pusher,
	mailer Mailer,
	logger *zap.Logger,
) (*DefaultNotificationService, error) {
	if repo == nil || users == nil {
		return nil, fmt.Errorf("notification service initialization error: notification or user repository is nil")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DefaultNotificationService{
		repo:   repo,
		users:  users,
		pusher: pusher,
		mailer: mailer,
		logger: logger,
	}, nil
}

// Notify stores the notification first; the push is best effort on top of it.
func (s *DefaultNotificationService) Notify(ctx context.Context, n models.Notification) error {
	if n.Recipient == "" {
		return fmt.Errorf("notification has no recipient")
	}
	if n.ID == "" {
		n.ID = uuid.New().String()
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now().UTC()
	}

	if err := s.repo.Insert(ctx, &n); err != nil {
		return err
	}

	if s.pusher == nil {
		return nil
	}
	u, err := s.users.GetByID(ctx, n.Recipient)
	if err != nil || u.FCMToken == "" {
		return nil
	}
	data := map[string]string{
		"type":            n.Type,
		"notificationId":  n.ID,
		"relatedResource": n.RelatedResource,
		"resourceId":      n.ResourceID,
		"role":            u.Role,
	}
	if err := s.pusher.Send(ctx, u.FCMToken, n.Title, n.Message, data); err != nil {
		s.logger.Warn("Push delivery failed",
			zap.String("recipient", n.Recipient),
			zap.String("type", n.Type),
			zap.Error(err))
	}
	return nil
}

// SendEmail looks up the recipient's address and hands the message to the mailer.
func (s *DefaultNotificationService) SendEmail(ctx context.Context, userID, subject, body string) error {
	if s.mailer == nil {
		s.logger.Debug("Email channel disabled, skipping", zap.String("recipient", userID))
		return nil
	}
	u, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return fmt.Errorf("SendEmail: could not find user %s: %w", userID, err)
	}
	return s.mailer.Send(ctx, u.Email, u.Name, subject, renderEmail(u.Name, body))
}

// Handle runs one effect produced by a booking transition.
func (s *DefaultNotificationService) Handle(ctx context.Context, effect models.Effect) error {
	switch effect.Kind {
	case models.EffectNotify:
		return s.Notify(ctx, models.Notification{
			Recipient:       effect.Recipient,
			Type:            effect.Type,
			Title:           effect.Title,
			Message:         effect.Message,
			RelatedResource: effect.RelatedResource,
			ResourceID:      effect.ResourceID,
		})
	case models.EffectEmail:
		return s.SendEmail(ctx, effect.Recipient, effect.Title, effect.Message)
	default:
		s.logger.Warn("Unknown effect kind", zap.String("kind", string(effect.Kind)))
		return nil
	}
}
