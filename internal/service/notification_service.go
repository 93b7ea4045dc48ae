package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/matriculapp/enrollment-api/internal/models"
	"github.com/matriculapp/enrollment-api/internal/repository"
	appErrors "github.com/matriculapp/enrollment-api/pkg/errors"
)

type notificationStore interface {
	FindByID(ctx context.Context, id string) (*models.Notification, error)
	ListByUser(ctx context.Context, filter models.NotificationFilter) ([]models.Notification, int, error)
	MarkRead(ctx context.Context, id, userID string) (bool, error)
	MarkAllRead(ctx context.Context, userID string) (int64, error)
	CountUnread(ctx context.Context, userID string) (int, error)
}

type unreadCountCache interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

type notificationMetrics interface {
	ObserveNotification(kind models.NotificationType)
}

// NotificationService fans domain events out into per-user notification rows
// and serves the read surface (list, unread count, mark read).
type NotificationService struct {
	store    notificationStore
	cache    unreadCountCache
	cacheTTL time.Duration
	metrics  notificationMetrics
	logger   *zap.Logger
}

// NewNotificationService constructs the service. Cache and metrics are
// optional.
func NewNotificationService(store notificationStore, cache unreadCountCache, cacheTTL time.Duration, metrics notificationMetrics, logger *zap.Logger) *NotificationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cacheTTL <= 0 {
		cacheTTL = time.Minute
	}
	return &NotificationService{store: store, cache: cache, cacheTTL: cacheTTL, metrics: metrics, logger: logger}
}

// Dispatch writes a notification through the caller's transaction-bound
// repositories so delivery shares the fate of the triggering mutation.
func (s *NotificationService) Dispatch(ctx context.Context, r repository.Repos, notification *models.Notification) error {
	if notification.UserID == "" {
		return appErrors.Clone(appErrors.ErrValidation, "notification requires a user")
	}
	if notification.Type == "" {
		notification.Type = models.NotificationGeneral
	}
	if err := r.Notifications.Create(ctx, notification); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create notification")
	}
	if s.metrics != nil {
		s.metrics.ObserveNotification(notification.Type)
	}
	s.invalidateUnreadCount(ctx, notification.UserID)
	return nil
}

// List returns the actor's notifications with pagination metadata.
func (s *NotificationService) List(ctx context.Context, actor *models.JWTClaims, unreadOnly bool, page, pageSize int) ([]models.Notification, *models.Pagination, error) {
	if actor == nil {
		return nil, nil, appErrors.ErrUnauthorized
	}
	filter := models.NotificationFilter{UserID: actor.UserID, UnreadOnly: unreadOnly, Page: page, PageSize: pageSize}
	notifications, total, err := s.store.ListByUser(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list notifications")
	}
	if page < 1 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = 20
	}
	pagination := &models.Pagination{Page: page, PageSize: pageSize, TotalCount: total}
	return notifications, pagination, nil
}

// MarkAsRead flips a notification to read. Only the owner may do so; the
// operation is idempotent.
func (s *NotificationService) MarkAsRead(ctx context.Context, id string, actor *models.JWTClaims) error {
	if actor == nil {
		return appErrors.ErrUnauthorized
	}
	ok, err := s.store.MarkRead(ctx, id, actor.UserID)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to mark notification read")
	}
	if !ok {
		// Distinguish a missing row from someone else's notification.
		if _, err := s.store.FindByID(ctx, id); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return appErrors.ErrNotFound
			}
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load notification")
		}
		return appErrors.ErrForbidden
	}
	s.invalidateUnreadCount(ctx, actor.UserID)
	return nil
}

// MarkAllAsRead flips every unread notification of the actor.
func (s *NotificationService) MarkAllAsRead(ctx context.Context, actor *models.JWTClaims) (int64, error) {
	if actor == nil {
		return 0, appErrors.ErrUnauthorized
	}
	affected, err := s.store.MarkAllRead(ctx, actor.UserID)
	if err != nil {
		return 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to mark notifications read")
	}
	s.invalidateUnreadCount(ctx, actor.UserID)
	return affected, nil
}

// UnreadCount returns the actor's unread notification count, served from
// cache when fresh.
func (s *NotificationService) UnreadCount(ctx context.Context, actor *models.JWTClaims) (int, error) {
	if actor == nil {
		return 0, appErrors.ErrUnauthorized
	}
	key := unreadCountKey(actor.UserID)
	if s.cache != nil {
		var cached int
		if err := s.cache.Get(ctx, key, &cached); err == nil {
			return cached, nil
		}
	}
	count, err := s.store.CountUnread(ctx, actor.UserID)
	if err != nil {
		return 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count unread notifications")
	}
	if s.cache != nil {
		if err := s.cache.Set(ctx, key, count, s.cacheTTL); err != nil {
			s.logger.Warn("failed to cache unread count", zap.Error(err))
		}
	}
	return count, nil
}

func (s *NotificationService) invalidateUnreadCount(ctx context.Context, userID string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Delete(ctx, unreadCountKey(userID)); err != nil {
		s.logger.Warn("failed to invalidate unread count cache", zap.Error(err))
	}
}

func unreadCountKey(userID string) string {
	return fmt.Sprintf("notifications:unread:%s", userID)
}
