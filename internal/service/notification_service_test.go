package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/matriculapp/enrollment-api/internal/models"
	"github.com/matriculapp/enrollment-api/internal/repository"
	appErrors "github.com/matriculapp/enrollment-api/pkg/errors"
)

type cacheStub struct {
	values  map[string]int
	deletes []string
}

func newCacheStub() *cacheStub {
	return &cacheStub{values: make(map[string]int)}
}

func (c *cacheStub) Get(ctx context.Context, key string, dest interface{}) error {
	value, ok := c.values[key]
	if !ok {
		return appErrors.ErrCacheMiss
	}
	if p, ok := dest.(*int); ok {
		*p = value
	}
	return nil
}

func (c *cacheStub) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	if v, ok := value.(int); ok {
		c.values[key] = v
	}
	return nil
}

func (c *cacheStub) Delete(ctx context.Context, key string) error {
	c.deletes = append(c.deletes, key)
	delete(c.values, key)
	return nil
}

func TestNotificationDispatchInvalidatesCache(t *testing.T) {
	st := newStubState()
	uow := newStubUOW(st)
	cache := newCacheStub()
	svc := NewNotificationService(&stubNotifications{st: st}, cache, time.Minute, nil, nil)

	err := uow.WithinTx(context.Background(), func(r repository.Repos) error {
		return svc.Dispatch(context.Background(), r, &models.Notification{
			UserID: "user-1",
			Title:  "Documento CEDULA aprobado",
			Type:   models.NotificationDocument,
		})
	})
	require.NoError(t, err)
	require.Len(t, st.notifications, 1)
	require.Contains(t, cache.deletes, unreadCountKey("user-1"))
}

func TestNotificationDispatchRequiresUser(t *testing.T) {
	st := newStubState()
	uow := newStubUOW(st)
	svc := NewNotificationService(&stubNotifications{st: st}, nil, 0, nil, nil)

	err := uow.WithinTx(context.Background(), func(r repository.Repos) error {
		return svc.Dispatch(context.Background(), r, &models.Notification{Title: "sin destinatario"})
	})
	require.Error(t, err)
	var appErr *appErrors.Error
	require.True(t, errors.As(err, &appErr))
	require.Equal(t, appErrors.ErrValidation.Code, appErr.Code)
}

func TestNotificationMarkAsRead(t *testing.T) {
	st := newStubState()
	svc := NewNotificationService(&stubNotifications{st: st}, nil, 0, nil, nil)
	st.notifications["notif-1"] = &models.Notification{ID: "notif-1", UserID: "user-1", Title: "hola"}

	require.NoError(t, svc.MarkAsRead(context.Background(), "notif-1", studentClaims("user-1")))
	require.True(t, st.notifications["notif-1"].IsRead)

	// Idempotent: marking again succeeds.
	require.NoError(t, svc.MarkAsRead(context.Background(), "notif-1", studentClaims("user-1")))
}

func TestNotificationMarkAsReadForeignRow(t *testing.T) {
	st := newStubState()
	svc := NewNotificationService(&stubNotifications{st: st}, nil, 0, nil, nil)
	st.notifications["notif-1"] = &models.Notification{ID: "notif-1", UserID: "user-2", Title: "hola"}

	err := svc.MarkAsRead(context.Background(), "notif-1", studentClaims("user-1"))
	var appErr *appErrors.Error
	require.True(t, errors.As(err, &appErr))
	require.Equal(t, appErrors.ErrForbidden.Code, appErr.Code)

	err = svc.MarkAsRead(context.Background(), "missing", studentClaims("user-1"))
	require.True(t, errors.As(err, &appErr))
	require.Equal(t, appErrors.ErrNotFound.Code, appErr.Code)
}

func TestNotificationUnreadCountUsesCache(t *testing.T) {
	st := newStubState()
	cache := newCacheStub()
	svc := NewNotificationService(&stubNotifications{st: st}, cache, time.Minute, nil, nil)
	st.notifications["notif-1"] = &models.Notification{ID: "notif-1", UserID: "user-1"}
	st.notifications["notif-2"] = &models.Notification{ID: "notif-2", UserID: "user-1"}

	count, err := svc.UnreadCount(context.Background(), studentClaims("user-1"))
	require.NoError(t, err)
	require.Equal(t, 2, count)

	// Second read is served from cache even if the store changes underneath.
	st.notifications["notif-3"] = &models.Notification{ID: "notif-3", UserID: "user-1"}
	count, err = svc.UnreadCount(context.Background(), studentClaims("user-1"))
	require.NoError(t, err)
	require.Equal(t, 2, count)
}

func TestNotificationMarkAllRead(t *testing.T) {
	st := newStubState()
	svc := NewNotificationService(&stubNotifications{st: st}, nil, 0, nil, nil)
	st.notifications["notif-1"] = &models.Notification{ID: "notif-1", UserID: "user-1"}
	st.notifications["notif-2"] = &models.Notification{ID: "notif-2", UserID: "user-1"}
	st.notifications["notif-3"] = &models.Notification{ID: "notif-3", UserID: "user-2"}

	affected, err := svc.MarkAllAsRead(context.Background(), studentClaims("user-1"))
	require.NoError(t, err)
	require.EqualValues(t, 2, affected)
	require.False(t, st.notifications["notif-3"].IsRead)
}
