package controllers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"

	"github.com/dtrandev/marketloop-backend/internal/notifications"
)

func TestListNotificationsForwardsQuery(t *testing.T) {
	userID := uuid.New()
	var got notifications.ListParams
	svc := &notificationsServiceStub{
		list: func(ctx context.Context, params notifications.ListParams) (*notifications.ListResult, error) {
			got = params
			return &notifications.ListResult{}, nil
		},
	}

	req := newRequest(http.MethodGet, "/api/v1/notifications?limit=5&cursor=abc&unreadOnly=true", "", userID, nil, nil)
	resp := httptest.NewRecorder()
	ListNotifications(svc, testLogger()).ServeHTTP(resp, req)

	requireStatus(t, resp, http.StatusOK)
	if got.UserID != userID || got.Limit != 5 || got.Cursor != "abc" || !got.UnreadOnly {
		t.Fatalf("unexpected params %+v", got)
	}
}

func TestListNotificationsRejectsBadLimit(t *testing.T) {
	req := newRequest(http.MethodGet, "/api/v1/notifications?limit=-3", "", uuid.New(), nil, nil)
	resp := httptest.NewRecorder()
	ListNotifications(&notificationsServiceStub{}, testLogger()).ServeHTTP(resp, req)
	requireStatus(t, resp, http.StatusBadRequest)
}

func TestListNotificationsRejectsBadUnreadFlag(t *testing.T) {
	req := newRequest(http.MethodGet, "/api/v1/notifications?unreadOnly=maybe", "", uuid.New(), nil, nil)
	resp := httptest.NewRecorder()
	ListNotifications(&notificationsServiceStub{}, testLogger()).ServeHTTP(resp, req)
	requireStatus(t, resp, http.StatusBadRequest)
}

func TestMarkNotificationReadScopedToOwner(t *testing.T) {
	userID := uuid.New()
	notificationID := uuid.New()
	svc := &notificationsServiceStub{
		markRead: func(ctx context.Context, gotUser, gotNotification uuid.UUID) error {
			if gotUser != userID || gotNotification != notificationID {
				t.Fatalf("unexpected ids user=%s notification=%s", gotUser, gotNotification)
			}
			return nil
		},
	}

	req := newRequest(http.MethodPost, "/api/v1/notifications/"+notificationID.String()+"/read", "", userID, nil, map[string]string{"notificationId": notificationID.String()})
	resp := httptest.NewRecorder()
	MarkNotificationRead(svc, testLogger()).ServeHTTP(resp, req)
	requireStatus(t, resp, http.StatusOK)
}

func TestMarkAllNotificationsReadReportsCount(t *testing.T) {
	svc := &notificationsServiceStub{
		markAllRead: func(ctx context.Context, userID uuid.UUID) (int64, error) {
			return 4, nil
		},
	}

	req := newRequest(http.MethodPost, "/api/v1/notifications/read-all", "", uuid.New(), nil, nil)
	resp := httptest.NewRecorder()
	MarkAllNotificationsRead(svc, testLogger()).ServeHTTP(resp, req)

	requireStatus(t, resp, http.StatusOK)
	if !strings.Contains(resp.Body.String(), `"updated":4`) {
		t.Fatalf("expected updated count in body, got %s", resp.Body.String())
	}
}
