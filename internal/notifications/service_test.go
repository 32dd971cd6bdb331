package notifications

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"

	pkgerrors "github.com/hivecrm/hivecrm-backend/pkg/errors"
	"github.com/hivecrm/hivecrm-backend/pkg/db/models"
	"github.com/hivecrm/hivecrm-backend/pkg/pagination"
)

type markingRepo struct {
	fakeNotificationRepo
	markResult  notificationMarkResult
	markAllRows int64
	listRows    []models.Notification
	listCursor  *pagination.Cursor
	lastParams  listNotificationsParams
}

func (m *markingRepo) List(ctx context.Context, params listNotificationsParams) ([]models.Notification, *pagination.Cursor, error) {
	m.lastParams = params
	return m.listRows, m.listCursor, nil
}

func (m *markingRepo) MarkRead(ctx context.Context, userID, notificationID uuid.UUID, now time.Time) (notificationMarkResult, error) {
	return m.markResult, nil
}

func (m *markingRepo) MarkAllRead(ctx context.Context, userID uuid.UUID, now time.Time) (int64, error) {
	return m.markAllRows, nil
}

func TestListRequiresUser(t *testing.T) {
	service, err := NewService(&markingRepo{})
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	_, err = service.List(context.Background(), ListParams{})
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestListEncodesNextCursor(t *testing.T) {
	next := &pagination.Cursor{CreatedAt: time.Now().UTC(), ID: uuid.New()}
	repo := &markingRepo{
		listRows:   []models.Notification{{ID: uuid.New()}},
		listCursor: next,
	}
	service, err := NewService(repo)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}

	result, err := service.List(context.Background(), ListParams{UserID: uuid.New(), UnreadOnly: true})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if result.Cursor == "" {
		t.Fatal("expected encoded cursor")
	}
	parsed, err := pagination.ParseCursor(result.Cursor)
	if err != nil {
		t.Fatalf("parse cursor: %v", err)
	}
	if parsed.ID != next.ID {
		t.Fatal("cursor should round trip")
	}
	if !repo.lastParams.UnreadOnly {
		t.Fatal("unread filter must reach the repository")
	}
}

func TestListRejectsBadCursor(t *testing.T) {
	service, err := NewService(&markingRepo{})
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	_, err = service.List(context.Background(), ListParams{UserID: uuid.New(), Cursor: "%%%not-base64%%%"})
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestMarkReadNotFound(t *testing.T) {
	service, err := NewService(&markingRepo{markResult: notificationMarkResult{Found: false}})
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	err = service.MarkRead(context.Background(), uuid.New(), uuid.New())
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeNotFound {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestMarkReadIdempotent(t *testing.T) {
	// already-read row: found but not updated is still success
	service, err := NewService(&markingRepo{markResult: notificationMarkResult{Found: true, Updated: false}})
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	if err := service.MarkRead(context.Background(), uuid.New(), uuid.New()); err != nil {
		t.Fatalf("mark read should be idempotent: %v", err)
	}
}

func TestMarkAllRead(t *testing.T) {
	service, err := NewService(&markingRepo{markAllRows: 4})
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	count, err := service.MarkAllRead(context.Background(), uuid.New())
	if err != nil {
		t.Fatalf("mark all read: %v", err)
	}
	if count != 4 {
		t.Fatalf("expected 4 rows, got %d", count)
	}
}
