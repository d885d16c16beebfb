package services

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"role-service/internal/models"
)

// captureAuditStore records writes and signals completion.
type captureAuditStore struct {
	mu            sync.Mutex
	auditLogs     []*models.SecurityAuditLog
	notifications []*models.Notification
	done          chan struct{}
	wanted        int
}

func newCaptureAuditStore(wanted int) *captureAuditStore {
	return &captureAuditStore{done: make(chan struct{}, wanted*2), wanted: wanted}
}

func (s *captureAuditStore) CreateAuditLog(ctx context.Context, entry *models.SecurityAuditLog) error {
	s.mu.Lock()
	s.auditLogs = append(s.auditLogs, entry)
	s.mu.Unlock()
	s.done <- struct{}{}
	return nil
}

func (s *captureAuditStore) CreateNotification(ctx context.Context, notification *models.Notification) error {
	s.mu.Lock()
	s.notifications = append(s.notifications, notification)
	s.mu.Unlock()
	s.done <- struct{}{}
	return nil
}

func (s *captureAuditStore) wait(t *testing.T) {
	t.Helper()
	for i := 0; i < s.wanted; i++ {
		select {
		case <-s.done:
		case <-time.After(2 * time.Second):
			t.Fatal("timed out waiting for dispatcher side effects")
		}
	}
}

func TestDispatch_RecordsNotificationAndAudit(t *testing.T) {
	store := newCaptureAuditStore(2)
	profiles := &memProfileStore{profile: verifiedProfile()}
	dispatcher := NewDispatcher(store, profiles, nil, nil, quietLogger())

	userID := uuid.New()
	meta := models.RequestMetadata{
		IPAddress: "10.0.0.7",
		UserAgent: "test-agent",
		RequestID: "req-123",
	}

	dispatcher.Dispatch(userID, models.RoleTenant, models.RoleLandlord, meta)
	store.wait(t)

	store.mu.Lock()
	defer store.mu.Unlock()

	if len(store.notifications) != 1 {
		t.Fatalf("expected 1 notification, got %d", len(store.notifications))
	}
	notification := store.notifications[0]
	if notification.UserID != userID || notification.Type != "role_switch" {
		t.Errorf("unexpected notification: %+v", notification)
	}

	if len(store.auditLogs) != 1 {
		t.Fatalf("expected 1 audit entry, got %d", len(store.auditLogs))
	}
	entry := store.auditLogs[0]
	if entry.EventType != models.AuditEventRoleSwitch {
		t.Errorf("expected ROLE_SWITCH event, got %s", entry.EventType)
	}
	if entry.Severity != models.SeverityLow {
		t.Errorf("expected LOW severity, got %s", entry.Severity)
	}
	if entry.IPAddress != meta.IPAddress || entry.UserAgent != meta.UserAgent || entry.RequestID != meta.RequestID {
		t.Errorf("request metadata not carried into audit entry: %+v", entry)
	}

	var oldValue map[string]string
	if err := json.Unmarshal(entry.OldValue, &oldValue); err != nil || oldValue["role"] != string(models.RoleTenant) {
		t.Errorf("unexpected old value: %s", entry.OldValue)
	}
	var newValue map[string]string
	if err := json.Unmarshal(entry.NewValue, &newValue); err != nil || newValue["role"] != string(models.RoleLandlord) {
		t.Errorf("unexpected new value: %s", entry.NewValue)
	}
}

func TestDispatch_ReturnsImmediately(t *testing.T) {
	store := newCaptureAuditStore(2)
	profiles := &memProfileStore{profile: verifiedProfile()}
	dispatcher := NewDispatcher(store, profiles, nil, nil, quietLogger())

	start := time.Now()
	dispatcher.Dispatch(uuid.New(), models.RoleTenant, models.RoleLandlord, models.RequestMetadata{})
	if elapsed := time.Since(start); elapsed > 100*time.Millisecond {
		t.Errorf("dispatch should not block, took %v", elapsed)
	}
	store.wait(t)
}
