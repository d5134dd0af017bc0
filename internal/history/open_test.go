package history

import (
	"database/sql"
	"errors"
	"strings"
	"testing"
	"time"
)

func TestNew_OpenError(t *testing.T) {
	orig := openDB
	t.Cleanup(func() { openDB = orig })
	openDB = func(string, string) (*sql.DB, error) { return nil, errors.New("disk on fire") }

	_, err := New(DefaultConfig())
	if err == nil || !strings.Contains(err.Error(), "history: open database") {
		t.Fatalf("New() error = %v, want open database error", err)
	}
}

func TestNow_UsesInjectedClock(t *testing.T) {
	orig := timeNow
	t.Cleanup(func() { timeNow = orig })
	timeNow = func() time.Time { return time.Date(2026, 3, 1, 8, 30, 0, 0, time.FixedZone("x", 3600)) }

	if got := Now(); got != "2026-03-01 07:30:00" {
		t.Errorf("Now() = %q", got)
	}
}
