package shared

import (
	"context"
	"errors"
	"testing"
)

func TestIsSQLiteConflictError(t *testing.T) {
	tests := []struct {
		err  error
		want bool
	}{
		{err: nil, want: false},
		{err: errors.New("SQLITE_BUSY: busy"), want: true},
		{err: errors.New("database is locked (5)"), want: true},
		{err: errors.New("no such table"), want: false},
	}
	for _, tt := range tests {
		if got := IsSQLiteConflictError(tt.err); got != tt.want {
			t.Errorf("IsSQLiteConflictError(%v) = %v, want %v", tt.err, got, tt.want)
		}
	}
}

func TestRetryOnConflict(t *testing.T) {
	calls := 0
	err := RetryOnConflict(context.Background(), "op", func() error {
		calls++
		if calls < 2 {
			return errors.New("database is locked")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("expected success, got %v", err)
	}
	if calls != 2 {
		t.Errorf("expected 2 calls, got %d", calls)
	}

	calls = 0
	permanent := errors.New("constraint failed")
	err = RetryOnConflict(context.Background(), "op", func() error {
		calls++
		return permanent
	})
	if !errors.Is(err, permanent) || calls != 1 {
		t.Errorf("expected single non-retried failure, got %v after %d calls", err, calls)
	}

	calls = 0
	err = RetryOnConflict(context.Background(), "op", func() error {
		calls++
		return errors.New("SQLITE_BUSY")
	})
	if err == nil || calls != conflictRetries {
		t.Errorf("expected failure after %d calls, got %v after %d", conflictRetries, err, calls)
	}
}
