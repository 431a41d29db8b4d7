package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/ashureev/campaignd/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) Repository {
	t.Helper()
	repo, err := NewSQLite(filepath.Join(t.TempDir(), "data", "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = repo.Close() })
	return repo
}

func TestSQLite_SaveAndLoadCredentials(t *testing.T) {
	repo := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, repo.Ping(ctx))
	require.NoError(t, repo.SaveUpload(ctx, &domain.Upload{
		Name:         "creds.txt",
		Kind:         domain.UploadCredentials,
		OriginalName: "mine.txt",
		Content:      "{\"k\":1}\n\nraw-token\n",
	}))

	creds, err := repo.LoadCredentials(ctx, "creds.txt")
	require.NoError(t, err)
	require.Len(t, creds, 2)
	assert.JSONEq(t, `{"k":1}`, string(creds[0]))
	assert.Equal(t, "raw-token", creds[1].Text())

	// Kinds are separate namespaces.
	_, err = repo.LoadMessages(ctx, "creds.txt")
	assert.ErrorIs(t, err, ErrUploadNotFound)
}

func TestSQLite_LoadMessages(t *testing.T) {
	repo := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, repo.SaveUpload(ctx, &domain.Upload{
		Name:    "m.txt",
		Kind:    domain.UploadMessages,
		Content: "first line\r\n\"quoted\"\n\nlast",
	}))

	msgs, err := repo.LoadMessages(ctx, "m.txt")
	require.NoError(t, err)
	assert.Equal(t, []string{"first line", `"quoted"`, "last"}, msgs)

	upload, err := repo.GetUpload(ctx, domain.UploadMessages, "m.txt")
	require.NoError(t, err)
	assert.False(t, upload.CreatedAt.IsZero())
}

func TestSQLite_DuplicateNameRejected(t *testing.T) {
	repo := newTestStore(t)
	ctx := context.Background()

	u := &domain.Upload{Name: "a", Kind: domain.UploadMessages, Content: "x"}
	require.NoError(t, repo.SaveUpload(ctx, u))
	assert.Error(t, repo.SaveUpload(ctx, &domain.Upload{Name: "a", Kind: domain.UploadMessages, Content: "y"}))
}

func TestSQLite_DeleteUploadsOlderThan(t *testing.T) {
	repo := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, repo.SaveUpload(ctx, &domain.Upload{
		Name: "old", Kind: domain.UploadMessages, Content: "x",
		CreatedAt: time.Now().Add(-2 * time.Hour),
	}))
	require.NoError(t, repo.SaveUpload(ctx, &domain.Upload{
		Name: "new", Kind: domain.UploadMessages, Content: "y",
	}))

	deleted, err := repo.DeleteUploadsOlderThan(ctx, time.Hour)
	require.NoError(t, err)
	assert.Equal(t, int64(1), deleted)

	_, err = repo.GetUpload(ctx, domain.UploadMessages, "old")
	assert.ErrorIs(t, err, ErrUploadNotFound)
	_, err = repo.GetUpload(ctx, domain.UploadMessages, "new")
	assert.NoError(t, err)
}

func TestRunSweeper_StopsOnCancel(t *testing.T) {
	repo := newTestStore(t)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- RunSweeper(ctx, repo, time.Hour, 10*time.Millisecond) }()

	time.Sleep(30 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("sweeper did not stop")
	}
}

func TestNewSQLite_OpenFailure(t *testing.T) {
	_, err := NewSQLite(t.TempDir())
	assert.Error(t, err)
}
