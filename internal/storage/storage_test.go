package storage_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joeblew999/plat-comunas/internal/storage"
)

// exercise runs the shared Store contract against s.
func exercise(t *testing.T, s storage.Store) {
	t.Helper()
	ctx := context.Background()

	_, found, err := s.Get(ctx, storage.KeyAssignments)
	require.NoError(t, err)
	assert.False(t, found)

	require.NoError(t, s.Set(ctx, storage.KeyAssignments, `{"101":"color-1"}`))
	v, found, err := s.Get(ctx, storage.KeyAssignments)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, `{"101":"color-1"}`, v)

	require.NoError(t, s.Set(ctx, storage.KeyAssignments, `{}`))
	v, _, err = s.Get(ctx, storage.KeyAssignments)
	require.NoError(t, err)
	assert.Equal(t, `{}`, v)

	require.NoError(t, s.Set(ctx, storage.KeyLabels, `{"color-1":"Norte"}`))
	require.NoError(t, s.Delete(ctx, storage.KeyAssignments))
	_, found, err = s.Get(ctx, storage.KeyAssignments)
	require.NoError(t, err)
	assert.False(t, found)

	_, found, err = s.Get(ctx, storage.KeyLabels)
	require.NoError(t, err)
	assert.True(t, found, "deleting one key leaves the others")

	require.NoError(t, s.Delete(ctx, "never-set"))
}

func TestMemoryStore(t *testing.T) {
	s := storage.NewMemoryStore()
	defer s.Close()
	exercise(t, s)
}

func TestFileStore(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "state.json")
	s := storage.NewFileStore(path)
	defer s.Close()
	exercise(t, s)

	// survives a reopen
	require.NoError(t, s.Set(context.Background(), storage.KeyAssignments, "x"))
	v, found, err := storage.NewFileStore(path).Get(context.Background(), storage.KeyAssignments)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "x", v)
}

func TestFileStore_Corrupt(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0644))

	s := storage.NewFileStore(path)
	_, _, err := s.Get(context.Background(), storage.KeyAssignments)
	assert.Error(t, err)

	require.NoError(t, s.Set(context.Background(), storage.KeyAssignments, "fresh"))
	v, found, err := s.Get(context.Background(), storage.KeyAssignments)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "fresh", v)
}

func TestSQLiteStore(t *testing.T) {
	ctx := context.Background()
	s, err := storage.Open(ctx, storage.Config{Backend: "sqlite", DataDir: t.TempDir()})
	require.NoError(t, err)
	defer s.Close()
	exercise(t, s)
}

func TestDuckDBStore(t *testing.T) {
	ctx := context.Background()
	s, err := storage.Open(ctx, storage.Config{Backend: "duckdb", DataDir: t.TempDir()})
	require.NoError(t, err)
	defer s.Close()
	exercise(t, s)
}

func TestRedisStore(t *testing.T) {
	addr := os.Getenv("COMUNAS_TEST_REDIS")
	if addr == "" {
		t.Skip("COMUNAS_TEST_REDIS not set")
	}
	ctx := context.Background()
	s, err := storage.OpenRedis(ctx, addr, "", 0, "comunas-test:"+t.Name()+":")
	require.NoError(t, err)
	defer s.Close()
	for _, key := range []string{storage.KeyAssignments, storage.KeyLabels} {
		require.NoError(t, s.Delete(ctx, key))
	}
	exercise(t, s)
}

func TestOpen(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	s, err := storage.Open(ctx, storage.Config{DataDir: dir})
	require.NoError(t, err)
	fs, ok := s.(*storage.FileStore)
	require.True(t, ok)
	assert.Equal(t, filepath.Join(dir, "state.json"), fs.Path())

	s, err = storage.Open(ctx, storage.Config{Backend: "memory"})
	require.NoError(t, err)
	assert.IsType(t, &storage.MemoryStore{}, s)

	_, err = storage.Open(ctx, storage.Config{Backend: "postgres"})
	assert.Error(t, err)

	_, err = storage.Open(ctx, storage.Config{Backend: "etcd"})
	assert.ErrorContains(t, err, "unknown storage backend")
}
