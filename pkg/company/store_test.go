package company

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLiteStore(filepath.Join(t.TempDir(), "companies.db"), zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestSQLiteStore(t *testing.T) {
	ctx := context.Background()

	t.Run("requires a path", func(t *testing.T) {
		_, err := NewSQLiteStore("", zerolog.Nop())
		assert.Error(t, err)
	})

	t.Run("creates missing directories", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "nested", "deep", "companies.db")
		s, err := NewSQLiteStore(path, zerolog.Nop())
		require.NoError(t, err)
		s.Close()
	})

	t.Run("round-trips a full definition", func(t *testing.T) {
		s := newTestStore(t)
		in := testCompany("acme", "Acme")
		require.NoError(t, s.SaveCompany(ctx, in))

		loaded, err := s.LoadCompanies(ctx)
		require.NoError(t, err)
		require.Len(t, loaded, 1)
		assert.Equal(t, in, loaded[0])
	})

	t.Run("save is an upsert", func(t *testing.T) {
		s := newTestStore(t)
		c := testCompany("acme", "Acme")
		require.NoError(t, s.SaveCompany(ctx, c))

		c.Name = "Acme Renamed"
		c.Objectives = append(c.Objectives, Objective{ID: "obj-2", Description: "second", Steps: []string{"write the report"}})
		require.NoError(t, s.SaveCompany(ctx, c))

		loaded, err := s.LoadCompanies(ctx)
		require.NoError(t, err)
		require.Len(t, loaded, 1)
		assert.Equal(t, "Acme Renamed", loaded[0].Name)
		assert.Len(t, loaded[0].Objectives, 2)
	})

	t.Run("loads sorted by name", func(t *testing.T) {
		s := newTestStore(t)
		require.NoError(t, s.SaveCompany(ctx, testCompany("z", "Zenith")))
		require.NoError(t, s.SaveCompany(ctx, testCompany("a", "Acme")))

		loaded, err := s.LoadCompanies(ctx)
		require.NoError(t, err)
		require.Len(t, loaded, 2)
		assert.Equal(t, "Acme", loaded[0].Name)
	})

	t.Run("delete tolerates unknown ids", func(t *testing.T) {
		s := newTestStore(t)
		require.NoError(t, s.DeleteCompany(ctx, "ghost"))
	})
}

func TestHubPersistence(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "companies.db")

	s, err := NewSQLiteStore(dbPath, zerolog.Nop())
	require.NoError(t, err)

	h, err := NewHub(HubConfig{Store: s, Logger: zerolog.Nop()})
	require.NoError(t, err)

	id, err := h.Register(testCompany("acme", "Acme"))
	require.NoError(t, err)
	require.NoError(t, s.Close())

	// A fresh hub over the same database sees the company.
	s2, err := NewSQLiteStore(dbPath, zerolog.Nop())
	require.NoError(t, err)
	defer s2.Close()

	h2, err := NewHub(HubConfig{Store: s2, Logger: zerolog.Nop()})
	require.NoError(t, err)

	c, err := h2.Get(id)
	require.NoError(t, err)
	assert.Equal(t, "Acme", c.Name)

	// Deregistration reaches the store as well.
	require.NoError(t, h2.Deregister(id))

	loaded, err := s2.LoadCompanies(context.Background())
	require.NoError(t, err)
	assert.Empty(t, loaded)
}
