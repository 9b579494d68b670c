package migrations

import (
	"io/fs"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEmbeddedMigrations(t *testing.T) {
	files, err := fs.Glob(FS(), "*.sql")
	require.NoError(t, err)
	require.Len(t, files, 4)

	for _, name := range files {
		raw, err := fs.ReadFile(FS(), name)
		require.NoError(t, err)
		body := string(raw)
		assert.Contains(t, body, "-- +goose Up", name)
		assert.Contains(t, body, "-- +goose Down", name)
	}
}

func TestMatchesPairIsUnique(t *testing.T) {
	raw, err := fs.ReadFile(FS(), "00003_matches.sql")
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(raw), "UNIQUE (lost_animal_id, sighting_id)"))
}

func TestNew_RequiresDB(t *testing.T) {
	_, err := New(nil, nil)
	assert.Error(t, err)
}
