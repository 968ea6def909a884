package database

import (
	"io/fs"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMigrate(t *testing.T) {
	t.Run("requires dsn", func(t *testing.T) {
		err := Migrate("", MigrateUp)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "DATABASE_URL")
	})

	tests := []struct {
		name      string
		direction string
	}{
		{"empty", ""},
		{"upper case", "UP"},
		{"unknown", "sideways"},
	}
	for _, tc := range tests {
		t.Run("rejects direction "+tc.name, func(t *testing.T) {
			err := Migrate("postgres://localhost/talk2db", tc.direction)
			require.Error(t, err)
			assert.Contains(t, err.Error(), "direction")
		})
	}
}

func TestMigrationFiles(t *testing.T) {
	ups, err := fs.Glob(migrationFS, "migrations/*.up.sql")
	require.NoError(t, err)
	downs, err := fs.Glob(migrationFS, "migrations/*.down.sql")
	require.NoError(t, err)

	assert.NotEmpty(t, ups)
	assert.Len(t, downs, len(ups), "every up migration needs a down migration")
}
