package persistence

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// The schema ships embedded in the binary; the runner must see the files
// regardless of the process working directory.
func TestMigrationFilesEmbedded(t *testing.T) {
	names, err := MigrationFiles()
	require.NoError(t, err)
	require.NotEmpty(t, names)
	assert.Contains(t, names, "001_init.sql")

	for i := 1; i < len(names); i++ {
		assert.Less(t, names[i-1], names[i], "migrations must apply in filename order")
	}
}

func TestRunMigrationsWithoutPool(t *testing.T) {
	assert.NoError(t, RunMigrations(context.Background(), nil, zap.NewNop()))
}
