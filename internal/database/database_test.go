package database

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDialectFor(t *testing.T) {
	assert.Equal(t, DialectPostgres, DialectFor("postgres://u:p@localhost:5432/app"))
	assert.Equal(t, DialectPostgres, DialectFor("PostgreSQL://db/app?sslmode=disable"))
	assert.Equal(t, DialectSQLite, DialectFor("file:acquisitions.db"))
	assert.Equal(t, DialectSQLite, DialectFor(":memory:"))
}

func TestNewAndMigrate_SQLiteInMemory(t *testing.T) {
	db, err := New(":memory:")
	require.NoError(t, err)
	defer db.Close()

	ctx := context.Background()
	require.NoError(t, Migrate(ctx, db))
	// second run is a no-op
	require.NoError(t, Migrate(ctx, db))

	var count int64
	require.NoError(t, db.WithContext(ctx).Table("users").Count(&count).Error)
	assert.Zero(t, count)
	require.NoError(t, db.Ping(ctx))
}
