package database

import (
	"path/filepath"
	"testing"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/pharmacy-realtime-api/internal/models"
)

func TestConnectSQLiteAndMigrate(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pharmacy.db")

	db, err := Connect("sqlite://" + path)
	require.NoError(t, err)
	require.NoError(t, Migrate(db))

	require.True(t, db.Migrator().HasTable(&models.User{}))
	require.True(t, db.Migrator().HasTable(&models.Message{}))
}

func TestConnectRejectsEmptyDSN(t *testing.T) {
	_, err := Connect("  ")
	require.Error(t, err)

	_, err = Connect("sqlite://")
	require.Error(t, err)
}

func TestConnectRedis(t *testing.T) {
	server, err := miniredis.Run()
	require.NoError(t, err)
	defer server.Close()

	client, err := ConnectRedis("redis://" + server.Addr())
	require.NoError(t, err)
	defer client.Close()

	_, err = ConnectRedis("")
	require.Error(t, err)
}
