package csc

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	bolt "go.etcd.io/bbolt"
)

func testDB(t *testing.T) *bolt.DB {
	t.Helper()
	db, err := bolt.Open(filepath.Join(t.TempDir(), "test.db"), 0o600, nil)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func TestNewStoreSeedsDefaults(t *testing.T) {
	store, err := NewStore(testDB(t))
	require.NoError(t, err)

	cfg, err := store.GetConfig()
	require.NoError(t, err)
	assert.Equal(t, defaultConfig, cfg)
}

func TestStoreConfigRoundTrip(t *testing.T) {
	store, err := NewStore(testDB(t))
	require.NoError(t, err)

	want := defaultConfig
	want.S3Instance = "tucson"
	want.Location = "TU"
	require.NoError(t, store.SetConfig(want))

	got, err := store.GetConfig()
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestStoreKeepsExistingConfig(t *testing.T) {
	db := testDB(t)
	store, err := NewStore(db)
	require.NoError(t, err)

	want := defaultConfig
	want.S3Endpoint = "s3.tu.lsst.org"
	require.NoError(t, store.SetConfig(want))

	// a second NewStore on the same database must not reseed
	store, err = NewStore(db)
	require.NoError(t, err)
	got, err := store.GetConfig()
	require.NoError(t, err)
	assert.Equal(t, want, got)
}
