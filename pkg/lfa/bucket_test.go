package lfa

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMakeBucketName(t *testing.T) {
	assert.Equal(t, "rubinobs-lfa-summit", MakeBucketName("summit"))
	assert.Equal(t, "rubinobs-lfa-tucson", MakeBucketName("tucson"))
}

func TestMakeKey(t *testing.T) {
	date := time.Date(2026, 8, 20, 3, 14, 15, 0, time.UTC)
	key := MakeKey("FiberSpectrograph", "Red", "fiberSpecRed", date, ".fits")
	assert.Equal(t,
		"FiberSpectrograph:Red/fiberSpecRed/2026/08/20/fiberSpecRed_2026-08-20T03:14:15.000.fits",
		key)
}

func TestMockUpload(t *testing.T) {
	dir := t.TempDir()
	bucket := NewMock(dir, MakeBucketName("test"), nil)
	require.True(t, bucket.Mock())

	key := MakeKey("FiberSpectrograph", "Red", "fiberSpecRed", time.Now(), ".fits")
	payload := "SIMPLE  =                    T"
	require.NoError(t, bucket.Upload(context.Background(), key, strings.NewReader(payload), int64(len(payload))))

	stored, err := os.ReadFile(filepath.Join(dir, bucket.Name, key))
	require.NoError(t, err)
	assert.Equal(t, payload, string(stored))

	url := bucket.URL(key)
	assert.True(t, strings.HasPrefix(url, "file://"), "url: %s", url)
	assert.Contains(t, url, key)
}

func TestRemoteURL(t *testing.T) {
	bucket, err := New("s3.example.org", true, MakeBucketName("summit"), nil)
	require.NoError(t, err)
	assert.False(t, bucket.Mock())
	assert.Equal(t,
		"https://s3.example.org/rubinobs-lfa-summit/some/key.fits",
		bucket.URL("some/key.fits"))
}
