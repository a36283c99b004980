package db

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenMemory(t *testing.T) {
	d, err := OpenMemory()
	require.NoError(t, err)
	defer d.Close()

	for _, table := range []string{"documents", "query_log"} {
		var count int
		require.NoError(t, d.QueryRow("SELECT COUNT(*) FROM "+table).Scan(&count), table)
		assert.Zero(t, count, table)
	}
}

func TestOpenFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", FileName)
	d, err := Open(path)
	require.NoError(t, err)
	assert.Equal(t, path, d.Path())

	_, err = d.Exec(`INSERT INTO documents (id, url, created_at, updated_at) VALUES ('a', 'u', 'x', 'x')`)
	require.NoError(t, err)
	require.NoError(t, d.Close())

	d, err = Open(path)
	require.NoError(t, err)
	defer d.Close()
	var count int
	require.NoError(t, d.QueryRow("SELECT COUNT(*) FROM documents").Scan(&count))
	assert.Equal(t, 1, count)
}

func TestMigrateIdempotent(t *testing.T) {
	d, err := OpenMemory()
	require.NoError(t, err)
	defer d.Close()
	require.NoError(t, d.migrate())
}

func TestStatusConstraint(t *testing.T) {
	d, err := OpenMemory()
	require.NoError(t, err)
	defer d.Close()
	_, err = d.Exec(`INSERT INTO documents (id, url, status, created_at, updated_at) VALUES ('a', 'u', 'bogus', 'x', 'x')`)
	assert.Error(t, err)
}

func TestTimeRoundTrip(t *testing.T) {
	now := time.Date(2026, 3, 4, 5, 6, 7, 123456000, time.UTC)
	assert.Equal(t, now, ParseTime(FormatTime(now)))
	assert.Equal(t, time.Date(2026, 3, 4, 5, 6, 7, 0, time.UTC), ParseTime("2026-03-04 05:06:07"))
	assert.True(t, ParseTime("garbage").IsZero())
	assert.Less(t, FormatTime(now), FormatTime(now.Add(time.Microsecond)))
}
