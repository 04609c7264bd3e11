package history

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStoragePersists(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "history.json")

	s, err := NewStorage(path)
	require.NoError(t, err)
	assert.Equal(t, 0, s.Count())

	older := &Record{SourceChain: 1, SourceToken: "ETH", DestChain: 8453, DestToken: "USDC", AmountIn: "0.5",
		Status: StatusCompleted, TxHashes: []string{"0xaaa", "0xbbb"}, RequestID: "0xreq",
		Timestamp: time.Now().Add(-time.Hour)}
	require.NoError(t, s.Add(older))
	assert.NotEmpty(t, older.ID)

	newer := &Record{SourceChain: 1, SourceToken: "USDC", DestChain: 1, DestToken: "ETH", AmountIn: "10",
		Status: StatusFailed, Error: "approval transaction not confirmed in time"}
	require.NoError(t, s.Add(newer))
	assert.False(t, newer.Timestamp.IsZero())

	reopened, err := NewStorage(path)
	require.NoError(t, err)
	require.Equal(t, 2, reopened.Count())

	list := reopened.List()
	assert.Equal(t, newer.ID, list[0].ID, "newest first")
	assert.Equal(t, "0xbbb", list[1].LastHash())

	failed := reopened.ListByStatus(StatusFailed)
	require.Len(t, failed, 1)
	assert.Equal(t, newer.Error, failed[0].Error)

	r, ok := reopened.FindByRequestID("0xreq")
	require.True(t, ok)
	assert.Equal(t, older.ID, r.ID)

	_, err = os.Stat(path + ".tmp")
	assert.True(t, os.IsNotExist(err))
}

func TestStorageUpdateAndDelete(t *testing.T) {
	s, err := NewStorage(filepath.Join(t.TempDir(), "history.json"))
	require.NoError(t, err)

	r := &Record{Status: StatusCompleted}
	require.NoError(t, s.Add(r))
	assert.Error(t, s.Add(r), "duplicate id")

	r.Status = StatusSettled
	require.NoError(t, s.Update(r))
	got, err := s.Get(r.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusSettled, got.Status)

	require.NoError(t, s.Delete(r.ID))
	_, err = s.Get(r.ID)
	assert.Error(t, err)
	assert.Error(t, s.Update(&Record{ID: "missing"}))
}

func TestStorageRejectsCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0600))

	_, err := NewStorage(path)
	assert.Error(t, err)
}
