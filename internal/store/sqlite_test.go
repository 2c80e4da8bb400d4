package store_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"rfidattend/internal/attendance"
	"rfidattend/internal/store"
)

func openSQLite(t *testing.T) *store.SQL {
	t.Helper()
	s, err := store.OpenSQLite(context.Background(), filepath.Join(t.TempDir(), "db", "attendance.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestSQLite_LedgerRoundTripAndAppend(t *testing.T) {
	ctx := context.Background()
	s := openSQLite(t)

	records := sampleRecords(t)
	require.NoError(t, s.SaveLedger(ctx, records[:1]))
	require.NoError(t, s.AppendRecord(ctx, records[1]))

	got, err := s.LoadLedger(ctx)
	require.NoError(t, err)
	assert.Equal(t, records, got)

	// full replace drops rows that are no longer present
	require.NoError(t, s.SaveLedger(ctx, records[1:]))
	got, err = s.LoadLedger(ctx)
	require.NoError(t, err)
	assert.Equal(t, records[1:], got)
}

func TestSQLite_RegistryAndRecipients(t *testing.T) {
	ctx := context.Background()
	s := openSQLite(t)

	tags, err := s.LoadRegistry(ctx)
	require.NoError(t, err)
	assert.Empty(t, tags)

	require.NoError(t, s.SaveRegistry(ctx, map[string]string{"A1": "Ali"}))
	require.NoError(t, s.SaveRegistry(ctx, map[string]string{"A1": "Ali", "B2": "Bita"}))
	tags, err = s.LoadRegistry(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"A1": "Ali", "B2": "Bita"}, tags)

	require.NoError(t, s.SaveRecipients(ctx, []int64{30, 10, 20}))
	ids, err := s.LoadRecipients(ctx)
	require.NoError(t, err)
	assert.Equal(t, []int64{10, 20, 30}, ids)
}

func TestSQLite_ServesTheLedger(t *testing.T) {
	ctx := context.Background()
	s := openSQLite(t)

	l := attendance.OpenLedger(ctx, s, zap.NewNop())
	for _, a := range []attendance.Action{attendance.ActionEnter, attendance.ActionExit} {
		_, err := l.Append(ctx, attendance.Record{TagID: "A1", Name: "Ali", Action: a, Time: sampleRecords(t)[0].Time})
		require.NoError(t, err)
	}

	reopened := attendance.OpenLedger(ctx, s, zap.NewNop())
	got := reopened.Snapshot()
	require.Len(t, got, 2)
	assert.Equal(t, attendance.ActionExit, attendance.Classify("A1", got[:1]))
	assert.Equal(t, int64(2), got[1].Seq)
	assert.NotEmpty(t, got[1].ID)
}

func TestOpen_UnknownBackend(t *testing.T) {
	_, err := store.Open(context.Background(), store.Config{Kind: "mongo"}, zap.NewNop())
	require.Error(t, err)
}

func TestOpen_SelectsJSONByDefault(t *testing.T) {
	b, err := store.Open(context.Background(), store.Config{DataDir: t.TempDir()}, zap.NewNop())
	require.NoError(t, err)
	defer b.Close()
	_, ok := b.(*store.JSONFiles)
	assert.True(t, ok)
}
