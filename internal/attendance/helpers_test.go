package attendance_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"rfidattend/internal/attendance"
	"rfidattend/internal/jalali"
)

var errDiskFull = errors.New("disk full")

// memStore is an in-memory LedgerStore/TagStore with switchable write failures.
type memStore struct {
	mu        sync.Mutex
	records   []attendance.Record
	tags      map[string]string
	failSave  bool
	failLoad  bool
	saveCalls int
}

func (m *memStore) LoadLedger(context.Context) ([]attendance.Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failLoad {
		return nil, errors.New("corrupt")
	}
	return append([]attendance.Record(nil), m.records...), nil
}

func (m *memStore) SaveLedger(_ context.Context, records []attendance.Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.saveCalls++
	if m.failSave {
		return errDiskFull
	}
	m.records = append([]attendance.Record(nil), records...)
	return nil
}

func (m *memStore) LoadRegistry(context.Context) (map[string]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failLoad {
		return nil, errors.New("corrupt")
	}
	out := make(map[string]string, len(m.tags))
	for k, v := range m.tags {
		out[k] = v
	}
	return out, nil
}

func (m *memStore) SaveRegistry(_ context.Context, tags map[string]string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failSave {
		return errDiskFull
	}
	m.tags = tags
	return nil
}

func (m *memStore) setFailSave(v bool) {
	m.mu.Lock()
	m.failSave = v
	m.mu.Unlock()
}

// appendStore additionally implements RecordAppender.
type appendStore struct {
	memStore
	appended []attendance.Record
	failNext bool
}

func (a *appendStore) AppendRecord(_ context.Context, rec attendance.Record) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.failNext {
		a.failNext = false
		return errDiskFull
	}
	a.appended = append(a.appended, rec)
	a.records = append(a.records, rec)
	return nil
}

func mustDT(t *testing.T, s string) jalali.DateTime {
	t.Helper()
	dt, err := jalali.Parse(s)
	require.NoError(t, err)
	return dt
}

func mustDate(t *testing.T, s string) jalali.Date {
	t.Helper()
	d, err := jalali.ParseDate(s)
	require.NoError(t, err)
	return d
}

func rec(t *testing.T, seq int64, tag string, action attendance.Action, at string) attendance.Record {
	t.Helper()
	return attendance.Record{Seq: seq, TagID: tag, Name: "name-" + tag, Action: action, Time: mustDT(t, at)}
}
