package attendance

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"rfidattend/internal/errclass"
)

// LedgerStore is the persistence contract of the ledger. SaveLedger replaces
// the whole backing collection.
type LedgerStore interface {
	LoadLedger(ctx context.Context) ([]Record, error)
	SaveLedger(ctx context.Context, records []Record) error
}

// RecordAppender is implemented by stores that can persist one new record
// without rewriting the ledger.
type RecordAppender interface {
	AppendRecord(ctx context.Context, rec Record) error
}

// Ledger is the append-only, write-through cache of attendance records.
type Ledger struct {
	store   LedgerStore
	mu      sync.RWMutex
	records []Record
	nextSeq int64
	dirty   bool // memory holds records the store may be missing
}

// OpenLedger loads the ledger, falling back to an empty one when the store
// cannot be read. Records loaded without a sequence number (legacy files) are
// numbered in file order.
func OpenLedger(ctx context.Context, store LedgerStore, logger *zap.Logger) *Ledger {
	records, err := store.LoadLedger(ctx)
	if err != nil {
		logger.Warn("ledger unreadable, starting empty", zap.Error(err))
		records = nil
	}
	l := &Ledger{store: store, nextSeq: 1}
	for _, rec := range records {
		if rec.Seq < l.nextSeq {
			rec.Seq = l.nextSeq
		}
		l.nextSeq = rec.Seq + 1
		l.records = append(l.records, rec)
	}
	return l
}

// Snapshot returns a copy of all records in insertion order.
func (l *Ledger) Snapshot() []Record {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]Record, len(l.records))
	copy(out, l.records)
	return out
}

// Len returns the number of records.
func (l *Ledger) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.records)
}

// Append assigns rec the next sequence number and an ID, adds it to the ledger
// and persists it. The record stays in memory when persisting fails; the
// returned record is valid in both cases.
func (l *Ledger) Append(ctx context.Context, rec Record) (Record, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	rec.Seq = l.nextSeq
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	l.nextSeq++
	l.records = append(l.records, rec)

	var err error
	if appender, ok := l.store.(RecordAppender); ok && !l.dirty {
		err = appender.AppendRecord(ctx, rec)
	} else {
		err = l.saveLocked(ctx)
	}
	if err != nil {
		l.dirty = true
		return rec, errclass.Persistence("append record", err)
	}
	l.dirty = false
	return rec, nil
}

// Dirty reports whether the store may be missing records held in memory.
func (l *Ledger) Dirty() bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.dirty
}

// Flush rewrites the whole ledger to the store.
func (l *Ledger) Flush(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := l.saveLocked(ctx); err != nil {
		l.dirty = true
		return errclass.Persistence("flush ledger", err)
	}
	l.dirty = false
	return nil
}

func (l *Ledger) saveLocked(ctx context.Context) error {
	snapshot := make([]Record, len(l.records))
	copy(snapshot, l.records)
	return l.store.SaveLedger(ctx, snapshot)
}
