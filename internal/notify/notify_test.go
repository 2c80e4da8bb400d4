package notify_test

import (
	"context"
	"errors"
	"sort"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"rfidattend/internal/attendance"
	"rfidattend/internal/jalali"
	"rfidattend/internal/notify"
	"rfidattend/internal/queue"
)

type staticRecipients []int64

func (s staticRecipients) Recipients(context.Context) ([]int64, error) { return s, nil }

type failingRecipients struct{}

func (failingRecipients) Recipients(context.Context) ([]int64, error) {
	return nil, errors.New("store down")
}

// fakeSender fails for ids in fail and blocks until the context ends for ids in hang.
type fakeSender struct {
	mu   sync.Mutex
	sent map[int64][]string
	fail map[int64]bool
	hang map[int64]bool
}

func newFakeSender() *fakeSender {
	return &fakeSender{sent: map[int64][]string{}, fail: map[int64]bool{}, hang: map[int64]bool{}}
}

func (f *fakeSender) Send(ctx context.Context, id int64, text string) error {
	if f.hang[id] {
		<-ctx.Done()
		return ctx.Err()
	}
	if f.fail[id] {
		return errors.New("blocked by user")
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent[id] = append(f.sent[id], text)
	return nil
}

func (f *fakeSender) recipients() []int64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]int64, 0, len(f.sent))
	for id := range f.sent {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func TestBroadcast_IsolatesFailures(t *testing.T) {
	sender := newFakeSender()
	sender.fail[2] = true
	sender.hang[3] = true
	d := notify.NewDispatcher(sender, staticRecipients{1, 2, 3, 4}, zap.NewNop(), 50*time.Millisecond)

	start := time.Now()
	n := d.Broadcast(context.Background(), "hello")
	assert.Equal(t, 2, n)
	assert.Equal(t, []int64{1, 4}, sender.recipients())
	assert.Less(t, time.Since(start), 2*time.Second)
}

// countingSender records the peak number of sends running at once.
type countingSender struct {
	inFlight atomic.Int32
	peak     atomic.Int32
	total    atomic.Int32
}

func (c *countingSender) Send(context.Context, int64, string) error {
	n := c.inFlight.Add(1)
	defer c.inFlight.Add(-1)
	for {
		p := c.peak.Load()
		if n <= p || c.peak.CompareAndSwap(p, n) {
			break
		}
	}
	time.Sleep(2 * time.Millisecond)
	c.total.Add(1)
	return nil
}

func TestBroadcast_BoundsConcurrentSends(t *testing.T) {
	ids := make(staticRecipients, 100)
	for i := range ids {
		ids[i] = int64(i + 1)
	}
	sender := &countingSender{}
	d := notify.NewDispatcher(sender, ids, zap.NewNop(), time.Second)

	assert.Equal(t, 100, d.Broadcast(context.Background(), "hello"))
	assert.Equal(t, int32(100), sender.total.Load())
	assert.LessOrEqual(t, sender.peak.Load(), int32(notify.MaxConcurrentSends))
	assert.Positive(t, sender.peak.Load())
}

func TestBroadcast_RecipientListFailure(t *testing.T) {
	d := notify.NewDispatcher(newFakeSender(), failingRecipients{}, zap.NewNop(), time.Second)
	assert.Zero(t, d.Broadcast(context.Background(), "hello"))
}

func scanRecord(t *testing.T, action attendance.Action) attendance.Record {
	t.Helper()
	at, err := jalali.Parse("1403-01-01 08:05")
	require.NoError(t, err)
	return attendance.Record{Seq: 1, TagID: "A1", Name: "Ali", Action: action, Time: at}
}

func TestScanText(t *testing.T) {
	assert.Equal(t, "Ali 🟢 وارد شد در چهارشنبه ۱ فروردین ۱۴۰۳، ساعت ۰۸:۰۵",
		notify.ScanText(scanRecord(t, attendance.ActionEnter)))
	assert.Equal(t, "Ali 🔴 خارج شد در چهارشنبه ۱ فروردین ۱۴۰۳، ساعت ۰۸:۰۵",
		notify.ScanText(scanRecord(t, attendance.ActionExit)))
}

func TestRun_DeliversQueuedScans(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sender := newFakeSender()
	d := notify.NewDispatcher(sender, staticRecipients{10, 20}, zap.NewNop(), time.Second)
	q := queue.NewInMemory(4)

	done := make(chan error, 1)
	go func() { done <- d.Run(ctx, q) }()

	require.NoError(t, q.Publish(ctx, queue.Message{Type: "other"}))
	require.NoError(t, q.Publish(ctx, queue.Message{Type: queue.TypeScan, Body: []byte(`not json`)}))
	msg, err := queue.NewMessage(queue.TypeScan, scanRecord(t, attendance.ActionEnter))
	require.NoError(t, err)
	require.NoError(t, q.Publish(ctx, msg))

	require.Eventually(t, func() bool {
		return len(sender.recipients()) == 2
	}, 2*time.Second, 10*time.Millisecond)

	sender.mu.Lock()
	assert.Len(t, sender.sent[10], 1)
	assert.Contains(t, sender.sent[10][0], "وارد شد")
	sender.mu.Unlock()

	cancel()
	select {
	case err := <-done:
		require.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("dispatcher did not stop")
	}
}
