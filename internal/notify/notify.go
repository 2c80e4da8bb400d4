// Package notify fans scan announcements out to authorized chat recipients.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"rfidattend/internal/attendance"
	"rfidattend/internal/metrics"
	"rfidattend/internal/queue"
)

// Sender delivers one text message to one recipient.
type Sender interface {
	Send(ctx context.Context, recipient int64, text string) error
}

// RecipientLister yields the current authorized recipients.
type RecipientLister interface {
	Recipients(ctx context.Context) ([]int64, error)
}

// MaxConcurrentSends caps the deliveries one broadcast keeps in flight.
const MaxConcurrentSends = 16

// Dispatcher broadcasts messages. Every recipient gets its own send timeout;
// a failed delivery is logged and counted, never retried.
type Dispatcher struct {
	sender     Sender
	recipients RecipientLister
	logger     *zap.Logger
	timeout    time.Duration
}

// NewDispatcher builds a dispatcher. timeout <= 0 means 10s per send.
func NewDispatcher(sender Sender, recipients RecipientLister, logger *zap.Logger, timeout time.Duration) *Dispatcher {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Dispatcher{sender: sender, recipients: recipients, logger: logger, timeout: timeout}
}

// Broadcast sends text to every recipient and returns how many deliveries succeeded.
func (d *Dispatcher) Broadcast(ctx context.Context, text string) int {
	ids, err := d.recipients.Recipients(ctx)
	if err != nil {
		d.logger.Error("list recipients", zap.Error(err))
		return 0
	}

	var (
		g         errgroup.Group
		delivered atomic.Int64
	)
	g.SetLimit(MaxConcurrentSends)
	for _, id := range ids {
		id := id
		g.Go(func() error {
			sendCtx, cancel := context.WithTimeout(ctx, d.timeout)
			defer cancel()
			// failures stay per recipient and never cancel the rest
			if err := d.sender.Send(sendCtx, id, text); err != nil {
				metrics.Notifications.WithLabelValues("failed").Inc()
				d.logger.Warn("notification failed", zap.Int64("recipient", id), zap.Error(err))
				return nil
			}
			metrics.Notifications.WithLabelValues("sent").Inc()
			delivered.Add(1)
			return nil
		})
	}
	_ = g.Wait()
	return int(delivered.Load())
}

// Run consumes scan messages from q until ctx is cancelled.
func (d *Dispatcher) Run(ctx context.Context, q queue.Queue) error {
	msgs, err := q.Consume(ctx)
	if err != nil {
		return fmt.Errorf("consume: %w", err)
	}
	for msg := range msgs {
		d.Handle(ctx, msg)
	}
	return ctx.Err()
}

// Handle renders and broadcasts one queue message. Unknown types are ignored.
func (d *Dispatcher) Handle(ctx context.Context, msg queue.Message) {
	if msg.Type != queue.TypeScan {
		d.logger.Debug("ignoring queue message", zap.String("type", msg.Type))
		return
	}
	var rec attendance.Record
	if err := json.Unmarshal(msg.Body, &rec); err != nil {
		d.logger.Warn("undecodable scan message", zap.Error(err))
		return
	}
	n := d.Broadcast(ctx, ScanText(rec))
	d.logger.Debug("scan announced", zap.Int64("seq", rec.Seq), zap.Int("delivered", n))
}

// ScanText renders the announcement for a scan, e.g. "Ali 🟢 وارد شد در <time>".
func ScanText(rec attendance.Record) string {
	verb := "🟢 وارد شد"
	if rec.Action == attendance.ActionExit {
		verb = "🔴 خارج شد"
	}
	return fmt.Sprintf("%s %s در %s", rec.Name, verb, rec.Time.Persian())
}
