package attendance

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"rfidattend/internal/errclass"
	"rfidattend/internal/jalali"
	"rfidattend/internal/metrics"
	"rfidattend/internal/queue"
)

// Publisher hands scan notifications to the dispatcher.
type Publisher interface {
	Publish(ctx context.Context, msg queue.Message) error
}

// Service coordinates scans, registrations and reports.
type Service struct {
	registry  *Registry
	ledger    *Ledger
	publisher Publisher
	logger    *zap.Logger
	now       func() time.Time

	publishTimeout time.Duration

	// serializes classify + append so two scans of one tag cannot both read the same tail
	scanMu sync.Mutex
}

// Option customizes a Service.
type Option func(*Service)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithPublisher sets the notification publisher. Without one, scans are not announced.
func WithPublisher(p Publisher) Option {
	return func(s *Service) { s.publisher = p }
}

// NewService creates a service over a registry and a ledger.
func NewService(registry *Registry, ledger *Ledger, logger *zap.Logger, opts ...Option) *Service {
	s := &Service{
		registry:       registry,
		ledger:         ledger,
		logger:         logger,
		now:            time.Now,
		publishTimeout: 2 * time.Second,
	}
	for _, opt := range opts {
		opt(s)
	}
	metrics.LedgerRecords.Set(float64(ledger.Len()))
	return s
}

// Registry exposes the tag registry.
func (s *Service) Registry() *Registry { return s.registry }

// CheckIn records a scan of tagID as Enter or Exit and announces it.
// A persistence failure is returned together with the record, which stays in the ledger.
func (s *Service) CheckIn(ctx context.Context, tagID string) (Record, error) {
	tagID = NormalizeTag(tagID)
	if tagID == "" {
		return Record{}, errclass.ErrInvalidInput.WithMessage("rfid is required")
	}
	name, err := s.registry.Lookup(tagID)
	if err != nil {
		metrics.UnknownScans.Inc()
		s.logger.Info("unknown tag scanned", zap.String("rfid", tagID))
		return Record{}, err
	}

	// the timestamp is taken under scanMu so Seq order and time order agree
	s.scanMu.Lock()
	now, err := jalali.FromTime(s.now())
	if err != nil {
		s.scanMu.Unlock()
		return Record{}, err
	}
	action := Classify(tagID, s.ledger.Snapshot())
	rec, appendErr := s.ledger.Append(ctx, Record{
		TagID:  tagID,
		Name:   name,
		Action: action,
		Time:   now,
	})
	s.scanMu.Unlock()

	metrics.Scans.WithLabelValues(string(action)).Inc()
	metrics.LedgerRecords.Set(float64(s.ledger.Len()))
	s.logger.Info("tag checked",
		zap.String("rfid", tagID),
		zap.String("name", name),
		zap.String("action", string(action)),
		zap.Stringer("time", rec.Time),
		zap.Int64("seq", rec.Seq))

	if appendErr != nil {
		metrics.PersistenceFailures.WithLabelValues("ledger").Inc()
		s.logger.Error("persist attendance record", zap.Int64("seq", rec.Seq), zap.Error(appendErr))
	}
	s.announce(rec)
	return rec, appendErr
}

// announce publishes rec without tying delivery to the caller's request.
func (s *Service) announce(rec Record) {
	if s.publisher == nil {
		return
	}
	msg, err := queue.NewMessage(queue.TypeScan, rec)
	if err != nil {
		s.logger.Error("encode scan notification", zap.Error(err))
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), s.publishTimeout)
	defer cancel()
	if err := s.publisher.Publish(ctx, msg); err != nil {
		s.logger.Warn("queue publish failed", zap.Int64("seq", rec.Seq), zap.Error(err))
	}
}

// RegisterTag adds a new tag to the registry.
func (s *Service) RegisterTag(ctx context.Context, tagID, name string) error {
	err := s.registry.Register(ctx, tagID, name)
	switch {
	case err == nil:
		s.logger.Info("tag registered", zap.String("rfid", NormalizeTag(tagID)), zap.String("name", name))
	case errors.Is(err, errclass.ErrPersistence):
		metrics.PersistenceFailures.WithLabelValues("registry").Inc()
		s.logger.Error("persist tag registry", zap.Error(err))
	}
	return err
}

// Events returns the newest records first, optionally filtered by tag. limit <= 0 means 50.
func (s *Service) Events(tagID string, limit int) []Record {
	if limit <= 0 {
		limit = 50
	}
	tagID = NormalizeTag(tagID)
	snapshot := s.ledger.Snapshot()
	out := make([]Record, 0, limit)
	for i := len(snapshot) - 1; i >= 0 && len(out) < limit; i-- {
		if tagID != "" && snapshot[i].TagID != tagID {
			continue
		}
		out = append(out, snapshot[i])
	}
	return out
}

// TagReport computes one tag's summary over an inclusive range.
func (s *Service) TagReport(tagID string, r jalali.Range) (Summary, error) {
	metrics.Reports.WithLabelValues("tag").Inc()
	return Report(NormalizeTag(tagID), r.From, r.To, s.ledger.Snapshot())
}

// ReportRange reports every known tag over an inclusive range.
func (s *Service) ReportRange(r jalali.Range) ([]ReportRow, error) {
	metrics.Reports.WithLabelValues("range").Inc()
	return ReportAll(r.From, r.To, s.ledger.Snapshot())
}

// LastWeekReport reports the Saturday..Friday week before the current one.
func (s *Service) LastWeekReport() (jalali.Range, []ReportRow, error) {
	return s.periodReport("weekly", jalali.LastWeek)
}

// LastMonthReport reports the previous full Jalali month.
func (s *Service) LastMonthReport() (jalali.Range, []ReportRow, error) {
	return s.periodReport("monthly", jalali.LastMonth)
}

// CurrentWeekReport reports the Saturday..Friday week in progress.
func (s *Service) CurrentWeekReport() (jalali.Range, []ReportRow, error) {
	return s.periodReport("current_week", jalali.CurrentWeek)
}

// CurrentMonthReport reports the Jalali month in progress.
func (s *Service) CurrentMonthReport() (jalali.Range, []ReportRow, error) {
	return s.periodReport("current_month", jalali.CurrentMonth)
}

func (s *Service) periodReport(kind string, window func(time.Time) (jalali.Range, error)) (jalali.Range, []ReportRow, error) {
	r, err := window(s.now())
	if err != nil {
		return jalali.Range{}, nil, err
	}
	metrics.Reports.WithLabelValues(kind).Inc()
	rows, err := ReportAll(r.From, r.To, s.ledger.Snapshot())
	return r, rows, err
}
