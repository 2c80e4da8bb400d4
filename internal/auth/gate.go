package auth

import (
	"context"
	"crypto/subtle"
	"sort"
	"sync"
	"unicode/utf8"

	"go.uber.org/zap"

	"rfidattend/internal/errclass"
	"rfidattend/internal/metrics"
)

// SecretLength is the exact length, in characters, of the shared chat secret.
const SecretLength = 16

// Decision is the outcome of an authorization attempt.
type Decision int

const (
	Rejected Decision = iota
	Authorized
	MalformedSecret
)

func (d Decision) String() string {
	switch d {
	case Authorized:
		return "authorized"
	case MalformedSecret:
		return "malformed"
	default:
		return "rejected"
	}
}

// RecipientStore persists the authorized recipient set.
type RecipientStore interface {
	LoadRecipients(ctx context.Context) ([]int64, error)
	SaveRecipients(ctx context.Context, ids []int64) error
}

// Gate holds the set of chat recipients that presented the shared secret.
// Recipients are never removed.
type Gate struct {
	secret []byte
	store  RecipientStore
	logger *zap.Logger

	mu         sync.RWMutex
	recipients map[int64]struct{}
}

// NewGate loads the persisted recipient set, falling back to an empty one when
// the store cannot be read.
func NewGate(ctx context.Context, secret string, store RecipientStore, logger *zap.Logger) *Gate {
	g := &Gate{
		secret:     []byte(secret),
		store:      store,
		logger:     logger,
		recipients: make(map[int64]struct{}),
	}
	if utf8.RuneCountInString(secret) != SecretLength {
		logger.Warn("AUTH_KEY is not 16 characters; chat authorization will always fail")
	}
	ids, err := store.LoadRecipients(ctx)
	if err != nil {
		logger.Warn("recipient set unreadable, starting empty", zap.Error(err))
		return g
	}
	for _, id := range ids {
		g.recipients[id] = struct{}{}
	}
	return g
}

// IsAuthorized reports whether id may receive notifications and reports.
func (g *Gate) IsAuthorized(id int64) bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	_, ok := g.recipients[id]
	return ok
}

// TryAuthorize admits id when secret matches the shared secret. Secrets of the
// wrong length are refused before any comparison. A persistence failure is
// returned alongside Authorized; the recipient stays admitted in memory.
func (g *Gate) TryAuthorize(ctx context.Context, id int64, secret string) (Decision, error) {
	if utf8.RuneCountInString(secret) != SecretLength {
		metrics.Authorizations.WithLabelValues(MalformedSecret.String()).Inc()
		return MalformedSecret, nil
	}
	if subtle.ConstantTimeCompare([]byte(secret), g.secret) != 1 {
		metrics.Authorizations.WithLabelValues(Rejected.String()).Inc()
		g.logger.Info("authorization rejected", zap.Int64("recipient", id))
		return Rejected, nil
	}
	metrics.Authorizations.WithLabelValues(Authorized.String()).Inc()

	g.mu.Lock()
	defer g.mu.Unlock()
	if _, ok := g.recipients[id]; ok {
		return Authorized, nil
	}
	g.recipients[id] = struct{}{}
	g.logger.Info("recipient authorized", zap.Int64("recipient", id))

	if err := g.store.SaveRecipients(ctx, g.sortedLocked()); err != nil {
		metrics.PersistenceFailures.WithLabelValues("recipients").Inc()
		return Authorized, errclass.Persistence("save recipients", err)
	}
	return Authorized, nil
}

// Recipients returns the authorized set in ascending order.
func (g *Gate) Recipients(context.Context) ([]int64, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.sortedLocked(), nil
}

func (g *Gate) sortedLocked() []int64 {
	out := make([]int64, 0, len(g.recipients))
	for id := range g.recipients {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// StoredRecipients lists recipients straight from the store on every call, so
// a process that does not own the Gate still sees newly authorized chats.
type StoredRecipients struct {
	Store RecipientStore
}

// Recipients reads the current set from the store.
func (s StoredRecipients) Recipients(ctx context.Context) ([]int64, error) {
	ids, err := s.Store.LoadRecipients(ctx)
	if err != nil {
		return nil, errclass.Persistence("load recipients", err)
	}
	return ids, nil
}
