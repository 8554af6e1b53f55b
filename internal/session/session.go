// Package session keeps the console's per-operator state: the bearer token,
// the authenticated user and the order draft being composed.
package session

import (
	"context"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/google/uuid"
	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/xenking/salesdesk/internal/domain/auth"
	"github.com/xenking/salesdesk/internal/domain/draft"
)

var (
	ErrNotFound           = errors.New("session not found")
	ErrSessionExpired     = errors.New("session expired, log in again")
	ErrForbiddenRole      = errors.New("role is not allowed to sell")
	ErrInvalidCredentials = errors.New("incorrect username or password")
)

// Backend is the part of the sales API a session needs.
type Backend interface {
	Login(ctx context.Context, username, password string) (auth.Token, error)
	Me(ctx context.Context, token string) (auth.User, error)
	Sender(token string) draft.Sender
}

// Session is one logged-in operator.
type Session struct {
	ID        string
	User      auth.User
	ExpiresAt time.Time
	Draft     *draft.Draft

	token  string
	sender draft.Sender
	mgr    *Manager
	latest atomic.Pointer[draft.Snapshot]
}

// Token returns the bearer token of the session.
func (s *Session) Token() string { return s.token }

// DraftChanged records the latest snapshot of the session's draft.
func (s *Session) DraftChanged(snap draft.Snapshot) {
	s.latest.Store(&snap)
}

// Latest returns the most recent snapshot of the draft.
func (s *Session) Latest() draft.Snapshot {
	if snap := s.latest.Load(); snap != nil {
		return *snap
	}
	return s.Draft.Snapshot()
}

// Submit sends the draft to the sales API. When the API no longer accepts
// the token the session is terminated and the returned error matches both
// ErrSessionExpired and *draft.SubmissionError.
func (s *Session) Submit(ctx context.Context, req draft.SubmitRequest) (draft.Receipt, error) {
	m := s.mgr
	ctx, span := m.tracer.Start(ctx, "session.Submit",
		trace.WithAttributes(
			attribute.String("salesdesk.user", s.User.Username),
			attribute.String("salesdesk.client_id", req.ClientID),
			attribute.Int("salesdesk.lines", s.Draft.Len()),
		),
	)
	defer span.End()

	receipt, err := s.Draft.Submit(ctx, s.sender, req)
	outcome := outcomeOf(err)
	m.submissions.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, outcome)

		var subErr *draft.SubmissionError
		if errors.As(err, &subErr) && subErr.Unauthorized() {
			m.Logout(s.ID)
			zctx.From(ctx).Info("Session terminated by backend",
				zap.String("session", s.ID),
				zap.String("user", s.User.Username),
			)
			return draft.Receipt{}, &expiredError{err: err}
		}
		return draft.Receipt{}, err
	}
	span.SetAttributes(attribute.String("salesdesk.sale_number", receipt.Number))
	return receipt, nil
}

func outcomeOf(err error) string {
	if err == nil {
		return "ok"
	}
	var subErr *draft.SubmissionError
	switch {
	case errors.As(err, &subErr):
		return subErr.Kind.String()
	case errors.Is(err, draft.ErrSubmitting):
		return "busy"
	default:
		return "invalid"
	}
}

type expiredError struct {
	err error
}

func (e *expiredError) Error() string { return ErrSessionExpired.Error() + ": " + e.err.Error() }

func (e *expiredError) Is(target error) bool { return target == ErrSessionExpired }

func (e *expiredError) Unwrap() error { return e.err }

// Config bounds the session store. A null TaxRate means
// draft.DefaultTaxRate.
type Config struct {
	IdleTTL       time.Duration
	MaxSessions   int
	TaxRate       decimal.NullDecimal
	SubmitTimeout time.Duration
}

// Manager creates, finds and ends sessions. Sessions idle for longer than
// Config.IdleTTL are dropped along with their drafts.
type Manager struct {
	backend  Backend
	cfg      Config
	sessions *expirable.LRU[string, *Session]
	now      func() time.Time

	tracer      trace.Tracer
	submissions metric.Int64Counter
	logins      metric.Int64Counter
}

const instrumentation = "github.com/xenking/salesdesk/internal/session"

// NewManager creates a Manager.
func NewManager(b Backend, cfg Config, tp trace.TracerProvider, mp metric.MeterProvider) (*Manager, error) {
	if cfg.IdleTTL <= 0 {
		cfg.IdleTTL = 30 * time.Minute
	}
	if cfg.MaxSessions <= 0 {
		cfg.MaxSessions = 1024
	}
	if !cfg.TaxRate.Valid {
		cfg.TaxRate = decimal.NewNullDecimal(draft.DefaultTaxRate)
	}
	if cfg.SubmitTimeout <= 0 {
		cfg.SubmitTimeout = draft.DefaultSubmitTimeout
	}

	meter := mp.Meter(instrumentation)
	submissions, err := meter.Int64Counter("salesdesk.draft.submissions",
		metric.WithDescription("Draft submissions by outcome"),
	)
	if err != nil {
		return nil, errors.Wrap(err, "submissions counter")
	}
	logins, err := meter.Int64Counter("salesdesk.session.logins",
		metric.WithDescription("Console logins by outcome"),
	)
	if err != nil {
		return nil, errors.Wrap(err, "logins counter")
	}

	return &Manager{
		backend:     b,
		cfg:         cfg,
		sessions:    expirable.NewLRU[string, *Session](cfg.MaxSessions, nil, cfg.IdleTTL),
		now:         time.Now,
		tracer:      tp.Tracer(instrumentation),
		submissions: submissions,
		logins:      logins,
	}, nil
}

// Login authenticates with the sales API and opens a session with an empty
// draft. Users whose role cannot sell are refused.
func (m *Manager) Login(ctx context.Context, username, password string) (*Session, error) {
	s, err := m.login(ctx, username, password)
	outcome := "ok"
	switch {
	case errors.Is(err, ErrInvalidCredentials):
		outcome = "invalid_credentials"
	case errors.Is(err, ErrForbiddenRole):
		outcome = "forbidden"
	case err != nil:
		outcome = "error"
	}
	m.logins.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
	return s, err
}

func (m *Manager) login(ctx context.Context, username, password string) (*Session, error) {
	tok, err := m.backend.Login(ctx, username, password)
	if err != nil {
		var rej draft.Rejection
		if errors.As(err, &rej) && rej.StatusCode() == http.StatusUnauthorized {
			return nil, ErrInvalidCredentials
		}
		return nil, errors.Wrap(err, "login")
	}
	u, err := m.backend.Me(ctx, tok.AccessToken)
	if err != nil {
		return nil, errors.Wrap(err, "fetch user")
	}
	if !u.Role.CanSell() {
		return nil, errors.Wrapf(ErrForbiddenRole, "%s is %s", u.Username, u.Role)
	}

	s := &Session{
		ID:        uuid.NewString(),
		User:      u,
		ExpiresAt: tok.ExpiresAt,
		token:     tok.AccessToken,
		sender:    m.backend.Sender(tok.AccessToken),
		mgr:       m,
	}
	s.Draft = draft.New(
		draft.WithTaxRate(m.cfg.TaxRate.Decimal),
		draft.WithSubmitTimeout(m.cfg.SubmitTimeout),
		draft.WithObserver(s),
	)
	m.sessions.Add(s.ID, s)

	zctx.From(ctx).Info("Session opened",
		zap.String("session", s.ID),
		zap.String("user", u.Username),
		zap.String("role", string(u.Role)),
	)
	return s, nil
}

// Get returns the session with id and extends its idle deadline. A session
// whose token has expired is ended and ErrSessionExpired returned.
func (m *Manager) Get(id string) (*Session, error) {
	s, ok := m.sessions.Get(id)
	if !ok {
		return nil, ErrNotFound
	}
	if !s.ExpiresAt.IsZero() && !m.now().Before(s.ExpiresAt) {
		m.sessions.Remove(id)
		return nil, ErrSessionExpired
	}
	m.sessions.Add(id, s)
	return s, nil
}

// Logout ends the session with id. The draft is discarded. Ending an unknown
// session is not an error.
func (m *Manager) Logout(id string) {
	m.sessions.Remove(id)
}

// Len returns the number of live sessions.
func (m *Manager) Len() int { return m.sessions.Len() }
