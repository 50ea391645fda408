package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"tenant-portal/internal/session/domain/model"
	"tenant-portal/internal/session/domain/repository"
	apperrors "tenant-portal/internal/shared/errors"
	"tenant-portal/internal/shared/eventbus"
	"tenant-portal/internal/shared/logger"
	"tenant-portal/internal/tenant"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrNoBackend     = errors.New("session has no backend attached")
	ErrEmptyToken    = errors.New("token must not be empty")
	ErrTokenNoExpiry = errors.New("token carries no expiry")
)

const eventSource = "session"

// Options configure a Session
type Options struct {
	// StorageKey is the key the snapshot is persisted under
	StorageKey string
	// PersistFields is the whitelist of fields written to the store
	PersistFields []string
	Publisher     eventbus.Publisher
	Logger        logger.Logger
}

type state struct {
	token   string
	user    *model.User
	company *model.CompanyProfile
}

// Session holds the authentication, identity and company state of one running
// application. Every mutation goes through its methods and is persisted
// immediately afterwards.
type Session struct {
	mu    sync.RWMutex
	state state

	// writeMu orders mutate+persist so the store never sees an older snapshot
	// after a newer one.
	writeMu sync.Mutex

	store     repository.SnapshotStore
	api       repository.BackendAPI
	key       string
	persist   map[string]bool
	publisher eventbus.Publisher
	logger    logger.Logger
	now       func() time.Time
}

// NewSession creates an empty session bound to store. Call Restore before issuing HTTP calls.
func NewSession(store repository.SnapshotStore, opts Options) *Session {
	log := opts.Logger
	if log == nil {
		log = logger.NewNop()
	}
	fields := opts.PersistFields
	if fields == nil {
		fields = []string{model.FieldToken, model.FieldUser, model.FieldCompany}
	}
	persist := make(map[string]bool, len(fields))
	for _, f := range fields {
		persist[strings.ToLower(f)] = true
	}
	return &Session{
		store:     store,
		key:       opts.StorageKey,
		persist:   persist,
		publisher: opts.Publisher,
		logger:    log.WithComponent("session"),
		now:       time.Now,
	}
}

// AttachBackend wires the backend API. The API usually sits on top of the
// HTTP gateway, which itself reads this session, so it is attached after construction.
func (s *Session) AttachBackend(api repository.BackendAPI) {
	s.mu.Lock()
	s.api = api
	s.mu.Unlock()
}

// Restore loads the persisted snapshot. A missing snapshot empties the session.
func (s *Session) Restore(ctx context.Context) error {
	if s.store == nil {
		return nil
	}
	snap, err := s.store.Load(ctx, s.key)
	if err != nil && !errors.Is(err, repository.ErrSnapshotNotFound) {
		return apperrors.NewInfrastructureError("failed to restore session").WithCause(err).WithComponent(eventSource)
	}
	// a removed or expired snapshot is a logout from elsewhere
	if snap.Empty() {
		s.mu.Lock()
		s.state = state{}
		s.mu.Unlock()
		s.logger.Debugf("No persisted session under %s", s.key)
		return nil
	}

	s.mu.Lock()
	s.state = s.fromSnapshot(snap)
	authenticated := s.state.token != ""
	s.mu.Unlock()

	s.logger.WithFields(map[string]interface{}{
		"key":           s.key,
		"authenticated": authenticated,
	}).Info("Session restored")
	return nil
}

// Sync re-reads the snapshot after another process rewrote it. A token that
// disappeared from the store is treated as a logout.
func (s *Session) Sync(ctx context.Context) error {
	before := s.Token()
	if err := s.Restore(ctx); err != nil {
		return err
	}
	after := s.Token()
	if before != "" && after == "" {
		s.publish(ctx, eventbus.EventTypeSessionCleared, nil)
	} else if after != "" && after != before {
		s.publish(ctx, eventbus.EventTypeSessionAuthenticated, s.User())
	}
	return nil
}

// SetAuth replaces user and token together
func (s *Session) SetAuth(ctx context.Context, user *model.User, token string) error {
	if token == "" {
		return apperrors.NewValidationError("cannot authenticate with an empty token").WithCause(ErrEmptyToken)
	}
	var u *model.User
	if user != nil {
		cp := *user
		u = &cp
	}
	err := s.mutate(ctx, func(st *state) {
		if st.token != token {
			// a different credential invalidates the company loaded for the old one
			st.company = nil
		}
		st.token = token
		st.user = u
	})
	s.publish(ctx, eventbus.EventTypeSessionAuthenticated, u)
	return err
}

// Login authenticates against the backend endpoint for kind and stores the result
func (s *Session) Login(ctx context.Context, kind tenant.LoginKind, email, password string) (*model.User, error) {
	api := s.backend()
	if api == nil {
		return nil, ErrNoBackend
	}
	res, err := api.Login(ctx, kind, email, password)
	if err != nil {
		return nil, err
	}
	if err := s.SetAuth(ctx, &res.User, res.Token); err != nil {
		return nil, err
	}
	s.logger.WithFields(map[string]interface{}{
		"user_id": res.User.ID,
		"role":    res.User.Role,
	}).Info("Logged in")
	return s.User(), nil
}

// FetchCompanyProfile refreshes the company profile. It is a no-op without a
// token. An entitlement failure clears the session and asks the application
// to reload; other failures leave the session untouched.
func (s *Session) FetchCompanyProfile(ctx context.Context) error {
	token := s.Token()
	if token == "" {
		return nil
	}
	api := s.backend()
	if api == nil {
		return ErrNoBackend
	}

	profile, err := api.CompanyProfile(ctx)
	switch {
	case err == nil:
	case apperrors.IsEntitlement(err):
		s.logger.Warnf("Company entitlement revoked, clearing session: %v", err)
		s.ClearAuth(ctx)
		s.publish(ctx, eventbus.EventTypeSessionReloadRequired, err.Error())
		return err
	case apperrors.IsUnauthenticated(err):
		// the gateway already cleared the session
		s.logger.Warnf("Company profile request was not authenticated: %v", err)
		return err
	default:
		s.logger.Errorf("Failed to fetch company profile: %v", err)
		return err
	}
	if profile == nil {
		return nil
	}

	cp := *profile
	applied := false
	persistErr := s.mutate(ctx, func(st *state) {
		if st.token != token {
			return
		}
		st.company = &cp
		applied = true
	})
	if !applied {
		s.logger.Debug("Discarding company profile fetched for a previous token")
		return nil
	}
	s.publish(ctx, eventbus.EventTypeSessionProfileUpdated, &cp)
	return persistErr
}

// ClearAuth resets every field. Safe to call repeatedly.
func (s *Session) ClearAuth(ctx context.Context) {
	wasAuthenticated := false
	err := s.mutate(ctx, func(st *state) {
		wasAuthenticated = st.token != "" || st.user != nil || st.company != nil
		*st = state{}
	})
	if err != nil {
		s.logger.Errorf("Failed to persist cleared session: %v", err)
	}
	if wasAuthenticated {
		s.logger.Info("Session cleared")
		s.publish(ctx, eventbus.EventTypeSessionCleared, nil)
	}
}

// Token returns the current bearer token, empty when unauthenticated
func (s *Session) Token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.token
}

// Authenticated reports whether a token is present
func (s *Session) Authenticated() bool {
	return s.Token() != ""
}

// User returns a copy of the current user, nil if unknown
func (s *Session) User() *model.User {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.state.user == nil {
		return nil
	}
	u := *s.state.user
	return &u
}

// Company returns a copy of the current company profile, nil if not loaded
func (s *Session) Company() *model.CompanyProfile {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.state.company == nil {
		return nil
	}
	c := *s.state.company
	return &c
}

// TokenExpiry reads the exp claim of the current token without verifying it.
// The result is informational only.
func (s *Session) TokenExpiry() (time.Time, error) {
	token := s.Token()
	if token == "" {
		return time.Time{}, ErrEmptyToken
	}
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return time.Time{}, fmt.Errorf("parse token: %w", err)
	}
	exp, err := claims.GetExpirationTime()
	if err != nil {
		return time.Time{}, fmt.Errorf("read exp claim: %w", err)
	}
	if exp == nil {
		return time.Time{}, ErrTokenNoExpiry
	}
	return exp.Time, nil
}

func (s *Session) backend() repository.BackendAPI {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.api
}

func (s *Session) mutate(ctx context.Context, fn func(*state)) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	s.mu.Lock()
	fn(&s.state)
	snap := s.toSnapshot()
	s.mu.Unlock()

	if s.store == nil {
		return nil
	}
	if err := s.store.Save(ctx, s.key, snap); err != nil {
		s.logger.Errorf("Failed to persist session under %s: %v", s.key, err)
		return apperrors.NewInfrastructureError("failed to persist session").WithCause(err).WithComponent(eventSource)
	}
	return nil
}

// toSnapshot copies the whitelisted fields. Caller holds mu.
func (s *Session) toSnapshot() *model.Snapshot {
	snap := &model.Snapshot{SavedAt: s.now().UTC()}
	if s.persist[model.FieldToken] {
		snap.Token = s.state.token
	}
	if s.persist[model.FieldUser] && s.state.user != nil {
		u := *s.state.user
		snap.User = &u
	}
	if s.persist[model.FieldCompany] && s.state.company != nil {
		c := *s.state.company
		snap.Company = &c
	}
	return snap
}

func (s *Session) fromSnapshot(snap *model.Snapshot) state {
	var st state
	if snap == nil {
		return st
	}
	if s.persist[model.FieldToken] {
		st.token = snap.Token
	}
	if s.persist[model.FieldUser] && snap.User != nil {
		u := *snap.User
		st.user = &u
	}
	// a company profile without a token would be stale entitlement state
	if s.persist[model.FieldCompany] && snap.Company != nil && st.token != "" {
		c := *snap.Company
		st.company = &c
	}
	return st
}

func (s *Session) publish(ctx context.Context, eventType string, data interface{}) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.Publish(ctx, eventbus.NewBasicEventWithSource(eventType, data, eventSource)); err != nil {
		s.logger.Warnf("Event %s handlers failed: %v", eventType, err)
	}
}
