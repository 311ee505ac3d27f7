package session

import (
	"context"
	"sync"
	"time"

	"github.com/ValentinKolb/dShop/lib/model"
	"github.com/ValentinKolb/dShop/lib/store"
	"github.com/ValentinKolb/dShop/lib/util"
	"github.com/VictoriaMetrics/metrics"
	"github.com/google/uuid"
	"github.com/lni/dragonboat/v4/logger"
)

var Logger = logger.GetLogger("session")

var (
	sessionsCreated = metrics.NewCounter("dshop_sessions_created_total")
	sessionsSwept   = metrics.NewCounter("dshop_sessions_swept_total")
)

const (
	DefaultTTL           = 30 * time.Minute
	DefaultRememberMeTTL = 12 * 24 * time.Hour
	DefaultSweepInterval = 10 * time.Minute

	tokenBytes = 32
)

// Options configures a session store
type Options struct {
	Store         store.IStore
	TTL           time.Duration    // 0 = DefaultTTL
	RememberMeTTL time.Duration    // 0 = DefaultRememberMeTTL
	Now           func() time.Time // nil = time.Now
}

// Store manages the sessions collection
type Store struct {
	store         store.IStore
	ttl           time.Duration
	rememberMeTTL time.Duration
	now           func() time.Time

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// NewStore creates a session store
func NewStore(opts Options) *Store {
	s := &Store{
		store:         opts.Store,
		ttl:           opts.TTL,
		rememberMeTTL: opts.RememberMeTTL,
		now:           opts.Now,
	}
	if s.ttl <= 0 {
		s.ttl = DefaultTTL
	}
	if s.rememberMeTTL <= 0 {
		s.rememberMeTTL = DefaultRememberMeTTL
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s
}

// Create starts a new session for userID and ends all earlier sessions of the user.
func (s *Store) Create(userID string, rememberMe bool) (model.Session, error) {
	if userID == "" {
		return model.Session{}, store.NewError(store.ErrCValidation, "session.create", "user id is required")
	}

	token, err := util.RandomHex(tokenBytes)
	if err != nil {
		return model.Session{}, &store.Error{Code: store.ErrCInternal, Op: "session.create", Msg: "can not generate token", Err: err}
	}

	ttl := s.ttl
	if rememberMe {
		ttl = s.rememberMeTTL
	}
	now := s.now().UTC()
	sess := model.Session{
		ID:        uuid.NewString(),
		Token:     token,
		UserID:    userID,
		CreatedAt: now.Format(store.TimeFormat),
		ExpiresAt: now.Add(ttl).Format(store.TimeFormat),
	}
	doc, err := store.Encode(sess)
	if err != nil {
		return model.Session{}, err
	}

	docs, err := s.store.ReadCollection(store.CollectionSessions)
	if err != nil {
		return model.Session{}, err
	}
	kept := make([]store.Document, 0, len(docs)+1)
	replaced := 0
	for _, d := range docs {
		if d.String("userId") == userID {
			replaced++
			continue
		}
		kept = append(kept, d)
	}
	kept = append(kept, doc)

	if err := s.store.WriteCollection(store.CollectionSessions, kept); err != nil {
		return model.Session{}, err
	}
	sessionsCreated.Inc()
	Logger.Debugf("created session for user %s (replaced %d)", userID, replaced)
	return sess, nil
}

// Verify returns the user of a live session. It returns nil without error
// if the token is unknown, the session has expired or the user no longer exists.
func (s *Store) Verify(token string) (*model.User, error) {
	if token == "" {
		return nil, nil
	}

	doc, err := s.store.FindOne(store.CollectionSessions, store.FieldEquals("token", token))
	if store.IsNotFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	sess, err := store.Decode[model.Session](doc)
	if err != nil {
		return nil, err
	}
	if s.expired(sess) {
		return nil, nil
	}

	userDoc, err := s.store.FindByID(store.CollectionUsers, sess.UserID)
	if store.IsNotFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	user, err := store.Decode[model.User](userDoc)
	if err != nil {
		return nil, err
	}
	user.PasswordHash = ""
	return &user, nil
}

// Destroy ends the session of token. Unknown tokens are ignored.
func (s *Store) Destroy(token string) error {
	removed, err := s.removeWhere(func(d store.Document) bool {
		return d.String("token") == token
	})
	if err != nil {
		return err
	}
	if removed > 0 {
		Logger.Debugf("destroyed %d session(s)", removed)
	}
	return nil
}

// SweepExpired removes every expired session and returns how many were removed.
func (s *Store) SweepExpired() (int, error) {
	removed, err := s.removeWhere(func(d store.Document) bool {
		sess, err := store.Decode[model.Session](d)
		return err != nil || s.expired(sess)
	})
	if err != nil {
		return 0, err
	}
	if removed > 0 {
		sessionsSwept.Add(removed)
		Logger.Infof("swept %d expired session(s)", removed)
	}
	return removed, nil
}

// StartSweeper runs SweepExpired every interval until Close is called.
// Sweep errors are logged only. A non-positive interval uses DefaultSweepInterval.
func (s *Store) StartSweeper(interval time.Duration) {
	if interval <= 0 {
		Logger.Warningf("invalid sweep interval %s, using %s", interval, DefaultSweepInterval)
		interval = DefaultSweepInterval
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.done = make(chan struct{})

	go func(done chan struct{}) {
		defer close(done)

		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if _, err := s.SweepExpired(); err != nil {
					Logger.Errorf("session sweep failed: %v", err)
				}
			}
		}
	}(s.done)
}

// Close stops the sweeper and waits for it to exit.
func (s *Store) Close() error {
	s.mu.Lock()
	cancel, done := s.cancel, s.done
	s.cancel, s.done = nil, nil
	s.mu.Unlock()

	if cancel != nil {
		cancel()
		<-done
	}
	return nil
}

// --------------------------------------------------------------------------
// Helper
// --------------------------------------------------------------------------

// expired reports whether now is past the session's expiry. Unparseable expiries count as expired.
func (s *Store) expired(sess model.Session) bool {
	expiresAt, err := time.Parse(time.RFC3339Nano, sess.ExpiresAt)
	if err != nil {
		return true
	}
	return s.now().After(expiresAt)
}

// removeWhere rewrites the sessions collection without the matching documents
func (s *Store) removeWhere(match func(store.Document) bool) (int, error) {
	docs, err := s.store.ReadCollection(store.CollectionSessions)
	if err != nil {
		return 0, err
	}
	kept := make([]store.Document, 0, len(docs))
	for _, d := range docs {
		if !match(d) {
			kept = append(kept, d)
		}
	}
	removed := len(docs) - len(kept)
	if removed == 0 {
		return 0, nil
	}
	if err := s.store.WriteCollection(store.CollectionSessions, kept); err != nil {
		return 0, err
	}
	return removed, nil
}
