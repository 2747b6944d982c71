// Package store provides storage backends for the Interlagos Conectado assistant.
//
// It includes SQLite and PostgreSQL stores for user profiles, conversation
// turns and plans, plus an in-memory store used in tests.
package store

import (
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/InterlagosConectado/Assistente/internal/models"
)

// Opts holds configuration options for store backends.
type Opts struct {
	DSN string // database connection string (file path for SQLite)
}

// Option defines a configuration option for store backends.
type Option func(*Opts)

// WithSQLiteDSN sets the SQLite database file path.
func WithSQLiteDSN(dsn string) Option {
	return func(o *Opts) {
		o.DSN = dsn
	}
}

// WithPostgresDSN sets the PostgreSQL connection string.
func WithPostgresDSN(dsn string) Option {
	return func(o *Opts) {
		o.DSN = dsn
	}
}

// DetectDSNType returns "postgres" for PostgreSQL-style DSNs and "sqlite" otherwise.
func DetectDSNType(dsn string) string {
	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") || strings.Contains(dsn, "host=") {
		return "postgres"
	}
	return "sqlite"
}

// Store is the persistence interface the assistant flow depends on.
//
// GetUserProfile and LastUserTurn return (nil, nil) when no row exists; a
// missing profile is a "new user", not an error.
type Store interface {
	// GetUserProfile fetches a profile by uid.
	GetUserProfile(uid string) (*models.UserProfile, error)
	// SaveUserProfile inserts or updates a profile.
	SaveUserProfile(p models.UserProfile) error
	// CompleteOnboarding flips HasCompletedOnboarding false->true. The update
	// is conditional on the stored value still being false so the transition
	// happens at most once even under concurrent requests. Returns whether
	// this call performed the transition.
	CompleteOnboarding(uid string) (bool, error)

	// AppendTurn persists one conversation turn, assigning the next per-user
	// sequence number, and returns the stored turn.
	AppendTurn(turn models.ConversationTurn) (models.ConversationTurn, error)
	// ListRecentTurns returns the last limit turns for a user in chronological
	// (oldest to newest) order.
	ListRecentTurns(uid string, limit int) ([]models.ConversationTurn, error)
	// LastUserTurn returns the most recent turn authored by the user, or nil.
	LastUserTurn(uid string) (*models.ConversationTurn, error)

	// ListActivePlans returns all plans with IsActive set.
	ListActivePlans() ([]models.Plan, error)
	// SavePlan inserts or updates a plan by ID.
	SavePlan(p models.Plan) error

	// Close releases the underlying connection.
	Close() error
}

// InMemoryStore is a simple mutex-guarded store used in tests and when no DSN
// is configured.
type InMemoryStore struct {
	mu       sync.Mutex
	profiles map[string]models.UserProfile
	turns    map[string][]models.ConversationTurn
	plans    map[string]models.Plan
}

// NewInMemoryStore creates an empty in-memory store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		profiles: make(map[string]models.UserProfile),
		turns:    make(map[string][]models.ConversationTurn),
		plans:    make(map[string]models.Plan),
	}
}

func (s *InMemoryStore) GetUserProfile(uid string) (*models.UserProfile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.profiles[uid]
	if !ok {
		return nil, nil
	}
	return &p, nil
}

func (s *InMemoryStore) SaveUserProfile(p models.UserProfile) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.profiles[p.UID] = p
	return nil
}

func (s *InMemoryStore) CompleteOnboarding(uid string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.profiles[uid]
	if !ok || p.HasCompletedOnboarding {
		return false, nil
	}
	p.HasCompletedOnboarding = true
	p.UpdatedAt = time.Now()
	s.profiles[uid] = p
	return true, nil
}

func (s *InMemoryStore) AppendTurn(turn models.ConversationTurn) (models.ConversationTurn, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	existing := s.turns[turn.UserID]
	var maxSeq int64
	for _, t := range existing {
		if t.Seq > maxSeq {
			maxSeq = t.Seq
		}
	}
	turn.Seq = maxSeq + 1
	s.turns[turn.UserID] = append(existing, turn)
	return turn, nil
}

func (s *InMemoryStore) ListRecentTurns(uid string, limit int) ([]models.ConversationTurn, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	all := s.turns[uid]
	sorted := make([]models.ConversationTurn, len(all))
	copy(sorted, all)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Seq < sorted[j].Seq })
	if limit > 0 && len(sorted) > limit {
		sorted = sorted[len(sorted)-limit:]
	}
	return sorted, nil
}

func (s *InMemoryStore) LastUserTurn(uid string) (*models.ConversationTurn, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var last *models.ConversationTurn
	for i := range s.turns[uid] {
		t := s.turns[uid][i]
		if t.Sender != models.SenderUser {
			continue
		}
		if last == nil || t.Seq > last.Seq {
			last = &t
		}
	}
	return last, nil
}

func (s *InMemoryStore) ListActivePlans() ([]models.Plan, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var plans []models.Plan
	for _, p := range s.plans {
		if p.IsActive {
			plans = append(plans, p)
		}
	}
	sort.Slice(plans, func(i, j int) bool { return plans[i].Price < plans[j].Price })
	return plans, nil
}

func (s *InMemoryStore) SavePlan(p models.Plan) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.plans[p.ID] = p
	return nil
}

func (s *InMemoryStore) Close() error {
	return nil
}
