// internal/app/store/ratelimit/store.go
package ratelimit

import (
	"context"
	"errors"
	"time"

	"github.com/dalemusser/stratamembers/internal/app/system/normalize"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Attempt tracks failed sign-ins for one login ID.
type Attempt struct {
	LoginID      string     `bson:"login_id"` // normalized
	AttemptCount int        `bson:"attempt_count"`
	WindowStart  time.Time  `bson:"window_start"`
	LockedUntil  *time.Time `bson:"locked_until"`
	LastAttempt  time.Time  `bson:"last_attempt"` // TTL
	CreatedAt    time.Time  `bson:"created_at"`
	UpdatedAt    time.Time  `bson:"updated_at"`
}

// Config sets the limits. A zero MaxAttempts disables limiting.
type Config struct {
	MaxAttempts int
	Window      time.Duration
	Lockout     time.Duration
}

// Decision is the outcome of Check.
type Decision struct {
	Allowed     bool
	Remaining   int // attempts left in the window; -1 while locked
	LockedUntil *time.Time
}

// Store counts failed sign-ins per login ID and locks out after
// MaxAttempts failures inside Window.
type Store struct {
	c   *mongo.Collection
	cfg Config
	now func() time.Time
}

// New creates a Store over the rate_limits collection.
func New(db *mongo.Database, cfg Config) *Store {
	return &Store{c: db.Collection("rate_limits"), cfg: cfg, now: time.Now}
}

// Enabled reports whether limiting is configured.
func (s *Store) Enabled() bool {
	return s != nil && s.cfg.MaxAttempts > 0
}

func (s *Store) find(ctx context.Context, loginID string) (*Attempt, error) {
	var a Attempt
	err := s.c.FindOne(ctx, bson.M{"login_id": loginID}).Decode(&a)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &a, nil
}

// Check reports whether a sign-in for loginID may proceed. Lookup errors
// fail open so a database hiccup never blocks every operator.
func (s *Store) Check(ctx context.Context, loginID string) Decision {
	full := Decision{Allowed: true, Remaining: s.cfg.MaxAttempts}
	if !s.Enabled() {
		return full
	}
	a, err := s.find(ctx, normalize.LoginID(loginID))
	if err != nil || a == nil {
		return full
	}
	now := s.now()
	if a.LockedUntil != nil && now.Before(*a.LockedUntil) {
		return Decision{Allowed: false, Remaining: -1, LockedUntil: a.LockedUntil}
	}
	if now.After(a.WindowStart.Add(s.cfg.Window)) {
		return full
	}
	remaining := s.cfg.MaxAttempts - a.AttemptCount
	if remaining <= 0 {
		return Decision{Allowed: false, Remaining: 0}
	}
	return Decision{Allowed: true, Remaining: remaining}
}

// RecordFailure counts one failed sign-in and returns the lockout expiry
// when this failure reached the limit.
func (s *Store) RecordFailure(ctx context.Context, loginID string) (*time.Time, error) {
	if !s.Enabled() {
		return nil, nil
	}
	loginID = normalize.LoginID(loginID)
	now := s.now()

	a, err := s.find(ctx, loginID)
	if err != nil {
		return nil, err
	}
	if a == nil || now.After(a.WindowStart.Add(s.cfg.Window)) {
		created := now
		if a != nil {
			created = a.CreatedAt
		}
		a = &Attempt{LoginID: loginID, WindowStart: now, CreatedAt: created}
	}
	a.AttemptCount++
	a.LastAttempt = now
	a.UpdatedAt = now
	a.LockedUntil = nil
	if a.AttemptCount >= s.cfg.MaxAttempts {
		until := now.Add(s.cfg.Lockout)
		a.LockedUntil = &until
	}

	_, err = s.c.ReplaceOne(ctx, bson.M{"login_id": loginID}, a, options.Replace().SetUpsert(true))
	if err != nil {
		return nil, err
	}
	return a.LockedUntil, nil
}

// Clear removes the counter after a successful sign-in.
func (s *Store) Clear(ctx context.Context, loginID string) error {
	if !s.Enabled() {
		return nil
	}
	_, err := s.c.DeleteOne(ctx, bson.M{"login_id": normalize.LoginID(loginID)})
	return err
}

// Get returns the counter for loginID, or nil when there is none.
func (s *Store) Get(ctx context.Context, loginID string) (*Attempt, error) {
	return s.find(ctx, normalize.LoginID(loginID))
}
