// internal/app/store/audit/store.go
package audit

import (
	"context"
	"time"

	"github.com/dalemusser/stratamembers/internal/app/store/storeutil"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Event categories
const (
	CategoryAuth        = "auth"
	CategoryMember      = "member"
	CategoryMaintenance = "maintenance"
	CategoryOperator    = "operator"
)

// Auth event types
const (
	EventLoginSuccess             = "login_success"
	EventLoginFailedUserNotFound  = "login_failed_user_not_found"
	EventLoginFailedWrongPassword = "login_failed_wrong_password"
	EventLoginFailedUserDisabled  = "login_failed_user_disabled"
	EventLoginLockedOut           = "login_locked_out"
	EventLogout                   = "logout"
)

// Member event types
const (
	EventMemberCreated = "member_created"
	EventMemberUpdated = "member_updated"
	EventMemberDeleted = "member_deleted"
)

// Operator account event types
const (
	EventOperatorCreated       = "operator_created"
	EventOperatorDisabled      = "operator_disabled"
	EventOperatorEnabled       = "operator_enabled"
	EventOperatorPasswordReset = "operator_password_reset"
	EventPasswordChanged       = "password_changed"
)

// Maintenance event types
const (
	EventBatchEnqueued = "batch_enqueued"
	EventBatchFinished = "batch_finished"
)

// Event represents an audit event.
type Event struct {
	ID        primitive.ObjectID `bson:"_id,omitempty"`
	CreatedAt time.Time          `bson:"created_at"`

	Category  string `bson:"category"`
	EventType string `bson:"event_type"`

	// Who
	UserID  *primitive.ObjectID `bson:"user_id,omitempty"`  // operator the event is about (auth)
	ActorID *primitive.ObjectID `bson:"actor_id,omitempty"` // operator who acted

	// What
	MemberID *primitive.ObjectID `bson:"member_id,omitempty"`
	JobID    *primitive.ObjectID `bson:"job_id,omitempty"`

	IP        string `bson:"ip"`
	UserAgent string `bson:"user_agent,omitempty"`

	Success       bool   `bson:"success"`
	FailureReason string `bson:"failure_reason,omitempty"`

	Details map[string]string `bson:"details,omitempty"`
}

// QueryFilter defines filters for querying audit events.
type QueryFilter struct {
	Category  string
	EventType string
	ActorID   *primitive.ObjectID
	MemberID  *primitive.ObjectID
	Since     *time.Time
	Until     *time.Time
}

func (f QueryFilter) bson() bson.M {
	q := bson.M{}
	if f.Category != "" {
		q["category"] = f.Category
	}
	if f.EventType != "" {
		q["event_type"] = f.EventType
	}
	if f.ActorID != nil {
		q["actor_id"] = *f.ActorID
	}
	if f.MemberID != nil {
		q["member_id"] = *f.MemberID
	}
	if f.Since != nil || f.Until != nil {
		tq := bson.M{}
		if f.Since != nil {
			tq["$gte"] = *f.Since
		}
		if f.Until != nil {
			tq["$lte"] = *f.Until
		}
		q["created_at"] = tq
	}
	return q
}

// Store manages audit event records.
type Store struct {
	c *mongo.Collection
}

// New creates a new audit Store.
func New(db *mongo.Database) *Store {
	return &Store{c: db.Collection("audit_logs")}
}

// Log records an audit event.
func (s *Store) Log(ctx context.Context, event Event) error {
	if event.ID.IsZero() {
		event.ID = primitive.NewObjectID()
	}
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now().UTC()
	}
	_, err := s.c.InsertOne(ctx, event)
	return err
}

// Query returns one page of events matching filter, newest first.
func (s *Store) Query(ctx context.Context, filter QueryFilter, page storeutil.Page) ([]Event, error) {
	opts := page.Paginate().SetSort(bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: -1}})
	return s.find(ctx, filter.bson(), opts)
}

// Count returns the number of events matching filter.
func (s *Store) Count(ctx context.Context, filter QueryFilter) (int64, error) {
	return s.c.CountDocuments(ctx, filter.bson())
}

// ForMember returns the most recent events about one member.
func (s *Store) ForMember(ctx context.Context, memberID primitive.ObjectID, limit int64) ([]Event, error) {
	if limit <= 0 {
		limit = 20
	}
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}}).SetLimit(limit)
	return s.find(ctx, bson.M{"member_id": memberID}, opts)
}

// FailedLoginsSince returns failed sign-ins at or after since.
func (s *Store) FailedLoginsSince(ctx context.Context, since time.Time, limit int64) ([]Event, error) {
	query := bson.M{
		"category":   CategoryAuth,
		"success":    false,
		"created_at": bson.M{"$gte": since},
	}
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}}).SetLimit(limit)
	return s.find(ctx, query, opts)
}

func (s *Store) find(ctx context.Context, query bson.M, opts *options.FindOptions) ([]Event, error) {
	cursor, err := s.c.Find(ctx, query, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var events []Event
	if err := cursor.All(ctx, &events); err != nil {
		return nil, err
	}
	return events, nil
}

// DeleteOlderThan removes events created before cutoff.
func (s *Store) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.c.DeleteMany(ctx, bson.M{"created_at": bson.M{"$lt": cutoff}})
	if err != nil {
		return 0, err
	}
	return res.DeletedCount, nil
}
