// internal/app/store/jobs/jobstore.go
package jobstore

import (
	"context"
	"errors"
	"time"

	"github.com/dalemusser/stratamembers/internal/app/store/storeutil"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Job status constants.
const (
	StatusPending   = "pending"
	StatusRunning   = "running"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
	StatusCancelled = "cancelled"
)

// Job is one queued unit of background work, such as a member batch.
type Job struct {
	ID          primitive.ObjectID  `bson:"_id"`
	QueueName   string              `bson:"queue_name"`
	JobType     string              `bson:"job_type"` // address_fix, type_migration
	Payload     map[string]any      `bson:"payload"`
	Status      string              `bson:"status"`
	Priority    int                 `bson:"priority"` // higher first
	Attempts    int                 `bson:"attempts"`
	MaxAttempts int                 `bson:"max_attempts"`
	Error       string              `bson:"error,omitempty"`
	Result      map[string]any      `bson:"result,omitempty"`
	RequestedBy *primitive.ObjectID `bson:"requested_by,omitempty"`
	ScheduledAt time.Time           `bson:"scheduled_at"`
	StartedAt   *time.Time          `bson:"started_at,omitempty"`
	CompletedAt *time.Time          `bson:"completed_at,omitempty"`
	CreatedAt   time.Time           `bson:"created_at"`
	UpdatedAt   time.Time           `bson:"updated_at"`
	WorkerID    string              `bson:"worker_id,omitempty"`
}

// Active reports whether the job is waiting or running.
func (j Job) Active() bool {
	return j.Status == StatusPending || j.Status == StatusRunning
}

// Duration is how long the job ran, or zero when it has not finished.
func (j Job) Duration() time.Duration {
	if j.StartedAt == nil || j.CompletedAt == nil {
		return 0
	}
	return j.CompletedAt.Sub(*j.StartedAt)
}

var (
	// ErrNotFound is returned when a job is not found.
	ErrNotFound = errors.New("job not found")
	// ErrAlreadyActive is returned when a job of the same type is pending or running.
	ErrAlreadyActive = errors.New("a job of this type is already pending or running")
)

// Store provides job persistence.
type Store struct {
	c *mongo.Collection
}

// New creates a new job store.
func New(db *mongo.Database) *Store {
	return &Store{c: db.Collection("jobs")}
}

// CreateInput holds the fields for creating a new job.
type CreateInput struct {
	QueueName   string
	JobType     string
	Payload     map[string]any
	Priority    int
	MaxAttempts int // values below 1 mean 1
	RequestedBy *primitive.ObjectID
	ScheduledAt *time.Time // nil = run immediately
}

// Create inserts a pending job.
func (s *Store) Create(ctx context.Context, in CreateInput) (Job, error) {
	now := time.Now().UTC()
	scheduledAt := now
	if in.ScheduledAt != nil {
		scheduledAt = *in.ScheduledAt
	}
	maxAttempts := in.MaxAttempts
	if maxAttempts < 1 {
		maxAttempts = 1
	}

	job := Job{
		ID:          primitive.NewObjectID(),
		QueueName:   in.QueueName,
		JobType:     in.JobType,
		Payload:     in.Payload,
		Status:      StatusPending,
		Priority:    in.Priority,
		MaxAttempts: maxAttempts,
		RequestedBy: in.RequestedBy,
		ScheduledAt: scheduledAt,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if _, err := s.c.InsertOne(ctx, job); err != nil {
		return Job{}, err
	}
	return job, nil
}

// EnqueueExclusive creates a job unless one of the same type is already
// pending or running, in which case it returns that job and ErrAlreadyActive.
func (s *Store) EnqueueExclusive(ctx context.Context, in CreateInput) (Job, error) {
	var existing Job
	err := s.c.FindOne(ctx, bson.M{
		"job_type": in.JobType,
		"status":   bson.M{"$in": []string{StatusPending, StatusRunning}},
	}).Decode(&existing)
	if err == nil {
		return existing, ErrAlreadyActive
	}
	if !errors.Is(err, mongo.ErrNoDocuments) {
		return Job{}, err
	}
	return s.Create(ctx, in)
}

// ClaimNext atomically claims the next due job on queueName.
// Returns nil, nil if no jobs are available.
func (s *Store) ClaimNext(ctx context.Context, queueName, workerID string) (*Job, error) {
	now := time.Now().UTC()
	filter := bson.M{
		"queue_name":   queueName,
		"status":       StatusPending,
		"scheduled_at": bson.M{"$lte": now},
	}
	update := bson.M{
		"$set": bson.M{
			"status":     StatusRunning,
			"started_at": now,
			"worker_id":  workerID,
			"updated_at": now,
		},
		"$inc": bson.M{"attempts": 1},
	}
	opts := options.FindOneAndUpdate().
		SetSort(bson.D{{Key: "priority", Value: -1}, {Key: "scheduled_at", Value: 1}}).
		SetReturnDocument(options.After)

	var job Job
	if err := s.c.FindOneAndUpdate(ctx, filter, update, opts).Decode(&job); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil
		}
		return nil, err
	}
	return &job, nil
}

// Complete marks a job as completed with its result.
func (s *Store) Complete(ctx context.Context, id primitive.ObjectID, result map[string]any) error {
	now := time.Now().UTC()
	_, err := s.c.UpdateOne(ctx, bson.M{"_id": id}, bson.M{
		"$set": bson.M{
			"status":       StatusCompleted,
			"completed_at": now,
			"result":       result,
			"error":        "",
			"updated_at":   now,
		},
	})
	return err
}

// Fail records errMsg and any partial result. A job with attempts left is
// rescheduled after retryDelay; otherwise it is marked failed.
func (s *Store) Fail(ctx context.Context, id primitive.ObjectID, errMsg string, result map[string]any, retryDelay time.Duration) error {
	job, err := s.GetByID(ctx, id)
	if err != nil {
		return err
	}
	now := time.Now().UTC()
	set := bson.M{"error": errMsg, "updated_at": now}
	if result != nil {
		set["result"] = result
	}

	if job.Attempts < job.MaxAttempts {
		set["status"] = StatusPending
		set["scheduled_at"] = now.Add(retryDelay)
		set["started_at"] = nil
		set["worker_id"] = ""
	} else {
		set["status"] = StatusFailed
		set["completed_at"] = now
	}
	_, err = s.c.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": set})
	return err
}

// Cancel cancels a pending job. Running batches are not interrupted.
func (s *Store) Cancel(ctx context.Context, id primitive.ObjectID) error {
	now := time.Now().UTC()
	res, err := s.c.UpdateOne(ctx, bson.M{"_id": id, "status": StatusPending}, bson.M{
		"$set": bson.M{
			"status":       StatusCancelled,
			"completed_at": now,
			"updated_at":   now,
		},
	})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// GetByID retrieves a job by ID.
func (s *Store) GetByID(ctx context.Context, id primitive.ObjectID) (*Job, error) {
	var job Job
	if err := s.c.FindOne(ctx, bson.M{"_id": id}).Decode(&job); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &job, nil
}

// LatestByType returns the most recently created job of jobType, or
// ErrNotFound.
func (s *Store) LatestByType(ctx context.Context, jobType string) (*Job, error) {
	opts := options.FindOne().SetSort(bson.D{{Key: "created_at", Value: -1}})
	var job Job
	if err := s.c.FindOne(ctx, bson.M{"job_type": jobType}, opts).Decode(&job); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &job, nil
}

// ListFilter specifies criteria for listing jobs.
type ListFilter struct {
	QueueName string
	JobType   string
	Status    string
}

// ListResult contains a page of jobs with pagination info.
type ListResult struct {
	Jobs       []Job
	TotalCount int64
	Page       int
	PageSize   int
	TotalPages int
}

// List returns jobs matching the filter, newest first.
func (s *Store) List(ctx context.Context, f ListFilter, page, pageSize int) (ListResult, error) {
	pg := storeutil.NewPage(page, pageSize, 25, 200)

	query := bson.M{}
	if f.QueueName != "" {
		query["queue_name"] = f.QueueName
	}
	if f.JobType != "" {
		query["job_type"] = f.JobType
	}
	if f.Status != "" {
		query["status"] = f.Status
	}

	total, err := s.c.CountDocuments(ctx, query)
	if err != nil {
		return ListResult{}, err
	}

	// Results carry whole reports; the list view does not need them.
	opts := pg.Paginate().
		SetSort(bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: -1}}).
		SetProjection(bson.M{"result.changes": 0, "result.failures": 0})

	cur, err := s.c.Find(ctx, query, opts)
	if err != nil {
		return ListResult{}, err
	}
	defer cur.Close(ctx)

	var jobs []Job
	if err := cur.All(ctx, &jobs); err != nil {
		return ListResult{}, err
	}
	return ListResult{
		Jobs:       jobs,
		TotalCount: total,
		Page:       pg.Number,
		PageSize:   pg.Size,
		TotalPages: pg.TotalPages(total),
	}, nil
}

// StatusCounts returns the number of jobs per status.
func (s *Store) StatusCounts(ctx context.Context) (map[string]int64, error) {
	cur, err := s.c.Aggregate(ctx, mongo.Pipeline{
		{{Key: "$group", Value: bson.M{"_id": "$status", "count": bson.M{"$sum": 1}}}},
	})
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	out := map[string]int64{}
	for cur.Next(ctx) {
		var row struct {
			Status string `bson:"_id"`
			Count  int64  `bson:"count"`
		}
		if err := cur.Decode(&row); err != nil {
			return nil, err
		}
		out[row.Status] = row.Count
	}
	return out, cur.Err()
}

// DeleteOlderThan deletes finished jobs completed before cutoff.
func (s *Store) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.c.DeleteMany(ctx, bson.M{
		"status":       bson.M{"$in": []string{StatusCompleted, StatusFailed, StatusCancelled}},
		"completed_at": bson.M{"$lt": cutoff},
	})
	if err != nil {
		return 0, err
	}
	return res.DeletedCount, nil
}

// RequeueStale returns running jobs started before now-threshold to the
// queue. These were claimed by a worker that died.
func (s *Store) RequeueStale(ctx context.Context, threshold time.Duration) (int64, error) {
	now := time.Now().UTC()
	res, err := s.c.UpdateMany(ctx, bson.M{
		"status":     StatusRunning,
		"started_at": bson.M{"$lt": now.Add(-threshold)},
	}, bson.M{
		"$set": bson.M{
			"status":     StatusPending,
			"started_at": nil,
			"worker_id":  "",
			"error":      "worker timeout - job re-queued",
			"updated_at": now,
		},
	})
	if err != nil {
		return 0, err
	}
	return res.ModifiedCount, nil
}
