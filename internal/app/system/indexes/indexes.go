// internal/app/system/indexes/indexes.go
package indexes

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"
)

type collectionIndexes struct {
	name   string
	models func() []mongo.IndexModel
}

var all = []collectionIndexes{
	{"users", usersIndexes},
	{"members", membersIndexes},
	{"audit_logs", auditLogsIndexes},
	{"rate_limits", rateLimitsIndexes},
	{"jobs", jobsIndexes},
}

/*
EnsureAll is called at startup and by the test database helper. Each
collection's set is reconciled independently; problems are aggregated so
startup can fail fast with the full picture.
*/
func EnsureAll(ctx context.Context, db *mongo.Database) error {
	var problems []string
	for _, ci := range all {
		if err := ensureIndexSet(ctx, db.Collection(ci.name), ci.models()); err != nil {
			problems = append(problems, ci.name+": "+err.Error())
		}
	}
	if len(problems) > 0 {
		return errors.New(strings.Join(problems, "; "))
	}
	return nil
}

/* -------------------------------------------------------------------------- */
/* Collection-specific index sets                                              */
/* -------------------------------------------------------------------------- */

func usersIndexes() []mongo.IndexModel {
	return []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "login_id_ci", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("uniq_users_loginidci"),
		},
		{
			Keys: bson.D{
				{Key: "role", Value: 1},
				{Key: "status", Value: 1},
				{Key: "full_name_ci", Value: 1},
				{Key: "_id", Value: 1},
			},
			Options: options.Index().SetName("idx_users_role_status_fullnameci_id"),
		},
	}
}

func membersIndexes() []mongo.IndexModel {
	return []mongo.IndexModel{
		// Membership numbers are unique when present.
		{
			Keys: bson.D{{Key: "number", Value: 1}},
			Options: options.Index().
				SetUnique(true).
				SetPartialFilterExpression(bson.M{"number": bson.M{"$gt": ""}}).
				SetName("uniq_members_number"),
		},
		// Default list order
		{
			Keys:    bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: -1}},
			Options: options.Index().SetName("idx_members_created_id"),
		},
		// Reading prefix search and sort
		{
			Keys:    bson.D{{Key: "furigana_ci", Value: 1}},
			Options: options.Index().SetName("idx_members_furiganaci"),
		},
		// Qualification filter and per-type counts (multikey)
		{
			Keys:    bson.D{{Key: "types", Value: 1}},
			Options: options.Index().SetName("idx_members_types"),
		},
		{
			Keys:    bson.D{{Key: "prefecture", Value: 1}, {Key: "created_at", Value: -1}},
			Options: options.Index().SetName("idx_members_prefecture_created"),
		},
	}
}

func auditLogsIndexes() []mongo.IndexModel {
	return []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "created_at", Value: -1}},
			Options: options.Index().SetName("idx_audit_created"),
		},
		{
			Keys:    bson.D{{Key: "category", Value: 1}, {Key: "created_at", Value: -1}},
			Options: options.Index().SetName("idx_audit_category_created"),
		},
		{
			Keys:    bson.D{{Key: "actor_id", Value: 1}, {Key: "created_at", Value: -1}},
			Options: options.Index().SetName("idx_audit_actor_created"),
		},
	}
}

func rateLimitsIndexes() []mongo.IndexModel {
	return []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "login_id", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("idx_ratelimit_login_id"),
		},
		// Old attempt records expire after a day.
		{
			Keys:    bson.D{{Key: "last_attempt", Value: 1}},
			Options: options.Index().SetExpireAfterSeconds(86400).SetName("idx_ratelimit_ttl"),
		},
	}
}

func jobsIndexes() []mongo.IndexModel {
	return []mongo.IndexModel{
		// Claim next job
		{
			Keys: bson.D{
				{Key: "queue_name", Value: 1},
				{Key: "status", Value: 1},
				{Key: "priority", Value: -1},
				{Key: "scheduled_at", Value: 1},
			},
			Options: options.Index().SetName("idx_job_claim"),
		},
		{
			Keys:    bson.D{{Key: "status", Value: 1}, {Key: "created_at", Value: -1}},
			Options: options.Index().SetName("idx_job_status_created"),
		},
		// Stale running jobs
		{
			Keys:    bson.D{{Key: "status", Value: 1}, {Key: "started_at", Value: 1}},
			Options: options.Index().SetName("idx_job_status_started"),
		},
		// Latest report per job type
		{
			Keys:    bson.D{{Key: "job_type", Value: 1}, {Key: "created_at", Value: -1}},
			Options: options.Index().SetName("idx_job_type_created"),
		},
		// Retention cleanup
		{
			Keys:    bson.D{{Key: "status", Value: 1}, {Key: "completed_at", Value: 1}},
			Options: options.Index().SetName("idx_job_status_completed"),
		},
	}
}

/* -------------------------------------------------------------------------- */
/* Reconciliation                                                              */
/* -------------------------------------------------------------------------- */

type existingIndex struct {
	Name   string `bson:"name"`
	Key    bson.D `bson:"key"`
	Unique *bool  `bson:"unique,omitempty"`
}

func keySig(keys bson.D) string {
	parts := make([]string, 0, len(keys))
	for _, kv := range keys {
		parts = append(parts, fmt.Sprintf("%s:%v", kv.Key, kv.Value))
	}
	return strings.Join(parts, ", ")
}

func boolValue(b *bool) bool {
	return b != nil && *b
}

// isDuplicateKeyErr matches E11000 across server vendors.
func isDuplicateKeyErr(err error) bool {
	if err == nil {
		return false
	}
	var we mongo.WriteException
	if errors.As(err, &we) {
		for _, e := range we.WriteErrors {
			if e.Code == 11000 {
				return true
			}
		}
	}
	var ce mongo.CommandError
	if errors.As(err, &ce) && ce.Code == 11000 {
		return true
	}
	s := err.Error()
	return strings.Contains(s, "E11000") || strings.Contains(strings.ToLower(s), "duplicate key")
}

func listExisting(ctx context.Context, coll *mongo.Collection) map[string]existingIndex {
	existing := map[string]existingIndex{}
	cur, err := coll.Indexes().List(ctx)
	if err != nil {
		return existing
	}
	defer cur.Close(ctx)
	for cur.Next(ctx) {
		var idx existingIndex
		if err := cur.Decode(&idx); err != nil {
			zap.L().Warn("failed to decode existing index",
				zap.String("collection", coll.Name()), zap.Error(err))
			continue
		}
		existing[keySig(idx.Key)] = idx
	}
	return existing
}

// ensureIndexSet creates each model that is missing. An index with the same
// keys but a different unique flag is dropped and recreated; one that only
// differs by name is reused.
func ensureIndexSet(ctx context.Context, coll *mongo.Collection, models []mongo.IndexModel) error {
	var errs []string
	existing := listExisting(ctx, coll)

	for _, m := range models {
		name := ""
		unique := false
		if m.Options != nil {
			if m.Options.Name != nil {
				name = *m.Options.Name
			}
			unique = boolValue(m.Options.Unique)
		}
		sig := keySig(m.Keys.(bson.D))
		start := time.Now()
		log := zap.L().With(
			zap.String("collection", coll.Name()),
			zap.String("name", name),
			zap.String("keys", sig),
			zap.Bool("unique", unique))

		if ex, ok := existing[sig]; ok {
			if boolValue(ex.Unique) == unique {
				log.Debug("reusing existing index", zap.String("existing_name", ex.Name))
				continue
			}
			if _, err := coll.Indexes().DropOne(ctx, ex.Name); err != nil {
				log.Warn("drop existing index failed", zap.Error(err))
				errs = append(errs, fmt.Sprintf("%s(%s): drop failed: %v", coll.Name(), name, err))
				continue
			}
		}

		if _, err := coll.Indexes().CreateOne(ctx, m); err != nil {
			log.Warn("index ensure failed", zap.Error(err))
			if isDuplicateKeyErr(err) && unique {
				errs = append(errs, fmt.Sprintf("%s(%s): cannot create unique index (duplicates present)", coll.Name(), name))
			} else {
				errs = append(errs, fmt.Sprintf("%s(%s): %v", coll.Name(), name, err))
			}
			continue
		}
		log.Info("index ensured", zap.Duration("took", time.Since(start)))
	}

	if len(errs) > 0 {
		return errors.New(strings.Join(errs, "; "))
	}
	return nil
}
