// internal/app/system/validators/validators.go
package validators

import (
	"context"
	"errors"
	"strings"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

// collections lists every collection the app owns, with its JSON-Schema
// validator or nil.
func collections() []struct {
	name   string
	schema bson.M
} {
	return []struct {
		name   string
		schema bson.M
	}{
		{"users", usersSchema()},
		{"members", membersSchema()},
		{"audit_logs", nil},
		{"rate_limits", nil},
		{"jobs", jobsSchema()},
	}
}

// EnsureAll creates collections (if missing) and tries to attach JSON-Schema
// validators. Servers without collMod validator support (some DocumentDB
// versions) are logged and skipped.
func EnsureAll(ctx context.Context, db *mongo.Database) error {
	var problems []string

	for _, c := range collections() {
		if _, err := ensureCollection(ctx, db, c.name); err != nil {
			problems = append(problems, c.name+": "+err.Error())
			continue
		}
		if c.schema == nil {
			continue
		}
		if err := setValidator(ctx, db, c.name, c.schema); err != nil {
			if isNoSuchCommand(err) || isNotImplemented(err) {
				zap.L().Info("validator skipped (unsupported)", zap.String("collection", c.name))
				continue
			}
			problems = append(problems, c.name+": "+err.Error())
		}
	}

	if len(problems) > 0 {
		return errors.New(strings.Join(problems, "; "))
	}
	return nil
}

/* ---------------------- collection helpers & logging ---------------------- */

func collectionExists(ctx context.Context, db *mongo.Database, name string) (bool, error) {
	names, err := db.ListCollectionNames(ctx, bson.M{"name": name})
	if err != nil {
		return false, err
	}
	return len(names) > 0, nil
}

// ensureCollection idempotently makes sure name exists.
// Returns created==true only if it was created by this call.
func ensureCollection(ctx context.Context, db *mongo.Database, name string) (created bool, err error) {
	exists, listErr := collectionExists(ctx, db, name)
	if listErr == nil && exists {
		zap.L().Debug("collection exists", zap.String("collection", name))
		return false, nil
	}
	if err := db.CreateCollection(ctx, name); err != nil {
		if isNamespaceExistsErr(err) {
			return false, nil
		}
		zap.L().Warn("createCollection failed", zap.String("collection", name), zap.Error(err))
		return false, err
	}
	zap.L().Info("created collection", zap.String("collection", name))
	return true, nil
}

// setValidator attaches validator with level "moderate", so documents that
// already violate it (legacy member imports) can still be updated.
func setValidator(ctx context.Context, db *mongo.Database, name string, validator bson.M) error {
	cmd := bson.D{
		{Key: "collMod", Value: name},
		{Key: "validator", Value: validator},
		{Key: "validationLevel", Value: "moderate"},
		{Key: "validationAction", Value: "error"},
	}
	var out bson.M
	if err := db.RunCommand(ctx, cmd).Decode(&out); err != nil {
		return err
	}
	zap.L().Info("validator ensured", zap.String("collection", name))
	return nil
}

/* ------------------------- error helpers ------------------------- */

func commandErrorMatches(err error, code int32, phrases ...string) bool {
	if err == nil {
		return false
	}
	var ce mongo.CommandError
	if errors.As(err, &ce) && ce.Code == code {
		return true
	}
	s := strings.ToLower(err.Error())
	for _, p := range phrases {
		if strings.Contains(s, p) {
			return true
		}
	}
	return false
}

func isNamespaceExistsErr(err error) bool {
	return commandErrorMatches(err, 48, "already exists", "namespace exists")
}

func isNoSuchCommand(err error) bool {
	return commandErrorMatches(err, 59, "no such command")
}

func isNotImplemented(err error) bool {
	return commandErrorMatches(err, 115, "not implemented", "not supported")
}

/* ------------------------- JSON-Schema docs ---------------------- */

func usersSchema() bson.M {
	return bson.M{
		"$jsonSchema": bson.M{
			"bsonType": "object",
			"required": bson.A{"full_name", "login_id", "login_id_ci", "password_hash", "role", "status"},
			"properties": bson.M{
				"full_name":     bson.M{"bsonType": "string", "minLength": 1, "pattern": ".*\\S.*"},
				"login_id":      bson.M{"bsonType": "string", "minLength": 1},
				"login_id_ci":   bson.M{"bsonType": "string", "minLength": 1},
				"password_hash": bson.M{"bsonType": "string", "minLength": 1},
				"role":          bson.M{"enum": bson.A{"admin", "staff"}},
				"status":        bson.M{"enum": bson.A{"active", "disabled"}},
			},
		},
	}
}

// membersSchema checks the shape the store writes. Only name is required:
// imported legacy documents carry just the single-value type.
func membersSchema() bson.M {
	return bson.M{
		"$jsonSchema": bson.M{
			"bsonType": "object",
			"required": bson.A{"name"},
			"properties": bson.M{
				"name":        bson.M{"bsonType": "string", "minLength": 1},
				"number":      bson.M{"bsonType": "string"},
				"types":       bson.M{"bsonType": "array", "items": bson.M{"bsonType": "string"}},
				"type":        bson.M{"bsonType": "string"},
				"postal_code": bson.M{"bsonType": "string", "pattern": "^([0-9]{7})?$"},
				"address":     bson.M{"bsonType": "string"},
				"prefecture":  bson.M{"bsonType": "string"},
			},
		},
	}
}

func jobsSchema() bson.M {
	return bson.M{
		"$jsonSchema": bson.M{
			"bsonType": "object",
			"required": bson.A{"queue_name", "job_type", "status"},
			"properties": bson.M{
				"queue_name": bson.M{"bsonType": "string", "minLength": 1},
				"job_type":   bson.M{"bsonType": "string", "minLength": 1},
				"status":     bson.M{"enum": bson.A{"pending", "running", "completed", "failed", "cancelled"}},
			},
		},
	}
}
