// internal/app/store/users/userstore.go
package userstore

// Terminology: User Identifiers
//   - UserID / userID / user_id: The MongoDB ObjectID (_id) that uniquely identifies an operator
//   - LoginID / loginID / login_id: The human-readable string operators type to log in

import (
	"context"
	"errors"
	"time"

	"github.com/dalemusser/stratamembers/internal/app/system/normalize"
	"github.com/dalemusser/stratamembers/internal/app/system/status"
	"github.com/dalemusser/stratamembers/internal/domain/models"
	wafflemongo "github.com/dalemusser/waffle/pantry/mongo"
	"github.com/dalemusser/waffle/pantry/text"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

var (
	// ErrDuplicateLoginID is returned when attempting to create an operator with a login_id that already exists.
	ErrDuplicateLoginID = errors.New("a user with this login ID already exists")
	// ErrInvalidRole is returned for roles outside models.AllRoles.
	ErrInvalidRole = errors.New("invalid role")
	// ErrLoginIDRequired is returned when login_id is blank.
	ErrLoginIDRequired = errors.New("login ID is required")
)

type Store struct {
	c *mongo.Collection
}

func New(db *mongo.Database) *Store {
	return &Store{c: db.Collection("users")}
}

// GetByID loads an operator by ObjectID. Returns mongo.ErrNoDocuments if not found.
func (s *Store) GetByID(ctx context.Context, id primitive.ObjectID) (*models.User, error) {
	var u models.User
	if err := s.c.FindOne(ctx, bson.M{"_id": id}).Decode(&u); err != nil {
		return nil, err
	}
	return &u, nil
}

// GetByLoginID looks up an operator by case/diacritic-insensitive login_id.
// Returns mongo.ErrNoDocuments if not found.
func (s *Store) GetByLoginID(ctx context.Context, loginID string) (*models.User, error) {
	var u models.User
	folded := text.Fold(normalize.LoginID(loginID))
	if err := s.c.FindOne(ctx, bson.M{"login_id_ci": folded}).Decode(&u); err != nil {
		return nil, err
	}
	return &u, nil
}

// CreateInput holds the fields for a new operator.
type CreateInput struct {
	FullName     string
	LoginID      string
	Role         string
	PasswordHash string
}

// Create inserts an operator. Status defaults to active.
func (s *Store) Create(ctx context.Context, in CreateInput) (models.User, error) {
	loginID := normalize.LoginID(in.LoginID)
	if loginID == "" {
		return models.User{}, ErrLoginIDRequired
	}
	role := normalize.Role(in.Role)
	if !models.IsValidRole(role) {
		return models.User{}, ErrInvalidRole
	}

	now := time.Now()
	name := normalize.Name(in.FullName)
	u := models.User{
		ID:           primitive.NewObjectID(),
		FullName:     name,
		FullNameCI:   text.Fold(name),
		LoginID:      loginID,
		LoginIDCI:    text.Fold(loginID),
		PasswordHash: in.PasswordHash,
		Role:         role,
		Status:       status.Active,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if _, err := s.c.InsertOne(ctx, u); err != nil {
		if wafflemongo.IsDup(err) {
			return models.User{}, ErrDuplicateLoginID
		}
		return models.User{}, err
	}
	return u, nil
}

// UpdatePassword replaces an operator's password hash.
func (s *Store) UpdatePassword(ctx context.Context, id primitive.ObjectID, passwordHash string) error {
	_, err := s.c.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": bson.M{
		"password_hash": passwordHash,
		"updated_at":    time.Now(),
	}})
	return err
}

// SetStatus sets an operator's status (active or disabled).
func (s *Store) SetStatus(ctx context.Context, id primitive.ObjectID, st string) error {
	st = normalize.Status(st)
	if !status.IsValid(st) {
		return errors.New("invalid status")
	}
	res, err := s.c.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": bson.M{
		"status":     st,
		"updated_at": time.Now(),
	}})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return mongo.ErrNoDocuments
	}
	return nil
}

// RecordLogin stamps last_login_at.
func (s *Store) RecordLogin(ctx context.Context, id primitive.ObjectID, at time.Time) error {
	_, err := s.c.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": bson.M{"last_login_at": at}})
	return err
}

// ExistsByLoginID reports whether an operator with loginID exists.
func (s *Store) ExistsByLoginID(ctx context.Context, loginID string) (bool, error) {
	n, err := s.c.CountDocuments(ctx, bson.M{"login_id_ci": text.Fold(normalize.LoginID(loginID))})
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// CountActiveAdmins counts active admin operators.
func (s *Store) CountActiveAdmins(ctx context.Context) (int64, error) {
	return s.c.CountDocuments(ctx, bson.M{"role": models.RoleAdmin, "status": status.Active})
}

// ListAll returns every operator sorted by name.
func (s *Store) ListAll(ctx context.Context) ([]models.User, error) {
	opts := options.Find().SetSort(bson.D{{Key: "full_name_ci", Value: 1}, {Key: "_id", Value: 1}})
	cur, err := s.c.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)
	var users []models.User
	if err := cur.All(ctx, &users); err != nil {
		return nil, err
	}
	return users, nil
}
