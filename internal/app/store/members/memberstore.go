// internal/app/store/members/memberstore.go
package memberstore

import (
	"context"
	"errors"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/dalemusser/stratamembers/internal/app/store/storeutil"
	"github.com/dalemusser/stratamembers/internal/app/system/normalize"
	"github.com/dalemusser/stratamembers/internal/app/system/prefectures"
	"github.com/dalemusser/stratamembers/internal/app/system/qualtype"
	"github.com/dalemusser/stratamembers/internal/domain/models"
	wafflemongo "github.com/dalemusser/waffle/pantry/mongo"
	"github.com/dalemusser/waffle/pantry/text"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// CollectionName is the members collection.
const CollectionName = "members"

var (
	// ErrNotFound is returned when no member has the requested ID.
	ErrNotFound = errors.New("member not found")
	// ErrDuplicateNumber is returned when a membership number is already taken.
	ErrDuplicateNumber = errors.New("a member with this number already exists")
	// ErrInvalidPostalCode is returned for postal codes that are not 7 digits.
	ErrInvalidPostalCode = errors.New("postal code must be 7 digits")
	errNameRequired      = errors.New("name is required")
)

// Store persists member records.
//
// Every write goes through prepare, which converts full-width characters in
// address and phone fields and recomputes the legacy type field from Types.
// Every read goes through fromDB, which fills Types from a legacy-only type.
type Store struct {
	c *mongo.Collection
}

// New creates a member Store.
func New(db *mongo.Database) *Store {
	return &Store{c: db.Collection(CollectionName)}
}

// CreateInput holds the fields for a new member.
type CreateInput struct {
	Number        string
	Name          string
	Furigana      string
	Types         []string
	Phone         string
	Email         string
	PostalCode    string
	Prefecture    string
	Address       string
	StreetAddress string
	Notes         string
}

func (in CreateInput) member() models.Member {
	return models.Member{
		Number:        in.Number,
		Name:          in.Name,
		Furigana:      in.Furigana,
		Types:         in.Types,
		Phone:         in.Phone,
		Email:         in.Email,
		PostalCode:    in.PostalCode,
		Prefecture:    in.Prefecture,
		Address:       in.Address,
		StreetAddress: in.StreetAddress,
		Notes:         in.Notes,
	}
}

// prepare normalizes a member in place before it is written.
func prepare(m *models.Member) error {
	m.Number = strings.TrimSpace(normalize.Address(m.Number))
	m.Name = normalize.Name(m.Name)
	if m.Name == "" {
		return errNameRequired
	}
	m.Furigana = normalize.Furigana(m.Furigana)
	m.FuriganaCI = text.Fold(m.Furigana)
	m.Types = qualtype.Normalize(m.Types, "")
	m.Type = qualtype.Legacy(m.Types)
	m.Phone = normalize.Phone(m.Phone)
	m.Email = normalize.Email(m.Email)
	m.PostalCode = normalize.PostalCode(m.PostalCode)
	if m.PostalCode != "" && len(m.PostalCode) != 7 {
		return ErrInvalidPostalCode
	}
	m.Address = normalize.Address(m.Address)
	m.StreetAddress = normalize.Address(m.StreetAddress)
	m.Prefecture = strings.TrimSpace(m.Prefecture)
	if m.Prefecture == "" {
		m.Prefecture = prefectures.FromAddress(m.Address)
	}
	m.Notes = strings.TrimSpace(m.Notes)
	return nil
}

// fromDB fills the derived fields of a decoded record. Records written before
// the multi-value migration carry only the single type field.
func fromDB(m *models.Member) {
	m.Types = qualtype.Normalize(m.Types, m.Type)
	m.Type = qualtype.Legacy(m.Types)
}

// Create inserts a new member.
func (s *Store) Create(ctx context.Context, in CreateInput) (models.Member, error) {
	m := in.member()
	if err := prepare(&m); err != nil {
		return models.Member{}, err
	}

	now := time.Now()
	m.ID = primitive.NewObjectID()
	m.CreatedAt = now
	m.UpdatedAt = now

	if _, err := s.c.InsertOne(ctx, m); err != nil {
		if wafflemongo.IsDup(err) {
			return models.Member{}, ErrDuplicateNumber
		}
		return models.Member{}, err
	}
	return m, nil
}

// InsertMany creates members in one round trip and returns how many were
// written. Inputs that fail validation are skipped and reported in the
// returned map keyed by input index.
func (s *Store) InsertMany(ctx context.Context, inputs []CreateInput) (int, map[int]error, error) {
	rejected := map[int]error{}
	docs := make([]interface{}, 0, len(inputs))
	now := time.Now()
	for i, in := range inputs {
		m := in.member()
		if err := prepare(&m); err != nil {
			rejected[i] = err
			continue
		}
		m.ID = primitive.NewObjectID()
		m.CreatedAt = now
		m.UpdatedAt = now
		docs = append(docs, m)
	}
	if len(docs) == 0 {
		return 0, rejected, nil
	}

	res, err := s.c.InsertMany(ctx, docs, options.InsertMany().SetOrdered(false))
	inserted := 0
	if res != nil {
		inserted = len(res.InsertedIDs)
	}
	if err != nil {
		if wafflemongo.IsDup(err) {
			return inserted, rejected, ErrDuplicateNumber
		}
		return inserted, rejected, err
	}
	return inserted, rejected, nil
}

// GetByID loads a member.
func (s *Store) GetByID(ctx context.Context, id primitive.ObjectID) (*models.Member, error) {
	var m models.Member
	if err := s.c.FindOne(ctx, bson.M{"_id": id}).Decode(&m); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	fromDB(&m)
	return &m, nil
}

// UpdateInput holds the fields for updating a member.
// All fields are pointers - nil means "don't update this field".
type UpdateInput struct {
	Number        *string
	Name          *string
	Furigana      *string
	Types         *[]string
	Phone         *string
	Email         *string
	PostalCode    *string
	Prefecture    *string
	Address       *string
	StreetAddress *string
	Notes         *string
}

// Update applies the non-nil fields of in to member id.
func (s *Store) Update(ctx context.Context, id primitive.ObjectID, in UpdateInput) (models.Member, error) {
	cur, err := s.GetByID(ctx, id)
	if err != nil {
		return models.Member{}, err
	}
	m := *cur

	if in.Number != nil {
		m.Number = *in.Number
	}
	if in.Name != nil {
		m.Name = *in.Name
	}
	if in.Furigana != nil {
		m.Furigana = *in.Furigana
	}
	if in.Types != nil {
		m.Types = *in.Types
	}
	if in.Phone != nil {
		m.Phone = *in.Phone
	}
	if in.Email != nil {
		m.Email = *in.Email
	}
	if in.PostalCode != nil {
		m.PostalCode = *in.PostalCode
	}
	if in.Prefecture != nil {
		m.Prefecture = *in.Prefecture
	}
	if in.Address != nil {
		m.Address = *in.Address
	}
	if in.StreetAddress != nil {
		m.StreetAddress = *in.StreetAddress
	}
	if in.Notes != nil {
		m.Notes = *in.Notes
	}

	if err := prepare(&m); err != nil {
		return models.Member{}, err
	}
	m.UpdatedAt = time.Now()

	set := bson.M{
		"number":         m.Number,
		"name":           m.Name,
		"furigana":       m.Furigana,
		"furigana_ci":    m.FuriganaCI,
		"types":          m.Types,
		"type":           m.Type,
		"phone":          m.Phone,
		"email":          m.Email,
		"postal_code":    m.PostalCode,
		"prefecture":     m.Prefecture,
		"address":        m.Address,
		"street_address": m.StreetAddress,
		"notes":          m.Notes,
		"updated_at":     m.UpdatedAt,
	}

	res, err := s.c.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": set})
	if err != nil {
		if wafflemongo.IsDup(err) {
			return models.Member{}, ErrDuplicateNumber
		}
		return models.Member{}, err
	}
	if res.MatchedCount == 0 {
		return models.Member{}, ErrNotFound
	}
	return m, nil
}

// Delete removes a member.
func (s *Store) Delete(ctx context.Context, id primitive.ObjectID) error {
	res, err := s.c.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// Patch is a partial write produced by a maintenance batch. Nil fields are
// left alone. When Types is set the legacy type field is rewritten with it.
type Patch struct {
	Address       *string
	StreetAddress *string
	Types         []string
}

// Empty reports whether the patch writes nothing.
func (p Patch) Empty() bool {
	return p.Address == nil && p.StreetAddress == nil && p.Types == nil
}

// ApplyNormalization writes p to member id in a single update.
func (s *Store) ApplyNormalization(ctx context.Context, id primitive.ObjectID, p Patch) error {
	if p.Empty() {
		return nil
	}
	set := bson.M{"updated_at": time.Now()}
	if p.Address != nil {
		set["address"] = *p.Address
	}
	if p.StreetAddress != nil {
		set["street_address"] = *p.StreetAddress
	}
	if p.Types != nil {
		set["types"] = p.Types
		set["type"] = qualtype.Legacy(p.Types)
	}

	res, err := s.c.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": set})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// Each streams every member, oldest first, to fn. Iteration stops at the
// first error returned by fn or the cursor.
//
// Maintenance batches write to the collection while this cursor is open, so
// the sort must stay on fields those batches never update.
func (s *Store) Each(ctx context.Context, fn func(models.Member) error) error {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}, {Key: "_id", Value: 1}})
	cur, err := s.c.Find(ctx, bson.M{}, opts)
	if err != nil {
		return err
	}
	defer cur.Close(ctx)

	for cur.Next(ctx) {
		var m models.Member
		if err := cur.Decode(&m); err != nil {
			return err
		}
		fromDB(&m)
		if err := fn(m); err != nil {
			return err
		}
	}
	return cur.Err()
}

// ListFilter narrows List.
type ListFilter struct {
	Search     string // substring of name or furigana
	Type       string // qualification tag
	Prefecture string
}

// ListResult is one page of members.
type ListResult struct {
	Members    []models.Member
	TotalCount int64
	Page       int
	PageSize   int
	TotalPages int
}

func buildQuery(f ListFilter) bson.M {
	query := bson.M{}
	if q := normalize.QueryParam(f.Search); q != "" {
		nameRE := primitive.Regex{Pattern: regexp.QuoteMeta(normalize.Name(q)), Options: "i"}
		kanaRE := primitive.Regex{Pattern: regexp.QuoteMeta(text.Fold(normalize.Furigana(q)))}
		query["$or"] = bson.A{
			bson.M{"name": nameRE},
			bson.M{"furigana_ci": kanaRE},
			bson.M{"number": q},
		}
	}
	if f.Type != "" {
		// Legacy records may only carry the single-value field.
		query["$and"] = bson.A{bson.M{"$or": bson.A{
			bson.M{"types": f.Type},
			bson.M{"type": f.Type},
		}}}
	}
	if f.Prefecture != "" {
		query["prefecture"] = f.Prefecture
	}
	return query
}

// List returns members matching f, newest first.
func (s *Store) List(ctx context.Context, f ListFilter, page, pageSize int) (ListResult, error) {
	pg := storeutil.NewPage(page, pageSize, 50, 200)

	query := buildQuery(f)
	total, err := s.c.CountDocuments(ctx, query)
	if err != nil {
		return ListResult{}, err
	}

	opts := pg.Paginate().
		SetSort(bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: -1}})

	members, err := s.find(ctx, query, opts)
	if err != nil {
		return ListResult{}, err
	}

	return ListResult{
		Members:    members,
		TotalCount: total,
		Page:       pg.Number,
		PageSize:   pg.Size,
		TotalPages: pg.TotalPages(total),
	}, nil
}

// SearchByFuriganaPrefix returns members whose reading starts with prefix,
// in reading order.
func (s *Store) SearchByFuriganaPrefix(ctx context.Context, prefix string, limit int64) ([]models.Member, error) {
	key := text.Fold(normalize.Furigana(prefix))
	if key == "" {
		return nil, nil
	}
	if limit <= 0 {
		limit = 20
	}
	query := bson.M{"furigana_ci": bson.M{"$gte": key, "$lt": key + "\uf8ff"}}
	opts := options.Find().SetSort(bson.D{{Key: "furigana_ci", Value: 1}}).SetLimit(limit)
	return s.find(ctx, query, opts)
}

func (s *Store) find(ctx context.Context, query bson.M, opts *options.FindOptions) ([]models.Member, error) {
	cur, err := s.c.Find(ctx, query, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var members []models.Member
	if err := cur.All(ctx, &members); err != nil {
		return nil, err
	}
	for i := range members {
		fromDB(&members[i])
	}
	return members, nil
}

// Bucket is one group in an aggregate count.
type Bucket struct {
	Key   string `bson:"_id"`
	Count int64  `bson:"count"`
}

// Counts holds the dashboard aggregates.
type Counts struct {
	Total        int64
	ByType       []Bucket
	ByPrefecture []Bucket
}

// TypeCount returns the count for tag t, or 0.
func (c Counts) TypeCount(t string) int64 {
	for _, b := range c.ByType {
		if b.Key == t {
			return b.Count
		}
	}
	return 0
}

// Counts aggregates total members, members per qualification tag and
// members per prefecture. A member holding two tags counts once under each.
func (s *Store) Counts(ctx context.Context) (Counts, error) {
	var out Counts

	total, err := s.c.CountDocuments(ctx, bson.M{})
	if err != nil {
		return out, err
	}
	out.Total = total

	typePipeline := mongo.Pipeline{
		{{Key: "$project", Value: bson.M{
			"tags": bson.M{"$cond": bson.A{
				bson.M{"$gt": bson.A{bson.M{"$size": bson.M{"$ifNull": bson.A{"$types", bson.A{}}}}, 0}},
				"$types",
				bson.A{bson.M{"$ifNull": bson.A{"$type", ""}}},
			}},
		}}},
		{{Key: "$unwind", Value: "$tags"}},
		{{Key: "$match", Value: bson.M{"tags": bson.M{"$ne": ""}}}},
		{{Key: "$group", Value: bson.M{"_id": "$tags", "count": bson.M{"$sum": 1}}}},
		{{Key: "$sort", Value: bson.D{{Key: "count", Value: -1}, {Key: "_id", Value: 1}}}},
	}
	if out.ByType, err = s.aggregate(ctx, typePipeline); err != nil {
		return out, err
	}

	prefPipeline := mongo.Pipeline{
		{{Key: "$group", Value: bson.M{"_id": bson.M{"$ifNull": bson.A{"$prefecture", ""}}, "count": bson.M{"$sum": 1}}}},
	}
	if out.ByPrefecture, err = s.aggregate(ctx, prefPipeline); err != nil {
		return out, err
	}
	sort.SliceStable(out.ByPrefecture, func(i, j int) bool {
		return prefectures.Order(out.ByPrefecture[i].Key) < prefectures.Order(out.ByPrefecture[j].Key)
	})

	return out, nil
}

func (s *Store) aggregate(ctx context.Context, pipeline mongo.Pipeline) ([]Bucket, error) {
	cur, err := s.c.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var buckets []Bucket
	if err := cur.All(ctx, &buckets); err != nil {
		return nil, err
	}
	return buckets, nil
}
