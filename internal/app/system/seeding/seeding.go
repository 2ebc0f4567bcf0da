// internal/app/system/seeding/seeding.go
package seeding

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"io"
	"strings"

	memberstore "github.com/dalemusser/stratamembers/internal/app/store/members"
	userstore "github.com/dalemusser/stratamembers/internal/app/store/users"
	"github.com/dalemusser/stratamembers/internal/app/system/authutil"
	"github.com/dalemusser/stratamembers/internal/domain/models"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

//go:embed sample_members.yaml
var sampleMembers []byte

// AdminConfig describes the operator created on first start.
type AdminConfig struct {
	LoginID  string
	Password string
	FullName string
}

// Config controls SeedAll.
type Config struct {
	Admin         AdminConfig
	SampleMembers bool // load the bundled fixtures into an empty members collection
}

// SeedAll seeds default data if not already present.
func SeedAll(ctx context.Context, db *mongo.Database, cfg Config, logger *zap.Logger) error {
	if err := SeedAdmin(ctx, userstore.New(db), cfg.Admin, logger); err != nil {
		return err
	}
	if cfg.SampleMembers {
		if err := seedSampleMembers(ctx, memberstore.New(db), logger); err != nil {
			return err
		}
	}
	return nil
}

// SeedAdmin creates the admin operator unless one with the same login ID
// exists. An empty LoginID disables seeding.
func SeedAdmin(ctx context.Context, users *userstore.Store, cfg AdminConfig, logger *zap.Logger) error {
	if strings.TrimSpace(cfg.LoginID) == "" {
		return nil
	}
	exists, err := users.ExistsByLoginID(ctx, cfg.LoginID)
	if err != nil {
		return fmt.Errorf("check seed admin: %w", err)
	}
	if exists {
		return nil
	}
	if err := authutil.ValidatePassword(cfg.Password); err != nil {
		return fmt.Errorf("seed admin password: %w", err)
	}
	hash, err := authutil.HashPassword(cfg.Password)
	if err != nil {
		return fmt.Errorf("hash seed admin password: %w", err)
	}
	name := cfg.FullName
	if name == "" {
		name = "Administrator"
	}
	u, err := users.Create(ctx, userstore.CreateInput{
		FullName:     name,
		LoginID:      cfg.LoginID,
		Role:         models.RoleAdmin,
		PasswordHash: hash,
	})
	if errors.Is(err, userstore.ErrDuplicateLoginID) {
		return nil // another instance won the race
	}
	if err != nil {
		return fmt.Errorf("create seed admin: %w", err)
	}
	logger.Info("seeded admin operator", zap.String("login_id", u.LoginID))
	return nil
}

func seedSampleMembers(ctx context.Context, members *memberstore.Store, logger *zap.Logger) error {
	counts, err := members.Counts(ctx)
	if err != nil {
		return fmt.Errorf("count members: %w", err)
	}
	if counts.Total > 0 {
		return nil
	}
	inputs, err := ParseMembers(strings.NewReader(string(sampleMembers)))
	if err != nil {
		return err
	}
	n, rejected, err := members.InsertMany(ctx, inputs)
	if err != nil {
		return fmt.Errorf("insert sample members: %w", err)
	}
	logger.Info("seeded sample members", zap.Int("inserted", n), zap.Int("rejected", len(rejected)))
	return nil
}

// MemberFixture is one member in a YAML import file.
type MemberFixture struct {
	Number        string   `yaml:"number"`
	Name          string   `yaml:"name"`
	Furigana      string   `yaml:"furigana"`
	Types         []string `yaml:"types"`
	Type          string   `yaml:"type"` // older exports carry a single tag
	Phone         string   `yaml:"phone"`
	Email         string   `yaml:"email"`
	PostalCode    string   `yaml:"postal_code"`
	Prefecture    string   `yaml:"prefecture"`
	Address       string   `yaml:"address"`
	StreetAddress string   `yaml:"street_address"`
	Notes         string   `yaml:"notes"`
}

// Input converts the fixture for the member store.
func (f MemberFixture) Input() memberstore.CreateInput {
	types := f.Types
	if len(types) == 0 && f.Type != "" {
		types = []string{f.Type}
	}
	return memberstore.CreateInput{
		Number:        f.Number,
		Name:          f.Name,
		Furigana:      f.Furigana,
		Types:         types,
		Phone:         f.Phone,
		Email:         f.Email,
		PostalCode:    f.PostalCode,
		Prefecture:    f.Prefecture,
		Address:       f.Address,
		StreetAddress: f.StreetAddress,
		Notes:         f.Notes,
	}
}

type fixtureFile struct {
	Members []MemberFixture `yaml:"members"`
}

// ParseMembers decodes a YAML document with a top-level members list.
func ParseMembers(r io.Reader) ([]memberstore.CreateInput, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	var doc fixtureFile
	if err := dec.Decode(&doc); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, nil
		}
		return nil, fmt.Errorf("parse members yaml: %w", err)
	}
	out := make([]memberstore.CreateInput, 0, len(doc.Members))
	for _, f := range doc.Members {
		out = append(out, f.Input())
	}
	return out, nil
}
