// internal/app/system/memberfix/report.go
package memberfix

import (
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
)

// Report tallies one batch run. Converted and Fixed count records, so a
// record that was both converted and split counts once in each.
type Report struct {
	Batch  string `bson:"batch"`
	RunID  string `bson:"run_id"`
	DryRun bool   `bson:"dry_run"`

	Total     int `bson:"total"`     // records examined
	Changed   int `bson:"changed"`   // records with a planned change
	Fixed     int `bson:"fixed"`     // street portion split out
	Converted int `bson:"converted"` // full-width characters rewritten
	Migrated  int `bson:"migrated"`  // qualification tags folded
	Failed    int `bson:"failed"`

	Failures []Failure `bson:"failures,omitempty"`
	Changes  []Change  `bson:"changes,omitempty"` // first MaxReportedChanges planned changes

	StartedAt  time.Time `bson:"started_at"`
	FinishedAt time.Time `bson:"finished_at"`
}

// Failure is one record whose write failed.
type Failure struct {
	MemberID string `bson:"member_id"`
	Name     string `bson:"name"`
	Error    string `bson:"error"`
}

// Change describes one planned repair for display.
type Change struct {
	MemberID string `bson:"member_id"`
	Name     string `bson:"name"`
	Before   string `bson:"before"`
	After    string `bson:"after"`
}

// Truncated reports whether Changes holds fewer entries than were planned.
func (r Report) Truncated() bool {
	return r.Changed > len(r.Changes)
}

// ToMap converts the report for storage as a job result.
func (r Report) ToMap() (map[string]any, error) {
	raw, err := bson.Marshal(r)
	if err != nil {
		return nil, fmt.Errorf("marshal report: %w", err)
	}
	var m map[string]any
	if err := bson.Unmarshal(raw, &m); err != nil {
		return nil, fmt.Errorf("unmarshal report: %w", err)
	}
	return m, nil
}

// ReportFromMap reverses ToMap, including maps that went through a
// round trip to MongoDB.
func ReportFromMap(m map[string]any) (Report, error) {
	var r Report
	if len(m) == 0 {
		return r, nil
	}
	raw, err := bson.Marshal(m)
	if err != nil {
		return r, fmt.Errorf("marshal report map: %w", err)
	}
	if err := bson.Unmarshal(raw, &r); err != nil {
		return r, fmt.Errorf("decode report: %w", err)
	}
	return r, nil
}
