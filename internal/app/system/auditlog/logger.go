// internal/app/system/auditlog/logger.go
package auditlog

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/dalemusser/stratamembers/internal/app/store/audit"
	"github.com/dalemusser/stratamembers/internal/app/system/network"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// Destination values for Config fields.
const (
	DestAll = "all" // MongoDB + zap
	DestDB  = "db"
	DestLog = "log"
	DestOff = "off"
)

// Config holds audit logging configuration.
type Config struct {
	Auth    string // sign-in, sign-out and operator account events
	Members string // member changes and maintenance batches
}

// Sink persists audit events. *audit.Store implements it.
type Sink interface {
	Log(ctx context.Context, event audit.Event) error
}

// Logger records audit events to MongoDB and to structured logs.
// A nil *Logger is a no-op.
type Logger struct {
	store  Sink
	zapLog *zap.Logger
	config Config
}

// New creates a new audit Logger.
func New(store Sink, zapLog *zap.Logger, config Config) *Logger {
	if zapLog == nil {
		zapLog = zap.NewNop()
	}
	return &Logger{store: store, zapLog: zapLog, config: config}
}

func (l *Logger) destination(category string) string {
	var d string
	switch category {
	case audit.CategoryAuth, audit.CategoryOperator:
		d = l.config.Auth
	case audit.CategoryMember, audit.CategoryMaintenance:
		d = l.config.Members
	}
	if d == "" {
		return DestAll
	}
	return d
}

func (l *Logger) logToZap(event audit.Event) {
	fields := []zap.Field{
		zap.Bool("audit", true),
		zap.String("category", event.Category),
		zap.String("event_type", event.EventType),
		zap.Bool("success", event.Success),
	}
	if event.IP != "" {
		fields = append(fields, zap.String("ip", event.IP))
	}
	for name, id := range map[string]*primitive.ObjectID{
		"user_id":   event.UserID,
		"actor_id":  event.ActorID,
		"member_id": event.MemberID,
		"job_id":    event.JobID,
	} {
		if id != nil {
			fields = append(fields, zap.String(name, id.Hex()))
		}
	}
	if event.FailureReason != "" {
		fields = append(fields, zap.String("failure_reason", event.FailureReason))
	}
	for k, v := range event.Details {
		fields = append(fields, zap.String("detail_"+k, v))
	}

	if event.Success {
		l.zapLog.Info("audit event", fields...)
	} else {
		l.zapLog.Warn("audit event", fields...)
	}
}

// Log records event according to the destination configured for its category.
func (l *Logger) Log(ctx context.Context, event audit.Event) {
	if l == nil {
		return
	}
	dest := l.destination(event.Category)
	if dest == DestOff {
		return
	}
	if dest == DestAll || dest == DestLog {
		l.logToZap(event)
	}
	if (dest == DestAll || dest == DestDB) && l.store != nil {
		if err := l.store.Log(ctx, event); err != nil {
			l.zapLog.Error("failed to store audit event",
				zap.Error(err),
				zap.String("event_type", event.EventType),
			)
		}
	}
}

func fromRequest(r *http.Request, e audit.Event) audit.Event {
	if r != nil {
		e.IP = network.ClientIP(r)
		e.UserAgent = network.UserAgent(r)
	}
	return e
}

func objectID(hex string) *primitive.ObjectID {
	if oid, err := primitive.ObjectIDFromHex(hex); err == nil {
		return &oid
	}
	return nil
}

// --- Authentication Events ---

// LoginSuccess logs a successful sign-in.
func (l *Logger) LoginSuccess(ctx context.Context, r *http.Request, userID primitive.ObjectID, loginID string) {
	l.Log(ctx, fromRequest(r, audit.Event{
		Category:  audit.CategoryAuth,
		EventType: audit.EventLoginSuccess,
		UserID:    &userID,
		Success:   true,
		Details:   map[string]string{"login_id": loginID},
	}))
}

// LoginFailedUserNotFound logs a sign-in for an unknown login ID.
func (l *Logger) LoginFailedUserNotFound(ctx context.Context, r *http.Request, attemptedLoginID string) {
	l.Log(ctx, fromRequest(r, audit.Event{
		Category:      audit.CategoryAuth,
		EventType:     audit.EventLoginFailedUserNotFound,
		FailureReason: "user not found",
		Details:       map[string]string{"attempted_login_id": attemptedLoginID},
	}))
}

// LoginFailedWrongPassword logs a sign-in with a wrong password.
func (l *Logger) LoginFailedWrongPassword(ctx context.Context, r *http.Request, userID primitive.ObjectID, loginID string) {
	l.Log(ctx, fromRequest(r, audit.Event{
		Category:      audit.CategoryAuth,
		EventType:     audit.EventLoginFailedWrongPassword,
		UserID:        &userID,
		FailureReason: "wrong password",
		Details:       map[string]string{"login_id": loginID},
	}))
}

// LoginFailedUserDisabled logs a sign-in by a disabled operator.
func (l *Logger) LoginFailedUserDisabled(ctx context.Context, r *http.Request, userID primitive.ObjectID, loginID string) {
	l.Log(ctx, fromRequest(r, audit.Event{
		Category:      audit.CategoryAuth,
		EventType:     audit.EventLoginFailedUserDisabled,
		UserID:        &userID,
		FailureReason: "user disabled",
		Details:       map[string]string{"login_id": loginID},
	}))
}

// LoginLockedOut logs a sign-in refused because of too many failures.
func (l *Logger) LoginLockedOut(ctx context.Context, r *http.Request, loginID string, until time.Time) {
	l.Log(ctx, fromRequest(r, audit.Event{
		Category:      audit.CategoryAuth,
		EventType:     audit.EventLoginLockedOut,
		FailureReason: "locked out",
		Details: map[string]string{
			"login_id":     loginID,
			"locked_until": until.UTC().Format(time.RFC3339),
		},
	}))
}

// Logout logs a sign-out. userID is the session's hex ID.
func (l *Logger) Logout(ctx context.Context, r *http.Request, userID string) {
	l.Log(ctx, fromRequest(r, audit.Event{
		Category:  audit.CategoryAuth,
		EventType: audit.EventLogout,
		UserID:    objectID(userID),
		Success:   true,
	}))
}

// --- Operator Account Events ---

func (l *Logger) operator(ctx context.Context, r *http.Request, eventType, actorID string, userID primitive.ObjectID, loginID string) {
	l.Log(ctx, fromRequest(r, audit.Event{
		Category:  audit.CategoryOperator,
		EventType: eventType,
		ActorID:   objectID(actorID),
		UserID:    &userID,
		Success:   true,
		Details:   map[string]string{"login_id": loginID},
	}))
}

// OperatorCreated logs an admin adding an operator account.
func (l *Logger) OperatorCreated(ctx context.Context, r *http.Request, actorID string, userID primitive.ObjectID, loginID, role string) {
	l.Log(ctx, fromRequest(r, audit.Event{
		Category:  audit.CategoryOperator,
		EventType: audit.EventOperatorCreated,
		ActorID:   objectID(actorID),
		UserID:    &userID,
		Success:   true,
		Details:   map[string]string{"login_id": loginID, "role": role},
	}))
}

// OperatorDisabled logs an account being switched off.
func (l *Logger) OperatorDisabled(ctx context.Context, r *http.Request, actorID string, userID primitive.ObjectID, loginID string) {
	l.operator(ctx, r, audit.EventOperatorDisabled, actorID, userID, loginID)
}

// OperatorEnabled logs an account being switched back on.
func (l *Logger) OperatorEnabled(ctx context.Context, r *http.Request, actorID string, userID primitive.ObjectID, loginID string) {
	l.operator(ctx, r, audit.EventOperatorEnabled, actorID, userID, loginID)
}

// OperatorPasswordReset logs an admin setting another operator's password.
func (l *Logger) OperatorPasswordReset(ctx context.Context, r *http.Request, actorID string, userID primitive.ObjectID, loginID string) {
	l.operator(ctx, r, audit.EventOperatorPasswordReset, actorID, userID, loginID)
}

// PasswordChanged logs an operator changing their own password.
func (l *Logger) PasswordChanged(ctx context.Context, r *http.Request, userID primitive.ObjectID, loginID string) {
	l.operator(ctx, r, audit.EventPasswordChanged, userID.Hex(), userID, loginID)
}

// --- Member Events ---

func (l *Logger) member(ctx context.Context, r *http.Request, eventType, actorID string, memberID primitive.ObjectID, details map[string]string) {
	l.Log(ctx, fromRequest(r, audit.Event{
		Category:  audit.CategoryMember,
		EventType: eventType,
		ActorID:   objectID(actorID),
		MemberID:  &memberID,
		Success:   true,
		Details:   details,
	}))
}

// MemberCreated logs a new member record.
func (l *Logger) MemberCreated(ctx context.Context, r *http.Request, actorID string, memberID primitive.ObjectID, name string) {
	l.member(ctx, r, audit.EventMemberCreated, actorID, memberID, map[string]string{"name": name})
}

// MemberUpdated logs an edit; fields lists the form fields that changed.
func (l *Logger) MemberUpdated(ctx context.Context, r *http.Request, actorID string, memberID primitive.ObjectID, name string, fields []string) {
	l.member(ctx, r, audit.EventMemberUpdated, actorID, memberID, map[string]string{
		"name":   name,
		"fields": strings.Join(fields, ","),
	})
}

// MemberDeleted logs a removed member record.
func (l *Logger) MemberDeleted(ctx context.Context, r *http.Request, actorID string, memberID primitive.ObjectID, name string) {
	l.member(ctx, r, audit.EventMemberDeleted, actorID, memberID, map[string]string{"name": name})
}

// --- Maintenance Events ---

// BatchEnqueued logs an operator starting a maintenance batch.
func (l *Logger) BatchEnqueued(ctx context.Context, r *http.Request, actorID string, jobID primitive.ObjectID, batch string) {
	l.Log(ctx, fromRequest(r, audit.Event{
		Category:  audit.CategoryMaintenance,
		EventType: audit.EventBatchEnqueued,
		ActorID:   objectID(actorID),
		JobID:     &jobID,
		Success:   true,
		Details:   map[string]string{"batch": batch},
	}))
}

// BatchFinished logs the tally of a maintenance batch. A batch with failed
// records is logged as unsuccessful.
func (l *Logger) BatchFinished(ctx context.Context, jobID primitive.ObjectID, batch string, total, changed, failed int, runErr error) {
	e := audit.Event{
		Category:  audit.CategoryMaintenance,
		EventType: audit.EventBatchFinished,
		JobID:     &jobID,
		Success:   failed == 0 && runErr == nil,
		Details: map[string]string{
			"batch":   batch,
			"total":   strconv.Itoa(total),
			"changed": strconv.Itoa(changed),
			"failed":  strconv.Itoa(failed),
		},
	}
	if runErr != nil {
		e.FailureReason = runErr.Error()
	}
	l.Log(ctx, e)
}
