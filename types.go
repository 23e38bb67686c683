package authcore

import (
	"context"
	"io"
	"time"

	"github.com/redis/go-redis/v9"

	internalaudit "github.com/hogarcare/authcore/internal/audit"
	"github.com/hogarcare/authcore/internal/stores"
)

// SecondFactorStatus is the lifecycle state of an account's second
// factor. A pending secret never gates login; only Enabled does.
type SecondFactorStatus uint8

const (
	SecondFactorDisabled SecondFactorStatus = iota
	SecondFactorPending
	SecondFactorEnabled
)

// Account is the credential view of a platform user, supplied by the
// embedding application through [CredentialStore]. The engine never sees
// or stores domain data beyond these fields.
type Account struct {
	ID           string
	Email        string
	Name         string
	PasswordHash string
	Role         string
	Active       bool
}

// SecondFactorRecord holds an account's second-factor material. Secret is
// the raw TOTP key; LastUsedCounter is the highest accepted time-step
// counter, kept for replay protection.
type SecondFactorRecord struct {
	Secret          []byte
	Status          SecondFactorStatus
	LastUsedCounter int64
}

// BackupCodeRecord stores the SHA-256 hash of a single backup code. The
// plaintext is never persisted.
type BackupCodeRecord struct {
	Hash [32]byte
}

// CredentialStore is the interface the embedding application must
// implement to integrate authcore with its user database. Implementations
// must make ConsumeBackupCode atomic: two concurrent calls with the same
// hash remove the code once, and exactly one call reports true.
type CredentialStore interface {
	GetAccountByEmail(ctx context.Context, email string) (Account, error)
	GetAccountByID(ctx context.Context, accountID string) (Account, error)
	UpdatePasswordHash(ctx context.Context, accountID, newHash string) error
	GetSecondFactor(ctx context.Context, accountID string) (*SecondFactorRecord, error)
	SetSecondFactor(ctx context.Context, accountID string, record SecondFactorRecord) error
	UpdateSecondFactorCounter(ctx context.Context, accountID string, counter int64) error
	ReplaceBackupCodes(ctx context.Context, accountID string, codes []BackupCodeRecord) error
	ConsumeBackupCode(ctx context.Context, accountID string, codeHash [32]byte) (bool, error)
}

// RecoveryTokenStore persists password-recovery tokens. Claim must be
// atomic: concurrent redemptions of one token yield exactly one success.
// The default implementation is Redis-backed; see [Builder.WithRedis].
type RecoveryTokenStore interface {
	Create(ctx context.Context, accountID string, tokenHash [32]byte, expiresAt time.Time) error
	Claim(ctx context.Context, tokenHash [32]byte) (accountID string, expiresAt time.Time, err error)
}

// NotificationSender delivers transactional messages (recovery tokens,
// backup codes). Delivery failures are logged by the engine and never
// surfaced to the authentication caller.
type NotificationSender interface {
	SendTransactional(ctx context.Context, templateID, recipient string, vars map[string]string) error
}

// AccountSummary is the caller-facing identity slice returned with a
// completed login.
type AccountSummary struct {
	ID    string
	Email string
	Name  string
	Role  string
}

// LoginResult is returned by [Engine.Login] and
// [Engine.ConfirmSecondFactor]. Either AccessToken is set, or
// RequiresTwoFactor is true and PendingToken carries the challenge.
type LoginResult struct {
	AccessToken string
	Account     *AccountSummary

	RequiresTwoFactor bool
	PendingToken      string
}

// EnrollmentSetup is returned by [Engine.BeginEnrollment]. ProvisioningURI
// is the otpauth:// URI authenticator apps consume; render it as a QR
// code client-side.
type EnrollmentSetup struct {
	SecretBase32    string
	ProvisioningURI string
}

// AuditAction enumerates the action kinds an audit record can carry.
type AuditAction string

const (
	ActionLogin  AuditAction = "login"
	ActionLogout AuditAction = "logout"
	ActionCreate AuditAction = "create"
	ActionUpdate AuditAction = "update"
	ActionDelete AuditAction = "delete"
	ActionView   AuditAction = "view"
	ActionExport AuditAction = "export"
	ActionOther  AuditAction = "other"
)

// AuditRecord is an immutable audit log entry.
type AuditRecord = internalaudit.Event

// AuditSink receives [AuditRecord] values from the engine's dispatcher.
type AuditSink = internalaudit.Sink

// NoOpSink is an [AuditSink] that silently discards all records.
type NoOpSink = internalaudit.NoOpSink

// ChannelSink is a buffered channel-based [AuditSink].
type ChannelSink = internalaudit.ChannelSink

// JSONWriterSink is an [AuditSink] that writes JSON-encoded records to an
// [io.Writer].
type JSONWriterSink = internalaudit.JSONWriterSink

// AuditStore persists audit records and answers history and statistics
// queries.
type AuditStore = stores.AuditStore

// AuditQuery filters audit history; see [Engine.SearchAuditRecords].
type AuditQuery = stores.AuditQuery

// AuditPage is one newest-first page of audit records.
type AuditPage = stores.AuditPage

// AuditStats aggregates the audit log; see [Engine.AuditStatistics].
type AuditStats = stores.AuditStats

// ActorActivity ranks one actor by audit record count.
type ActorActivity = stores.ActorActivity

// NewChannelSink creates a [ChannelSink] with the given buffer capacity.
func NewChannelSink(buffer int) *ChannelSink {
	return internalaudit.NewChannelSink(buffer)
}

// NewJSONWriterSink creates a [JSONWriterSink] that writes to w.
func NewJSONWriterSink(w io.Writer) *JSONWriterSink {
	return internalaudit.NewJSONWriterSink(w)
}

// NewMemoryAuditStore creates an in-process [AuditStore] retaining at
// most max records (max <= 0 means unbounded).
func NewMemoryAuditStore(max int) AuditStore {
	return stores.NewMemoryAuditStore(max)
}

// NewRedisAuditStore creates a Redis-backed [AuditStore] under the given
// key prefix, retaining at most max records (max <= 0 means unbounded).
func NewRedisAuditStore(client *redis.Client, prefix string, max int) AuditStore {
	return stores.NewRedisAuditStore(client, prefix, max)
}
