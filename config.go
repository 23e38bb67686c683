package authcore

import (
	"errors"
	"fmt"
	"time"

	"github.com/hogarcare/authcore/internal/audit"
	"github.com/hogarcare/authcore/jwt"
	"github.com/hogarcare/authcore/password"
)

// Config is the engine configuration. Zero-value fields are filled from
// defaults in [Builder.Build]; explicit values are validated and used
// as-is.
type Config struct {
	Token    TokenConfig
	TOTP     TOTPConfig
	Recovery RecoveryConfig
	Password password.Config
	Audit    AuditConfig
}

// TokenConfig feeds the [jwt.Manager]; see that package for key and
// method semantics.
type TokenConfig struct {
	AccessTTL     time.Duration
	PendingTTL    time.Duration
	SigningMethod jwt.SigningMethod
	PrivateKey    []byte
	PublicKey     []byte
	Issuer        string
	Audience      string
	Leeway        time.Duration
}

// TOTPConfig controls second-factor code generation and verification.
type TOTPConfig struct {
	// Issuer is embedded in provisioning URIs so authenticator apps can
	// label the account.
	Issuer string

	Digits    int
	Period    time.Duration
	Algorithm TOTPAlgorithm

	// Skew is the number of adjacent time steps accepted on either side
	// of the current one.
	Skew int

	BackupCodeCount  int
	BackupCodeLength int
}

// TOTPAlgorithm selects the HMAC hash for code derivation.
type TOTPAlgorithm string

const (
	TOTPSHA1   TOTPAlgorithm = "SHA1"
	TOTPSHA256 TOTPAlgorithm = "SHA256"
	TOTPSHA512 TOTPAlgorithm = "SHA512"
)

// RecoveryConfig controls the password-recovery flow.
type RecoveryConfig struct {
	TokenLength int
	TTL         time.Duration

	// RedisPrefix namespaces recovery keys when the store is built via
	// [Builder.WithRedis].
	RedisPrefix string

	// NotificationTemplate is the template ID passed to the
	// [NotificationSender] for recovery messages.
	NotificationTemplate string
}

// AuditConfig controls the async audit pipeline. The zero value enables
// auditing with drop-if-full buffering.
type AuditConfig struct {
	// Disabled turns the dispatcher off entirely; no records are emitted.
	Disabled   bool
	BufferSize int

	// BlockIfFull makes emitters wait for buffer space instead of
	// dropping the record. Blocking honors the caller's context.
	BlockIfFull bool

	// RedisPrefix namespaces the audit log when the store is built via
	// [Builder.WithRedis].
	RedisPrefix string

	// MaxRecords caps Redis-backed retention; 0 means unbounded.
	MaxRecords int
}

func defaultConfig() Config {
	return Config{
		Token: TokenConfig{
			AccessTTL:     15 * time.Minute,
			PendingTTL:    5 * time.Minute,
			SigningMethod: jwt.MethodEd25519,
			Leeway:        30 * time.Second,
		},
		TOTP: TOTPConfig{
			Issuer:           "authcore",
			Digits:           6,
			Period:           30 * time.Second,
			Algorithm:        TOTPSHA1,
			Skew:             1,
			BackupCodeCount:  10,
			BackupCodeLength: 8,
		},
		Recovery: RecoveryConfig{
			TokenLength:          18,
			TTL:                  2 * time.Hour,
			RedisPrefix:          "prt",
			NotificationTemplate: "password-recovery",
		},
		Audit: AuditConfig{
			BufferSize:  1024,
			RedisPrefix: "adt",
		},
		Password: password.Config{
			Memory:      64 * 1024,
			Time:        3,
			Parallelism: 2,
			SaltLength:  16,
			KeyLength:   32,
		},
	}
}

// mergeConfig fills zero-value fields of c from defaults.
func mergeConfig(c Config) Config {
	d := defaultConfig()

	if c.Token.AccessTTL == 0 {
		c.Token.AccessTTL = d.Token.AccessTTL
	}
	if c.Token.PendingTTL == 0 {
		c.Token.PendingTTL = d.Token.PendingTTL
	}
	if c.Token.SigningMethod == "" {
		c.Token.SigningMethod = d.Token.SigningMethod
	}
	if c.Token.Leeway == 0 {
		c.Token.Leeway = d.Token.Leeway
	}

	if c.TOTP.Issuer == "" {
		c.TOTP.Issuer = d.TOTP.Issuer
	}
	if c.TOTP.Digits == 0 {
		c.TOTP.Digits = d.TOTP.Digits
	}
	if c.TOTP.Period == 0 {
		c.TOTP.Period = d.TOTP.Period
	}
	if c.TOTP.Algorithm == "" {
		c.TOTP.Algorithm = d.TOTP.Algorithm
	}
	if c.TOTP.Skew == 0 {
		c.TOTP.Skew = d.TOTP.Skew
	}
	if c.TOTP.BackupCodeCount == 0 {
		c.TOTP.BackupCodeCount = d.TOTP.BackupCodeCount
	}
	if c.TOTP.BackupCodeLength == 0 {
		c.TOTP.BackupCodeLength = d.TOTP.BackupCodeLength
	}

	if c.Recovery.TokenLength == 0 {
		c.Recovery.TokenLength = d.Recovery.TokenLength
	}
	if c.Recovery.TTL == 0 {
		c.Recovery.TTL = d.Recovery.TTL
	}
	if c.Recovery.RedisPrefix == "" {
		c.Recovery.RedisPrefix = d.Recovery.RedisPrefix
	}
	if c.Recovery.NotificationTemplate == "" {
		c.Recovery.NotificationTemplate = d.Recovery.NotificationTemplate
	}

	if c.Audit.BufferSize == 0 {
		c.Audit.BufferSize = d.Audit.BufferSize
	}
	if c.Audit.RedisPrefix == "" {
		c.Audit.RedisPrefix = d.Audit.RedisPrefix
	}

	if c.Password.Memory == 0 {
		c.Password.Memory = d.Password.Memory
	}
	if c.Password.Time == 0 {
		c.Password.Time = d.Password.Time
	}
	if c.Password.Parallelism == 0 {
		c.Password.Parallelism = d.Password.Parallelism
	}
	if c.Password.SaltLength == 0 {
		c.Password.SaltLength = d.Password.SaltLength
	}
	if c.Password.KeyLength == 0 {
		c.Password.KeyLength = d.Password.KeyLength
	}

	return c
}

func validateConfig(c Config) error {
	switch c.TOTP.Algorithm {
	case TOTPSHA1, TOTPSHA256, TOTPSHA512:
	default:
		return fmt.Errorf("authcore: unsupported totp algorithm %q", c.TOTP.Algorithm)
	}
	if c.TOTP.Digits < 6 || c.TOTP.Digits > 8 {
		return errors.New("authcore: totp digits must be 6..8")
	}
	if c.TOTP.Period < 15*time.Second || c.TOTP.Period > 2*time.Minute {
		return errors.New("authcore: totp period must be 15s..2m")
	}
	if c.TOTP.Skew < 0 || c.TOTP.Skew > 2 {
		return errors.New("authcore: totp skew must be 0..2")
	}
	if c.TOTP.BackupCodeCount < 1 || c.TOTP.BackupCodeCount > 20 {
		return errors.New("authcore: backup code count must be 1..20")
	}
	if c.TOTP.BackupCodeLength < 6 || c.TOTP.BackupCodeLength > 10 {
		return errors.New("authcore: backup code length must be 6..10")
	}
	// Code kind is dispatched by length at login.
	if c.TOTP.BackupCodeLength == c.TOTP.Digits {
		return errors.New("authcore: backup code length must differ from totp digits")
	}
	if c.Recovery.TokenLength < 12 || c.Recovery.TokenLength > 64 {
		return errors.New("authcore: recovery token length must be 12..64")
	}
	if c.Recovery.TTL < time.Minute || c.Recovery.TTL > 48*time.Hour {
		return errors.New("authcore: recovery ttl must be 1m..48h")
	}
	if !c.Audit.Disabled && c.Audit.BufferSize < 1 {
		return errors.New("authcore: audit buffer size must be positive")
	}
	return nil
}

func (c AuditConfig) dispatcherConfig() audit.Config {
	return audit.Config{
		Enabled:    !c.Disabled,
		BufferSize: c.BufferSize,
		DropIfFull: !c.BlockIfFull,
	}
}
