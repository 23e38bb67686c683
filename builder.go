package authcore

import (
	"errors"

	"github.com/redis/go-redis/v9"

	"github.com/hogarcare/authcore/internal"
	"github.com/hogarcare/authcore/internal/audit"
	"github.com/hogarcare/authcore/internal/stores"
	"github.com/hogarcare/authcore/jwt"
	"github.com/hogarcare/authcore/password"
)

// Builder assembles an [Engine]. Use [New], chain the With* methods, and
// call [Builder.Build] once.
type Builder struct {
	config Config
	redis  *redis.Client

	creds      CredentialStore
	recovery   RecoveryTokenStore
	auditStore stores.AuditStore
	notifier   NotificationSender
	auditSink  AuditSink

	metricsEnabled bool

	built bool
}

// New returns a builder seeded with default configuration.
func New() *Builder {
	return &Builder{
		config:         defaultConfig(),
		metricsEnabled: true,
	}
}

// WithConfig replaces the configuration. Zero-value fields are filled
// from defaults during Build.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cfg
	return b
}

// WithRedis supplies a Redis client. Build derives the recovery token
// store and the audit store from it unless explicit stores are set.
func (b *Builder) WithRedis(client *redis.Client) *Builder {
	b.redis = client
	return b
}

// WithCredentialStore supplies the application's account backend.
// Required.
func (b *Builder) WithCredentialStore(cs CredentialStore) *Builder {
	b.creds = cs
	return b
}

// WithRecoveryStore overrides the Redis-derived recovery token store.
func (b *Builder) WithRecoveryStore(rs RecoveryTokenStore) *Builder {
	b.recovery = rs
	return b
}

// WithAuditStore overrides the Redis-derived audit store.
func (b *Builder) WithAuditStore(as AuditStore) *Builder {
	b.auditStore = as
	return b
}

// WithNotificationSender supplies the transactional message channel used
// for recovery tokens and backup-code delivery. Optional; without it
// those deliveries are skipped with a log warning.
func (b *Builder) WithNotificationSender(ns NotificationSender) *Builder {
	b.notifier = ns
	return b
}

// WithAuditSink adds an extra sink that receives every audit record in
// addition to the audit store.
func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.auditSink = sink
	return b
}

// WithMetricsEnabled toggles counter collection. Enabled by default.
func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.metricsEnabled = enabled
	return b
}

// Build validates the configuration, wires the stores and returns a
// ready Engine. The builder cannot be reused.
func (b *Builder) Build() (*Engine, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}

	cfg := mergeConfig(b.config)
	if err := validateConfig(cfg); err != nil {
		return nil, err
	}

	if b.creds == nil {
		return nil, errors.New("credential store required")
	}

	recovery := b.recovery
	if recovery == nil && b.redis != nil {
		recovery = stores.NewRecoveryStore(b.redis, cfg.Recovery.RedisPrefix)
	}

	auditStore := b.auditStore
	if auditStore == nil && b.redis != nil {
		auditStore = stores.NewRedisAuditStore(b.redis, cfg.Audit.RedisPrefix, cfg.Audit.MaxRecords)
	}

	hasher, err := password.NewHasher(cfg.Password)
	if err != nil {
		return nil, err
	}

	tokens, err := jwt.NewManager(jwt.Config{
		AccessTTL:     cfg.Token.AccessTTL,
		PendingTTL:    cfg.Token.PendingTTL,
		SigningMethod: cfg.Token.SigningMethod,
		PrivateKey:    cfg.Token.PrivateKey,
		PublicKey:     cfg.Token.PublicKey,
		Issuer:        cfg.Token.Issuer,
		Audience:      cfg.Token.Audience,
		Leeway:        cfg.Token.Leeway,
	})
	if err != nil {
		return nil, err
	}

	e := &Engine{
		config:       cfg,
		creds:        b.creds,
		recovery:     recovery,
		auditStore:   auditStore,
		notifier:     b.notifier,
		metrics:      newMetrics(b.metricsEnabled),
		passwordHash: hasher,
		totp:         newTOTPManager(cfg.TOTP),
		tokens:       tokens,
	}

	// Hashing a throwaway password keeps the unknown-email path as
	// expensive as the known-email one.
	filler, err := internal.NewRecoveryToken(24)
	if err != nil {
		return nil, err
	}
	dummy, err := hasher.Hash(filler)
	if err != nil {
		return nil, err
	}
	e.dummyHash = dummy

	sinks := make([]AuditSink, 0, 2)
	if auditStore != nil {
		sinks = append(sinks, audit.NewStoreSink(auditStore, func(err error) {
			e.warn("audit append failed: %v", err)
		}))
	}
	if b.auditSink != nil {
		sinks = append(sinks, b.auditSink)
	}

	if len(sinks) > 0 {
		var sink AuditSink
		if len(sinks) == 1 {
			sink = sinks[0]
		} else {
			sink = audit.MultiSink(sinks)
		}
		dispatchCfg := cfg.Audit.dispatcherConfig()
		dispatchCfg.OnDrop = func() { e.metricInc(MetricAuditDropped) }
		e.audit = audit.NewDispatcher(dispatchCfg, sink)
	}

	b.built = true
	return e, nil
}
