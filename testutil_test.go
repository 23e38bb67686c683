package authcore

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"encoding/base32"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/hogarcare/authcore/jwt"
	"github.com/hogarcare/authcore/password"
)

var errFakeNotFound = errors.New("account not found")

// fakeCredentialStore is an in-memory CredentialStore for engine tests.
type fakeCredentialStore struct {
	mu       sync.Mutex
	accounts map[string]Account
	factors  map[string]SecondFactorRecord
	backup   map[string][]BackupCodeRecord

	failUpdatePassword     bool
	failReplaceBackupCodes bool
}

func newFakeCredentialStore() *fakeCredentialStore {
	return &fakeCredentialStore{
		accounts: map[string]Account{},
		factors:  map[string]SecondFactorRecord{},
		backup:   map[string][]BackupCodeRecord{},
	}
}

func (f *fakeCredentialStore) addAccount(a Account) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.accounts[a.ID] = a
}

func (f *fakeCredentialStore) GetAccountByEmail(_ context.Context, email string) (Account, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, a := range f.accounts {
		if a.Email == email {
			return a, nil
		}
	}
	return Account{}, errFakeNotFound
}

func (f *fakeCredentialStore) GetAccountByID(_ context.Context, id string) (Account, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.accounts[id]
	if !ok {
		return Account{}, errFakeNotFound
	}
	return a, nil
}

func (f *fakeCredentialStore) UpdatePasswordHash(_ context.Context, id, hash string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failUpdatePassword {
		return errors.New("credential backend down")
	}
	a, ok := f.accounts[id]
	if !ok {
		return errFakeNotFound
	}
	a.PasswordHash = hash
	f.accounts[id] = a
	return nil
}

func (f *fakeCredentialStore) GetSecondFactor(_ context.Context, id string) (*SecondFactorRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.factors[id]
	if !ok {
		return nil, nil
	}
	out := r
	return &out, nil
}

func (f *fakeCredentialStore) SetSecondFactor(_ context.Context, id string, r SecondFactorRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.factors[id] = r
	return nil
}

func (f *fakeCredentialStore) UpdateSecondFactorCounter(_ context.Context, id string, counter int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	r := f.factors[id]
	r.LastUsedCounter = counter
	f.factors[id] = r
	return nil
}

func (f *fakeCredentialStore) ReplaceBackupCodes(_ context.Context, id string, codes []BackupCodeRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failReplaceBackupCodes {
		return errors.New("credential backend down")
	}
	f.backup[id] = codes
	return nil
}

func (f *fakeCredentialStore) ConsumeBackupCode(_ context.Context, id string, hash [32]byte) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	codes := f.backup[id]
	for i, c := range codes {
		if c.Hash == hash {
			f.backup[id] = append(codes[:i], codes[i+1:]...)
			return true, nil
		}
	}
	return false, nil
}

// fakeNotifier records transactional sends.
type fakeNotifier struct {
	mu    sync.Mutex
	sends []fakeSend
	fail  bool
}

type fakeSend struct {
	template  string
	recipient string
	vars      map[string]string
}

func (n *fakeNotifier) SendTransactional(_ context.Context, templateID, recipient string, vars map[string]string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.fail {
		return errors.New("smtp down")
	}
	n.sends = append(n.sends, fakeSend{template: templateID, recipient: recipient, vars: vars})
	return nil
}

func (n *fakeNotifier) last() (fakeSend, bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if len(n.sends) == 0 {
		return fakeSend{}, false
	}
	return n.sends[len(n.sends)-1], true
}

func testTokenConfig(t *testing.T) TokenConfig {
	t.Helper()
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("generate key failed: %v", err)
	}
	return TokenConfig{
		SigningMethod: jwt.MethodEd25519,
		PrivateKey:    priv,
		PublicKey:     pub,
		Issuer:        "authcore-test",
	}
}

// fastPasswordConfig keeps argon2 cheap so tests stay quick.
func fastPasswordConfig() password.Config {
	return password.Config{
		Memory:      8 * 1024,
		Time:        1,
		Parallelism: 1,
		SaltLength:  16,
		KeyLength:   16,
	}
}

type testEnv struct {
	engine   *Engine
	creds    *fakeCredentialStore
	notifier *fakeNotifier
	redis    *miniredis.Miniredis
}

func newTestEngine(t *testing.T, mutate func(*Config)) *testEnv {
	t.Helper()

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	cfg := Config{
		Token:    testTokenConfig(t),
		Password: fastPasswordConfig(),
	}
	if mutate != nil {
		mutate(&cfg)
	}

	creds := newFakeCredentialStore()
	notifier := &fakeNotifier{}

	engine, err := New().
		WithConfig(cfg).
		WithRedis(rdb).
		WithCredentialStore(creds).
		WithNotificationSender(notifier).
		Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	t.Cleanup(engine.Close)

	return &testEnv{engine: engine, creds: creds, notifier: notifier, redis: mr}
}

func (env *testEnv) addUser(t *testing.T, id, email, plain string, active bool) Account {
	t.Helper()
	hash, err := env.engine.passwordHash.Hash(plain)
	if err != nil {
		t.Fatalf("hash failed: %v", err)
	}
	a := Account{
		ID:           id,
		Email:        email,
		Name:         "Test User",
		PasswordHash: hash,
		Role:         "staff",
		Active:       active,
	}
	env.creds.addAccount(a)
	return a
}

// enrollUser walks the full enrollment flow and returns the raw secret
// plus the plaintext backup codes.
func (env *testEnv) enrollUser(t *testing.T, accountID string) ([]byte, []string) {
	t.Helper()
	ctx := context.Background()

	setup, err := env.engine.BeginEnrollment(ctx, accountID)
	if err != nil {
		t.Fatalf("BeginEnrollment failed: %v", err)
	}
	code := codeForOffset(t, setup.SecretBase32, env.engine.config.TOTP, 0)
	backups, err := env.engine.ConfirmEnrollment(ctx, accountID, code)
	if err != nil {
		t.Fatalf("ConfirmEnrollment failed: %v", err)
	}

	secret, err := base32.StdEncoding.WithPadding(base32.NoPadding).DecodeString(strings.ToUpper(setup.SecretBase32))
	if err != nil {
		t.Fatalf("decode secret failed: %v", err)
	}
	return secret, backups
}

// secretBase32 reads the account's stored TOTP secret back out of the
// fake store.
func (env *testEnv) secretBase32(t *testing.T, accountID string) string {
	t.Helper()
	env.creds.mu.Lock()
	defer env.creds.mu.Unlock()
	r, ok := env.creds.factors[accountID]
	if !ok || len(r.Secret) == 0 {
		t.Fatalf("no second factor secret for %s", accountID)
	}
	return base32.StdEncoding.WithPadding(base32.NoPadding).EncodeToString(r.Secret)
}

func (env *testEnv) lastUsedCounter(t *testing.T, accountID string) int64 {
	t.Helper()
	env.creds.mu.Lock()
	defer env.creds.mu.Unlock()
	return env.creds.factors[accountID].LastUsedCounter
}

func codeForCounter(t *testing.T, secretBase32 string, cfg TOTPConfig, counter int64) string {
	t.Helper()
	key, err := base32.StdEncoding.WithPadding(base32.NoPadding).DecodeString(strings.ToUpper(secretBase32))
	if err != nil {
		t.Fatalf("decode secret failed: %v", err)
	}
	code, err := hotpCode(key, counter, cfg.Digits, cfg.Algorithm)
	if err != nil {
		t.Fatalf("hotpCode failed: %v", err)
	}
	return code
}

func codeForOffset(t *testing.T, secretBase32 string, cfg TOTPConfig, offset int64) string {
	t.Helper()
	key, err := base32.StdEncoding.WithPadding(base32.NoPadding).DecodeString(strings.ToUpper(secretBase32))
	if err != nil {
		t.Fatalf("decode secret failed: %v", err)
	}
	counter := time.Now().Unix()/int64(cfg.Period/time.Second) + offset
	code, err := hotpCode(key, counter, cfg.Digits, cfg.Algorithm)
	if err != nil {
		t.Fatalf("hotpCode failed: %v", err)
	}
	return code
}

func waitForAudit(t *testing.T, env *testEnv, match func(AuditRecord) bool) AuditRecord {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		page, err := env.engine.SearchAuditRecords(context.Background(), AuditQuery{Limit: 100})
		if err == nil {
			for _, rec := range page.Records {
				if match(rec) {
					return rec
				}
			}
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("audit record did not arrive in time")
	return AuditRecord{}
}
