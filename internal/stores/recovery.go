package stores

import (
	"bytes"
	"context"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	recoveryKeyPrefix      = "prt"
	recoveryRecordVersion1 = 1
)

var (
	ErrRecoveryNotFound    = errors.New("recovery token not found")
	ErrRecoveryUnavailable = errors.New("recovery redis unavailable")
)

type recoveryRecord struct {
	AccountID string
	ExpiresAt int64
}

// RecoveryStore keeps one active password-recovery token per account in
// Redis. Tokens are stored under their SHA-256 hash; the plaintext never
// reaches Redis. A per-account pointer lets a newly issued token
// supersede the previous one.
type RecoveryStore struct {
	redis  *redis.Client
	prefix string
}

func NewRecoveryStore(redisClient *redis.Client, prefix string) *RecoveryStore {
	if prefix == "" {
		prefix = recoveryKeyPrefix
	}
	return &RecoveryStore{
		redis:  redisClient,
		prefix: prefix,
	}
}

func (s *RecoveryStore) tokenKey(tokenHash [32]byte) string {
	return s.prefix + ":t:" + hex.EncodeToString(tokenHash[:])
}

func (s *RecoveryStore) accountKey(accountID string) string {
	return s.prefix + ":a:" + accountID
}

// Create stores a new token record and deletes the account's previous
// active token, if any.
func (s *RecoveryStore) Create(ctx context.Context, accountID string, tokenHash [32]byte, expiresAt time.Time) error {
	ttl := time.Until(expiresAt)
	if ttl <= 0 {
		return errors.New("recovery token already expired")
	}

	prev, err := s.redis.Get(ctx, s.accountKey(accountID)).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("%w: %v", ErrRecoveryUnavailable, err)
	}
	if prev != "" {
		if err := s.redis.Del(ctx, s.prefix+":t:"+prev).Err(); err != nil {
			return fmt.Errorf("%w: %v", ErrRecoveryUnavailable, err)
		}
	}

	encoded, err := encodeRecoveryRecord(&recoveryRecord{
		AccountID: accountID,
		ExpiresAt: expiresAt.Unix(),
	})
	if err != nil {
		return err
	}

	if err := s.redis.Set(ctx, s.tokenKey(tokenHash), encoded, ttl).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrRecoveryUnavailable, err)
	}
	if err := s.redis.Set(ctx, s.accountKey(accountID), hex.EncodeToString(tokenHash[:]), ttl).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrRecoveryUnavailable, err)
	}
	return nil
}

// Claim atomically consumes the token and returns the owning account id
// together with the token's original expiry. GETDEL guarantees that two
// concurrent redemptions of the same token yield exactly one success;
// the loser sees ErrRecoveryNotFound.
func (s *RecoveryStore) Claim(ctx context.Context, tokenHash [32]byte) (string, time.Time, error) {
	data, err := s.redis.GetDel(ctx, s.tokenKey(tokenHash)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", time.Time{}, ErrRecoveryNotFound
		}
		return "", time.Time{}, fmt.Errorf("%w: %v", ErrRecoveryUnavailable, err)
	}

	record, err := decodeRecoveryRecord(data)
	if err != nil {
		return "", time.Time{}, err
	}
	if time.Now().Unix() > record.ExpiresAt {
		return "", time.Time{}, ErrRecoveryNotFound
	}

	// The pointer only exists to supersede; losing this delete leaves a
	// dangling key that expires with its TTL.
	_ = s.redis.Del(ctx, s.accountKey(record.AccountID)).Err()

	return record.AccountID, time.Unix(record.ExpiresAt, 0), nil
}

func encodeRecoveryRecord(record *recoveryRecord) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte(recoveryRecordVersion1)

	if err := binary.Write(&buf, binary.BigEndian, record.ExpiresAt); err != nil {
		return nil, err
	}
	if len(record.AccountID) > 65535 {
		return nil, errors.New("recovery record account id too long")
	}
	if err := binary.Write(&buf, binary.BigEndian, uint16(len(record.AccountID))); err != nil {
		return nil, err
	}
	buf.WriteString(record.AccountID)

	return buf.Bytes(), nil
}

func decodeRecoveryRecord(data []byte) (*recoveryRecord, error) {
	reader := bytes.NewReader(data)

	version, err := reader.ReadByte()
	if err != nil {
		return nil, err
	}
	if version != recoveryRecordVersion1 {
		return nil, errors.New("invalid recovery record version")
	}

	record := &recoveryRecord{}
	if err := binary.Read(reader, binary.BigEndian, &record.ExpiresAt); err != nil {
		return nil, err
	}

	var idLen uint16
	if err := binary.Read(reader, binary.BigEndian, &idLen); err != nil {
		return nil, err
	}
	id := make([]byte, idLen)
	if _, err := io.ReadFull(reader, id); err != nil {
		return nil, err
	}
	record.AccountID = string(id)

	return record, nil
}
