package db

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"time"

	"certverify/internal/models"

	"github.com/redis/go-redis/v9"
)

const cacheTTL = 5 * time.Minute

// CachedStore puts a read-through Redis cache in front of the registry and
// student lookups. Authoritative rows are read-only from the pipeline's
// perspective, so a short TTL is safe. Redis being unreachable degrades to
// uncached reads; it never surfaces as a verdict error. The tamper count and
// the log append always go straight to Postgres.
type CachedStore struct {
	inner *Store
	rdb   *redis.Client
}

func NewCachedStore(inner *Store, rdb *redis.Client) *CachedStore {
	return &CachedStore{inner: inner, rdb: rdb}
}

func (c *CachedStore) CertificateByCode(ctx context.Context, code string) (*models.Certificate, error) {
	key := "cert:" + code
	var cached models.Certificate
	if ok := c.get(ctx, key, &cached); ok {
		return &cached, nil
	}
	cert, err := c.inner.CertificateByCode(ctx, code)
	if err == nil && cert != nil {
		c.set(ctx, key, cert)
	}
	return cert, err
}

func (c *CachedStore) RecordByCertificate(ctx context.Context, certificateID uint) (*models.StudentRecord, error) {
	return c.inner.RecordByCertificate(ctx, certificateID)
}

func (c *CachedStore) RecordByRoll(ctx context.Context, roll string) (*models.StudentRecord, error) {
	key := "student:roll:" + roll
	var cached models.StudentRecord
	if ok := c.get(ctx, key, &cached); ok {
		return &cached, nil
	}
	rec, err := c.inner.RecordByRoll(ctx, roll)
	if err == nil && rec != nil {
		c.set(ctx, key, rec)
	}
	return rec, err
}

func (c *CachedStore) CountConflictingAttempts(ctx context.Context, identifier, imageHash string) (int64, error) {
	return c.inner.CountConflictingAttempts(ctx, identifier, imageHash)
}

func (c *CachedStore) AppendAttempt(ctx context.Context, attempt *models.VerificationLog) error {
	return c.inner.AppendAttempt(ctx, attempt)
}

func (c *CachedStore) get(ctx context.Context, key string, out any) bool {
	raw, err := c.rdb.Get(ctx, key).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			log.Println("cache read failed:", err)
		}
		return false
	}
	return json.Unmarshal(raw, out) == nil
}

func (c *CachedStore) set(ctx context.Context, key string, v any) {
	raw, err := json.Marshal(v)
	if err != nil {
		return
	}
	if err := c.rdb.Set(ctx, key, raw, cacheTTL).Err(); err != nil {
		log.Println("cache write failed:", err)
	}
}
