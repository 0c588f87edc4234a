package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/Williamonyango/Scented-muse-Backend/internal/models"
)

// SessionStore holds pending payment intents between STK push initiation
// and the gateway callback, keyed by canonical payer phone number.
//
// Claim is the correlation primitive: it must return the session and
// remove it in one atomic step, so that duplicate callbacks for the same
// payer cannot both observe a live session.
type SessionStore interface {
	// Put stores the session, replacing any prior session for the phone.
	Put(ctx context.Context, phone string, session models.PendingPayment) error
	// Claim atomically retrieves and deletes the session for the phone.
	// Returns (nil, nil) when no live session exists.
	Claim(ctx context.Context, phone string) (*models.PendingPayment, error)
}

const sessionKeyPrefix = "pending_payment:"

// RedisSessionStore keeps sessions in Redis with a per-key TTL. The claim
// uses GETDEL so two concurrent callbacks can never both win.
type RedisSessionStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisSessionStore builds a Redis-backed session store.
func NewRedisSessionStore(client *redis.Client, ttl time.Duration) *RedisSessionStore {
	return &RedisSessionStore{client: client, ttl: ttl}
}

func (s *RedisSessionStore) Put(ctx context.Context, phone string, session models.PendingPayment) error {
	payload, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("marshal pending payment: %w", err)
	}
	if err := s.client.Set(ctx, sessionKeyPrefix+phone, payload, s.ttl).Err(); err != nil {
		return fmt.Errorf("store pending payment: %w", err)
	}
	return nil
}

func (s *RedisSessionStore) Claim(ctx context.Context, phone string) (*models.PendingPayment, error) {
	payload, err := s.client.GetDel(ctx, sessionKeyPrefix+phone).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("claim pending payment: %w", err)
	}

	var session models.PendingPayment
	if err := json.Unmarshal(payload, &session); err != nil {
		return nil, fmt.Errorf("unmarshal pending payment: %w", err)
	}
	return &session, nil
}

type memorySession struct {
	session   models.PendingPayment
	expiresAt time.Time
}

// MemorySessionStore is a process-local session store for development and
// tests. Claims are serialized by the mutex, giving the same
// exactly-once guarantee as the Redis GETDEL path.
type MemorySessionStore struct {
	mu       sync.Mutex
	ttl      time.Duration
	sessions map[string]memorySession
}

// NewMemorySessionStore builds an in-memory session store.
func NewMemorySessionStore(ttl time.Duration) *MemorySessionStore {
	return &MemorySessionStore{
		ttl:      ttl,
		sessions: make(map[string]memorySession),
	}
}

func (s *MemorySessionStore) Put(ctx context.Context, phone string, session models.PendingPayment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[phone] = memorySession{
		session:   session,
		expiresAt: time.Now().Add(s.ttl),
	}
	return nil
}

func (s *MemorySessionStore) Claim(ctx context.Context, phone string) (*models.PendingPayment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.sessions[phone]
	if !ok {
		return nil, nil
	}
	delete(s.sessions, phone)

	if time.Now().After(entry.expiresAt) {
		return nil, nil
	}

	session := entry.session
	return &session, nil
}
