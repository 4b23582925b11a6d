package query

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/MohammadH3218/encryptgate-copilot/pkg/ai"
	"github.com/MohammadH3218/encryptgate-copilot/pkg/common"

	"github.com/redis/go-redis/v9"

	gonanoid "github.com/matoous/go-nanoid/v2"
)

// answerTTL is how long a cached (question, context) answer stays valid.
const answerTTL = 60 * time.Second

// Session is the per-investigation state: conversation history and focus
// bookkeeping. Sessions are independent; there is no cross-session sharing.
type Session struct {
	ID        string           `json:"id"`
	History   []ai.ChatMessage `json:"history,omitempty"`
	Focus     string           `json:"focus,omitempty"`
	CreatedAt time.Time        `json:"created_at"`
	UpdatedAt time.Time        `json:"updated_at"`
}

// SessionStore keeps per-session state, the short-lived answer cache, and
// the community snapshot produced by the worker's rebuild cycle.
type SessionStore interface {
	Get(ctx context.Context, id string) (*Session, error)
	Save(ctx context.Context, session *Session) error

	CachedAnswer(ctx context.Context, sessionID, key string) (string, bool)
	CacheAnswer(ctx context.Context, sessionID, key, answer string) error

	SaveCommunities(ctx context.Context, communities []common.Community) error
	Communities(ctx context.Context) ([]common.Community, error)
}

// CacheKey derives the answer-cache key from a question and its optional
// message context.
func CacheKey(question string, qctx *TranslationContext) string {
	h := sha256.New()
	h.Write([]byte(question))
	if qctx != nil {
		h.Write([]byte{0})
		h.Write([]byte(qctx.MessageID))
		h.Write([]byte{0})
		h.Write([]byte(qctx.Sender))
		h.Write([]byte{0})
		h.Write([]byte(strings.Join(qctx.Recipients, ",")))
	}
	return hex.EncodeToString(h.Sum(nil))
}

// NewSessionID returns a fresh opaque session identifier.
func NewSessionID() (string, error) {
	return gonanoid.New()
}

type cacheEntry struct {
	answer  string
	expires time.Time
}

// MemorySessionStore is the in-process SessionStore used in tests and
// single-node deployments.
type MemorySessionStore struct {
	mu          sync.Mutex
	sessions    map[string]*Session
	cache       map[string]cacheEntry
	communities []common.Community

	// now is swappable for TTL tests.
	now func() time.Time
}

// NewMemorySessionStore creates an empty in-process store.
func NewMemorySessionStore() *MemorySessionStore {
	return &MemorySessionStore{
		sessions: make(map[string]*Session),
		cache:    make(map[string]cacheEntry),
		now:      time.Now,
	}
}

// Get returns the session with the given ID, creating it when absent.
func (s *MemorySessionStore) Get(_ context.Context, id string) (*Session, error) {
	if id == "" {
		return nil, errors.New("session ID is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if session, ok := s.sessions[id]; ok {
		copy := *session
		return &copy, nil
	}

	now := s.now()
	session := &Session{ID: id, CreatedAt: now, UpdatedAt: now}
	s.sessions[id] = session
	copy := *session
	return &copy, nil
}

func (s *MemorySessionStore) Save(_ context.Context, session *Session) error {
	if session == nil || session.ID == "" {
		return errors.New("session ID is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	stored := *session
	stored.UpdatedAt = s.now()
	s.sessions[session.ID] = &stored
	return nil
}

func (s *MemorySessionStore) CachedAnswer(_ context.Context, sessionID, key string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.cache[sessionID+"\x00"+key]
	if !ok || s.now().After(entry.expires) {
		return "", false
	}
	return entry.answer, true
}

func (s *MemorySessionStore) CacheAnswer(_ context.Context, sessionID, key, answer string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.cache[sessionID+"\x00"+key] = cacheEntry{
		answer:  answer,
		expires: s.now().Add(answerTTL),
	}
	return nil
}

func (s *MemorySessionStore) SaveCommunities(_ context.Context, communities []common.Community) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.communities = append([]common.Community(nil), communities...)
	return nil
}

func (s *MemorySessionStore) Communities(_ context.Context) ([]common.Community, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return append([]common.Community(nil), s.communities...), nil
}

const (
	redisSessionPrefix  = "copilot:session:"
	redisCachePrefix    = "copilot:cache:"
	redisCommunitiesKey = "copilot:communities"

	// Idle sessions expire after a day.
	redisSessionTTL = 24 * time.Hour
)

// RedisSessionStore is the SessionStore for multi-node deployments, sharing
// sessions and the community snapshot between the worker and the API
// server.
type RedisSessionStore struct {
	client *redis.Client
}

// NewRedisSessionStore creates a SessionStore on the given Redis client.
func NewRedisSessionStore(client *redis.Client) *RedisSessionStore {
	return &RedisSessionStore{client: client}
}

func (s *RedisSessionStore) Get(ctx context.Context, id string) (*Session, error) {
	if id == "" {
		return nil, errors.New("session ID is required")
	}

	raw, err := s.client.Get(ctx, redisSessionPrefix+id).Bytes()
	if errors.Is(err, redis.Nil) {
		now := time.Now()
		return &Session{ID: id, CreatedAt: now, UpdatedAt: now}, nil
	}
	if err != nil {
		return nil, err
	}

	var session Session
	if err := json.Unmarshal(raw, &session); err != nil {
		return nil, err
	}
	return &session, nil
}

func (s *RedisSessionStore) Save(ctx context.Context, session *Session) error {
	if session == nil || session.ID == "" {
		return errors.New("session ID is required")
	}

	session.UpdatedAt = time.Now()
	raw, err := json.Marshal(session)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, redisSessionPrefix+session.ID, raw, redisSessionTTL).Err()
}

func (s *RedisSessionStore) CachedAnswer(ctx context.Context, sessionID, key string) (string, bool) {
	answer, err := s.client.Get(ctx, redisCachePrefix+sessionID+":"+key).Result()
	if err != nil {
		return "", false
	}
	return answer, true
}

func (s *RedisSessionStore) CacheAnswer(ctx context.Context, sessionID, key, answer string) error {
	return s.client.Set(ctx, redisCachePrefix+sessionID+":"+key, answer, answerTTL).Err()
}

func (s *RedisSessionStore) SaveCommunities(ctx context.Context, communities []common.Community) error {
	raw, err := json.Marshal(communities)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, redisCommunitiesKey, raw, 0).Err()
}

func (s *RedisSessionStore) Communities(ctx context.Context) ([]common.Community, error) {
	raw, err := s.client.Get(ctx, redisCommunitiesKey).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var communities []common.Community
	if err := json.Unmarshal(raw, &communities); err != nil {
		return nil, err
	}
	return communities, nil
}
