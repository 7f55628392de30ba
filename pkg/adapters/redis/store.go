// Package redis provides a GraphStore and a distributed WorkspaceLocker
// backed by Redis, for multi-instance serve deployments.
package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	backend "github.com/redis/go-redis/v9"

	"github.com/aretw0/arbor/pkg/domain"
)

// Store implements ports.GraphStore using Redis. Graphs are stored as JSON
// values with an accompanying ZSET index for listing.
type Store struct {
	client *backend.Client
	prefix string
	ttl    time.Duration
}

type Option func(*Store)

// WithTTL sets an expiration on workspace records. Zero means no expiry.
func WithTTL(ttl time.Duration) Option {
	return func(s *Store) {
		s.ttl = ttl
	}
}

// WithPrefix sets the key prefix for workspace records.
func WithPrefix(prefix string) Option {
	return func(s *Store) {
		s.prefix = prefix
	}
}

// New creates a Redis store with its own client.
func New(address, password string, db int, opts ...Option) *Store {
	rdb := backend.NewClient(&backend.Options{
		Addr:     address,
		Password: password,
		DB:       db,
	})
	return NewFromClient(rdb, opts...)
}

// NewFromClient creates a Redis store from an existing client.
func NewFromClient(client *backend.Client, opts ...Option) *Store {
	store := &Store{
		client: client,
		prefix: "arbor:workspace:",
		ttl:    0,
	}
	for _, opt := range opts {
		opt(store)
	}
	return store
}

func (s *Store) key(workspaceID string) string {
	return s.prefix + workspaceID
}

func (s *Store) indexKey() string {
	return s.prefix + "index"
}

// Write persists the graph as JSON and records the id in the index ZSET.
func (s *Store) Write(ctx context.Context, workspaceID string, g *domain.Graph) error {
	data, err := json.Marshal(g)
	if err != nil {
		return fmt.Errorf("failed to marshal graph: %w", err)
	}

	pipe := s.client.Pipeline()
	pipe.Set(ctx, s.key(workspaceID), data, s.ttl)

	// Index score is the expiry time so List can prune lazily. Records
	// without TTL get a far-future score.
	score := float64(time.Now().Add(s.ttl).Unix())
	if s.ttl == 0 {
		score = 4102444800 // 2100-01-01
	}
	pipe.ZAdd(ctx, s.indexKey(), backend.Z{
		Score:  score,
		Member: workspaceID,
	})

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to save to redis: %w", err)
	}
	return nil
}

// Read retrieves and decodes the graph.
func (s *Store) Read(ctx context.Context, workspaceID string) (*domain.Graph, error) {
	val, err := s.client.Get(ctx, s.key(workspaceID)).Result()
	if err != nil {
		if err == backend.Nil {
			return nil, domain.ErrWorkspaceNotFound
		}
		return nil, fmt.Errorf("failed to get from redis: %w", err)
	}

	var g domain.Graph
	if err := json.Unmarshal([]byte(val), &g); err != nil {
		return nil, fmt.Errorf("workspace %s: %v: %w", workspaceID, err, domain.ErrGraphCorrupted)
	}
	if g.Nodes == nil {
		return nil, fmt.Errorf("workspace %s has no node table: %w", workspaceID, domain.ErrGraphCorrupted)
	}
	return &g, nil
}

// Delete removes the workspace record and its index entry.
func (s *Store) Delete(ctx context.Context, workspaceID string) error {
	pipe := s.client.Pipeline()
	pipe.Del(ctx, s.key(workspaceID))
	pipe.ZRem(ctx, s.indexKey(), workspaceID)
	_, err := pipe.Exec(ctx)
	return err
}

// List returns the known workspace ids, pruning expired index entries.
func (s *Store) List(ctx context.Context) ([]string, error) {
	now := float64(time.Now().Unix())
	if err := s.client.ZRemRangeByScore(ctx, s.indexKey(), "-inf", fmt.Sprintf("%f", now)).Err(); err != nil {
		return nil, fmt.Errorf("failed to prune expired workspaces: %w", err)
	}

	ids, err := s.client.ZRange(ctx, s.indexKey(), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list workspaces: %w", err)
	}
	return ids, nil
}

// Close closes the redis client.
func (s *Store) Close() error {
	return s.client.Close()
}
