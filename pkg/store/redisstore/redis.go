package redisstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/flowbaker/vault/pkg/domain"
	"github.com/redis/go-redis/v9"
)

const (
	defaultKeyPrefix = "vault"

	// auditRetention caps each tenant's audit list; older events are trimmed.
	auditRetention = 1000
)

// Store keeps each bundle in a hash and indexes a tenant's integrations in a
// sorted set scored by last update time.
type Store struct {
	client    redis.UniversalClient
	keyPrefix string
	now       func() time.Time
}

type Opts struct {
	KeyPrefix string
}

func New(client redis.UniversalClient, opts Opts) *Store {
	prefix := opts.KeyPrefix
	if prefix == "" {
		prefix = defaultKeyPrefix
	}

	return &Store{
		client:    client,
		keyPrefix: prefix,
		now:       time.Now,
	}
}

func (s *Store) bundleKey(tenantID string, integrationID domain.IntegrationType) string {
	return fmt.Sprintf("%s:bundle:%s:%s", s.keyPrefix, tenantID, integrationID)
}

func (s *Store) tenantKey(tenantID string) string {
	return fmt.Sprintf("%s:tenant:%s", s.keyPrefix, tenantID)
}

func (s *Store) auditKey(tenantID string) string {
	return fmt.Sprintf("%s:audit:%s", s.keyPrefix, tenantID)
}

func (s *Store) Get(ctx context.Context, tenantID string, integrationID domain.IntegrationType) (domain.CredentialBundle, error) {
	fields, err := s.client.HGetAll(ctx, s.bundleKey(tenantID, integrationID)).Result()
	if err != nil {
		return domain.CredentialBundle{}, fmt.Errorf("failed to get credential bundle: %w", err)
	}

	if len(fields) == 0 {
		return domain.CredentialBundle{}, domain.ErrCredentialNotFound
	}

	updatedAt, err := s.updatedAt(ctx, tenantID, integrationID)
	if err != nil {
		return domain.CredentialBundle{}, err
	}

	return domain.CredentialBundle{
		TenantID:      tenantID,
		IntegrationID: integrationID,
		Fields:        fields,
		UpdatedAt:     updatedAt,
	}, nil
}

func (s *Store) List(ctx context.Context, tenantID string) ([]domain.CredentialBundle, error) {
	members, err := s.client.ZRangeWithScores(ctx, s.tenantKey(tenantID), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list tenant integrations: %w", err)
	}

	cmds := make([]*redis.MapStringStringCmd, len(members))
	_, err = s.client.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		for i, member := range members {
			cmds[i] = pipe.HGetAll(ctx, s.bundleKey(tenantID, domain.IntegrationType(memberName(member))))
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to load credential bundles: %w", err)
	}

	bundles := make([]domain.CredentialBundle, 0, len(members))
	for i, member := range members {
		fields := cmds[i].Val()
		if len(fields) == 0 {
			continue
		}

		bundles = append(bundles, domain.CredentialBundle{
			TenantID:      tenantID,
			IntegrationID: domain.IntegrationType(memberName(member)),
			Fields:        fields,
			UpdatedAt:     time.UnixMilli(int64(member.Score)).UTC(),
		})
	}

	sort.Slice(bundles, func(i, j int) bool {
		return bundles[i].IntegrationID < bundles[j].IntegrationID
	})

	return bundles, nil
}

// Upsert relies on HSET only touching the named fields, which gives the
// merge semantics without a read.
func (s *Store) Upsert(ctx context.Context, tenantID string, integrationID domain.IntegrationType, fields map[string]string) error {
	if len(fields) == 0 {
		return nil
	}

	values := make([]any, 0, len(fields)*2)
	for k, v := range fields {
		values = append(values, k, v)
	}

	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, s.bundleKey(tenantID, integrationID), values...)
		pipe.ZAdd(ctx, s.tenantKey(tenantID), redis.Z{
			Score:  float64(s.now().UnixMilli()),
			Member: string(integrationID),
		})
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to upsert credential bundle: %w", err)
	}

	return nil
}

func (s *Store) Delete(ctx context.Context, tenantID string, integrationID domain.IntegrationType) error {
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, s.bundleKey(tenantID, integrationID))
		pipe.ZRem(ctx, s.tenantKey(tenantID), string(integrationID))
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to delete credential bundle: %w", err)
	}

	return nil
}

// RecordAuditEvent pushes the event onto the head of the tenant's list, so
// the list reads newest first.
func (s *Store) RecordAuditEvent(ctx context.Context, event domain.AuditEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to encode audit event: %w", err)
	}

	key := s.auditKey(event.TenantID)

	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.LPush(ctx, key, payload)
		pipe.LTrim(ctx, key, 0, auditRetention-1)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to record audit event: %w", err)
	}

	return nil
}

func (s *Store) ListAuditEvents(ctx context.Context, tenantID string, limit int) ([]domain.AuditEvent, error) {
	raw, err := s.client.LRange(ctx, s.auditKey(tenantID), 0, int64(limit)-1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list audit events: %w", err)
	}

	events := make([]domain.AuditEvent, 0, len(raw))
	for _, item := range raw {
		var event domain.AuditEvent
		if err := json.Unmarshal([]byte(item), &event); err != nil {
			return nil, fmt.Errorf("failed to decode audit event: %w", err)
		}
		events = append(events, event)
	}

	return events, nil
}

// Ping reports whether the server is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func (s *Store) updatedAt(ctx context.Context, tenantID string, integrationID domain.IntegrationType) (time.Time, error) {
	score, err := s.client.ZScore(ctx, s.tenantKey(tenantID), string(integrationID)).Result()
	if errors.Is(err, redis.Nil) {
		return time.Time{}, nil
	}
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to read bundle timestamp: %w", err)
	}

	return time.UnixMilli(int64(score)).UTC(), nil
}

func memberName(z redis.Z) string {
	name, _ := z.Member.(string)
	return name
}
