package schedulestore

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/valkey-io/valkey-go"

	"github.com/yanqian/celcat-feed/internal/domain/schedule"
)

// ValkeyStore is the shared cache tier backed by a Valkey-compatible server.
type ValkeyStore struct {
	client valkey.Client
	prefix string
}

// NewValkeyStore constructs a new store backed by Valkey.
func NewValkeyStore(client valkey.Client, prefix string) *ValkeyStore {
	if prefix == "" {
		prefix = "celcat"
	}
	return &ValkeyStore{client: client, prefix: prefix}
}

func (s *ValkeyStore) GetEntry(ctx context.Context, key string) (schedule.CacheEntry, bool, error) {
	payload, ok, err := s.getString(ctx, s.entryKey(key))
	if err != nil || !ok {
		return schedule.CacheEntry{}, false, err
	}
	var entry schedule.CacheEntry
	if err := json.Unmarshal([]byte(payload), &entry); err != nil {
		return schedule.CacheEntry{}, false, fmt.Errorf("decode cache entry %s: %w", key, err)
	}
	return entry, true, nil
}

func (s *ValkeyStore) SaveEntry(ctx context.Context, entry schedule.CacheEntry, ttl time.Duration) error {
	payload, err := json.Marshal(entry)
	if err != nil {
		return err
	}
	return s.setString(ctx, s.entryKey(entry.GroupKey), string(payload), ttl)
}

func (s *ValkeyStore) GetSignature(ctx context.Context, key string) (string, bool, error) {
	return s.getString(ctx, s.signatureKey(key))
}

func (s *ValkeyStore) SaveSignature(ctx context.Context, key, signature string) error {
	return s.setString(ctx, s.signatureKey(key), signature, 0)
}

func (s *ValkeyStore) getString(ctx context.Context, key string) (string, bool, error) {
	payload, err := s.client.Do(ctx, s.client.B().Get().Key(key).Build()).ToString()
	if err != nil {
		if valkey.IsValkeyNil(err) {
			return "", false, nil
		}
		return "", false, err
	}
	return payload, true, nil
}

func (s *ValkeyStore) setString(ctx context.Context, key, value string, ttl time.Duration) error {
	builder := s.client.B().Set().Key(key).Value(value)
	var cmd valkey.Completed
	if ttl > 0 {
		if ttl < time.Second {
			ttl = time.Second
		}
		cmd = builder.Ex(ttl).Build()
	} else {
		cmd = builder.Build()
	}
	return s.client.Do(ctx, cmd).Error()
}

func (s *ValkeyStore) entryKey(key string) string {
	return fmt.Sprintf("%s:events:%s", s.prefix, key)
}

func (s *ValkeyStore) signatureKey(key string) string {
	return fmt.Sprintf("%s:signature:%s", s.prefix, key)
}

var (
	_ schedule.RemoteStore    = (*ValkeyStore)(nil)
	_ schedule.SignatureStore = (*ValkeyStore)(nil)
)
