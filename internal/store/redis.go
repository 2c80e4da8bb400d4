package store

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"rfidattend/internal/attendance"
)

// Redis keeps the ledger in a list of JSON records, the registry in a hash
// and the recipients in a set, all under one key prefix.
type Redis struct {
	Client *redis.Client
	prefix string
}

// NewRedis connects to redis with short timeouts.
func NewRedis(addr, prefix string) *Redis {
	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		DialTimeout:  2 * time.Second,
		ReadTimeout:  1 * time.Second,
		WriteTimeout: 1 * time.Second,
	})
	return NewRedisWithClient(client, prefix)
}

// NewRedisWithClient wraps an existing client.
func NewRedisWithClient(client *redis.Client, prefix string) *Redis {
	if prefix == "" {
		prefix = "rfid"
	}
	return &Redis{Client: client, prefix: prefix}
}

// Healthy verifies redis connectivity.
func (r *Redis) Healthy(ctx context.Context) bool {
	if r == nil || r.Client == nil {
		return false
	}
	return r.Client.Ping(ctx).Err() == nil
}

// Close closes the client.
func (r *Redis) Close() error {
	if r == nil || r.Client == nil {
		return nil
	}
	return r.Client.Close()
}

func (r *Redis) key(name string) string { return r.prefix + ":" + name }

func (r *Redis) LoadLedger(ctx context.Context) ([]attendance.Record, error) {
	raw, err := r.Client.LRange(ctx, r.key("attendance"), 0, -1).Result()
	if err != nil {
		return nil, err
	}
	out := make([]attendance.Record, 0, len(raw))
	for i, item := range raw {
		var rec attendance.Record
		if err := json.Unmarshal([]byte(item), &rec); err != nil {
			return nil, fmt.Errorf("ledger entry %d: %w", i, err)
		}
		out = append(out, rec)
	}
	return out, nil
}

func (r *Redis) SaveLedger(ctx context.Context, records []attendance.Record) error {
	items := make([]any, 0, len(records))
	for _, rec := range records {
		raw, err := json.Marshal(rec)
		if err != nil {
			return err
		}
		items = append(items, raw)
	}
	key := r.key("attendance")
	_, err := r.Client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.Del(ctx, key)
		if len(items) > 0 {
			p.RPush(ctx, key, items...)
		}
		return nil
	})
	return err
}

// AppendRecord pushes one record onto the ledger list.
func (r *Redis) AppendRecord(ctx context.Context, rec attendance.Record) error {
	raw, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	return r.Client.RPush(ctx, r.key("attendance"), raw).Err()
}

func (r *Redis) LoadRegistry(ctx context.Context) (map[string]string, error) {
	return r.Client.HGetAll(ctx, r.key("tags")).Result()
}

func (r *Redis) SaveRegistry(ctx context.Context, tags map[string]string) error {
	fields := make([]any, 0, 2*len(tags))
	for id, name := range tags {
		fields = append(fields, id, name)
	}
	key := r.key("tags")
	_, err := r.Client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.Del(ctx, key)
		if len(fields) > 0 {
			p.HSet(ctx, key, fields...)
		}
		return nil
	})
	return err
}

func (r *Redis) LoadRecipients(ctx context.Context) ([]int64, error) {
	members, err := r.Client.SMembers(ctx, r.key("recipients")).Result()
	if err != nil {
		return nil, err
	}
	out := make([]int64, 0, len(members))
	for _, m := range members {
		id, err := strconv.ParseInt(m, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("recipient %q: %w", m, err)
		}
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out, nil
}

func (r *Redis) SaveRecipients(ctx context.Context, ids []int64) error {
	members := make([]any, 0, len(ids))
	for _, id := range ids {
		members = append(members, strconv.FormatInt(id, 10))
	}
	key := r.key("recipients")
	_, err := r.Client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.Del(ctx, key)
		if len(members) > 0 {
			p.SAdd(ctx, key, members...)
		}
		return nil
	})
	return err
}
