// Package publish pushes finished reports to external consumers.
package publish

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/gotrs-io/l10ncheck/internal/report"
)

// DefaultKeyPrefix namespaces every key and channel.
const DefaultKeyPrefix = "l10ncheck:"

// ErrNotFound is returned when no report has been published yet.
var ErrNotFound = errors.New("no published report")

// RedisConfig defines the publisher connection.
type RedisConfig struct {
	// URL in redis://[user:pass@]host:port/db form.
	URL       string
	KeyPrefix string
	// TTL of the stored reports; zero keeps them forever.
	TTL         time.Duration
	DialTimeout time.Duration
}

// Redis stores each report as JSON under <prefix>latest and
// <prefix>run:<id>, and announces it on the <prefix>runs channel.
type Redis struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// NewRedis connects and pings the server.
func NewRedis(ctx context.Context, cfg RedisConfig) (*Redis, error) {
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}
	if cfg.DialTimeout > 0 {
		opts.DialTimeout = cfg.DialTimeout
	}
	prefix := cfg.KeyPrefix
	if prefix == "" {
		prefix = DefaultKeyPrefix
	}

	client := redis.NewClient(opts)
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	return &Redis{client: client, prefix: prefix, ttl: cfg.TTL}, nil
}

func (p *Redis) key(name string) string {
	return p.prefix + name
}

// Channel is the pub/sub channel reports are announced on.
func (p *Redis) Channel() string {
	return p.key("runs")
}

// Publish stores rep and announces it in one transaction.
func (p *Redis) Publish(ctx context.Context, rep *report.Report) error {
	if rep == nil {
		return errors.New("nil report")
	}
	data, err := json.Marshal(rep)
	if err != nil {
		return fmt.Errorf("failed to encode report: %w", err)
	}

	pipe := p.client.TxPipeline()
	pipe.Set(ctx, p.key("latest"), data, p.ttl)
	pipe.Set(ctx, p.key("run:"+rep.RunID), data, p.ttl)
	pipe.Publish(ctx, p.Channel(), data)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to publish run %s: %w", rep.RunID, err)
	}
	return nil
}

// Latest reads back the most recently published report.
func (p *Redis) Latest(ctx context.Context) (*report.Report, error) {
	data, err := p.client.Get(ctx, p.key("latest")).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read latest report: %w", err)
	}
	var rep report.Report
	if err := json.Unmarshal(data, &rep); err != nil {
		return nil, fmt.Errorf("failed to decode latest report: %w", err)
	}
	return &rep, nil
}

func (p *Redis) Close() error {
	return p.client.Close()
}
