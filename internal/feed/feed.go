// Package feed publishes ended poll results to Redis for downstream consumers.
package feed

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"sync/atomic"

	"github.com/redis/go-redis/v9"

	"pollcast/pkg/types"
)

// ErrFeedClosed is returned after Close
var ErrFeedClosed = errors.New("results feed is closed")

// Config selects the Redis server and key names
type Config struct {
	Addr       string
	Password   string
	DB         int
	Channel    string
	ListKey    string
	MaxEntries int64
}

// Feed implements interfaces.Recorder over Redis. Each ended poll is
// published on Channel, pushed onto the capped ListKey, and its counts are
// written to a per-poll hash.
type Feed struct {
	client *redis.Client
	config Config
	logger *slog.Logger
	closed atomic.Bool
}

// New connects to Redis and verifies the server answers PING
func New(ctx context.Context, config Config, logger *slog.Logger) (*Feed, error) {
	if config.Addr == "" {
		return nil, errors.New("redis address cannot be empty")
	}
	if config.Channel == "" {
		config.Channel = "pollcast:results"
	}
	if config.ListKey == "" {
		config.ListKey = "pollcast:history"
	}
	if config.MaxEntries <= 0 {
		config.MaxEntries = 100
	}
	if logger == nil {
		logger = slog.Default()
	}

	client := redis.NewClient(&redis.Options{
		Addr:     config.Addr,
		Password: config.Password,
		DB:       config.DB,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to redis at %s: %w", config.Addr, err)
	}

	logger.Info("results feed connected", "addr", config.Addr, "channel", config.Channel)
	return &Feed{client: client, config: config, logger: logger}, nil
}

// CountsKey is the hash holding per-option counts for pollID
func (f *Feed) CountsKey(pollID int64) string {
	return f.config.ListKey + ":" + strconv.FormatInt(pollID, 10) + ":counts"
}

// Record publishes record and appends it to the capped history list
func (f *Feed) Record(ctx context.Context, record *types.PollRecord) error {
	if f.closed.Load() {
		return ErrFeedClosed
	}
	if record == nil || record.Poll == nil {
		return errors.New("feed record requires a poll")
	}

	payload, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to marshal poll record: %w", err)
	}

	pipe := f.client.TxPipeline()
	pipe.Publish(ctx, f.config.Channel, payload)
	pipe.LPush(ctx, f.config.ListKey, payload)
	pipe.LTrim(ctx, f.config.ListKey, 0, f.config.MaxEntries-1)

	if record.Results != nil && len(record.Results.Counts) > 0 {
		counts := make(map[string]interface{}, len(record.Results.Counts))
		for option, count := range record.Results.Counts {
			counts[option] = count
		}
		key := f.CountsKey(record.Poll.ID)
		pipe.Del(ctx, key)
		pipe.HSet(ctx, key, counts)
	}

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to publish poll %d: %w", record.Poll.ID, err)
	}

	f.logger.Debug("poll published", "poll", record.Poll.ID, "channel", f.config.Channel)
	return nil
}

// HealthCheck pings the Redis server
func (f *Feed) HealthCheck(ctx context.Context) error {
	return f.client.Ping(ctx).Err()
}

// Close releases the Redis connection pool
func (f *Feed) Close() error {
	if !f.closed.CompareAndSwap(false, true) {
		return nil
	}
	return f.client.Close()
}
