package upload

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/redis/go-redis/v9"
)

// RedisConfig configures the stream uploader.
type RedisConfig struct {
	Addr     string `mapstructure:"addr"     yaml:"addr"`
	Password string `mapstructure:"password" yaml:"password"`
	DB       int    `mapstructure:"db"       yaml:"db"`
	Stream   string `mapstructure:"stream"   yaml:"stream"`
	MaxLen   int64  `mapstructure:"max_len"  yaml:"max_len"`
}

// NewRedisClient connects and pings the server.
func NewRedisClient(ctx context.Context, cfg RedisConfig) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{Addr: cfg.Addr, Password: cfg.Password, DB: cfg.DB})
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		slog.Error("Redis connection failed", "address", cfg.Addr, "error", err)
		return nil, err
	}
	slog.Info("Redis connection successful", "address", cfg.Addr)
	return rdb, nil
}

// RedisUploader appends records to a Redis stream with XADD.
type RedisUploader struct {
	rdb    redis.Cmdable
	stream string
	maxLen int64
}

// NewRedisUploader wraps an existing client.
func NewRedisUploader(rdb redis.Cmdable, stream string, maxLen int64) *RedisUploader {
	if stream == "" {
		stream = DefaultStream
	}
	return &RedisUploader{rdb: rdb, stream: stream, maxLen: maxLen}
}

// Args builds the XADD arguments for rec. The payload is stored as JSON.
func (u *RedisUploader) Args(rec Record) (*redis.XAddArgs, error) {
	payload, err := json.Marshal(rec.Payload)
	if err != nil {
		return nil, fmt.Errorf("marshal payload: %w", err)
	}
	return &redis.XAddArgs{
		Stream: u.stream,
		MaxLen: u.maxLen,
		Approx: u.maxLen > 0,
		Values: []any{
			"line_id", rec.LineID,
			"device_id", rec.DeviceID,
			"operator_id", rec.OperatorID,
			"source_type", rec.SourceType,
			"timestamp", strconv.FormatInt(rec.Timestamp, 10),
			"payload", string(payload),
		},
	}, nil
}

// Upload implements Uploader.
func (u *RedisUploader) Upload(ctx context.Context, rec Record) error {
	args, err := u.Args(rec)
	if err != nil {
		return err
	}
	id, err := u.rdb.XAdd(ctx, args).Result()
	if err != nil {
		return fmt.Errorf("xadd %s: %w", u.stream, err)
	}
	slog.Debug("Record queued", "stream", u.stream, "id", id)
	return nil
}
