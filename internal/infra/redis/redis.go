package redis

import (
	"context"
	"fmt"

	goredis "github.com/redis/go-redis/v9"
)

const clientName = "newsletter-engine"

// NewRedis connects to REDIS_URL and fails fast when the server is unreachable.
func NewRedis(ctx context.Context, url string) (*goredis.Client, error) {
	opts, err := goredis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis url: %w", err)
	}
	if opts.ClientName == "" {
		opts.ClientName = clientName
	}

	client := goredis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to ping redis at %s: %w", opts.Addr, err)
	}

	return client, nil
}
