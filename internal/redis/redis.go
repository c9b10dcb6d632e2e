package redis

import (
	"context"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

const pingTimeout = 2 * time.Second

// Client is the shared connection plus the key namespace every store writes
// under.
type Client struct {
	*goredis.Client
	Prefix string
}

// New connects and pings. An unreachable server is an error at startup
// rather than on the first session write.
func New(ctx context.Context, addr, password, prefix string) (*Client, error) {
	client := goredis.NewClient(&goredis.Options{
		Addr:     addr,
		Password: password,
		DB:       0,
	})

	ctx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis: ping %s: %w", addr, err)
	}

	return &Client{Client: client, Prefix: prefix}, nil
}
