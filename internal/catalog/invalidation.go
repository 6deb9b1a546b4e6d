package catalog

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	versionKey  = "catalog:version"
	bumpChannel = "catalog.bump"
)

// Invalidator tells every process sharing a Redis instance to refresh its
// catalog. Bumps published by this instance are ignored on receipt.
type Invalidator struct {
	client  *redis.Client
	channel string
	origin  string
	logger  *slog.Logger
}

// NewInvalidator builds an Invalidator on client.
func NewInvalidator(client *redis.Client, logger *slog.Logger) *Invalidator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Invalidator{client: client, channel: bumpChannel, origin: uuid.NewString(), logger: logger}
}

// Version returns the current catalog version, zero when never bumped.
func (i *Invalidator) Version(ctx context.Context) (int64, error) {
	if i == nil || i.client == nil {
		return 0, nil
	}
	ver, err := i.client.Get(ctx, versionKey).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("catalog: read version: %w", err)
	}
	return ver, nil
}

// Bump increments the version and announces it.
func (i *Invalidator) Bump(ctx context.Context) (int64, error) {
	if i == nil || i.client == nil {
		return 0, nil
	}
	ver, err := i.client.Incr(ctx, versionKey).Result()
	if err != nil {
		return 0, fmt.Errorf("catalog: bump version: %w", err)
	}
	payload := strconv.FormatInt(ver, 10) + ":" + i.origin
	if err := i.client.Publish(ctx, i.channel, payload).Err(); err != nil {
		return ver, fmt.Errorf("catalog: publish bump: %w", err)
	}
	return ver, nil
}

// Listen subscribes to bumps from other processes and calls onBump for each
// one until ctx is done. It returns once the subscription is confirmed.
func (i *Invalidator) Listen(ctx context.Context, onBump func(context.Context, int64)) error {
	if i == nil || i.client == nil {
		return nil
	}
	pubsub := i.client.Subscribe(ctx, i.channel)
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return fmt.Errorf("catalog: subscribe %s: %w", i.channel, err)
	}
	go func() {
		defer func() { _ = pubsub.Close() }()
		ch := pubsub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				ver, origin := parseBump(msg.Payload)
				if origin == i.origin {
					continue
				}
				i.logger.Debug("catalog bump received", slog.Int64("version", ver))
				onBump(ctx, ver)
			}
		}
	}()
	return nil
}

func parseBump(payload string) (int64, string) {
	verText, origin, _ := strings.Cut(payload, ":")
	ver, _ := strconv.ParseInt(verText, 10, 64)
	return ver, origin
}
