package statesync

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// Publisher delivers messages to subscribers of a match.
type Publisher interface {
	// PublishMatch delivers a message addressed to the whole match.
	PublishMatch(ctx context.Context, matchID string, msg Message) error
	// PublishPlayer delivers a message only one participant may see.
	PublishPlayer(ctx context.Context, matchID, playerID string, msg Message) error
}

// Historian receives the ordered action log.
type Historian interface {
	RecordAction(ctx context.Context, rec ActionRecord) error
}

// Fanout publishes to every member and joins their errors.
type Fanout []Publisher

func (f Fanout) PublishMatch(ctx context.Context, matchID string, msg Message) error {
	var errs []error
	for _, p := range f {
		if err := p.PublishMatch(ctx, matchID, msg); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (f Fanout) PublishPlayer(ctx context.Context, matchID, playerID string, msg Message) error {
	var errs []error
	for _, p := range f {
		if err := p.PublishPlayer(ctx, matchID, playerID, msg); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// RecordAction forwards to members that keep history.
func (f Fanout) RecordAction(ctx context.Context, rec ActionRecord) error {
	var errs []error
	for _, p := range f {
		if h, ok := p.(Historian); ok {
			if err := h.RecordAction(ctx, rec); err != nil {
				errs = append(errs, err)
			}
		}
	}
	return errors.Join(errs...)
}

// RedisPublisher publishes on match:{id} and match:{id}:player:{pid}
// channels and appends action records to a historian list.
type RedisPublisher struct {
	client    redis.UniversalClient
	prefix    string
	historian string
}

// NewRedisPublisher publishes through client. prefix is prepended to every
// channel name; an empty historianQueue disables the action log.
func NewRedisPublisher(client redis.UniversalClient, prefix, historianQueue string) *RedisPublisher {
	return &RedisPublisher{client: client, prefix: prefix, historian: historianQueue}
}

// MatchChannel is the channel carrying whole-match messages.
func (p *RedisPublisher) MatchChannel(matchID string) string {
	return p.prefix + "match:" + matchID
}

// PlayerChannel is the channel carrying one participant's messages.
func (p *RedisPublisher) PlayerChannel(matchID, playerID string) string {
	return p.prefix + "match:" + matchID + ":player:" + playerID
}

func (p *RedisPublisher) PublishMatch(ctx context.Context, matchID string, msg Message) error {
	return p.publish(ctx, p.MatchChannel(matchID), msg)
}

func (p *RedisPublisher) PublishPlayer(ctx context.Context, matchID, playerID string, msg Message) error {
	return p.publish(ctx, p.PlayerChannel(matchID, playerID), msg)
}

func (p *RedisPublisher) publish(ctx context.Context, channel string, msg Message) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", msg.Type, err)
	}
	if err := p.client.Publish(ctx, channel, data).Err(); err != nil {
		return fmt.Errorf("publish to %s: %w", channel, err)
	}
	return nil
}

func (p *RedisPublisher) RecordAction(ctx context.Context, rec ActionRecord) error {
	if p.historian == "" {
		return nil
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal action record: %w", err)
	}
	if err := p.client.RPush(ctx, p.historian, data).Err(); err != nil {
		return fmt.Errorf("failed to RPush to Redis list '%s': %w", p.historian, err)
	}
	return nil
}
