package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"hms-notification-service/internal/domain"

	"github.com/redis/go-redis/v9"
)

const (
	subscriptionKeyPrefix = "notif:sub:"
	subscriptionIndexKey  = "notif:subidx"
	maxTxRetries          = 5
)

type redisSubscriptionRepo struct {
	rdb *redis.Client
	now func() time.Time
}

// NewRedisSubscriptionRepository keeps subscriptions as JSON strings keyed by
// user, plus an index set used for counting and clearing.
func NewRedisSubscriptionRepository(rdb *redis.Client) SubscriptionRepository {
	return &redisSubscriptionRepo{rdb: rdb, now: time.Now}
}

func subscriptionKey(userID string) string {
	return subscriptionKeyPrefix + userID
}

func (r *redisSubscriptionRepo) Get(ctx context.Context, userID string) (domain.NotificationSubscription, error) {
	raw, err := r.rdb.Get(ctx, subscriptionKey(userID)).Bytes()
	if err == nil {
		var sub domain.NotificationSubscription
		if err := json.Unmarshal(raw, &sub); err != nil {
			return domain.NotificationSubscription{}, fmt.Errorf("decode subscription %s: %w", userID, err)
		}
		return sub, nil
	}
	if !errors.Is(err, redis.Nil) {
		return domain.NotificationSubscription{}, err
	}

	sub := domain.DefaultSubscription(userID)
	sub.UpdatedAt = r.now()
	b, err := json.Marshal(sub)
	if err != nil {
		return domain.NotificationSubscription{}, err
	}
	created, err := r.rdb.SetNX(ctx, subscriptionKey(userID), b, 0).Result()
	if err != nil {
		return domain.NotificationSubscription{}, err
	}
	if !created {
		// lost a race with a concurrent writer; read theirs
		return r.Get(ctx, userID)
	}
	if err := r.rdb.SAdd(ctx, subscriptionIndexKey, userID).Err(); err != nil {
		return domain.NotificationSubscription{}, err
	}
	return sub, nil
}

func (r *redisSubscriptionRepo) Update(ctx context.Context, userID string, patch domain.SubscriptionPatch) (domain.NotificationSubscription, error) {
	key := subscriptionKey(userID)
	var updated domain.NotificationSubscription

	txf := func(tx *redis.Tx) error {
		sub := domain.DefaultSubscription(userID)
		raw, err := tx.Get(ctx, key).Bytes()
		switch {
		case err == nil:
			if err := json.Unmarshal(raw, &sub); err != nil {
				return fmt.Errorf("decode subscription %s: %w", userID, err)
			}
		case !errors.Is(err, redis.Nil):
			return err
		}

		sub = patch.Apply(sub, r.now())
		sub.UserID = userID
		b, err := json.Marshal(sub)
		if err != nil {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, b, 0)
			pipe.SAdd(ctx, subscriptionIndexKey, userID)
			return nil
		})
		if err == nil {
			updated = sub
		}
		return err
	}

	for i := 0; i < maxTxRetries; i++ {
		err := r.rdb.Watch(ctx, txf, key)
		if err == nil {
			return updated, nil
		}
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		return domain.NotificationSubscription{}, err
	}
	return domain.NotificationSubscription{}, fmt.Errorf("update subscription %s: too much contention", userID)
}

func (r *redisSubscriptionRepo) Count(ctx context.Context) (int, error) {
	n, err := r.rdb.SCard(ctx, subscriptionIndexKey).Result()
	return int(n), err
}
