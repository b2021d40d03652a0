package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"time"

	"mines-predictor-bot/internal/config"
	"mines-predictor-bot/internal/models"

	"github.com/redis/go-redis/v9"
)

type RedisService struct {
	client *redis.Client
}

func NewRedisService(cfg *config.Config) (*RedisService, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisURL,
		Password: cfg.RedisPass,
		DB:       cfg.RedisDB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	_, err := client.Ping(ctx).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return NewRedisServiceFromClient(client), nil
}

func NewRedisServiceFromClient(client *redis.Client) *RedisService {
	return &RedisService{client: client}
}

func (s *RedisService) Close() error {
	return s.client.Close()
}

func (s *RedisService) LoadState(ctx context.Context, userID int64) (models.ConversationState, error) {
	key := fmt.Sprintf(KeyUserState, userID)

	data, err := s.client.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return models.Idle{}, nil
	}
	if err != nil {
		return models.Idle{}, fmt.Errorf("failed to get user state: %w", err)
	}

	return models.DecodeState(data)
}

// SaveState overwrites the user's state. Two updates racing for one user
// both write; the last one wins.
func (s *RedisService) SaveState(ctx context.Context, userID int64, state models.ConversationState) error {
	key := fmt.Sprintf(KeyUserState, userID)

	data, err := models.EncodeState(state)
	if err != nil {
		return fmt.Errorf("failed to marshal user state: %w", err)
	}

	return s.client.Set(ctx, key, data, TTLUserState).Err()
}

func (s *RedisService) CountKeys(ctx context.Context) (int64, error) {
	n, err := s.client.HLen(ctx, KeyActivationKeys).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to count keys: %w", err)
	}
	return n, nil
}

func (s *RedisService) PutKeys(ctx context.Context, keys []models.KeyRecord) error {
	if len(keys) == 0 {
		return nil
	}

	values := make([]interface{}, 0, len(keys)*2)
	for _, k := range keys {
		values = append(values, k.Name, k.DurationDays)
	}

	if err := s.client.HSet(ctx, KeyActivationKeys, values...).Err(); err != nil {
		return fmt.Errorf("failed to store keys: %w", err)
	}
	return nil
}

func (s *RedisService) GetKey(ctx context.Context, name string) (models.KeyRecord, error) {
	days, err := s.client.HGet(ctx, KeyActivationKeys, name).Int()
	if err == redis.Nil {
		return models.KeyRecord{}, models.ErrNotFound
	}
	if err != nil {
		return models.KeyRecord{}, fmt.Errorf("failed to get key: %w", err)
	}

	return models.KeyRecord{Name: name, DurationDays: days}, nil
}

func (s *RedisService) ListKeys(ctx context.Context) ([]models.KeyRecord, error) {
	all, err := s.client.HGetAll(ctx, KeyActivationKeys).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list keys: %w", err)
	}

	keys := make([]models.KeyRecord, 0, len(all))
	for name, raw := range all {
		days, err := strconv.Atoi(raw)
		if err != nil {
			continue
		}
		keys = append(keys, models.KeyRecord{Name: name, DurationDays: days})
	}

	sort.Slice(keys, func(i, j int) bool { return keys[i].Name < keys[j].Name })
	return keys, nil
}

func (s *RedisService) GetActivation(ctx context.Context, userID int64) (models.Activation, error) {
	data, err := s.client.HGet(ctx, KeyUserActivations, strconv.FormatInt(userID, 10)).Bytes()
	if err == redis.Nil {
		return models.Activation{}, models.ErrNotFound
	}
	if err != nil {
		return models.Activation{}, fmt.Errorf("failed to get activation: %w", err)
	}

	var a models.Activation
	if err := json.Unmarshal(data, &a); err != nil {
		return models.Activation{}, fmt.Errorf("failed to unmarshal activation: %w", err)
	}
	a.UserID = userID

	return a, nil
}

func (s *RedisService) PutActivation(ctx context.Context, a models.Activation) error {
	data, err := json.Marshal(a)
	if err != nil {
		return fmt.Errorf("failed to marshal activation: %w", err)
	}

	return s.client.HSet(ctx, KeyUserActivations, strconv.FormatInt(a.UserID, 10), data).Err()
}

func (s *RedisService) IsAdmin(ctx context.Context, userID int64) (bool, error) {
	ok, err := s.client.SIsMember(ctx, KeyAdminUsers, userID).Result()
	if err != nil {
		return false, fmt.Errorf("failed to check admin set: %w", err)
	}
	return ok, nil
}

func (s *RedisService) AddAdmin(ctx context.Context, userID int64) error {
	return s.client.SAdd(ctx, KeyAdminUsers, userID).Err()
}

func (s *RedisService) RecordPrediction(ctx context.Context, p *models.Prediction) error {
	data, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("failed to marshal prediction: %w", err)
	}

	predictionKey := fmt.Sprintf(KeyPrediction, p.ID)
	userKey := fmt.Sprintf(KeyUserPredictions, p.UserID)

	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, predictionKey, data, TTLPrediction)
		pipe.ZAdd(ctx, userKey, redis.Z{
			Score:  float64(p.CreatedAt.UnixMilli()),
			Member: p.ID,
		})
		// Keep only the most recent predictions
		pipe.ZRemRangeByRank(ctx, userKey, 0, -(maxPredictionHistory + 1))
		pipe.Expire(ctx, userKey, TTLPrediction)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to save prediction: %w", err)
	}

	return nil
}

func (s *RedisService) RecentPredictions(ctx context.Context, userID int64, limit int64) ([]*models.Prediction, error) {
	if limit <= 0 || limit > maxPredictionHistory {
		limit = 50
	}

	userKey := fmt.Sprintf(KeyUserPredictions, userID)

	ids, err := s.client.ZRevRange(ctx, userKey, 0, limit-1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get prediction IDs: %w", err)
	}
	if len(ids) == 0 {
		return []*models.Prediction{}, nil
	}

	pipe := s.client.Pipeline()
	cmds := make([]*redis.StringCmd, len(ids))
	for i, id := range ids {
		cmds[i] = pipe.Get(ctx, fmt.Sprintf(KeyPrediction, id))
	}

	_, err = pipe.Exec(ctx)
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("pipeline execution failed: %w", err)
	}

	predictions := make([]*models.Prediction, 0, len(ids))
	for _, cmd := range cmds {
		data, err := cmd.Bytes()
		if err != nil {
			continue
		}

		var p models.Prediction
		if err := json.Unmarshal(data, &p); err != nil {
			continue
		}
		predictions = append(predictions, &p)
	}

	return predictions, nil
}

var rateLimitScript = redis.NewScript(`
	local current = redis.call("INCR", KEYS[1])
	if current == 1 then
		redis.call("PEXPIRE", KEYS[1], ARGV[1])
	end
	return current
`)

func (s *RedisService) CheckRateLimit(ctx context.Context, subject string, action string, limit int, window time.Duration) (bool, error) {
	key := fmt.Sprintf(KeyRateLimit, subject, action)

	count, err := rateLimitScript.Run(ctx, s.client, []string{key}, window.Milliseconds()).Int64()
	if err != nil {
		return false, fmt.Errorf("failed to check rate limit: %w", err)
	}

	return count <= int64(limit), nil
}
