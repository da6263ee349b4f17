package services

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"reviewflow-pipeline/internal/config"
	"reviewflow-pipeline/internal/models"
	"reviewflow-pipeline/internal/pkg/logger"
)

// ResultStore persists processing results and publishes stage progress.
type ResultStore interface {
	StoreResult(ctx context.Context, result *models.ProcessingResult) error
	GetResult(ctx context.Context, reviewID string) (*models.ProcessingResult, error)
	PublishStageUpdate(ctx context.Context, update *models.StageUpdate) error
	IncrementCounter(ctx context.Context, name string) error
	GetCounters(ctx context.Context) (map[string]int64, error)
	HealthCheck(ctx context.Context) error
}

type RedisService struct {
	streams *redis.Client
	memory  *redis.Client
	logger  *logger.Logger
	config  config.RedisConfig
}

func NewRedisService(config config.RedisConfig, log *logger.Logger) (*RedisService, error) {
	streamsOpt, err := redis.ParseURL(config.StreamsURL)
	if err != nil {
		return nil, fmt.Errorf("invalid Redis Streams URL : %w", err)
	}

	memoryOpt, err := redis.ParseURL(config.MemoryURL)
	if err != nil {
		return nil, fmt.Errorf("invalid Redis Memory URL : %w", err)
	}

	configureRedisOptions(streamsOpt, config)
	configureRedisOptions(memoryOpt, config)

	service := &RedisService{
		streams: redis.NewClient(streamsOpt),
		memory:  redis.NewClient(memoryOpt),
		logger:  log,
		config:  config,
	}

	if err := service.testConnection(); err != nil {
		return nil, fmt.Errorf("connection to Redis failed: %w", err)
	}

	log.Info("Redis Service Initialized Successfully",
		"streams_url", config.StreamsURL,
		"memory_url", config.MemoryURL,
		"pool_size", config.PoolSize)

	return service, nil
}

func configureRedisOptions(opt *redis.Options, cfg config.RedisConfig) {
	opt.PoolSize = cfg.PoolSize
	opt.ReadTimeout = cfg.ReadTimeout
	opt.WriteTimeout = cfg.WriteTimeout
	opt.DialTimeout = cfg.DialTimeout
}

func (service *RedisService) testConnection() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := service.streams.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("streams connection failed: %w", err)
	}

	if err := service.memory.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("memory connection failed: %w", err)
	}

	service.logger.Info("Redis Service Connection Tested Successfully")
	return nil
}

// StoreResult writes the full processing envelope under the review key
// with the configured TTL.
func (service *RedisService) StoreResult(ctx context.Context, result *models.ProcessingResult) error {
	key := fmt.Sprintf("review:%s:result", result.ReviewID)
	startTime := time.Now()

	resultJSON, err := json.Marshal(result)
	if err != nil {
		return models.NewInternalError("SERIALIZATION_FAILED", "Failed to serialize processing result").WithCause(err)
	}

	err = service.memory.Set(ctx, key, resultJSON, service.config.ResultTTL).Err()
	if err != nil {
		service.logger.LogService("redis", "store_result", time.Since(startTime), map[string]interface{}{
			"review_id": result.ReviewID,
			"key":       key,
		}, err)
		return models.NewExternalError("REDIS_STORE_FAILED", "Failed to store processing result").WithCause(err)
	}

	service.logger.LogService("redis", "store_result", time.Since(startTime), map[string]interface{}{
		"review_id": result.ReviewID,
		"status":    result.Status,
	}, nil)

	return nil
}

func (service *RedisService) GetResult(ctx context.Context, reviewID string) (*models.ProcessingResult, error) {
	key := fmt.Sprintf("review:%s:result", reviewID)
	startTime := time.Now()

	resultJSON, err := service.memory.Get(ctx, key).Result()
	if err != nil {
		if err == redis.Nil {
			return nil, models.ErrResultNotFound.WithMetadata("review_id", reviewID)
		}
		service.logger.LogService("redis", "get_result", time.Since(startTime), map[string]interface{}{
			"review_id": reviewID,
			"key":       key,
		}, err)
		return nil, models.NewExternalError("REDIS_GET_FAILED", "Failed to get processing result").WithCause(err)
	}

	var result models.ProcessingResult
	if err := json.Unmarshal([]byte(resultJSON), &result); err != nil {
		return nil, models.NewInternalError("DESERIALIZATION_FAILED", "Failed to deserialize processing result").WithCause(err)
	}

	service.logger.LogService("redis", "get_result", time.Since(startTime), map[string]interface{}{
		"review_id": reviewID,
	}, nil)

	return &result, nil
}

// PublishStageUpdate emits one progress event on the review's update
// stream, capped to keep memory bounded.
func (service *RedisService) PublishStageUpdate(ctx context.Context, update *models.StageUpdate) error {
	streamName := fmt.Sprintf("review:%s:stage_updates", update.ReviewID)

	updateData := map[string]interface{}{
		"type":            "stage_update",
		"review_id":       update.ReviewID,
		"request_id":      update.RequestID,
		"stage":           update.Stage,
		"status":          string(update.Status),
		"message":         update.Message,
		"progress":        fmt.Sprintf("%.2f", update.Progress),
		"processing_time": update.ProcessingTime.Milliseconds(),
		"timestamp":       update.Timestamp.Format(time.RFC3339),
	}

	if update.Error != "" {
		updateData["error"] = update.Error
	}

	result, err := service.streams.XAdd(ctx, &redis.XAddArgs{
		Stream: streamName,
		Values: updateData,
		MaxLen: 1024,
	}).Result()

	if err != nil {
		service.logger.LogService("redis", "publish_stage_update", 0, map[string]interface{}{
			"stream_name": streamName,
			"stage":       update.Stage,
			"review_id":   update.ReviewID,
		}, err)
		return models.NewExternalError("REDIS_PUBLISH_FAILED", "Failed to publish stage update").WithCause(err)
	}

	service.logger.WithFields(logger.Fields{
		"stream_name": streamName,
		"message_id":  result,
		"stage":       update.Stage,
		"status":      update.Status,
		"review_id":   update.ReviewID,
	}).Debug("Published Stage Update Successfully")

	return nil
}

func (service *RedisService) IncrementCounter(ctx context.Context, name string) error {
	key := fmt.Sprintf("reviewflow:stats:%s", name)

	if err := service.memory.Incr(ctx, key).Err(); err != nil {
		return models.NewExternalError("REDIS_INCR_FAILED", "Failed to increment counter").WithCause(err)
	}
	return nil
}

var statCounters = []string{
	"reviews_processed",
	"reviews_failed",
	"path_archive",
	"path_response_only",
	"path_response_and_escalate",
	"path_priority_escalation",
}

func (service *RedisService) GetCounters(ctx context.Context) (map[string]int64, error) {
	startTime := time.Now()

	keys := make([]string, len(statCounters))
	for i, name := range statCounters {
		keys[i] = fmt.Sprintf("reviewflow:stats:%s", name)
	}

	values, err := service.memory.MGet(ctx, keys...).Result()
	if err != nil {
		service.logger.LogService("redis", "get_counters", time.Since(startTime), nil, err)
		return nil, models.NewExternalError("REDIS_GET_FAILED", "Failed to get stat counters").WithCause(err)
	}

	counters := make(map[string]int64, len(statCounters))
	for i, name := range statCounters {
		var count int64
		if raw, ok := values[i].(string); ok {
			fmt.Sscanf(raw, "%d", &count)
		}
		counters[name] = count
	}

	service.logger.LogService("redis", "get_counters", time.Since(startTime), map[string]interface{}{
		"counter_count": len(counters),
	}, nil)

	return counters, nil
}

func (service *RedisService) HealthCheck(ctx context.Context) error {
	if err := service.memory.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("memory connection unhealthy: %w", err)
	}

	if err := service.streams.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("streams connection unhealthy: %w", err)
	}
	return nil
}

func (service *RedisService) Close() error {
	service.logger.Info("Closing Redis Service")

	var errs []error
	if err := service.streams.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close streams failed: %w", err))
	}

	if err := service.memory.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close memory failed: %w", err))
	}

	if len(errs) > 0 {
		return fmt.Errorf("error closing Redis connections : %v", errs)
	}

	service.logger.Info("Redis Service Closed Successfully")
	return nil
}
