package redis

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Redis publishes committed conversation turns to a channel for
// downstream monitoring and record keeping.
type Redis struct {
	Client            *redis.Client
	Logger            *zap.SugaredLogger
	TranscriptChannel string
}

func New(host, password, transcriptChannel string, logger *zap.SugaredLogger) (*Redis, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     host,
		Password: password,
	})

	_, err := client.Ping(context.Background()).Result()
	if err != nil {
		return nil, fmt.Errorf("redis connection failed: %w", err)
	}

	return &Redis{
		Client:            client,
		Logger:            logger,
		TranscriptChannel: transcriptChannel,
	}, nil
}

func (r *Redis) Produce(data any) error {
	jsonData, err := json.Marshal(data)
	if err != nil {
		return err
	}

	err = r.Client.Publish(context.Background(), r.TranscriptChannel, jsonData).Err()
	if err != nil {
		return err
	}

	r.Logger.Infow("redis: Produce", "channel", r.TranscriptChannel)

	return nil
}

func (r *Redis) Close() error {
	return r.Client.Close()
}
