package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"spbu/anomsync/internal/business"
)

// 进度键的过期时间：执行结束后一段时间内仍可查询最后进度
const progressTTL = 24 * time.Hour

// ProgressSink 进度旁路通道（Redis 实现）
// 每次上报覆盖执行的进度键（last-write-wins），同时发布到频道供实时订阅。
// 进度只用于展示，不参与状态机的正确性判断。
type ProgressSink struct {
	client  *redis.Client
	channel string // 发布频道前缀
}

// NewProgressSink 创建 ProgressSink 实例
func NewProgressSink(addr, password string, db int, channel string) (*ProgressSink, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	// 测试连接
	ctx := context.Background()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return &ProgressSink{
		client:  client,
		channel: channel,
	}, nil
}

// progressPayload 进度消息结构
type progressPayload struct {
	ExecutionID string                    `json:"execution_id"`
	Message     string                    `json:"message"`
	Counters    business.ProgressCounters `json:"counters"`
	ReportedAt  int64                     `json:"reported_at"`
}

// Report 实现 business.ProgressSink 接口
func (s *ProgressSink) Report(ctx context.Context, executionID string, message string, counters business.ProgressCounters) error {
	payload := progressPayload{
		ExecutionID: executionID,
		Message:     message,
		Counters:    counters,
		ReportedAt:  time.Now().Unix(),
	}

	msgJSON, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal progress: %w", err)
	}

	// 1. 覆盖进度键（轮询方读最新值）
	key := fmt.Sprintf("%s:%s", s.channel, executionID)
	if err := s.client.Set(ctx, key, msgJSON, progressTTL).Err(); err != nil {
		return fmt.Errorf("failed to set progress key: %w", err)
	}

	// 2. 发布到频道（实时订阅方）
	if err := s.client.Publish(ctx, s.channel, msgJSON).Err(); err != nil {
		return fmt.Errorf("failed to publish progress: %w", err)
	}

	return nil
}

// Subscribe 订阅进度频道（用于测试）
func (s *ProgressSink) Subscribe(ctx context.Context) *redis.PubSub {
	return s.client.Subscribe(ctx, s.channel)
}

// Close 关闭 Redis 连接
func (s *ProgressSink) Close() error {
	return s.client.Close()
}
