package metricsub

import (
	"context"
	"encoding/json"

	"github.com/go-redis/redis/v8"

	"github.com/sdslabs/policyctl/internal/ruleactor"
	"github.com/sdslabs/policyctl/pkg/logger"
)

// RedisSource is the production Source (C5): every metric_name maps to
// a Redis pub/sub channel of the same name, carrying a JSON-encoded
// ruleactor.MetricUpdate per publish. The publishing side (whatever
// produces bandwidth/workload telemetry) is the external collaborator
// named out of scope in §1; RedisSource only adapts its channel
// traffic into the shape C5 and the rule/controller actors expect.
type RedisSource struct {
	rdb *redis.Client
	log *logger.Logger
}

// NewRedisSource wraps an existing redis client.
func NewRedisSource(rdb *redis.Client, log *logger.Logger) *RedisSource {
	return &RedisSource{rdb: rdb, log: log}
}

func (s *RedisSource) Stream(ctx context.Context, metricName string) (<-chan ruleactor.MetricUpdate, error) {
	pubsub := s.rdb.Subscribe(ctx, metricName)
	if _, err := pubsub.Receive(ctx); err != nil {
		pubsub.Close()
		return nil, err
	}

	out := make(chan ruleactor.MetricUpdate, 16)
	raw := pubsub.Channel()
	go func() {
		defer pubsub.Close()
		defer close(out)
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-raw:
				if !ok {
					return
				}
				var update ruleactor.MetricUpdate
				if err := json.Unmarshal([]byte(msg.Payload), &update); err != nil {
					s.log.WithField("metric", metricName).WithField("error", err).Warn("discarding malformed metric payload")
					continue
				}
				select {
				case out <- update:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}
