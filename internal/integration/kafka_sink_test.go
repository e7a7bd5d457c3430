//go:build integration

package integration_test

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net"
	"strconv"
	"testing"
	"time"

	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tckafka "github.com/testcontainers/testcontainers-go/modules/kafka"

	"github.com/GOKUL-2024-HASH/Green-Pulse-v2/internal/adapter/kafka"
	"github.com/GOKUL-2024-HASH/Green-Pulse-v2/internal/classify"
	"github.com/GOKUL-2024-HASH/Green-Pulse-v2/internal/config"
	"github.com/GOKUL-2024-HASH/Green-Pulse-v2/internal/domain"
	"github.com/GOKUL-2024-HASH/Green-Pulse-v2/internal/rules"
)

const testSinkTopic = "test-compliance-events"

// startKafka launches a single-broker Kafka container and returns its
// bootstrap address.
func startKafka(ctx context.Context, t *testing.T) string {
	t.Helper()
	container, err := tckafka.Run(ctx, "confluentinc/confluent-local:7.5.0",
		tckafka.WithClusterID("test-cluster"))
	require.NoError(t, err, "start kafka container")
	t.Cleanup(func() {
		if err := container.Terminate(context.Background()); err != nil {
			t.Logf("terminate kafka container: %v", err)
		}
	})

	brokers, err := container.Brokers(ctx)
	require.NoError(t, err, "resolve kafka brokers")
	require.NotEmpty(t, brokers)
	return brokers[0]
}

// createTopic provisions a single-partition topic via the controller broker.
func createTopic(t *testing.T, broker, topic string) {
	t.Helper()
	conn, err := kafkago.Dial("tcp", broker)
	require.NoError(t, err, "dial broker")
	defer conn.Close()

	controller, err := conn.Controller()
	require.NoError(t, err, "resolve controller")

	controllerConn, err := kafkago.Dial("tcp", net.JoinHostPort(controller.Host, strconv.Itoa(controller.Port)))
	require.NoError(t, err, "dial controller")
	defer controllerConn.Close()

	require.NoError(t, controllerConn.CreateTopics(kafkago.TopicConfig{
		Topic:             topic,
		NumPartitions:     1,
		ReplicationFactor: 1,
	}), "create topic")
}

func sampleEvent(stationID string, tier classify.Tier, windowEnd time.Time) classify.Event {
	return classify.Event{
		EventID:     fmt.Sprintf("event-%s-%d", stationID, windowEnd.UnixNano()),
		StationID:   stationID,
		Pollutant:   domain.PM25,
		Tier:        tier,
		Status:      classify.StatusPendingOfficerReview,
		Rule: rules.RuleResult{
			Pollutant:         domain.PM25,
			AveragingPeriod:   rules.Period24h,
			ObservedValue:     95,
			LimitValue:        60,
			ExceedanceValue:   35,
			ExceedancePercent: 58.33,
			RuleName:          "NAAQS pm25 24hr limit (60 µg/m³)",
		},
		WindowHours: 24,
		WindowStart: windowEnd.Add(-24 * time.Hour),
		WindowEnd:   windowEnd,
	}
}

// TestKafkaSink verifies the event sink end to end: events published
// through the adapter arrive on the sink topic with station keys,
// classification headers, and a payload that round-trips.
func TestKafkaSink(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 90*time.Second)
	defer cancel()

	broker := startKafka(ctx, t)
	createTopic(t, broker, testSinkTopic)

	cfg := &config.Config{
		KafkaBrokers:   []string{broker},
		KafkaSinkTopic: testSinkTopic,
	}
	sink := kafka.NewWriter(cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))
	t.Cleanup(func() { sink.Close() })

	windowEnd := time.Now().UTC().Truncate(time.Second)
	events := []classify.Event{
		sampleEvent("@2554", classify.TierViolation, windowEnd),
		sampleEvent("@2556", classify.TierFlag, windowEnd),
	}
	require.NoError(t, sink.Publish(ctx, events), "publish events")

	consumer := kafkago.NewReader(kafkago.ReaderConfig{
		Brokers:     []string{broker},
		Topic:       testSinkTopic,
		GroupID:     fmt.Sprintf("test-sink-%d", time.Now().UnixNano()),
		StartOffset: kafkago.FirstOffset,
	})
	t.Cleanup(func() { consumer.Close() })

	for i := 0; i < len(events); i++ {
		readCtx, readCancel := context.WithTimeout(ctx, 30*time.Second)
		msg, err := consumer.ReadMessage(readCtx)
		readCancel()
		require.NoError(t, err, "read from sink topic")

		headers := make(map[string]string, len(msg.Headers))
		for _, h := range msg.Headers {
			headers[h.Key] = string(h.Value)
		}

		var event classify.Event
		require.NoError(t, json.Unmarshal(msg.Value, &event), "unmarshal sink message")

		assert.Equal(t, event.StationID, string(msg.Key), "messages are keyed by station")
		assert.Equal(t, string(event.Tier), headers["tier"])
		assert.Equal(t, "pm25", headers["pollutant"])
		assert.Equal(t, windowEnd.Format(time.RFC3339), headers["window_end"])
		assert.Equal(t, 60.0, event.Rule.LimitValue)
	}
}
