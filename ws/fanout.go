package ws

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log"
	"time"

	"github.com/segmentio/kafka-go"
)

// KafkaFanout lets several server instances share one realtime surface.
// Every event published locally is also written to a Kafka topic; events
// read back from other instances are re-published into the local hub.
//
// Each instance reads with its own consumer group starting at the newest
// offset, so every instance sees every event exactly as a broadcast.
type KafkaFanout struct {
	local      EventPublisher
	instanceID string
	writer     *kafka.Writer
	reader     *kafka.Reader
}

type fanoutEnvelope struct {
	Origin string      `json:"origin"`
	Event  remoteEvent `json:"event"`
}

// remoteEvent keeps the payload as raw JSON so it is forwarded unchanged.
type remoteEvent struct {
	Op   string          `json:"op"`
	Path string          `json:"path"`
	Key  string          `json:"key,omitempty"`
	Data json.RawMessage `json:"d,omitempty"`
}

func NewKafkaFanout(local EventPublisher, brokers []string, topic, instanceID string) *KafkaFanout {
	return &KafkaFanout{
		local:      local,
		instanceID: instanceID,
		writer: &kafka.Writer{
			Addr:  kafka.TCP(brokers...),
			Topic: topic,
			// Same path -> same partition, which keeps per-path order.
			Balancer:     &kafka.Hash{},
			Async:        true,
			BatchTimeout: 10 * time.Millisecond,
			Completion: func(messages []kafka.Message, err error) {
				if err != nil {
					log.Printf("[fanout] failed to write %d event(s): %v", len(messages), err)
				}
			},
		},
		reader: kafka.NewReader(kafka.ReaderConfig{
			Brokers:     brokers,
			Topic:       topic,
			GroupID:     "devchat-fanout-" + instanceID,
			StartOffset: kafka.LastOffset,
			MaxBytes:    10e6,
		}),
	}
}

// Publish delivers locally first, then forwards to the other instances.
func (f *KafkaFanout) Publish(event Event) {
	f.local.Publish(event)

	payload, err := json.Marshal(event.Data)
	if err != nil {
		log.Printf("[fanout] failed to marshal %s payload: %v", event.Op, err)
		return
	}
	value, err := json.Marshal(fanoutEnvelope{
		Origin: f.instanceID,
		Event:  remoteEvent{Op: event.Op, Path: event.Path, Key: event.Key, Data: payload},
	})
	if err != nil {
		log.Printf("[fanout] failed to marshal envelope: %v", err)
		return
	}

	// Async writer: WriteMessages only enqueues.
	if err := f.writer.WriteMessages(context.Background(), kafka.Message{
		Key:   []byte(event.Path),
		Value: value,
		Time:  time.Now(),
	}); err != nil {
		log.Printf("[fanout] failed to enqueue event: %v", err)
	}
}

// Run consumes events from other instances until ctx is cancelled.
func (f *KafkaFanout) Run(ctx context.Context) {
	log.Printf("[fanout] consuming as instance %s", f.instanceID)
	for {
		msg, err := f.reader.ReadMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, io.EOF) {
				return
			}
			log.Printf("[fanout] read failed: %v", err)
			select {
			case <-ctx.Done():
				return
			case <-time.After(time.Second):
			}
			continue
		}
		f.handleMessage(msg.Value)
	}
}

// handleMessage re-publishes a remote event locally. Events this instance
// wrote itself were already delivered and are skipped.
func (f *KafkaFanout) handleMessage(value []byte) {
	var env fanoutEnvelope
	if err := json.Unmarshal(value, &env); err != nil {
		log.Printf("[fanout] invalid envelope: %v", err)
		return
	}
	if env.Origin == f.instanceID || env.Event.Op == "" || env.Event.Path == "" {
		return
	}

	event := Event{Op: env.Event.Op, Path: env.Event.Path, Key: env.Event.Key}
	if len(env.Event.Data) > 0 && string(env.Event.Data) != "null" {
		event.Data = env.Event.Data
	}
	f.local.Publish(event)
}

func (f *KafkaFanout) Close() error {
	werr := f.writer.Close()
	rerr := f.reader.Close()
	return errors.Join(werr, rerr)
}
