// Package logger ships request logs of the comments service to Kafka.
package logger

import (
	"context"
	"encoding/json"
	"time"

	"github.com/segmentio/kafka-go"
	log "github.com/sirupsen/logrus"
)

const writeTimeout = 10 * time.Second

// LogEntry is one served request.
type LogEntry struct {
	Timestamp  time.Time `json:"timestamp"`
	IP         string    `json:"ip"`
	StatusCode int       `json:"status_code"`
	RequestID  string    `json:"request_id"`
	Method     string    `json:"method"`
	Path       string    `json:"path"`
	Duration   float64   `json:"duration_sec"`
	Size       int       `json:"size"`
	Service    string    `json:"service"`
}

// DocumentID is unique per service and request.
func (e LogEntry) DocumentID() string {
	return e.Service + e.RequestID
}

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
}

// Sink publishes log entries to a Kafka topic.
type Sink struct {
	w       messageWriter
	service string
}

func NewSink(w messageWriter, service string) *Sink {
	return &Sink{w: w, service: service}
}

// Publish writes the entry, stamped with the sink's service name. It blocks until
// Kafka acknowledges or the write times out.
func (s *Sink) Publish(entry LogEntry) error {
	entry.Service = s.service

	b, err := json.Marshal(entry)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	defer cancel()
	if err := s.w.WriteMessages(ctx, kafka.Message{Key: []byte(entry.RequestID), Value: b}); err != nil {
		return err
	}

	log.Debugf("[logger] log entry sent to Kafka request_id:%s", entry.RequestID)
	return nil
}

// CreateTopic makes sure the topic exists on the broker.
func CreateTopic(ctx context.Context, broker, topic string) error {
	conn, err := kafka.DialContext(ctx, "tcp", broker)
	if err != nil {
		return err
	}
	defer conn.Close()

	return conn.CreateTopics(kafka.TopicConfig{
		Topic:             topic,
		NumPartitions:     1,
		ReplicationFactor: 1,
	})
}
