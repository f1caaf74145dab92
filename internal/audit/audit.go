package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/segmentio/kafka-go"

	"github.com/xscopehub/datajud-bridge/internal/config"
)

// Entry describes a single audit log record.
type Entry struct {
	RequestID string        `json:"request_id,omitempty"`
	Client    string        `json:"client"`
	Subject   string        `json:"subject,omitempty"`
	Tool      string        `json:"tool"`
	Alias     string        `json:"alias,omitempty"`
	Status    int           `json:"status"`
	Duration  time.Duration `json:"duration"`
	Error     string        `json:"error,omitempty"`
	Time      time.Time     `json:"time"`
}

// Sink receives encoded audit records.
type Sink interface {
	Write(ctx context.Context, record []byte) error
	Close() error
}

// Logger emits audit entries in JSON format.
type Logger struct {
	enabled bool
	sink    Sink
	logger  *slog.Logger
}

// New creates a new audit logger writing to the provided sink.
func New(enabled bool, sink Sink, logger *slog.Logger) *Logger {
	if sink == nil {
		sink = NewWriterSink(log.Writer())
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Logger{enabled: enabled, sink: sink, logger: logger}
}

// FromConfig builds the sink selected by cfg and wraps it in a Logger.
func FromConfig(cfg config.AuditConfig, logger *slog.Logger) (*Logger, error) {
	if !cfg.Enabled {
		return New(false, NewWriterSink(io.Discard), logger), nil
	}

	var (
		sink Sink
		err  error
	)
	switch strings.ToLower(cfg.Sink) {
	case "", "stdout":
		sink = NewWriterSink(os.Stdout)
	case "nats":
		sink, err = NewNATSSink(cfg.NatsURL, cfg.NatsSubject)
	case "kafka":
		sink, err = NewKafkaSink(cfg.KafkaBrokers, cfg.KafkaTopic)
	default:
		err = fmt.Errorf("unknown audit sink %q", cfg.Sink)
	}
	if err != nil {
		return nil, err
	}
	return New(true, sink, logger), nil
}

// Log writes an audit entry if enabled. Sink failures are logged, never
// returned to the caller.
func (l *Logger) Log(ctx context.Context, entry Entry) {
	if l == nil || !l.enabled {
		return
	}
	if entry.Time.IsZero() {
		entry.Time = time.Now()
	}
	entry.Time = entry.Time.UTC()
	data, err := json.Marshal(entry)
	if err != nil {
		return
	}
	if err := l.sink.Write(ctx, data); err != nil {
		l.logger.Warn("audit write failed", "tool", entry.Tool, "error", err)
	}
}

// Close flushes and releases the sink.
func (l *Logger) Close() error {
	if l == nil {
		return nil
	}
	return l.sink.Close()
}

// WriterSink writes one JSON record per line.
type WriterSink struct {
	mu  sync.Mutex
	out io.Writer
}

// NewWriterSink wraps out.
func NewWriterSink(out io.Writer) *WriterSink {
	return &WriterSink{out: out}
}

func (s *WriterSink) Write(_ context.Context, record []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.out.Write(append(record, '\n'))
	return err
}

func (s *WriterSink) Close() error { return nil }

// NATSSink publishes records to a NATS subject.
type NATSSink struct {
	conn    *nats.Conn
	subject string
}

// NewNATSSink connects to url.
func NewNATSSink(url, subject string) (*NATSSink, error) {
	if url == "" {
		url = nats.DefaultURL
	}
	if subject == "" {
		return nil, fmt.Errorf("audit nats_subject required")
	}
	nc, err := nats.Connect(url, nats.Name("datajud-bridge-audit"))
	if err != nil {
		return nil, fmt.Errorf("connect nats: %w", err)
	}
	return &NATSSink{conn: nc, subject: subject}, nil
}

func (s *NATSSink) Write(_ context.Context, record []byte) error {
	return s.conn.Publish(s.subject, record)
}

func (s *NATSSink) Close() error {
	return s.conn.Drain()
}

// KafkaSink produces records to a Kafka topic asynchronously.
type KafkaSink struct {
	writer *kafka.Writer
}

// NewKafkaSink creates a writer for topic on brokers.
func NewKafkaSink(brokers []string, topic string) (*KafkaSink, error) {
	if len(brokers) == 0 {
		return nil, fmt.Errorf("audit kafka_brokers required")
	}
	if topic == "" {
		return nil, fmt.Errorf("audit kafka_topic required")
	}
	return &KafkaSink{writer: &kafka.Writer{
		Addr:     kafka.TCP(brokers...),
		Topic:    topic,
		Balancer: &kafka.LeastBytes{},
		Async:    true,
	}}, nil
}

func (s *KafkaSink) Write(ctx context.Context, record []byte) error {
	return s.writer.WriteMessages(ctx, kafka.Message{Value: record})
}

func (s *KafkaSink) Close() error {
	return s.writer.Close()
}
