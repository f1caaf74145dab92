package audit

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xscopehub/datajud-bridge/internal/config"
)

func TestLogWritesJSONLines(t *testing.T) {
	var buf bytes.Buffer
	l := New(true, NewWriterSink(&buf), nil)

	l.Log(context.Background(), Entry{Tool: "fetch", Client: "10.0.0.1", Status: 200, Duration: time.Millisecond})
	l.Log(context.Background(), Entry{Tool: "search", Client: "10.0.0.1", Status: 500, Error: "datajud error: boom"})

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)

	var first Entry
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &first))
	assert.Equal(t, "fetch", first.Tool)
	assert.False(t, first.Time.IsZero())
	assert.Equal(t, time.UTC, first.Time.Location())

	var second Entry
	require.NoError(t, json.Unmarshal([]byte(lines[1]), &second))
	assert.Equal(t, "datajud error: boom", second.Error)
}

func TestDisabledLoggerIsSilent(t *testing.T) {
	var buf bytes.Buffer
	l := New(false, NewWriterSink(&buf), nil)
	l.Log(context.Background(), Entry{Tool: "fetch"})
	assert.Zero(t, buf.Len())

	var nilLogger *Logger
	nilLogger.Log(context.Background(), Entry{Tool: "fetch"})
	assert.NoError(t, nilLogger.Close())
}

type failingSink struct{ closed bool }

func (f *failingSink) Write(context.Context, []byte) error { return errors.New("down") }
func (f *failingSink) Close() error { f.closed = true; return nil }

func TestSinkFailureDoesNotPanic(t *testing.T) {
	sink := &failingSink{}
	l := New(true, sink, nil)
	l.Log(context.Background(), Entry{Tool: "fetch"})
	require.NoError(t, l.Close())
	assert.True(t, sink.closed)
}

func TestFromConfig(t *testing.T) {
	l, err := FromConfig(config.AuditConfig{Enabled: false}, nil)
	require.NoError(t, err)
	assert.False(t, l.enabled)

	l, err = FromConfig(config.AuditConfig{Enabled: true, Sink: "stdout"}, nil)
	require.NoError(t, err)
	assert.True(t, l.enabled)

	_, err = FromConfig(config.AuditConfig{Enabled: true, Sink: "carrier-pigeon"}, nil)
	assert.Error(t, err)

	_, err = FromConfig(config.AuditConfig{Enabled: true, Sink: "kafka", KafkaTopic: "t"}, nil)
	assert.Error(t, err, "kafka sink requires brokers")
}
