package logging

import (
	"bytes"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func testLogger(buf *bytes.Buffer) zerolog.Logger {
	return zerolog.New(buf).With().Str("component", "test").Logger()
}

func TestWithThreadCarriesThreadID(t *testing.T) {
	var buf bytes.Buffer
	logger := WithThread(testLogger(&buf), "t-42")
	logger.Info().Msg("draft write failed")

	line := buf.String()
	if !strings.Contains(line, `"thread_id":"t-42"`) {
		t.Errorf("expected thread_id field in: %s", line)
	}
	if !strings.Contains(line, `"component":"test"`) {
		t.Errorf("base logger context lost: %s", line)
	}
}

func TestWithChannelCarriesChannel(t *testing.T) {
	var buf bytes.Buffer
	logger := WithChannel(testLogger(&buf), "sms")
	logger.Warn().Msg("dropped malformed record")

	if line := buf.String(); !strings.Contains(line, `"channel":"sms"`) {
		t.Errorf("expected channel field in: %s", line)
	}
}

func TestWithBatchCarriesBatchID(t *testing.T) {
	var buf bytes.Buffer
	logger := WithBatch(testLogger(&buf), "batch-7")
	logger.Info().Msg("dispatching bulk action")

	if line := buf.String(); !strings.Contains(line, `"batch_id":"batch-7"`) {
		t.Errorf("expected batch_id field in: %s", line)
	}
}
