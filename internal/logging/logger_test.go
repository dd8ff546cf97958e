package logging

import (
	"bytes"
	"strings"
	"testing"
)

func TestConsoleHandlerFormatsComponentAndAttrs(t *testing.T) {
	var buf bytes.Buffer
	logger, err := New(Options{Level: "info", Format: "console", Writer: &buf})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	NewComponentLogger(logger, "fetch").Info("request complete",
		String(FieldSource, "tmdb"),
		Int(FieldAttempt, 2),
	)

	line := buf.String()
	if !strings.Contains(line, "INFO fetch: request complete") {
		t.Errorf("unexpected console line: %q", line)
	}
	if !strings.Contains(line, "source=tmdb") || !strings.Contains(line, "attempt=2") {
		t.Errorf("attrs missing from console line: %q", line)
	}
}

func TestJSONFormatSelected(t *testing.T) {
	var buf bytes.Buffer
	logger, err := New(Options{Level: "debug", Format: "json", Writer: &buf})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	logger.Debug("probe", String("k", "v"))
	line := buf.String()
	if !strings.Contains(line, `"msg":"probe"`) || !strings.Contains(line, `"k":"v"`) {
		t.Errorf("unexpected json line: %q", line)
	}
	if !strings.Contains(line, `"level":"debug"`) {
		t.Errorf("level not lowercased: %q", line)
	}
}

func TestUnsupportedFormatRejected(t *testing.T) {
	if _, err := New(Options{Format: "xml"}); err == nil {
		t.Fatal("New should reject unsupported formats")
	}
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	logger, err := New(Options{Level: "warn", Format: "console", Writer: &buf})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	logger.Info("ignored")
	logger.Warn("kept")
	out := buf.String()
	if strings.Contains(out, "ignored") {
		t.Error("info record should be filtered at warn level")
	}
	if !strings.Contains(out, "kept") {
		t.Error("warn record should pass at warn level")
	}
}

func TestQuotingOfAttrValues(t *testing.T) {
	if got := maybeQuote("plain"); got != "plain" {
		t.Errorf("maybeQuote(plain) = %q", got)
	}
	if got := maybeQuote("two words"); got != `"two words"` {
		t.Errorf("maybeQuote(two words) = %q", got)
	}
	if got := maybeQuote(""); got != `""` {
		t.Errorf("maybeQuote(empty) = %q", got)
	}
}
