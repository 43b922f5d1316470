package logging_test

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"glowlight/tools/setup/internal/logging"
)

func TestNew_DefaultLevelIsWarn(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	log := logging.New(logging.Options{Out: &buf, Format: "json"})

	log.Debug().Msg("hidden")
	log.Info().Msg("hidden too")
	log.Warn().Msg("shown")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Errorf("debug/info written at default level: %q", out)
	}
	if !strings.Contains(out, "shown") {
		t.Errorf("warning missing: %q", out)
	}
}

func TestNew_JSONFields(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	log := logging.New(logging.Options{Level: "debug", Format: "json", Out: &buf})
	log.Debug().Str("port", "/dev/ttyUSB0").Msg("scan")

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("output is not JSON: %v (%q)", err, buf.String())
	}
	if entry["level"] != "debug" || entry["port"] != "/dev/ttyUSB0" || entry["message"] != "scan" {
		t.Errorf("entry = %v", entry)
	}
	if _, ok := entry["time"]; !ok {
		t.Error("timestamp missing")
	}
}

func TestNew_ConsoleFormat(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	log := logging.New(logging.Options{Level: "INFO", Out: &buf})
	log.Info().Str("env", "esp32c3").Msg("build started")

	out := buf.String()
	if !strings.Contains(out, "build started") || !strings.Contains(out, "env=") {
		t.Errorf("console output = %q", out)
	}
	if strings.HasPrefix(strings.TrimSpace(out), "{") {
		t.Error("console format produced JSON")
	}
}

func TestNew_InvalidLevelFallsBack(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	log := logging.New(logging.Options{Level: "loud", Format: "json", Out: &buf})
	log.Info().Msg("hidden")
	if buf.Len() != 0 {
		t.Errorf("info written with invalid level: %q", buf.String())
	}
}
