package observability

import (
	"bytes"
	"log"
	"os"
	"strings"
	"testing"
)

func captureOutput(f func()) string {
	var buf bytes.Buffer
	oldLogger := log.Default()
	log.SetOutput(&buf)

	f()

	log.SetOutput(os.Stderr)
	log.SetOutput(oldLogger.Writer())

	return buf.String()
}

func TestLogger_LogLevels(t *testing.T) {
	output := captureOutput(func() {
		logger := NewStandardLogger("case-service").(*StandardLogger).WithLevel(LogLevelDebug)

		logger.Debug("Debug message", map[string]interface{}{"key": "value"})
		logger.Info("Info message", map[string]interface{}{"key": "value"})
		logger.Warn("Warn message", map[string]interface{}{"key": "value"})
	})

	if !strings.Contains(output, "Debug message") {
		t.Error("Expected Debug message but it was not found in the output")
	}
	if !strings.Contains(output, "Info message") {
		t.Error("Expected Info message but it was not found in the output")
	}
	if !strings.Contains(output, "Warn message") {
		t.Error("Expected Warn message but it was not found in the output")
	}
}

func TestLogger_MinimumLevel(t *testing.T) {
	output := captureOutput(func() {
		logger := NewStandardLogger("case-service")

		logger.Debug("Debug message", nil)
		logger.Info("Info message", nil)
	})

	if strings.Contains(output, "Debug message") {
		t.Error("Did not expect Debug message when minimum level is INFO")
	}
	if !strings.Contains(output, "Info message") {
		t.Error("Expected Info message but it was not found in the output")
	}
}

func TestLogger_WithFields(t *testing.T) {
	output := captureOutput(func() {
		logger := NewStandardLogger("case-service").With(map[string]interface{}{
			"tenant_id": "t-1",
		})
		logger.Info("update committed", map[string]interface{}{"case_id": "c-9"})
	})

	if !strings.Contains(output, "tenant_id=t-1") {
		t.Errorf("Expected base field in output, got: %s", output)
	}
	if !strings.Contains(output, "case_id=c-9") {
		t.Errorf("Expected call field in output, got: %s", output)
	}
}

func TestLogger_WithPrefix(t *testing.T) {
	output := captureOutput(func() {
		logger := NewStandardLogger("case-service").WithPrefix("repository")
		logger.Info("query executed", nil)
	})

	if !strings.Contains(output, "[repository]") {
		t.Errorf("Expected prefix in output, got: %s", output)
	}
}

func TestLoggerFromConfig_InvalidLevelDefaultsToInfo(t *testing.T) {
	output := captureOutput(func() {
		logger := NewLoggerFromConfig("case-service", LoggingConfig{Level: "nonsense"})
		logger.Debug("Debug message", nil)
		logger.Info("Info message", nil)
	})

	if strings.Contains(output, "Debug message") {
		t.Error("Debug should be filtered when the configured level is invalid")
	}
	if !strings.Contains(output, "Info message") {
		t.Error("Info should pass at the default level")
	}
}
