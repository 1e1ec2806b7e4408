package logger

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/noah-isme/learnupon-exporter/pkg/config"
)

func TestLevelMapping(t *testing.T) {
	assert.Equal(t, zapcore.ErrorLevel, Level(0))
	assert.Equal(t, zapcore.WarnLevel, Level(1))
	assert.Equal(t, zapcore.InfoLevel, Level(2))
	assert.Equal(t, zapcore.DebugLevel, Level(3))
}

func TestConsoleFormatByVerbosity(t *testing.T) {
	buf := &bytes.Buffer{}
	log := NewWithWriter(config.LogConfig{Format: "console"}, VerbosityInfo, buf)
	log.Info("exporting courses")
	log.Debug("hidden")

	assert.Equal(t, "INFO|exporting courses\n", buf.String())

	buf.Reset()
	log = NewWithWriter(config.LogConfig{Format: "console"}, VerbosityDebug, buf)
	log.Named("export").Debug("fetching grades")

	line := strings.TrimSpace(buf.String())
	parts := strings.Split(line, "|")
	if assert.Len(t, parts, 4) {
		assert.Equal(t, "learnupon_exporter.export", parts[0])
		_, err := time.Parse(timestampLayout, parts[1])
		assert.NoError(t, err)
		assert.Equal(t, "DEBUG", parts[2])
		assert.Equal(t, "fetching grades", parts[3])
	}
}

func TestWarningVerbosityDropsInfo(t *testing.T) {
	buf := &bytes.Buffer{}
	log := NewWithWriter(config.LogConfig{}, VerbosityDefault, buf)
	log.Info("quiet")
	log.Warn("loud")

	assert.Equal(t, "WARN|loud\n", buf.String())
}

func TestDebugConsoleKeepsFieldsAndChildLoggers(t *testing.T) {
	buf := &bytes.Buffer{}
	log := NewWithWriter(config.LogConfig{}, VerbosityDebug, buf).With(zap.String("run_id", "r1"))
	log.Named("course_export").Debug("dispatching", zap.Int("workers", 2))

	parts := strings.SplitN(strings.TrimSpace(buf.String()), "|", 5)
	if assert.Len(t, parts, 5) {
		assert.Equal(t, "learnupon_exporter.course_export", parts[0])
		assert.Equal(t, "DEBUG", parts[2])
		assert.Equal(t, "dispatching", parts[3])
		assert.JSONEq(t, `{"run_id":"r1","workers":2}`, parts[4])
	}
}

func TestJSONFormatKeepsTimestampAndName(t *testing.T) {
	buf := &bytes.Buffer{}
	NewWithWriter(config.LogConfig{Format: "json"}, VerbosityDebug, buf).Debug("hello")

	out := buf.String()
	assert.Contains(t, out, `"logger":"learnupon_exporter"`)
	assert.Contains(t, out, `"timestamp":`)
	assert.Contains(t, out, `"level":"debug"`)
}
