package logging

import (
	"bytes"
	"strings"
	"sync"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDebug_DisabledInProduction(t *testing.T) {
	var buf bytes.Buffer

	logger := log.NewWithOptions(&buf, log.Options{
		ReportTimestamp: false,
		ReportCaller:    false,
	})
	logger.SetLevel(log.DebugLevel)

	appLogger := &AppLogger{
		logger: logger,
		debug:  false,
	}

	appLogger.Debug("debug message that should not appear")

	assert.NotContains(t, buf.String(), "debug message that should not appear")
}

func TestNewAppLoggerTo_DefaultsToWarnings(t *testing.T) {
	t.Setenv(DebugEnv, "")
	var buf bytes.Buffer
	logger := NewAppLoggerTo(&buf)

	logger.Info("routine progress")
	logger.Warn(`Using deprecated refspec for repository "kas2".`)

	output := buf.String()
	assert.NotContains(t, output, "routine progress")
	assert.Contains(t, output, `Using deprecated refspec for repository "kas2".`)
}

func TestNewAppLoggerTo_DebugEnv(t *testing.T) {
	t.Setenv(DebugEnv, "1")
	var buf bytes.Buffer
	logger := NewAppLoggerTo(&buf)

	logger.Debug("fetching", "repository", "kas")

	assert.Contains(t, buf.String(), "fetching")
}

func TestSetLevel(t *testing.T) {
	testCases := map[string]struct {
		level     string
		expectErr bool
		infoShown bool
	}{
		"info shows info":   {level: "info", infoShown: true},
		"upper case level":  {level: "INFO", infoShown: true},
		"error hides info":  {level: "error", infoShown: false},
		"unknown is refused": {level: "loud", expectErr: true},
	}

	for tn, tc := range testCases {
		t.Run(tn, func(t *testing.T) {
			t.Setenv(DebugEnv, "")
			var buf bytes.Buffer
			logger := NewAppLoggerTo(&buf)

			err := logger.SetLevel(tc.level)
			if tc.expectErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)

			logger.Info("visible?")
			assert.Equal(t, tc.infoShown, strings.Contains(buf.String(), "visible?"))
		})
	}
}

func TestWith_AddsContext(t *testing.T) {
	logger, buf := NewTestLogger()

	logger.With("repository", "kas3").Warn("tag checkout")

	output := buf.String()
	assert.Contains(t, output, "tag checkout")
	assert.Contains(t, output, "kas3")
}

func TestLogMessage(t *testing.T) {
	logger, buf := NewTestLogger()

	logger.LogMessage(tea.KeyMsg{Type: tea.KeySpace, Runes: []rune{' '}})

	output := buf.String()
	assert.Contains(t, output, "Message received")
	assert.Contains(t, output, "tea.KeyMsg")
}

func TestLogMessage_DisabledInProduction(t *testing.T) {
	var buf bytes.Buffer

	logger := log.NewWithOptions(&buf, log.Options{})
	logger.SetLevel(log.DebugLevel)

	appLogger := &AppLogger{logger: logger, debug: false}
	appLogger.LogMessage(tea.KeyMsg{Type: tea.KeySpace})

	assert.NotContains(t, buf.String(), "Message received")
}

func TestLogPerformance(t *testing.T) {
	logger, buf := NewTestLogger()

	start := time.Now()
	time.Sleep(1 * time.Millisecond)
	logger.LogPerformance("checkout", start)

	output := buf.String()
	assert.Contains(t, output, "Performance")
	assert.Contains(t, output, "checkout")
	assert.Contains(t, output, "duration")
}

func TestGetDefault_Singleton(t *testing.T) {
	defaultLogger = nil
	once = sync.Once{}

	logger1 := GetDefault()
	logger2 := GetDefault()

	assert.Same(t, logger1, logger2)
}

func BenchmarkInfo(b *testing.B) {
	logger, _ := NewTestLogger()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		logger.Info("benchmark message", "iteration", i)
	}
}
