package logger

import (
	"os"
	"testing"

	"github.com/stretchr/testify/require"

	"gitlab.com/gitlab-org/correlated-http/internal/config"
)

func createTempFile(t *testing.T) string {
	t.Helper()

	tmpFile, err := os.CreateTemp(t.TempDir(), "logtest-")
	require.NoError(t, err)
	tmpFile.Close()

	return tmpFile.Name()
}

func TestConfigureLoggerToFile(t *testing.T) {
	tmpFile := createTempFile(t)
	cfg := &config.Config{
		LogFile:   tmpFile,
		LogFormat: "json",
		LogLevel:  "debug",
	}

	log, closer, err := ConfigureLogger(cfg)
	require.NoError(t, err)
	require.NotNil(t, closer)
	defer func() { require.NoError(t, closer.Close()) }()

	log.Info("this is a test")
	log.Debug("debug log message")

	data, err := os.ReadFile(tmpFile)
	require.NoError(t, err)

	dataStr := string(data)
	require.Contains(t, dataStr, `"msg":"this is a test"`)
	require.Contains(t, dataStr, `"msg":"debug log message"`)
}

func TestConfigureLoggerLevelFiltering(t *testing.T) {
	tmpFile := createTempFile(t)
	cfg := &config.Config{
		LogFile:   tmpFile,
		LogFormat: "json",
		LogLevel:  "warn",
	}

	log, closer, err := ConfigureLogger(cfg)
	require.NoError(t, err)
	defer func() { require.NoError(t, closer.Close()) }()

	log.Debug("suppressed")
	log.Warn("kept")

	data, err := os.ReadFile(tmpFile)
	require.NoError(t, err)

	require.NotContains(t, string(data), "suppressed")
	require.Contains(t, string(data), "kept")
}

func TestConfigureLoggerTextFormat(t *testing.T) {
	tmpFile := createTempFile(t)
	cfg := &config.Config{
		LogFile:   tmpFile,
		LogFormat: "text",
	}

	log, closer, err := ConfigureLogger(cfg)
	require.NoError(t, err)
	defer func() { require.NoError(t, closer.Close()) }()

	log.Info("text mode")

	data, err := os.ReadFile(tmpFile)
	require.NoError(t, err)
	require.Contains(t, string(data), `msg="text mode"`)
}

func TestConfigureLoggerEmptyLogFile(t *testing.T) {
	log, closer, err := ConfigureLogger(&config.Config{})
	require.NoError(t, err)
	require.Nil(t, closer)
	require.NotNil(t, log)
}

func TestConfigureLoggerDirectoryFailure(t *testing.T) {
	cfg := &config.Config{
		LogFile:   t.TempDir(),
		LogFormat: "json",
	}

	log, closer, err := ConfigureLogger(cfg)
	require.Error(t, err)
	require.Nil(t, closer)
	require.NotNil(t, log, "we should still be logging to stderr in this case")
}
