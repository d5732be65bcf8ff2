package config

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("APP_CONFIG", "")
	t.Setenv("PORT", "")
	t.Setenv("DATABASE_URL", "")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 8080, cfg.Server.Port)

	w, err := cfg.PaymentEditWindow()
	require.NoError(t, err)
	assert.Equal(t, 24*time.Hour, w)
}

func TestLoad_YAMLThenEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	yml := []byte(`
server:
  port: 9090
database:
  dsn: "file:test.db"
ledger:
  payment_edit_window: 12h
logging:
  level: debug
`)
	require.NoError(t, os.WriteFile(path, yml, 0o600))

	t.Setenv("PORT", "7070")
	t.Setenv("DATABASE_URL", "")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 7070, cfg.Server.Port, "env overrides file")
	assert.Equal(t, "file:test.db", cfg.Database.DSN)
	assert.Equal(t, "debug", cfg.Logging.Level)

	w, err := cfg.PaymentEditWindow()
	require.NoError(t, err)
	assert.Equal(t, 12*time.Hour, w)
}

func TestLoad_MissingFileIsNotAnError(t *testing.T) {
	t.Setenv("PORT", "")
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
}

func TestValidate(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Ledger.PaymentEditWindow = "soon"
	assert.Error(t, cfg.Validate())

	cfg = DefaultConfig()
	cfg.Ledger.PaymentEditWindow = "-1h"
	assert.Error(t, cfg.Validate())

	cfg = DefaultConfig()
	cfg.Server.Port = 0
	assert.Error(t, cfg.Validate())

	cfg = DefaultConfig()
	cfg.Database.DSN = " "
	assert.Error(t, cfg.Validate())
}

func TestLogError_Fields(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(LoggingConfig{Level: "info", Format: "json"})
	logger.SetOutput(&buf)

	LogError(logger, "ledger", "UpdatePayment", "load", map[string]int{"id": 3}, errors.New("boom"))

	out := buf.String()
	assert.Contains(t, out, `"module":"ledger"`)
	assert.Contains(t, out, `"funcName":"UpdatePayment"`)
	assert.Contains(t, out, `"msg":"boom"`)
	assert.Contains(t, out, `"data"`)
}

func TestNewLogger_BadLevelFallsBackToInfo(t *testing.T) {
	logger := NewLogger(LoggingConfig{Level: "loud", Format: "text"})
	assert.Equal(t, logrus.InfoLevel, logger.GetLevel())
}
