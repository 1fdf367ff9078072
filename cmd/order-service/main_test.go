package main

import (
	"testing"

	log "github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
)

func TestConfigFiles(t *testing.T) {
	files, format, err := configFiles(nil)
	require.NoError(t, err)
	require.Empty(t, files)
	require.Equal(t, "text", format)

	files, format, err = configFiles([]string{"-config", "/tmp/shopdesk.yaml", "-log-format=json"})
	require.NoError(t, err)
	require.Equal(t, []string{"/tmp/shopdesk.yaml"}, files)
	require.Equal(t, "json", format)

	_, _, err = configFiles([]string{"-unknown"})
	require.Error(t, err)
}

func TestSetupLogger(t *testing.T) {
	t.Cleanup(func() { log.SetFormatter(&log.TextFormatter{}) })

	setupLogger("json")
	require.IsType(t, &log.JSONFormatter{}, log.StandardLogger().Formatter)

	setupLogger("text")
	require.IsType(t, &log.TextFormatter{}, log.StandardLogger().Formatter)
	require.Equal(t, log.InfoLevel, log.GetLevel())
}
