package logging

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitWritesToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "slm.log")

	require.NoError(t, Init(Options{Level: "debug", File: path}))
	assert.Equal(t, logrus.DebugLevel, Get().GetLevel())

	For("test").Info("hello from test")

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(data), "hello from test"))
	assert.True(t, strings.Contains(string(data), "component=test"))
}

func TestInitBadLevelFallsBackToInfo(t *testing.T) {
	require.NoError(t, Init(Options{Level: "loud"}))
	assert.Equal(t, logrus.InfoLevel, Get().GetLevel())
}

func TestInitJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "slm.json")
	require.NoError(t, Init(Options{Level: "info", File: path, JSON: true}))

	Infof("trained %d models", 2)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"msg":"trained 2 models"`)
}
