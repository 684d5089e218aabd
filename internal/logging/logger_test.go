package logging

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestNewLogger(t *testing.T) {
	t.Run("File receives debug entries", func(t *testing.T) {
		//** Arrange
		file := filepath.Join(t.TempDir(), "logs", "run.log")
		logger, err := NewLogger("error", "console", file)
		require.NoError(t, err)

		//** Act
		logger.Debug("attempt started", zap.Int("attempt", 1))
		_ = logger.Sync()

		//** Assert
		content, err := os.ReadFile(file)
		require.NoError(t, err)
		assert.Contains(t, string(content), `"msg":"attempt started"`)
		assert.Contains(t, string(content), `"attempt":1`)
	})

	t.Run("Json format", func(t *testing.T) {
		logger, err := NewLogger("info", "json", "")

		require.NoError(t, err)
		assert.NotNil(t, logger)
	})

	t.Run("Invalid level", func(t *testing.T) {
		_, err := NewLogger("loud", "console", "")

		assert.Error(t, err)
	})

	t.Run("Invalid format", func(t *testing.T) {
		_, err := NewLogger("info", "xml", "")

		assert.Error(t, err)
	})
}
