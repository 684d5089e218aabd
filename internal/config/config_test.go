package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/limaJavier/timetabler/pkg/engine"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestDefault(t *testing.T) {
	//** Act
	cfg := Default()
	options, err := cfg.Options(nil, nil)
	require.NoError(t, err)
	editOptions, err := cfg.EditOptions(nil, nil)
	require.NoError(t, err)

	//** Assert
	assert.NoError(t, Validate(cfg))
	defaults := engine.DefaultOptions()
	assert.Equal(t, defaults.Weights, options.Weights)
	assert.Equal(t, defaults.Profiles, options.Profiles)
	assert.Equal(t, defaults.Retention, options.Retention)
	assert.Equal(t, defaults.AttemptTimeout, options.AttemptTimeout)
	assert.Equal(t, engine.DefaultEditOptions().MaxIterations, editOptions.MaxIterations)
	assert.Equal(t, "focused", editOptions.Scope.Name())
}

func TestLoadFromPath(t *testing.T) {
	//** Arrange
	path := filepath.Join(t.TempDir(), FileName)
	content := `
solver:
  attemptTimeout: 5s
  retention: keep-current
weights:
  gap: 25
profiles:
  - name: only
    fragmentation: 1
    singleLesson: 0.5
    condensation: 0
edit:
  planner: greedy
  scope: free
  timeout: 2s
logging:
  level: debug
  format: json
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	//** Act
	cfg, err := LoadFromPath(path)

	//** Assert
	require.NoError(t, err)
	assert.Equal(t, 5*time.Second, cfg.Solver.AttemptTimeout)
	assert.Equal(t, 25, cfg.Weights.Gap)
	// Keys absent from the file keep their default
	assert.Equal(t, Default().Weights.Morning, cfg.Weights.Morning)
	assert.True(t, cfg.Solver.PreFlight)
	assert.Equal(t, "json", cfg.Logging.Format)

	options, err := cfg.Options(zap.NewNop(), nil)
	require.NoError(t, err)
	assert.Equal(t, engine.KeepCurrent, options.Retention)
	assert.Equal(t, []engine.RelaxationProfile{{Name: "only", Fragmentation: 1, SingleLesson: 0.5}}, options.Profiles)

	editOptions, err := cfg.EditOptions(zap.NewNop(), nil)
	require.NoError(t, err)
	assert.Equal(t, "free", editOptions.Scope.Name())
	assert.Equal(t, 2*time.Second, editOptions.Timeout)

	planner, err := cfg.Planner(zap.NewNop(), nil)
	require.NoError(t, err)
	assert.NotNil(t, planner)
}

func TestLoadFromPath_MissingFile(t *testing.T) {
	_, err := LoadFromPath(filepath.Join(t.TempDir(), "missing.yaml"))

	assert.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read config file")
}

func TestParse_Invalid(t *testing.T) {
	cases := []struct {
		name    string
		content string
	}{
		{name: "Malformed yaml", content: "solver: [unclosed"},
		{name: "Unknown retention", content: "solver:\n  retention: keep-everything"},
		{name: "Negative weight", content: "weights:\n  gap: -1"},
		{name: "Zero timeout", content: "solver:\n  attemptTimeout: 0s"},
		{name: "Profile factor above one", content: "profiles:\n  - name: loud\n    fragmentation: 2"},
		{name: "Duplicate profile names", content: "profiles:\n  - name: a\n  - name: a"},
		{name: "Empty profiles", content: "profiles: []"},
		{name: "Unknown scope", content: "edit:\n  scope: everything"},
		{name: "Unknown planner", content: "edit:\n  planner: oracle"},
		{name: "Unknown log format", content: "logging:\n  format: xml"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Parse([]byte(tc.content))

			assert.Error(t, err)
		})
	}
}

func TestPlanner(t *testing.T) {
	for _, name := range []string{"resolver", "greedy", "fallback"} {
		t.Run(name, func(t *testing.T) {
			//** Arrange
			cfg := Default()
			cfg.Edit.Planner = name

			//** Act
			planner, err := cfg.Planner(nil, nil)

			//** Assert
			require.NoError(t, err)
			assert.NotNil(t, planner)
		})
	}
}
