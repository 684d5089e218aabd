package main

import (
	"testing"

	"github.com/limaJavier/timetabler/pkg/diagnostics"
	"github.com/limaJavier/timetabler/pkg/model"
	"github.com/samber/lo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDuration(t *testing.T) {
	assert.Equal(t, int64(60*1000+1000+120), parseDuration("00:01:01.12"))
	assert.Equal(t, int64(60*60*1000+60*1000+1000+120), parseDuration("01:01:01.12"))
	assert.Equal(t, int64(60*1000+1000+120), parseDuration("1:01.12"))
	assert.Equal(t, int64(120), parseDuration("0:00.12"))
	assert.Equal(t, int64(120), parseDuration("00:00:00.12"))
}

func TestParseTimeLines(t *testing.T) {
	assert.Equal(t, float32(2), parseMemoryLine("\tMaximum resident set size (kbytes): 2048"))
	assert.Equal(t, int64(99), parseCpuPercentageLine("\tPercent of CPU this job got: 99%"))
	assert.Equal(t, int64(1500), parseDurationLine("\tElapsed (wall clock) time (h:mm:ss or m:ss): 0:01.50"))
}

func TestGenerate(t *testing.T) {
	for _, school := range schools {
		t.Run(school.Name, func(t *testing.T) {
			//** Act
			state, err := generate(school)

			//** Assert
			require.NoError(t, err)
			assert.Len(t, state.Classes, school.Classes)
			hours := lo.SumBy(state.Blocks, func(block model.Block) int { return block.Duration })
			assert.Equal(t, school.Classes*school.Subjects*school.HoursPerSubject, hours)
			assert.Empty(t, model.Verify(state))
			assert.False(t, diagnostics.Analyze(state).Blocking(), diagnostics.Analyze(state).Summary())

			again, err := generate(school)
			require.NoError(t, err)
			assert.Equal(t, state.Teachers, again.Teachers)
		})
	}
}
