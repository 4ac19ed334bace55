package timing

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStopBeforeStartFails(t *testing.T) {
	sw := NewStopwatch()
	err := sw.Stop("never-started")
	assert.Error(t, err)
}

func TestDurationQueriesFailUntilComplete(t *testing.T) {
	sw := NewStopwatch()
	_, err := sw.Milliseconds("x")
	assert.Error(t, err)

	sw.Start("x")
	_, err = sw.Milliseconds("x")
	assert.Error(t, err, "event started but not stopped is not complete")

	require.NoError(t, sw.Stop("x"))
	ms, err := sw.Milliseconds("x")
	require.NoError(t, err)
	assert.GreaterOrEqual(t, ms, int64(0))
}

func TestStartOverwritesPriorRun(t *testing.T) {
	sw := NewStopwatch()
	sw.Start("x")
	require.NoError(t, sw.Stop("x"))
	sw.Start("x") // clears the prior end
	_, err := sw.Milliseconds("x")
	assert.Error(t, err)
}

func TestRunStartsAndStops(t *testing.T) {
	sw := NewStopwatch()
	err := sw.Run("work", func() error {
		time.Sleep(time.Millisecond)
		return nil
	})
	require.NoError(t, err)

	ms, err := sw.Milliseconds("work")
	require.NoError(t, err)
	assert.GreaterOrEqual(t, ms, int64(0))
}

func TestHumanFormatsBoundaries(t *testing.T) {
	cases := []struct {
		d    time.Duration
		want string
	}{
		{500 * time.Millisecond, "500ms"},
		{1500 * time.Millisecond, "1.500s"},
		{11 * time.Second, "11s"},
		{65 * time.Second, "1m5s"},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, humanDuration(tc.d))
	}
}

func TestNewUnzipSummaryAllocatesPerWorkerSlices(t *testing.T) {
	sum := NewUnzipSummary(4)
	assert.Len(t, sum.FilesPerWorker, 4)
	assert.Len(t, sum.BytesPerWorker, 4)
	assert.Len(t, sum.Watches, 4)
}
