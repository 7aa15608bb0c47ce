package buffer

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatisticsCounters(t *testing.T) {
	s := NewStatistics()
	s.Push()
	s.Push()
	s.Push()
	s.Push()
	s.Evict()
	s.Get()
	s.Miss()
	s.Sample(3)
	s.UpdateSize(3)
	s.UpdateSize(2)

	assert.Equal(t, int64(4), s.Pushes())
	assert.Equal(t, int64(1), s.Evictions())
	assert.Equal(t, int64(1), s.Gets())
	assert.Equal(t, int64(1), s.Misses())
	assert.Equal(t, int64(1), s.Samples())
	assert.Equal(t, int64(3), s.SampledItems())
	assert.Equal(t, int64(2), s.CurrentSize())
	assert.Equal(t, int64(3), s.MaxSize())
	assert.InDelta(t, 0.25, s.EvictionRate(), 1e-9)
	assert.InDelta(t, 0.5, s.Utilization(4), 1e-9)
	assert.Zero(t, s.Utilization(0))
	assert.GreaterOrEqual(t, s.Uptime().Nanoseconds(), int64(0))
}

func TestStatisticsEmpty(t *testing.T) {
	s := NewStatistics()
	assert.Zero(t, s.EvictionRate())
	assert.GreaterOrEqual(t, s.Throughput(), 0.0)
}

func TestStatisticsReset(t *testing.T) {
	s := NewStatistics()
	s.Push()
	s.Evict()
	s.Sample(2)
	s.UpdateSize(5)

	s.Reset()

	assert.Zero(t, s.Pushes())
	assert.Zero(t, s.Evictions())
	assert.Zero(t, s.Samples())
	assert.Zero(t, s.SampledItems())
	assert.Zero(t, s.CurrentSize())
	assert.Zero(t, s.MaxSize())
}

func TestStatisticsSummaryJSON(t *testing.T) {
	s := NewStatistics()
	s.Push()
	s.UpdateSize(1)

	data, err := json.Marshal(s.Summary())
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.EqualValues(t, 1, decoded["pushes"])
	assert.EqualValues(t, 1, decoded["current_size"])
	assert.Contains(t, decoded, "eviction_rate")
}
