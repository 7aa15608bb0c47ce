package replay

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tristan-jl/replay-memory/errors"
	"github.com/tristan-jl/replay-memory/testutil"
)

func fixedClock() time.Time {
	return time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
}

func TestDecodeObservations_Single(t *testing.T) {
	obs, err := DecodeObservations(testutil.ObservationJSON("sensor-a", 3), fixedClock)
	require.NoError(t, err)
	require.Len(t, obs, 1)

	assert.Equal(t, "sensor-a", obs[0].Source)
	assert.Equal(t, testutil.BaseTime.Add(3*time.Second), obs[0].Timestamp.UTC())
	assert.JSONEq(t, `{"step":3}`, string(obs[0].Payload))
	_, err = uuid.Parse(obs[0].ID)
	assert.NoError(t, err)
}

func TestDecodeObservations_Batch(t *testing.T) {
	obs, err := DecodeObservations(testutil.ObservationBatchJSON("sensor-b", 10, 4), fixedClock)
	require.NoError(t, err)
	require.Len(t, obs, 4)

	for i, o := range obs {
		var payload map[string]int
		require.NoError(t, json.Unmarshal(o.Payload, &payload))
		assert.Equal(t, 10+i, payload["step"])
	}
}

func TestDecodeObservations_FillsMissingFields(t *testing.T) {
	obs, err := DecodeObservations(testutil.BareObservationJSON("bare", 1), fixedClock)
	require.NoError(t, err)
	require.Len(t, obs, 1)

	_, err = uuid.Parse(obs[0].ID)
	assert.NoError(t, err, "missing id should be replaced by a UUID")
	assert.Equal(t, fixedClock(), obs[0].Timestamp)
}

func TestDecodeObservations_KeepsExplicitFields(t *testing.T) {
	data := []byte(`[
		{"id": "a", "source": "s1", "timestamp": "2024-01-01T00:00:00Z", "payload": [1, 2]},
		{"id": "b", "timestamp": "2024-01-01T00:00:01Z"}
	]`)

	obs, err := DecodeObservations(data, fixedClock)
	require.NoError(t, err)

	want := []Observation{
		{ID: "a", Source: "s1", Timestamp: testutil.BaseTime, Payload: json.RawMessage(`[1, 2]`)},
		{ID: "b", Timestamp: testutil.BaseTime.Add(time.Second)},
	}
	if diff := cmp.Diff(want, obs); diff != "" {
		t.Errorf("DecodeObservations() mismatch (-want +got):\n%s", diff)
	}
}

func TestDecodeObservations_EmptyArray(t *testing.T) {
	obs, err := DecodeObservations([]byte(" [] "), fixedClock)
	require.NoError(t, err)
	assert.Empty(t, obs)
}

func TestDecodeObservations_Malformed(t *testing.T) {
	for _, payload := range testutil.MalformedPayloads {
		t.Run(string(payload), func(t *testing.T) {
			_, err := DecodeObservations(payload, fixedClock)
			require.Error(t, err)
			assert.True(t, errors.IsInvalid(err))
		})
	}
}

func TestObservation_String(t *testing.T) {
	assert.Equal(t, "abc", Observation{ID: "abc", Source: "x"}.String())
}
