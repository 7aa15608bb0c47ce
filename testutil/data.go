package testutil

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// BaseTime is the timestamp of the first generated observation.
var BaseTime = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

// ObservationJSON returns the wire form of a single observation.
// Observation i carries {"step": i} as its payload and a timestamp i seconds after BaseTime.
func ObservationJSON(source string, i int) []byte {
	data, _ := json.Marshal(observationMap(source, i))
	return data
}

// ObservationBatchJSON returns n observations from source as one JSON array,
// numbered from start.
func ObservationBatchJSON(source string, start, n int) []byte {
	batch := make([]map[string]any, n)
	for i := range batch {
		batch[i] = observationMap(source, start+i)
	}
	data, _ := json.Marshal(batch)
	return data
}

// BareObservationJSON returns an observation without id or timestamp, which
// the ingest path is expected to fill in.
func BareObservationJSON(source string, step int) []byte {
	return []byte(fmt.Sprintf(`{"source":%q,"payload":{"step":%d}}`, source, step))
}

func observationMap(source string, i int) map[string]any {
	return map[string]any{
		"id":        uuid.NewString(),
		"source":    source,
		"timestamp": BaseTime.Add(time.Duration(i) * time.Second),
		"payload":   map[string]int{"step": i},
	}
}

// MalformedPayloads are inputs the ingest path must reject without failing.
var MalformedPayloads = [][]byte{
	[]byte(``),
	[]byte(`not json`),
	[]byte(`{"id": 5}`),
	[]byte(`[{"source": "a"}, 7]`),
	[]byte(`{"timestamp": "yesterday"}`),
}
