package replay

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/tristan-jl/replay-memory/errors"
)

// Observation is one replay item as carried over NATS. The payload is kept
// opaque; the service never interprets it.
type Observation struct {
	ID        string          `json:"id"`
	Source    string          `json:"source,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
	Payload   json.RawMessage `json:"payload,omitempty"`
}

// String returns the observation ID, which keeps buffer renderings short.
func (o Observation) String() string {
	return o.ID
}

// DecodeObservations parses a single JSON observation or a JSON array of them.
// Missing IDs get a fresh UUID and missing timestamps get now().
func DecodeObservations(data []byte, now func() time.Time) ([]Observation, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil, errors.WrapInvalid(fmt.Errorf("%w: empty message", errors.ErrInvalidData),
			"Observation", "Decode", "decode")
	}

	var obs []Observation
	if data[0] == '[' {
		if err := json.Unmarshal(data, &obs); err != nil {
			return nil, errors.WrapInvalid(fmt.Errorf("%w: %w", errors.ErrParsingFailed, err),
				"Observation", "Decode", "decode batch")
		}
	} else {
		var single Observation
		if err := json.Unmarshal(data, &single); err != nil {
			return nil, errors.WrapInvalid(fmt.Errorf("%w: %w", errors.ErrParsingFailed, err),
				"Observation", "Decode", "decode")
		}
		obs = []Observation{single}
	}

	ts := now()
	for i := range obs {
		if obs[i].ID == "" {
			obs[i].ID = uuid.NewString()
		}
		if obs[i].Timestamp.IsZero() {
			obs[i].Timestamp = ts
		}
	}
	return obs, nil
}
