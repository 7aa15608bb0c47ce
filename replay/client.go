package replay

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/tristan-jl/replay-memory/errors"
)

// SampleClient requests samples from a running replay service.
type SampleClient struct {
	requester Requester
	subject   string
}

// NewSampleClient creates a client for the service answering on subject.
func NewSampleClient(requester Requester, subject string) *SampleClient {
	if subject == "" {
		subject = "replay.sample"
	}
	return &SampleClient{requester: requester, subject: subject}
}

// Sample asks for n observations. n <= 0 leaves the size to the service's batch_size.
func (c *SampleClient) Sample(ctx context.Context, n int) (*SampleResponse, error) {
	var body []byte
	if n > 0 {
		var err error
		body, err = json.Marshal(SampleRequest{N: &n})
		if err != nil {
			return nil, errors.Wrap(err, "SampleClient", "Sample", "encode request")
		}
	}

	data, err := c.requester.Request(ctx, c.subject, body)
	if err != nil {
		return nil, errors.Wrap(err, "SampleClient", "Sample", "request "+c.subject)
	}

	var resp SampleResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, errors.WrapInvalid(fmt.Errorf("%w: %w", errors.ErrParsingFailed, err),
			"SampleClient", "Sample", "decode response")
	}
	if resp.Error != "" {
		return nil, errors.WrapInvalid(fmt.Errorf("%w: %s", errors.ErrInvalidData, resp.Error),
			"SampleClient", "Sample", "service rejected request")
	}
	return &resp, nil
}
