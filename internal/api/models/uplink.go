package models

import "github.com/airsense/airsense/internal/pipeline"

// MaxBatchSize bounds the number of uplinks in one batch request.
const MaxBatchSize = 500

// PrepareResponse is the body of POST /v1/uplinks:prepare.
type PrepareResponse struct {
	*pipeline.Result
	Published bool `json:"published"`
}

// BatchResponse is the body of POST /v1/uplinks:batch.
type BatchResponse struct {
	*pipeline.BatchResult
	Published    bool   `json:"published"`
	PublishError string `json:"publishError,omitempty"`
}
