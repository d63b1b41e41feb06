package graph

import (
	"github.com/flanksource/commons/http"
)

// Config connects the engine to the device-management service. Token
// acquisition is the caller's concern; the engine only attaches the
// bearer token it is given.
type Config struct {
	// BaseURL of the service, e.g. https://graph.example.com/v1.0
	BaseURL string
	Token   string

	// MaxBatchSize is the server-side limit on entries per batch
	// submission.
	MaxBatchSize int

	InsecureSkipVerify bool
	Options            []func(*http.Client)
}

func (t Config) Valid() bool {
	return t.BaseURL != "" && t.Token != ""
}

func (t Config) IsPartiallyFilled() bool {
	return !t.Valid() && (t.BaseURL != "" || t.Token != "")
}
