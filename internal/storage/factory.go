package storage

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/sorenbs/ai-chatbot-full/internal/storage/local"
	s3backend "github.com/sorenbs/ai-chatbot-full/internal/storage/s3"
)

// NewBackendFromConfig creates a Backend from a backend type string and JSON config.
func NewBackendFromConfig(ctx context.Context, backendType string, config json.RawMessage) (Backend, error) {
	switch backendType {
	case "s3":
		return s3backend.NewBackendFromJSON(ctx, config)
	case "local":
		return local.NewFromJSON(config)
	default:
		return nil, fmt.Errorf("unknown backend type: %s", backendType)
	}
}
