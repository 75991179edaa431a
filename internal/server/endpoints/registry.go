package endpoints

import (
	"satchel/internal/api"
)

// Config holds dependencies needed by some endpoints.
type Config struct {
	SwaggerSpecPath string
}

// All returns all endpoint instances.
func All(cfg Config) []api.Endpoint {
	return []api.Endpoint{
		// Health endpoints
		&HealthEndpoint{},
		&ReadyEndpoint{},

		// Book endpoints
		&ListBooksEndpoint{},
		&GetBookEndpoint{},
		&ListPagesEndpoint{},

		// Classifier endpoint
		&ClassifyEndpoint{},
		&ResetDetectionEndpoint{},

		// Indexing endpoints
		&StartIndexEndpoint{},
		&IndexStatusEndpoint{},

		// Search endpoint
		&SearchEndpoint{},

		// OpenAPI spec
		&SwaggerEndpoint{SpecPath: cfg.SwaggerSpecPath},
	}
}
