package api

// =============================================================================
// Request Types
// =============================================================================

// DeployRequest is the request body for creating a deployment.
type DeployRequest struct {
	Strategy string                       `json:"strategy"`
	Name     string                       `json:"name"`
	Env      map[string]map[string]string `json:"env,omitempty"`
	Network  string                       `json:"network,omitempty"`
}

// =============================================================================
// Response Types
// =============================================================================

// ErrorResponse is the standard error envelope.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// HealthResponse is the response for the health endpoint.
type HealthResponse struct {
	Status string `json:"status"`
}

// ReadyResponse is the response for the readiness endpoint.
type ReadyResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}

// ListStrategiesResponse is the response for listing strategies.
type ListStrategiesResponse struct {
	Strategies []StrategySummary `json:"strategies"`
	Total      int               `json:"total"`
	Limit      int               `json:"limit"`
	Offset     int               `json:"offset"`
}

// StrategySummary is the listing view of a strategy.
type StrategySummary struct {
	Name       string   `json:"name"`
	Containers []string `json:"containers"`
}
