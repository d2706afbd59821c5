package domain

// ============================================================
// Health & Metrics API Responses
// ============================================================

// HealthStatus is returned by GET /healthz.
type HealthStatus struct {
	Status   string          `json:"status"` // healthy, degraded, unhealthy
	Services []ServiceHealth `json:"services"`
}

// ServiceHealth represents the health of an individual dependency.
type ServiceHealth struct {
	Name        string `json:"name"`
	Status      string `json:"status"`
	LatencyMs   int64  `json:"latencyMs"`
	LastChecked string `json:"lastChecked"`
}

// OutageMetrics is returned by GET /api/metrics/outages.
type OutageMetrics struct {
	Refreshes         int64   `json:"refreshes"`
	FallbackRate      float64 `json:"fallbackRate"`
	SourceErrors      int64   `json:"sourceErrors"`
	SnapshotSize      int64   `json:"snapshotSize"`
	CacheHitRate      float64 `json:"cacheHitRate"`
	NotificationsSent int64   `json:"notificationsSent"`
	Period            string  `json:"period"`
}

// SuccessResponse wraps a successful message-only response.
type SuccessResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}
