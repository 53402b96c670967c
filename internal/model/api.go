package model

// UploadResponse acknowledges a queued job.
type UploadResponse struct {
	JobID   string    `json:"jobId"`
	Status  JobStatus `json:"status"`
	Message string    `json:"message"`
}

// JobListResponse wraps a snapshot of all job records.
type JobListResponse struct {
	Jobs []*Job `json:"jobs"`
}

// DeleteResponse confirms removal of a job and its media files.
type DeleteResponse struct {
	Message string `json:"message"`
}

// Health status values
const (
	HealthOK          = "ok"
	HealthDegraded    = "degraded"
	HealthUnreachable = "unreachable"
)

// HealthReport is the composite health of all downstream services.
// Per-service maps carry the downstream's own health fields verbatim.
type HealthReport struct {
	Status   string                    `json:"status"`
	Services map[string]map[string]any `json:"services"`
}
