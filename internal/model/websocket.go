package model

// WebSocket message types
const (
	WSMessageTypePing = "ping"
	WSMessageTypePong = "pong"
)

// WSMessage represents a generic WebSocket message
type WSMessage struct {
	Type string `json:"type"`
}

// ProgressMessage is one progress event delivered to live observers of a
// job: step identifier, milestone progress (or -1 on error) and a
// human-readable message.
type ProgressMessage struct {
	JobID    string       `json:"jobId"`
	Step     PipelineStep `json:"step"`
	Progress int          `json:"progress"`
	Message  string       `json:"message"`
}
