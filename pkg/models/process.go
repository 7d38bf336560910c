package models

// DetectedProcess is an agent process found by discovery during one poll cycle.
// It is never persisted.
type DetectedProcess struct {
	PID        int    `json:"pid"`
	ProjectDir string `json:"project_dir"`
}
