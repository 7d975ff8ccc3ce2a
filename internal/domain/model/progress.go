package model

// ProgressInfo is the latest structured progress fact parsed from the
// generator's output stream. It is ephemeral and tied to the active job.
type ProgressInfo struct {
	Percentage  float64 `json:"percentage"`
	CurrentStep int     `json:"current_step"`
	TotalSteps  int     `json:"total_steps"`
	Rate        string  `json:"rate,omitempty"`
	ETA         string  `json:"eta,omitempty"`
	Description string  `json:"description"`
	// ElapsedTime is seconds parsed from the progress line itself.
	ElapsedTime float64 `json:"elapsed_time"`
}
