package jobs

// Status represents the lifecycle state of a simulation job in the
// simulations table. These values must match the text values stored in
// the database (simulations.status).
//
// Centralizing these here avoids scattering string literals like
// "queued" or "done" across packages.
type Status string

const (
	StatusQueued  Status = "queued"
	StatusRunning Status = "running"
	StatusDone    Status = "done"
	StatusFailed  Status = "failed"
)
