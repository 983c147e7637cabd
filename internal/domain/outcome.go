package domain

// FlowOutcome is the terminal result of a completed OAuth redirect, held by the
// result relay under a one-time delivery token until the client polls it.
type FlowOutcome struct {
	Status     OutcomeStatus `json:"status"`
	Provider   Provider      `json:"provider"`
	Mode       Mode          `json:"mode"`
	Bearer     string        `json:"bearer,omitempty"`
	Account    *Account      `json:"account,omitempty"`
	DeviceID   string        `json:"device_id,omitempty"`
	RedirectTo string        `json:"redirect_to,omitempty"`
	Error      string        `json:"error,omitempty"`
}

// OutcomeStatus marks a relayed outcome as success or failure.
type OutcomeStatus string

const (
	OutcomeSuccess OutcomeStatus = "success"
	OutcomeFailure OutcomeStatus = "failure"
)
