package domain

import "time"

// PendingSignup is the payload bound to an email-verification token. The store
// treats it as opaque; the signup service validates and normalizes it before
// issuing a token. PasswordHash is set only when Provider is password.
type PendingSignup struct {
	FullName     string    `json:"full_name"`
	Email        string    `json:"email"` // normalized lower-case
	UserType     string    `json:"user_type"`
	Plan         string    `json:"plan"`
	PlanType     string    `json:"plan_type"`
	Business     string    `json:"business,omitempty"`
	Employer     string    `json:"employer,omitempty"`
	Niche        string    `json:"niche,omitempty"`
	Provider     Provider  `json:"provider"` // password | google | apple
	PasswordHash string    `json:"-"`
	DeviceID     string    `json:"device_id"`
	RequestedAt  time.Time `json:"requested_at"`
}
