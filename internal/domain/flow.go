package domain

import "time"

// Provider identifies an identity provider. ProviderPassword only appears on
// pending signups; OAuth flows accept google and apple.
type Provider string

const (
	ProviderGoogle   Provider = "google"
	ProviderApple    Provider = "apple"
	ProviderPassword Provider = "password"
)

// ValidOAuthProvider reports whether p can start an OAuth flow.
func ValidOAuthProvider(p Provider) bool {
	return p == ProviderGoogle || p == ProviderApple
}

// Mode distinguishes login from signup OAuth flows.
type Mode string

const (
	ModeLogin  Mode = "login"
	ModeSignup Mode = "signup"
)

func ValidMode(m Mode) bool {
	return m == ModeLogin || m == ModeSignup
}

// Binding is the challenge material tying an authorization request to its
// callback. Exactly one concrete type is held per flow: PKCEBinding for
// code-flow providers (google), NonceBinding for id-token providers (apple).
type Binding interface {
	binding()
}

// PKCEBinding holds the server-side half of a PKCE pair. The derived challenge
// travels in the authorization URL; the verifier never leaves the process.
type PKCEBinding struct {
	Verifier string
}

func (PKCEBinding) binding() {}

// NonceBinding holds the nonce echoed back inside the provider's identity token.
type NonceBinding struct {
	Nonce string
}

func (NonceBinding) binding() {}

// SignupContext carries the pending-signup fields attached to a signup-mode
// OAuth flow. All required fields are validated before any state is stored.
type SignupContext struct {
	FullName    string    `json:"full_name"`
	Email       string    `json:"email"` // normalized lower-case
	UserType    string    `json:"user_type"`
	Plan        string    `json:"plan"`
	PlanType    string    `json:"plan_type"`
	Business    string    `json:"business,omitempty"`
	Employer    string    `json:"employer,omitempty"`
	Niche       string    `json:"niche,omitempty"`
	RequestedAt time.Time `json:"requested_at"`
}

// FlowContext is the immutable request context stored against an OAuth
// correlation token. It survives the provider round trip server-side; nothing
// in it is ever exposed to the browser or the provider.
type FlowContext struct {
	Provider       Provider
	Mode           Mode
	DeviceID       string
	RememberDevice bool
	RedirectTo     string // sanitized relative path, or empty
	Signup         *SignupContext
	Binding        Binding
}
