package domain

import "time"

// Account is a user materialized from a completed OAuth flow or a redeemed
// signup verification.
// PK: account_id. GSIs: provider_subject-index, email-index.
type Account struct {
	AccountID       string    `json:"id" dynamodbav:"account_id"`
	Provider        Provider  `json:"provider" dynamodbav:"provider"`
	ProviderSubject string    `json:"-" dynamodbav:"provider_subject"` // "<provider>#<sub>"
	Email           string    `json:"email" dynamodbav:"email"`
	EmailVerified   bool      `json:"email_verified" dynamodbav:"email_verified"`
	FullName        string    `json:"full_name" dynamodbav:"full_name"`
	UserType        string    `json:"user_type" dynamodbav:"user_type"`
	Plan            string    `json:"plan" dynamodbav:"plan"`
	PlanType        string    `json:"plan_type" dynamodbav:"plan_type"`
	Business        string    `json:"business,omitempty" dynamodbav:"business"`
	Employer        string    `json:"employer,omitempty" dynamodbav:"employer"`
	Niche           string    `json:"niche,omitempty" dynamodbav:"niche"`
	PasswordHash    string    `json:"-" dynamodbav:"password_hash"`
	Enable          bool      `json:"enable" dynamodbav:"enable"`
	CreatedAt       time.Time `json:"created" dynamodbav:"created_at"`
	UpdatedAt       time.Time `json:"updated" dynamodbav:"updated_at"`
}

// SubjectKey builds the provider_subject-index key for a provider/subject pair.
func SubjectKey(p Provider, sub string) string {
	return string(p) + "#" + sub
}
