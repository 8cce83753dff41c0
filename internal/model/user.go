package model

import "time"

// User represents an administrator account.
//
// Two sign-in paths exist: a local password login (PasswordHash set) and
// GitHub OAuth (GitHubID set). Either one grants the single administrative
// capability; this is an admin-only tool with no finer-grained roles.
// PasswordHash is never serialized.
type User struct {
	ID           string    `json:"id"`
	GitHubID     int64     `json:"github_id,omitempty"`
	Login        string    `json:"login"`
	Email        string    `json:"email,omitempty"`
	AvatarURL    string    `json:"avatar_url,omitempty"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}
