// Package model defines the entities shared by the repository, service and
// handler layers: users, groups, posts, comments and follow edges.
package model

import "time"

// User represents a registered account.
//
// Accounts are created either through the sign-up form (username + password)
// or on first GitHub login. GitHubID is a pointer because password accounts
// have no GitHub identity, and the UNIQUE constraint on github_id must allow
// many NULLs.
//
// PasswordHash is tagged json:"-" so it can never leak through an encoder.
type User struct {
	ID           int64     `json:"id"        db:"id"`
	Username     string    `json:"username"  db:"username"`
	Email        string    `json:"email"     db:"email"`
	PasswordHash string    `json:"-"         db:"password_hash"`
	GitHubID     *int64    `json:"githubId"  db:"github_id"`
	CreatedAt    time.Time `json:"createdAt" db:"created_at"`
}
