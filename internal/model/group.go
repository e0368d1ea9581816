package model

// Group is a named category that posts may optionally belong to.
// Groups are created by an administrator and are immutable afterwards.
type Group struct {
	ID          int64  `json:"id"          db:"id"`
	Title       string `json:"title"       db:"title"`
	Slug        string `json:"slug"        db:"slug"`
	Description string `json:"description" db:"description"`
}
