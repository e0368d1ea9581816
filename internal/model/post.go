package model

import "time"

// Post is a single blog entry.
//
// AuthorUsername, GroupTitle and GroupSlug are denormalised display fields
// filled by the list/detail queries (JOIN users, LEFT JOIN post_groups), so
// templates never trigger a follow-up query per row.
type Post struct {
	ID        int64     `json:"id"        db:"id"`
	Text      string    `json:"text"      db:"text"`
	CreatedAt time.Time `json:"createdAt" db:"created_at"`
	AuthorID  int64     `json:"authorId"  db:"author_id"`
	GroupID   *int64    `json:"groupId"   db:"group_id"` // nil when the post has no group (or its group was deleted)
	Image     string    `json:"image"     db:"image"`    // path relative to the media root, "" if none

	AuthorUsername string `json:"authorUsername"`
	GroupTitle     string `json:"groupTitle,omitempty"`
	GroupSlug      string `json:"groupSlug,omitempty"`
}

// HasGroup reports whether the post currently belongs to a group.
func (p *Post) HasGroup() bool {
	return p.GroupID != nil
}
