package model

import "time"

// Comment belongs to exactly one post and is deleted together with it.
type Comment struct {
	ID        int64     `json:"id"        db:"id"`
	PostID    int64     `json:"postId"    db:"post_id"`
	AuthorID  int64     `json:"authorId"  db:"author_id"`
	Text      string    `json:"text"      db:"text"`
	CreatedAt time.Time `json:"createdAt" db:"created_at"`

	AuthorUsername string `json:"authorUsername"`
}
