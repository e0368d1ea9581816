package model

// Follow is a directed edge: UserID receives AuthorID's posts in their feed.
// The pair (UserID, AuthorID) is unique and UserID never equals AuthorID.
type Follow struct {
	ID       int64 `json:"id"       db:"id"`
	UserID   int64 `json:"userId"   db:"user_id"`
	AuthorID int64 `json:"authorId" db:"author_id"`
}
