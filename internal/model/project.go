package model

import "time"

// Project is a catalog listing created by a user.
//
// Tags is stored as a JSON array in a single TEXT column (see the sqlite
// repository). Stars only ever grows, one increment per star request.
type Project struct {
	ID          int64     `json:"id"          db:"id"`
	UserID      int64     `json:"user_id"     db:"user_id"`
	Title       string    `json:"title"       db:"title"`
	Description string    `json:"description" db:"description"`
	Tags        []string  `json:"tags"        db:"tags"`
	Stars       int64     `json:"stars"       db:"stars"`
	CreatedAt   time.Time `json:"created_at"  db:"created_at"`
}

// AnonymousCreator is shown as the creator email when a project's user_id
// does not resolve to a user row.
const AnonymousCreator = "anonymous"

// ProjectView is the shape returned by the list endpoint: the project plus
// its creator's email and the contributor count.
//
// Contributors is the number of registered users in the whole system at
// query time. It is NOT scoped to the project.
type ProjectView struct {
	Project
	CreatorEmail string `json:"creator_email"`
	Contributors int64  `json:"contributors"`
}
