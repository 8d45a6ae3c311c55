// Package model defines the data structures used throughout the application.
package model

import "time"

// User is a registered account.
//
// Password holds the bcrypt hash, never the plaintext. It is tagged `json:"-"`
// so a User can be encoded into a response without ever leaking the hash.
// Accounts created through GitHub sign-in carry NoPassword instead of a hash,
// which no bcrypt comparison can ever match.
type User struct {
	ID        int64     `json:"id"         db:"id"`
	Email     string    `json:"email"      db:"email"`
	Password  string    `json:"-"          db:"password"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// NoPassword marks an account that can only sign in through an external
// identity provider.
const NoPassword = "!"
