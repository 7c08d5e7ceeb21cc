package models

import "time"

// User is an account that can sign in and chat with the admissions office.
type User struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
}

// Identity is the resolved principal attached to an authenticated request
// or a bound relay connection. Admin is true only for the single configured
// administrator id.
type Identity struct {
	ID    string
	Admin bool
}
