// Package models defines the data types shared by the synchronization
// engine, the REST client and the push channel.
package models

// User identifies an account. The client mainly needs the id, to decide
// whether a pushed room-created event refers to its own action.
type User struct {
	ID    int64  `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}
