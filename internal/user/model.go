package user

import "time"

type User struct {
	ID           int       `json:"id"`
	Username     string    `json:"username"`
	PasswordHash string    `json:"-"` // Never expose password in JSON
	CreatedAt    time.Time `json:"created_at"`
}
