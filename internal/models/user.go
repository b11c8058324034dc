package models

import "time"

type User struct {
	ID        int64  `json:"id" redis:"id"`
	Username  string `json:"username" redis:"username"`
	CreatedAt int64  `json:"created_at" redis:"created_at"`
}

type UserSession struct {
	UserID       int64     `json:"user_id"`
	SessionID    string    `json:"session_id"`
	Username     string    `json:"username"`
	CreatedAt    time.Time `json:"created_at"`
	LastAccessed time.Time `json:"last_accessed"`
}
