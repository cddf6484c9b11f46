package models

import (
	"crypto/rand"
	"encoding/hex"
	"time"
)

// AuthToken is the API key a user presents as "Authorization: Token <key>"
type AuthToken struct {
	Key     string    `json:"key"`
	UserID  int64     `json:"user_id"`
	Created time.Time `json:"created"`
}

// GenerateTokenKey returns a random 40 character hex key
func GenerateTokenKey() (string, error) {
	b := make([]byte, 20)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
