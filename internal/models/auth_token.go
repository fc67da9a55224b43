package models

import (
	"time"
)

type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

// AuthToken records an issued session token so that sign-out can revoke it.
type AuthToken struct {
	Token     string    `bson:"_id" json:"token"`
	UID       string    `bson:"uid,omitempty" json:"uid,omitempty"`
	Role      Role      `bson:"role" json:"role"`
	ExpiresAt time.Time `bson:"expires_at" json:"expires_at"`
	IsRevoked bool      `bson:"is_revoked" json:"is_revoked"`
	CreatedAt time.Time `bson:"created_at" json:"created_at"`
}

func (t *AuthToken) IsExpired() bool {
	return time.Now().After(t.ExpiresAt)
}
