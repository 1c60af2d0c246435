package models

import "time"

// Role is the privilege level carried by a user record and its token.
type Role string

const (
	RoleGuest Role = "guest" // never persisted; callers without a valid token
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

// Valid reports whether r can be stored on a user record.
func (r Role) Valid() bool {
	return r == RoleUser || r == RoleAdmin
}

// User represents a user account in the system.
type User struct {
	ID           int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	Name         string    `gorm:"size:255;not null" json:"name"`
	Email        string    `gorm:"size:255;uniqueIndex;not null" json:"email"`
	PasswordHash string    `gorm:"column:password;size:255;not null" json:"-"` // Never expose this to the client
	Role         Role      `gorm:"size:50;not null;default:user" json:"role"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// TableName pins the table created by the migrations.
func (User) TableName() string {
	return "users"
}

// Identity is the caller derived from a verified token. It lives only for
// the duration of a request.
type Identity struct {
	UserID int64  `json:"userId"`
	Email  string `json:"email"`
	Role   Role   `json:"role"`
}

// IdentityOf builds the token payload for a stored user.
func IdentityOf(u User) Identity {
	return Identity{UserID: u.ID, Email: u.Email, Role: u.Role}
}
