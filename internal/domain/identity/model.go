package identity

import (
	"time"

	"github.com/fieldforce/mrtracker/internal/platform/auth"
)

// User maps to the users table.
type User struct {
	ID           int64     `db:"id" json:"id"`
	Username     string    `db:"username" json:"username"`
	Email        *string   `db:"email" json:"email"`
	Name         string    `db:"name" json:"name"`
	Role         auth.Role `db:"role" json:"role"`
	PasswordHash string    `db:"password_hash" json:"-"`
	IsActive     bool      `db:"is_active" json:"-"`
	CreatedAt    time.Time `db:"created_at" json:"-"`
}

// Principal is the identity carried in the user's tokens.
func (u *User) Principal() auth.Principal {
	return auth.Principal{UserID: u.ID, Username: u.Username, Role: u.Role}
}

func (u *User) IsMR() bool { return u.Role == auth.RoleMR }

// MRSummary is the row shape of the admin's MR picker.
type MRSummary struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
	Name     string `json:"name"`
}

func (u *User) Summary() MRSummary {
	return MRSummary{ID: u.ID, Username: u.Username, Name: u.Name}
}

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type LoginResponse struct {
	Refresh string `json:"refresh"`
	Access  string `json:"access"`
	User    *User  `json:"user"`
}

type RefreshRequest struct {
	Refresh string `json:"refresh"`
}

type AccessResponse struct {
	Access string `json:"access"`
}

// NewUser is the input of the user create command.
type NewUser struct {
	Username string
	Password string
	Role     auth.Role
	Name     string
	Email    string
}
