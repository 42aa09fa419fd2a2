package domain

import "time"

// User is the persisted user record. PasswordHash never leaves the service layer.
type User struct {
	ID           string
	Name         string
	Email        string
	PasswordHash string `json:"-"`
	Phone        *string
	Active       bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// PublicUser is a User with the password hash stripped. It is the only
// user shape returned by services and cached.
type PublicUser struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Phone     *string   `json:"phone,omitempty"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Public strips the password hash.
func (u *User) Public() PublicUser {
	return PublicUser{
		ID:        u.ID,
		Name:      u.Name,
		Email:     u.Email,
		Phone:     u.Phone,
		Active:    u.Active,
		CreatedAt: u.CreatedAt,
		UpdatedAt: u.UpdatedAt,
	}
}

// PublicUsers strips the password hash from every record.
func PublicUsers(users []User) []PublicUser {
	out := make([]PublicUser, 0, len(users))
	for i := range users {
		out = append(out, users[i].Public())
	}
	return out
}

// NewUser carries the fields needed to create a user.
type NewUser struct {
	Name     string
	Email    string
	Password string
	Phone    *string
}

// UserPatch is a partial update; nil fields are left untouched.
type UserPatch struct {
	Name   *string
	Email  *string
	Phone  *string
	Active *bool
}

// IsEmpty reports whether the patch changes nothing.
func (p UserPatch) IsEmpty() bool {
	return p.Name == nil && p.Email == nil && p.Phone == nil && p.Active == nil
}
