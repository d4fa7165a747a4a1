package model

import "time"

// User is the full account record, including the password hash.
// API responses must go through Public() instead of serializing this.
type User struct {
	ID             int64     `json:"id"`
	Username       string    `json:"username"`
	PasswordHash   string    `json:"-"`
	DisplayName    *string   `json:"displayName"`
	Bio            *string   `json:"bio"`
	ProfilePicture *string   `json:"profilePicture"`
	CreatedAt      time.Time `json:"createdAt"`
	UpdatedAt      time.Time `json:"updatedAt"`
}

// PublicUser is the projection of a user safe to return to clients.
type PublicUser struct {
	ID             int64     `json:"id"`
	Username       string    `json:"username"`
	DisplayName    *string   `json:"displayName"`
	Bio            *string   `json:"bio"`
	ProfilePicture *string   `json:"profilePicture"`
	CreatedAt      time.Time `json:"createdAt"`
}

// Public returns the public-safe projection of the user.
func (u *User) Public() PublicUser {
	return PublicUser{
		ID:             u.ID,
		Username:       u.Username,
		DisplayName:    u.DisplayName,
		Bio:            u.Bio,
		ProfilePicture: u.ProfilePicture,
		CreatedAt:      u.CreatedAt,
	}
}

// Profile is a public user together with their ordered links.
type Profile struct {
	PublicUser
	Links []Link `json:"links"`
}
