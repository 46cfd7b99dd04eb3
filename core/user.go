package core

import "time"

// User is an account plus its progression record.
type User struct {
	ID           UserID    `json:"id"`
	Username     string    `json:"username"`
	DisplayName  string    `json:"display_name,omitempty"`
	PasswordHash string    `json:"password_hash,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
	RPG          PlayerRPG `json:"rpg"`
}

// Clone returns a deep copy.
func (u User) Clone() User {
	u.RPG = u.RPG.Clone()
	return u
}

// UserProfile is the public account view.
type UserProfile struct {
	ID          UserID    `json:"id"`
	Username    string    `json:"username"`
	DisplayName string    `json:"display_name,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// Profile drops credentials.
func (u User) Profile() UserProfile {
	return UserProfile{ID: u.ID, Username: u.Username, DisplayName: u.DisplayName, CreatedAt: u.CreatedAt}
}
