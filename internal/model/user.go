package model

import "time"

// User is an account. Only IsOnline and LastSeen are mutated by the
// realtime layer; everything else belongs to auth/profile.
type User struct {
	ID           int64      `json:"id,string" db:"id"`
	FullName     string     `json:"fullName" db:"full_name"`
	Email        string     `json:"email" db:"email"`
	PasswordHash string     `json:"-" db:"password_hash"`
	ProfilePic   string     `json:"profilePic" db:"profile_pic"`
	IsOnline     bool       `json:"isOnline" db:"is_online"`
	LastSeen     *time.Time `json:"lastSeen,omitempty" db:"last_seen"`
	CreatedAt    time.Time  `json:"createdAt" db:"created_at"`
	UpdatedAt    time.Time  `json:"updatedAt" db:"updated_at"`
}

// SidebarUser is a contact list entry: the user plus chat summary fields
// denormalized from the conversation with the viewer.
type SidebarUser struct {
	User
	UnreadCount int      `json:"unreadCount"`
	LastMessage *Message `json:"lastMessage"`
}
