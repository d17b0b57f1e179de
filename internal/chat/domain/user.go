package domain

import "time"

// UserStatus definition user presence / account state
type UserStatus string

const (
	// UserStatusOnline definition at least one live connection
	UserStatusOnline UserStatus = "online"
	// UserStatusOffline definition no live connection
	UserStatusOffline UserStatus = "offline"
	// UserStatusInactive definition dormant account
	UserStatusInactive UserStatus = "inactive"
	// UserStatusBanned definition banned account
	UserStatusBanned UserStatus = "banned"
)

// User definition user document. Accounts are owned by the external auth
// provider; this service only reads profiles and flips presence fields.
type User struct {
	ID           string     `bson:"_id,omitempty" json:"id"`
	Username     string     `bson:"username" json:"username"`
	Email        string     `bson:"email" json:"email"`
	AvatarURL    string     `bson:"avatar_url,omitempty" json:"avatarUrl,omitempty"`
	Bio          string     `bson:"bio,omitempty" json:"bio,omitempty"`
	Status       UserStatus `bson:"status" json:"status"`
	LastSeenAt   time.Time  `bson:"last_seen_at" json:"lastSeenAt"`
	LastActiveAt time.Time  `bson:"last_active_at" json:"lastActiveAt"`
}

// UserSummary is the populated participant view returned on reads.
type UserSummary struct {
	ID         string     `bson:"_id" json:"id"`
	Username   string     `bson:"username" json:"username"`
	AvatarURL  string     `bson:"avatar_url,omitempty" json:"avatarUrl,omitempty"`
	Status     UserStatus `bson:"status" json:"status"`
	LastSeenAt time.Time  `bson:"last_seen_at" json:"lastSeenAt"`
}
