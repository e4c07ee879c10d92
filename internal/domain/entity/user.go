package entity

import "time"

// User roles on the marketplace.
const (
	RoleFarmer = "farmer"
	RoleBuyer  = "buyer"
	RoleAdmin  = "admin"
)

type User struct {
	ID       string `json:"id" firestore:"id"`
	Email    string `json:"email" firestore:"email"`
	Name     string `json:"name" firestore:"name"`
	Phone    string `json:"phone,omitempty" firestore:"phone,omitempty"`
	Role     string `json:"role" firestore:"role"`
	Address  string `json:"address,omitempty" firestore:"address,omitempty"`
	PhotoURL string `json:"photo_url,omitempty" firestore:"photoURL,omitempty"`

	OnlineStatus string    `json:"online_status,omitempty" firestore:"onlineStatus,omitempty"`
	LastSeen     time.Time `json:"last_seen,omitempty" firestore:"lastSeen,omitempty"`

	CreatedAt time.Time `json:"created_at" firestore:"createdAt"`
	UpdatedAt time.Time `json:"updated_at" firestore:"updatedAt"`
}

// PublicProfile strips the user down to the fields another participant
// is allowed to see in an inbox listing.
func (u *User) PublicProfile() *UserProfile {
	return &UserProfile{
		ID:       u.ID,
		Name:     u.Name,
		Phone:    u.Phone,
		Role:     u.Role,
		PhotoURL: u.PhotoURL,
	}
}

type UserProfile struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Phone    string `json:"phone,omitempty"`
	Role     string `json:"role"`
	PhotoURL string `json:"photo_url,omitempty"`
	IsOnline bool   `json:"is_online"`
}
