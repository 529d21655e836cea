// models/user.go
package models

import "time"

// Roles carried in the access token and on the user document.
const (
	RoleStudent    = "student"
	RoleInstructor = "instructor"
	RoleAdmin      = "admin"
)

// User is the slice of the account the booking flows need: who to notify and
// how to reach them.
type User struct {
	ID        string    `bson:"id" json:"id"`
	Name      string    `bson:"name" json:"name"`
	Email     string    `bson:"email" json:"email"`
	Role      string    `bson:"role" json:"role"`
	FCMToken  string    `bson:"fcmToken,omitempty" json:"-"`
	CreatedAt time.Time `bson:"createdAt" json:"createdAt"`
	UpdatedAt time.Time `bson:"updatedAt" json:"updatedAt"`
}

// Requester identifies the authenticated caller of a booking operation.
type Requester struct {
	ID   string
	Role string
}

// IsAdmin reports whether the caller has administrator rights.
func (r Requester) IsAdmin() bool {
	return r.Role == RoleAdmin
}
