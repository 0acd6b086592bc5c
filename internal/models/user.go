package models

import "time"

// Role of an operator. Closed set: anything else fails closed at scope
// resolution, matching no records.
type Role string

const (
	RoleAdmin   Role = "admin"   // sees all regions
	RoleCommune Role = "commune" // sees only their assigned region
)

// User is a resolved identity attached to a request. Credentials and token
// issuance live outside this system; by the time a User reaches the core its
// role has already been authenticated.
type User struct {
	ID         string
	Username   string
	Role       Role
	RegionCode string // assigned region; required for commune users
	CreatedAt  time.Time
	LastSeenAt *time.Time
}
