package models

// Role is the coarse identity class carried in the access token.
type Role string

const (
	RoleCustomer Role = "customer"
	RoleRenter   Role = "renter"
	RoleAdmin    Role = "admin"
	// RoleSystem is used for transitions driven by the payment authority or
	// background jobs. It is never accepted from a token.
	RoleSystem Role = "system"
)

// Actor is whoever drives a booking operation.
type Actor struct {
	ID   string `json:"id"`
	Role Role   `json:"role"`
}

// SystemActor is the actor recorded for authority- and job-driven transitions.
var SystemActor = Actor{ID: "system", Role: RoleSystem}

func (a Actor) IsAdmin() bool {
	return a.Role == RoleAdmin
}

func (a Actor) IsSystem() bool {
	return a.Role == RoleSystem
}
