// Package authz decides what an actor may do to a booking. New roles are
// added here without touching the lifecycle engine.
package authz

import "roomrental/models"

// Action is a capability checked against a booking.
type Action string

const (
	ActionView    Action = "view"
	ActionCapture Action = "capture"
	ActionCancel  Action = "cancel"
	ActionJoin    Action = "join" // subscribe to the booking's real-time room
	ActionListAll Action = "list_all"
)

// Rule grants an action when it returns true.
type Rule func(actor models.Actor, booking *models.Booking) bool

// Policy maps actions to the rules that grant them. Any matching rule grants.
type Policy struct {
	rules map[Action][]Rule
}

// Can reports whether actor may perform action on booking. booking may be nil
// for actions that are not scoped to one booking.
func (p *Policy) Can(actor models.Actor, action Action, booking *models.Booking) bool {
	if actor.ID == "" {
		return false
	}
	for _, rule := range p.rules[action] {
		if rule(actor, booking) {
			return true
		}
	}
	return false
}

// Allow appends rules for action.
func (p *Policy) Allow(action Action, rules ...Rule) *Policy {
	if p.rules == nil {
		p.rules = map[Action][]Rule{}
	}
	p.rules[action] = append(p.rules[action], rules...)
	return p
}

func IsAdmin(actor models.Actor, _ *models.Booking) bool {
	return actor.IsAdmin()
}

func IsSystem(actor models.Actor, _ *models.Booking) bool {
	return actor.IsSystem()
}

// OwnsListing matches the renter who owns the booked listing.
func OwnsListing(actor models.Actor, b *models.Booking) bool {
	return b != nil && b.RenterID != "" && actor.ID == b.RenterID
}

// IsCustomer matches the user who requested the booking.
func IsCustomer(actor models.Actor, b *models.Booking) bool {
	return b != nil && actor.ID == b.CustomerID
}

// DefaultPolicy is the marketplace policy: only the listing owner (or an
// admin, or the payment authority acting as system) may capture; the
// customer never can.
func DefaultPolicy() *Policy {
	p := &Policy{}
	p.Allow(ActionView, OwnsListing, IsCustomer, IsAdmin, IsSystem)
	p.Allow(ActionJoin, OwnsListing, IsCustomer, IsAdmin)
	p.Allow(ActionCapture, capturingOwner, IsAdmin, IsSystem)
	p.Allow(ActionCancel, OwnsListing, IsCustomer, IsAdmin, IsSystem)
	p.Allow(ActionListAll, IsAdmin)
	return p
}

// capturingOwner is OwnsListing, refused outright when the same user is also
// the customer.
func capturingOwner(actor models.Actor, b *models.Booking) bool {
	return OwnsListing(actor, b) && !IsCustomer(actor, b)
}
