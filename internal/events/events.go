// Package events defines the tenant-tagged envelope that crosses the event
// bus, the closed set of event kinds, and the wire frames spoken between the
// broadcast server and its subscribers.
package events

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/supportstack/tickets/internal/auth"
)

// Channel is the single pub/sub channel carrying every envelope regardless
// of app. Consumers filter on the app id inside the envelope.
const Channel = "tickets_live_events"

// Namespace is a logical event category with its own rooms and wire event
// name. Both ends know the event name at build time.
type Namespace struct {
	Name      string
	EventName string
}

var (
	// AppChanges carries app-level changes (staff promotions, gateway toggles).
	AppChanges = Namespace{Name: "app_changes", EventName: "app_changed"}
	// Tickets carries ticket lifecycle updates.
	Tickets = Namespace{Name: "tickets", EventName: "ticket_updated"}
)

// NamespaceByName resolves a namespace from its wire name.
func NamespaceByName(name string) (Namespace, bool) {
	switch name {
	case AppChanges.Name:
		return AppChanges, true
	case Tickets.Name:
		return Tickets, true
	}
	return Namespace{}, false
}

// Kind discriminates the event union.
type Kind string

const (
	KindStaffPromoted   Kind = "staff_promoted"
	KindGatewayToggled  Kind = "gateway_toggled"
	KindTicketSubmitted Kind = "ticket_submitted"
)

// StaffPromoted records a staff member gaining a role on an app.
type StaffPromoted struct {
	UserID uint64    `json:"user_id"`
	Role   auth.Role `json:"role"`
}

// GatewayToggled records a gateway being enabled or disabled for an app.
type GatewayToggled struct {
	Gateway string `json:"gateway"`
	Enabled bool   `json:"enabled"`
}

// TicketSubmitted records a new ticket entering an app's queue.
type TicketSubmitted struct {
	Message string `json:"message"`
}

// Event is a tagged union over the event kinds. Exactly one variant pointer
// is set, matching Kind.
type Event struct {
	Kind            Kind             `json:"kind"`
	StaffPromoted   *StaffPromoted   `json:"staff_promoted,omitempty"`
	GatewayToggled  *GatewayToggled  `json:"gateway_toggled,omitempty"`
	TicketSubmitted *TicketSubmitted `json:"ticket_submitted,omitempty"`
}

// NewStaffPromoted wraps a StaffPromoted into the union.
func NewStaffPromoted(userID uint64, role auth.Role) Event {
	return Event{Kind: KindStaffPromoted, StaffPromoted: &StaffPromoted{UserID: userID, Role: role}}
}

// NewGatewayToggled wraps a GatewayToggled into the union.
func NewGatewayToggled(gateway string, enabled bool) Event {
	return Event{Kind: KindGatewayToggled, GatewayToggled: &GatewayToggled{Gateway: gateway, Enabled: enabled}}
}

// NewTicketSubmitted wraps a TicketSubmitted into the union.
func NewTicketSubmitted(message string) Event {
	return Event{Kind: KindTicketSubmitted, TicketSubmitted: &TicketSubmitted{Message: message}}
}

// Namespace maps the event kind to the namespace it is broadcast in.
func (e Event) Namespace() (Namespace, error) {
	switch e.Kind {
	case KindStaffPromoted, KindGatewayToggled:
		return AppChanges, nil
	case KindTicketSubmitted:
		return Tickets, nil
	}
	return Namespace{}, fmt.Errorf("events: unknown event kind %q", e.Kind)
}

// Validate checks the union invariant: the variant matching Kind is set and
// no other is. Envelopes are produced locally, so a violation is a local
// programming error, not a remote fault.
func (e Event) Validate() error {
	var want any
	set := 0
	if e.StaffPromoted != nil {
		set++
		if e.Kind == KindStaffPromoted {
			want = e.StaffPromoted
		}
	}
	if e.GatewayToggled != nil {
		set++
		if e.Kind == KindGatewayToggled {
			want = e.GatewayToggled
		}
	}
	if e.TicketSubmitted != nil {
		set++
		if e.Kind == KindTicketSubmitted {
			want = e.TicketSubmitted
		}
	}
	if set != 1 || want == nil {
		return fmt.Errorf("events: event union does not match kind %q", e.Kind)
	}
	return nil
}

// Envelope wraps one event for one app as it crosses the bus. Cross-app
// batching is forbidden: one publish, one app, one event.
type Envelope struct {
	AppID uuid.UUID `json:"app_id"`
	Event Event     `json:"event"`
}
