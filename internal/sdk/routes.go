// Package sdk lets one platform service call another's declared routes as a
// signed principal. Routes are declared once here, next to their request and
// response shapes, and invoked through the generic Call/Invoke helpers.
package sdk

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/supportstack/tickets/internal/auth"
)

// Route describes one internal HTTP route: the method and the fixed path.
// The expected request and response shapes are declared at the call site by
// the Call/Invoke type parameters.
type Route struct {
	Method string
	Path   string
}

// GatewayHeader identifies the calling subsystem to the callee. The callee's
// HTTP layer uses it for gateway-level feature flags.
const GatewayHeader = "x-gateway"

// Consumer routes.
var (
	SubmitTicket = Route{Method: http.MethodPost, Path: "/consumer/submit_ticket"}
)

// SubmitTicketBody opens a ticket on an app.
type SubmitTicketBody struct {
	AppID   uuid.UUID `json:"app_id"`
	Message string    `json:"message"`
}

// SubmitTicketResponse returns the created ticket id.
type SubmitTicketResponse struct {
	TicketID uuid.UUID `json:"ticket_id"`
}

// Staff routes.
var (
	StaffLogin    = Route{Method: http.MethodGet, Path: "/staff/login"}
	CreateApp     = Route{Method: http.MethodPost, Path: "/staff/create_app"}
	ToggleGateway = Route{Method: http.MethodPost, Path: "/staff/toggle_gateway"}
	PromoteStaff  = Route{Method: http.MethodPost, Path: "/staff/promote_staff"}
)

// CreateAppBody registers a new app.
type CreateAppBody struct {
	AppName string `json:"app_name"`
}

// CreateAppResponse returns the new app's id.
type CreateAppResponse struct {
	AppID uuid.UUID `json:"app_id"`
}

// ToggleGatewayBody enables or disables a gateway for an app.
type ToggleGatewayBody struct {
	AppID   uuid.UUID `json:"app_id"`
	Enabled bool      `json:"enabled"`
}

// ToggleGatewayResponse echoes the gateway's new state.
type ToggleGatewayResponse struct {
	Gateway string `json:"gateway"`
	Enabled bool   `json:"enabled"`
}

// PromoteStaffBody grants a staff member a role.
type PromoteStaffBody struct {
	StaffUserID uint64    `json:"staff_user_id"`
	Role        auth.Role `json:"role"`
}
