package server

import (
	"github.com/supportstack/tickets/internal/auth"
	"github.com/supportstack/tickets/internal/events"
)

// authorizeListen decides one ListenTo request against the connection's
// verified accessor:
//
//   - a system accessor is always authorized;
//   - a member is authorized for apps in its signed scope;
//   - otherwise the member may present a delegated token: a system token is
//     an unconditional guarantor, a member token must vouch for the same
//     user and carry the requested app in its scope.
//
// The delegated token is verified with the same key material as the
// handshake token; an invalid or expired one simply refuses the join.
func authorizeListen(verifier *auth.Config, accessor auth.Accessor, req events.ListenTo) bool {
	if accessor.IsSystem() {
		return true
	}
	if accessor.Kind != auth.KindMember {
		return false
	}
	if accessor.HasApp(req.AppID) {
		return true
	}
	if req.AuthorizedAppToken == "" {
		return false
	}

	delegated, err := verifier.Verify(req.AuthorizedAppToken)
	if err != nil {
		return false
	}
	switch delegated.Kind {
	case auth.KindSystem:
		// guarantor
		return true
	case auth.KindMember:
		return delegated.UserID == accessor.UserID && delegated.HasApp(req.AppID)
	}
	return false
}
