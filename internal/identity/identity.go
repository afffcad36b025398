// Package identity carries the gateway-authenticated actor through request
// context. Authentication itself happens upstream; the ledger only consumes
// the identity headers the platform gateway injects.
package identity

import (
	"context"
	"net/http"
)

// Role is the coarse platform role attached to an actor.
type Role string

const (
	RoleUser    Role = "user"
	RoleManager Role = "manager"
	RoleAdmin   Role = "admin"
)

// Header names set by the platform gateway.
const (
	HeaderActorID   = "X-Actor-Id"
	HeaderActorRole = "X-Actor-Role"
)

// Actor describes the authenticated caller of a request.
type Actor struct {
	ID   string
	Role Role
}

// Known reports whether the role is one of the platform roles.
func (r Role) Known() bool {
	switch r {
	case RoleUser, RoleManager, RoleAdmin:
		return true
	}
	return false
}

// Guard produces route middleware that enforces role requirements. The app
// layer implements it on top of the gateway identity headers.
type Guard interface {
	// Authenticated requires any identified actor.
	Authenticated() func(http.Handler) http.Handler
	// Require allows only the listed roles.
	Require(roles ...Role) func(http.Handler) http.Handler
}

type actorContextKey struct{}

// ContextWithActor stores the actor in context.
func ContextWithActor(ctx context.Context, actor Actor) context.Context {
	return context.WithValue(ctx, actorContextKey{}, actor)
}

// ActorFromContext extracts the actor from context. The zero Actor means the
// request carried no identity.
func ActorFromContext(ctx context.Context) Actor {
	actor, _ := ctx.Value(actorContextKey{}).(Actor)
	return actor
}
