package domain

import "github.com/google/uuid"

// Actor is the entity performing a membership change: either a human user or
// an automated system. The set of implementations is closed.
type Actor interface {
	actor()
}

// StandardUser is a human acting through the API.
type StandardUser struct {
	UserID                        uuid.UUID
	IsOrganizationOwnerOrProvider bool
}

// SystemUser is an automated process such as SCIM or a compliance sweep.
type SystemUser struct {
	Kind EventSystemUser
}

func (StandardUser) actor() {}
func (SystemUser) actor()   {}

// ActorUserID returns the acting user id for human actors.
func ActorUserID(a Actor) *uuid.UUID {
	if su, ok := a.(StandardUser); ok {
		id := su.UserID
		return &id
	}
	return nil
}
