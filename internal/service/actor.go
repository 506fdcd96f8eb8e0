package service

import (
	"github.com/google/uuid"

	"taskflow/internal/model"
)

// Actor is the authenticated caller of a service operation
type Actor struct {
	UserID   uuid.UUID
	Username string
	Role     string
}

func (a Actor) Can(capability model.Capability) bool {
	return model.Can(a.Role, capability)
}

func (a Actor) IsStaff() bool {
	return a.Role == model.RoleStaff
}

// SystemActor is used for writes made by scheduled jobs
var SystemActor = Actor{Username: "system", Role: model.RoleAdmin}

func (a Actor) userRef() *uuid.UUID {
	if a.UserID == uuid.Nil {
		return nil
	}
	id := a.UserID
	return &id
}
