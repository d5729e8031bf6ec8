package core

import "github.com/google/uuid"

// ResourceID identifies a native GPU object. A new ID is issued every time a
// resource's native object is (re)created, so a recompiled shader never compares
// equal to its previous incarnation.
type ResourceID uuid.UUID

// NilResourceID is never issued.
var NilResourceID = ResourceID(uuid.Nil)

func NewResourceID() ResourceID {
	return ResourceID(uuid.New())
}

func (id ResourceID) IsNil() bool {
	return id == NilResourceID
}

func (id ResourceID) String() string {
	return uuid.UUID(id).String()
}
