package services

import (
	"context"

	"github.com/google/uuid"
)

// AccessProvider is the consumed contract with the external permission
// layer: it produces the set of module ids a user may see. The engine
// treats the set as an opaque allow-list. A nil set means the provider
// imposes no restriction for that user.
type AccessProvider interface {
	AccessibleModuleIDs(ctx context.Context, userID uuid.UUID) (map[uuid.UUID]struct{}, error)
}

// UnrestrictedAccess is the default provider used when no permission
// layer is wired in.
type UnrestrictedAccess struct{}

func (UnrestrictedAccess) AccessibleModuleIDs(ctx context.Context, userID uuid.UUID) (map[uuid.UUID]struct{}, error) {
	return nil, nil
}

// StaticAccess serves a fixed per-user allow-list. Used in tests and in
// deployments where the permission layer pushes grants at startup.
type StaticAccess struct {
	Sets map[uuid.UUID]map[uuid.UUID]struct{}
}

func (s StaticAccess) AccessibleModuleIDs(ctx context.Context, userID uuid.UUID) (map[uuid.UUID]struct{}, error) {
	set, ok := s.Sets[userID]
	if !ok {
		return map[uuid.UUID]struct{}{}, nil
	}
	return set, nil
}

// moduleAllowed applies an allow-list to one module id.
func moduleAllowed(set map[uuid.UUID]struct{}, moduleID uuid.UUID) bool {
	if set == nil {
		return true
	}
	_, ok := set[moduleID]
	return ok
}
