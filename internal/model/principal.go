package model

import "github.com/google/uuid"

type UserRole string

const (
	UserRoleFleetAdmin UserRole = "FLEET_ADMIN"
	UserRoleOpsManager UserRole = "OPS_MANAGER"
	UserRoleReviewer   UserRole = "REVIEWER"
	UserRoleDriver     UserRole = "DRIVER"
)

type Principal struct {
	UserID uuid.UUID
	OrgID  uuid.UUID
	Role   UserRole
	Name   string
}

func (p Principal) IsFleetAdmin() bool {
	return p.Role == UserRoleFleetAdmin
}

func (p Principal) IsOpsManager() bool {
	return p.Role == UserRoleOpsManager
}

func (p Principal) IsReviewer() bool {
	return p.Role == UserRoleReviewer
}

// CanRead reports whether the principal may query validation, edge-case and
// audit views at all. Drivers have no access to the ops surface.
func (p Principal) CanRead() bool {
	return p.Role != UserRoleDriver
}

// CanResolve reports whether the principal may move an edge case through the
// resolution workflow.
func (p Principal) CanResolve() bool {
	return p.IsFleetAdmin() || p.IsOpsManager() || p.IsReviewer()
}

// OrgFilter returns the organization restriction applied to repository
// queries, nil meaning fleet-wide access.
func (p Principal) OrgFilter() *uuid.UUID {
	if p.IsFleetAdmin() {
		return nil
	}
	org := p.OrgID
	return &org
}
