package model

// Role and status changes performed by admins are restricted to an
// explicit transition table rather than ad hoc branching so the
// invariants stay checkable in isolation.

// roleTransitions maps a current role to the set of roles it may be
// changed to.  ADMIN is frozen: the admin role is neither granted nor
// removed through the regular update path.
var roleTransitions = map[Role]map[Role]bool{
    RoleClient:    {RoleDeveloper: true, RoleModerator: true},
    RoleDeveloper: {RoleClient: true, RoleModerator: true},
    RoleModerator: {RoleClient: true, RoleDeveloper: true},
    RoleAdmin:     {RoleAdmin: true},
}

// statusTransitions maps a current status to the set of statuses it
// may be changed to.  Suspended accounts must pass through INACTIVE
// before reactivation.
var statusTransitions = map[Status]map[Status]bool{
    StatusActive:    {StatusInactive: true, StatusSuspended: true},
    StatusInactive:  {StatusActive: true, StatusSuspended: true},
    StatusSuspended: {StatusInactive: true},
}

// RoleTransitionAllowed reports whether an admin may change a user's
// role from current to next.  A no-op change is always allowed.
func RoleTransitionAllowed(current, next Role) bool {
    if current == next {
        return true
    }
    return roleTransitions[current][next]
}

// StatusTransitionAllowed reports whether an admin may change a user's
// status from current to next.  A no-op change is always allowed.
func StatusTransitionAllowed(current, next Status) bool {
    if current == next {
        return true
    }
    return statusTransitions[current][next]
}
