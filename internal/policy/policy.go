// Package policy decides what a caller may do with the users and todos
// collections. Every access point in the API consults Evaluate instead of
// checking roles itself.
//
// Evaluation is a pure function of its inputs: it performs no I/O and
// holds no state. A decision is one of three effects:
//
//	Deny           the operation is rejected outright
//	AllowAll       the operation proceeds unrestricted
//	AllowFiltered  the operation proceeds, restricted to rows matching Filter
//
// Rules are evaluated in order and the first match wins:
//
//  1. No caller: deny, except create on users (registration is open).
//  2. Admin: allow-all on every collection.
//  3. users read/update: filtered to the caller's own record.
//  4. users delete: deny. users create: allow-all.
//  5. todos without a tenant: deny, except create (which the repository
//     then rejects because there is no tenant to stamp).
//  6. todos read/update/delete: filtered to the caller's tenant.
//  7. todos create: allow-all; tenant and creator are stamped server-side.
package policy

import (
	"github.com/google/uuid"
	"github.com/hugh/go-taskboard/internal/database/models"
)

type Collection string

const (
	CollectionUsers Collection = "users"
	CollectionTodos Collection = "todos"
)

type Operation string

const (
	OpRead   Operation = "read"
	OpCreate Operation = "create"
	OpUpdate Operation = "update"
	OpDelete Operation = "delete"
)

// Fields on the users collection that only an admin may write.
const (
	FieldRoles  = "roles"
	FieldTenant = "tenant"
)

// Filter fields understood by the store layer.
const (
	FilterFieldID     = "id"
	FilterFieldTenant = "tenant"
	FilterOpEquals    = "equals"
)

// Effect is the outcome category of a decision.
type Effect int

const (
	Deny Effect = iota
	AllowAll
	AllowFiltered
)

func (e Effect) String() string {
	switch e {
	case AllowAll:
		return "allow-all"
	case AllowFiltered:
		return "allow-filtered"
	default:
		return "deny"
	}
}

// Filter is a structured row predicate, e.g. {tenant equals <id>}.
type Filter struct {
	Field string    `json:"field"`
	Op    string    `json:"op"`
	Value uuid.UUID `json:"value"`
}

// Decision is the result of Evaluate. Filter is set only for AllowFiltered.
type Decision struct {
	Effect Effect
	Filter *Filter
}

func (d Decision) Allowed() bool {
	return d.Effect != Deny
}

func (d Decision) String() string {
	if d.Filter == nil {
		return d.Effect.String()
	}
	return d.Effect.String() + "(" + d.Filter.Field + " " + d.Filter.Op + " " + d.Filter.Value.String() + ")"
}

// Caller is the identity a request acts as. A nil *Caller is unauthenticated.
type Caller struct {
	ID       uuid.UUID
	Roles    []models.Role
	TenantID *uuid.UUID
}

// CallerFromUser builds a Caller from a stored user record.
func CallerFromUser(u *models.User) *Caller {
	if u == nil {
		return nil
	}
	c := &Caller{ID: u.ID, Roles: append([]models.Role(nil), u.Roles...)}
	if u.TenantID != nil && *u.TenantID != uuid.Nil {
		id := *u.TenantID
		c.TenantID = &id
	}
	return c
}

func (c *Caller) IsAdmin() bool {
	if c == nil {
		return false
	}
	for _, r := range c.Roles {
		if r == models.RoleAdmin {
			return true
		}
	}
	return false
}

func (c *Caller) HasTenant() bool {
	return c != nil && c.TenantID != nil && *c.TenantID != uuid.Nil
}

var (
	deny     = Decision{Effect: Deny}
	allowAll = Decision{Effect: AllowAll}
)

func filtered(field string, value uuid.UUID) Decision {
	return Decision{
		Effect: AllowFiltered,
		Filter: &Filter{Field: field, Op: FilterOpEquals, Value: value},
	}
}

// Evaluate returns the decision for caller performing op on collection.
func Evaluate(caller *Caller, collection Collection, op Operation) Decision {
	if !validOperation(op) {
		return deny
	}

	if caller == nil {
		if collection == CollectionUsers && op == OpCreate {
			return allowAll
		}
		return deny
	}

	if caller.IsAdmin() {
		switch collection {
		case CollectionUsers, CollectionTodos:
			return allowAll
		}
		return deny
	}

	switch collection {
	case CollectionUsers:
		switch op {
		case OpRead, OpUpdate:
			return filtered(FilterFieldID, caller.ID)
		case OpCreate:
			return allowAll
		}
		return deny

	case CollectionTodos:
		if op == OpCreate {
			return allowAll
		}
		if !caller.HasTenant() {
			return deny
		}
		return filtered(FilterFieldTenant, *caller.TenantID)
	}

	return deny
}

// CanWriteField reports whether caller may set field on a record of
// collection. roles and tenant on users are admin-only.
func CanWriteField(caller *Caller, collection Collection, field string) bool {
	if collection == CollectionUsers && (field == FieldRoles || field == FieldTenant) {
		return caller.IsAdmin()
	}
	return caller != nil
}

// Matches reports whether a record with the given id and tenant passes the
// decision. Used where a single loaded record has to be checked in memory.
func (d Decision) Matches(id uuid.UUID, tenantID *uuid.UUID) bool {
	switch d.Effect {
	case AllowAll:
		return true
	case AllowFiltered:
		switch d.Filter.Field {
		case FilterFieldID:
			return id == d.Filter.Value
		case FilterFieldTenant:
			return tenantID != nil && *tenantID == d.Filter.Value
		}
	}
	return false
}

func validOperation(op Operation) bool {
	switch op {
	case OpRead, OpCreate, OpUpdate, OpDelete:
		return true
	}
	return false
}
