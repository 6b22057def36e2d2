// Package acl implements a small capability-style permission check.
// Entities expose their access rules as pure data through the Resource
// interface; HasPermission matches a caller's principals against them.
package acl

import (
	"fmt"

	"github.com/google/uuid"
)

// Principal identifies an actor or group of actors, e.g. "user:<id>",
// "role:admin", "authenticated", "everyone".
type Principal string

const (
	Everyone      Principal = "everyone"
	Authenticated Principal = "authenticated"
)

// UserPrincipal returns the principal for a specific user
func UserPrincipal(id uuid.UUID) Principal {
	return Principal(fmt.Sprintf("user:%s", id))
}

// RolePrincipal returns the principal for a role
func RolePrincipal(role string) Principal {
	return Principal("role:" + role)
}

// Action names an operation on a resource
type Action string

const (
	ActionCreate Action = "create"
	ActionView   Action = "view"
	ActionEdit   Action = "edit"
)

// Rule allows an action to any of a set of principals
type Rule struct {
	Principals []Principal
	Action     Action
}

// Resource is anything that can describe its own access rules
type Resource interface {
	ACL() []Rule
}

// HasPermission reports whether any of the caller's principals is allowed
// the action by the resource's rules
func HasPermission(principals []Principal, action Action, resource Resource) bool {
	return Allows(principals, action, resource.ACL())
}

// Allows matches principals against a plain rule list. Class-level checks
// use this directly with an entity's static rules.
func Allows(principals []Principal, action Action, rules []Rule) bool {
	held := make(map[Principal]struct{}, len(principals))
	for _, p := range principals {
		held[p] = struct{}{}
	}
	for _, rule := range rules {
		if rule.Action != action {
			continue
		}
		for _, p := range rule.Principals {
			if _, ok := held[p]; ok {
				return true
			}
		}
	}
	return false
}

// AnonymousPrincipals is the principal set of an unauthenticated caller
func AnonymousPrincipals() []Principal {
	return []Principal{Everyone}
}
