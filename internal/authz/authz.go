// internal/authz/authz.go
//
// Package authz is the explicit authorization capability: a single
// (actor, permission) check decoupled from any role hierarchy.
package authz

import (
	"sync"

	"github.com/rovshanmuradov/launchpad-engine/internal/types"
)

// Permission names one capability an actor may hold.
type Permission string

const (
	// PermAdmin gates privileged lifecycle transitions and setters.
	PermAdmin Permission = "admin"
	// PermSigner marks keys recognized to sign creation requests.
	PermSigner Permission = "signer"
	// PermOperator gates graduation execution.
	PermOperator Permission = "operator"
)

// Authorizer answers allow/deny for an actor and a required permission.
type Authorizer interface {
	Allow(actor types.Address, perm Permission) bool
}

// Table is a static in-memory Authorizer.
type Table struct {
	mu     sync.RWMutex
	grants map[types.Address]map[Permission]bool
}

func NewTable() *Table {
	return &Table{grants: make(map[types.Address]map[Permission]bool)}
}

// Grant gives actor the permission.
func (t *Table) Grant(actor types.Address, perm Permission) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.grants[actor] == nil {
		t.grants[actor] = make(map[Permission]bool)
	}
	t.grants[actor][perm] = true
}

// Revoke removes the permission from actor.
func (t *Table) Revoke(actor types.Address, perm Permission) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.grants[actor] != nil {
		delete(t.grants[actor], perm)
	}
}

func (t *Table) Allow(actor types.Address, perm Permission) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.grants[actor][perm]
}
