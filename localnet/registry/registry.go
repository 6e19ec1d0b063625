// Package registry records every process this run committed, per role,
// ordered by creation.
package registry

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/mit-dci/parsec-local/localnet"
)

// ErrDuplicateHandle is returned when a pid or creation order is recorded twice.
var ErrDuplicateHandle = errors.New("handle already recorded")

// Registry is a mutex-guarded set of per-role heaps. Recording a handle is the
// single transition that commits a launch.
type Registry struct {
	mu     sync.Mutex
	heaps  map[localnet.Role]*handleHeap
	pids   map[int]bool
	orders map[int64]bool
}

// New creates an empty Registry.
func New() *Registry {
	heaps := make(map[localnet.Role]*handleHeap, len(localnet.Roles))
	for _, r := range localnet.Roles {
		heaps[r] = newHandleHeap()
	}
	return &Registry{
		heaps:  heaps,
		pids:   make(map[int]bool),
		orders: make(map[int64]bool),
	}
}

// ConflictError reports a handle whose pid or creation order is already taken.
type ConflictError struct {
	Handle localnet.ProcessHandle
	Field  string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("%v: %s pid %d (%s)", ErrDuplicateHandle, e.Handle.Role, e.Handle.PID, e.Field)
}

func (e *ConflictError) Unwrap() error {
	return ErrDuplicateHandle
}

// Record adds h to its role's heap.
func (r *Registry) Record(h localnet.ProcessHandle) error {
	return r.RecordAll([]localnet.ProcessHandle{h})
}

// RecordAll adds every handle in hs or none of them. Handles in hs must not
// conflict with each other or with anything already recorded.
func (r *Registry) RecordAll(hs []localnet.ProcessHandle) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	pids := make(map[int]bool, len(hs))
	orders := make(map[int64]bool, len(hs))
	for _, h := range hs {
		if _, ok := r.heaps[h.Role]; !ok {
			return fmt.Errorf("record %s: unknown role", h.Role)
		}
		if r.pids[h.PID] || pids[h.PID] {
			return &ConflictError{Handle: h, Field: "pid"}
		}
		if r.orders[h.CreationOrder] || orders[h.CreationOrder] {
			return &ConflictError{Handle: h, Field: "creation order"}
		}
		pids[h.PID] = true
		orders[h.CreationOrder] = true
	}
	for _, h := range hs {
		r.pids[h.PID] = true
		r.orders[h.CreationOrder] = true
		r.heaps[h.Role].push(h)
	}
	return nil
}

// HasPID reports whether pid belongs to a recorded handle.
func (r *Registry) HasPID(pid int) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.pids[pid]
}

// Oldest returns the earliest-created handle of role without removing it.
func (r *Registry) Oldest(role localnet.Role) (localnet.ProcessHandle, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	hp, ok := r.heaps[role]
	if !ok {
		return localnet.ProcessHandle{}, false
	}
	return hp.peek()
}

// PopOldest removes and returns the earliest-created handle of role.
func (r *Registry) PopOldest(role localnet.Role) (localnet.ProcessHandle, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	hp, ok := r.heaps[role]
	if !ok {
		return localnet.ProcessHandle{}, false
	}
	h, ok := hp.popOldest()
	if ok {
		r.forget(h)
	}
	return h, ok
}

// Drain removes every handle of role and returns them oldest first.
func (r *Registry) Drain(role localnet.Role) []localnet.ProcessHandle {
	r.mu.Lock()
	defer r.mu.Unlock()
	hp, ok := r.heaps[role]
	if !ok {
		return nil
	}
	out := make([]localnet.ProcessHandle, 0, hp.Len())
	for {
		h, ok := hp.popOldest()
		if !ok {
			break
		}
		r.forget(h)
		out = append(out, h)
	}
	return out
}

// Snapshot returns the handles of role oldest first, leaving the Registry unchanged.
func (r *Registry) Snapshot(role localnet.Role) []localnet.ProcessHandle {
	r.mu.Lock()
	defer r.mu.Unlock()
	hp, ok := r.heaps[role]
	if !ok {
		return nil
	}
	out := append([]localnet.ProcessHandle(nil), hp.handles...)
	sort.Slice(out, func(i, j int) bool { return out[i].CreationOrder < out[j].CreationOrder })
	return out
}

// All returns every handle across roles, oldest first.
func (r *Registry) All() []localnet.ProcessHandle {
	var out []localnet.ProcessHandle
	for _, role := range localnet.Roles {
		out = append(out, r.Snapshot(role)...)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreationOrder < out[j].CreationOrder })
	return out
}

// Count returns the number of handles recorded for role.
func (r *Registry) Count(role localnet.Role) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	if hp, ok := r.heaps[role]; ok {
		return hp.Len()
	}
	return 0
}

// Len returns the number of handles across all roles.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, hp := range r.heaps {
		n += hp.Len()
	}
	return n
}

// Dump renders each role's heap as an indented tree, root first.
func (r *Registry) Dump() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var b strings.Builder
	for _, role := range localnet.Roles {
		hp := r.heaps[role]
		fmt.Fprintf(&b, "%s (%d):\n", role, hp.Len())
		dumpTree(&b, hp.handles, 0, "", true)
	}
	return b.String()
}

func dumpTree(b *strings.Builder, handles []localnet.ProcessHandle, i int, prefix string, isLeft bool) {
	if i >= len(handles) {
		return
	}
	branch, pad := "┌── ", "│   "
	if isLeft {
		branch, pad = "└── ", "    "
	}
	fmt.Fprintf(b, "%s%s%d\n", prefix, branch, handles[i].PID)
	dumpTree(b, handles, 2*i+2, prefix+pad, false)
	dumpTree(b, handles, 2*i+1, prefix+pad, true)
}

func (r *Registry) forget(h localnet.ProcessHandle) {
	delete(r.pids, h.PID)
	delete(r.orders, h.CreationOrder)
}
