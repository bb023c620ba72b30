// Package referral answers downline and upline questions over users' upline pointers.
package referral

import (
	"sort"

	"github.com/aristath/tierledger/internal/domain"
)

// Graph is an immutable snapshot of the upline relation.
// It is safe for concurrent use once built.
//
// The relation should form a forest, but corrupted data may contain cycles;
// every traversal keeps a visited set and never recurses, so cycles simply
// stop yielding new nodes.
type Graph struct {
	users    map[string]*domain.User
	upline   map[string]string
	children map[string][]string
}

// NewGraph builds a snapshot from the given users.
// Upline pointers to unknown users are kept for UplineChain but contribute no children.
func NewGraph(users []domain.User) *Graph {
	g := &Graph{
		users:    make(map[string]*domain.User, len(users)),
		upline:   make(map[string]string, len(users)),
		children: make(map[string][]string),
	}

	for i := range users {
		u := users[i]
		g.users[u.ID] = &u
		if u.UplineID != nil && *u.UplineID != "" {
			g.upline[u.ID] = *u.UplineID
			g.children[*u.UplineID] = append(g.children[*u.UplineID], u.ID)
		}
	}

	// Deterministic traversal order regardless of input order
	for id := range g.children {
		sort.Strings(g.children[id])
	}

	return g
}

// User returns the snapshot row for id, or nil
func (g *Graph) User(id string) *domain.User {
	return g.users[id]
}

// Users returns every user id in the snapshot, sorted
func (g *Graph) Users() []string {
	ids := make([]string, 0, len(g.users))
	for id := range g.users {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Children returns the direct recruits of id
func (g *Graph) Children(id string) []string {
	return g.children[id]
}

// Downline returns every user recruited directly or indirectly by root, in BFS order.
// The root itself is never part of its own downline, even when a cycle leads back to it.
func (g *Graph) Downline(root string) []string {
	visited := map[string]bool{root: true}
	queue := []string{root}
	var result []string

	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]

		for _, child := range g.children[current] {
			if visited[child] {
				continue
			}
			visited[child] = true
			result = append(result, child)
			queue = append(queue, child)
		}
	}

	return result
}

// UplineChain returns up to maxDepth ancestors of id, nearest first.
// A non-positive maxDepth means no limit. The walk stops at a root, at an
// unknown pointer target, or when it would revisit a node.
func (g *Graph) UplineChain(id string, maxDepth int) []string {
	visited := map[string]bool{id: true}
	var chain []string

	current := id
	for maxDepth <= 0 || len(chain) < maxDepth {
		parent, ok := g.upline[current]
		if !ok || visited[parent] {
			break
		}
		visited[parent] = true
		chain = append(chain, parent)
		if _, known := g.users[parent]; !known {
			break
		}
		current = parent
	}

	return chain
}
