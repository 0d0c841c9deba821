// Package spantree rebuilds the parent/child structure of a trace's observations.
package spantree

import (
	"github.com/agenticgokit/tracelens/internal/model"
)

// Node represents an observation in the hierarchical tree
type Node struct {
	Observation model.Observation
	Children    []*Node
}

// Build builds a forest from a flat observation list.
//
// An observation becomes a child of the observation its ParentID names when
// that id resolves within the list; otherwise it is a root. Roots and children
// keep the order of the input. Parent links that would close a cycle are cut
// by promoting the first cycle member (in input order) to a root. Every input
// observation appears exactly once in the result.
func Build(observations []model.Observation) []*Node {
	n := len(observations)
	nodes := make([]*Node, n)
	index := make(map[string]int, n)
	for i := range observations {
		nodes[i] = &Node{Observation: observations[i]}
		id := observations[i].ID
		if id == "" {
			continue
		}
		// first occurrence owns the id
		if _, dup := index[id]; !dup {
			index[id] = i
		}
	}

	parent := make([]int, n)
	for i := range observations {
		parent[i] = -1
		pid := observations[i].ParentID
		if pid == "" {
			continue
		}
		if j, ok := index[pid]; ok {
			parent[i] = j
		}
	}

	for i := range observations {
		if parent[i] >= 0 && closesCycle(parent, i) {
			parent[i] = -1
		}
	}

	var roots []*Node
	for i, node := range nodes {
		if parent[i] < 0 {
			roots = append(roots, node)
			continue
		}
		p := nodes[parent[i]]
		p.Children = append(p.Children, node)
	}

	return roots
}

// closesCycle walks up from i's parent and reports whether the ascent returns to i.
// The walk stops on the first revisited index, so it is bounded by len(parent).
func closesCycle(parent []int, i int) bool {
	visited := make(map[int]struct{})
	for cur := parent[i]; cur >= 0; cur = parent[cur] {
		if cur == i {
			return true
		}
		if _, seen := visited[cur]; seen {
			return false
		}
		visited[cur] = struct{}{}
	}
	return false
}

// Walk visits every node of the forest in pre-order (roots in order, then each
// subtree with children in order). depth is 0 for roots. Returning false from
// fn skips the node's children.
func Walk(roots []*Node, fn func(node *Node, depth int) bool) {
	type frame struct {
		node  *Node
		depth int
	}

	stack := make([]frame, 0, len(roots))
	for i := len(roots) - 1; i >= 0; i-- {
		stack = append(stack, frame{node: roots[i]})
	}

	for len(stack) > 0 {
		top := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		if !fn(top.node, top.depth) {
			continue
		}
		children := top.node.Children
		for i := len(children) - 1; i >= 0; i-- {
			stack = append(stack, frame{node: children[i], depth: top.depth + 1})
		}
	}
}

// Count returns the total number of nodes in the forest
func Count(roots []*Node) int {
	count := 0
	Walk(roots, func(*Node, int) bool {
		count++
		return true
	})
	return count
}
