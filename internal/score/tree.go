package score

import (
	"errors"
	"fmt"
	"sort"
)

// NodeID addresses a node inside a Tree
type NodeID int

// NoNode marks an absent parent or root
const NoNode NodeID = -1

var (
	// ErrUnknownNode is returned when a NodeID does not belong to the tree
	ErrUnknownNode = errors.New("unknown node")

	// ErrAlreadyAttached is returned when a node that already has a parent is attached again
	ErrAlreadyAttached = errors.New("node already attached")

	// ErrNotAGroup is returned when a part is used as a container
	ErrNotAGroup = errors.New("node is not a part group")

	// ErrCycle is returned when attaching a node under one of its own descendants
	ErrCycle = errors.New("attachment would create a cycle")
)

// Node is one arena slot. Exactly one of Group and Part is set, as told by Kind.
type Node struct {
	ID       NodeID
	Kind     Kind
	Parent   NodeID
	Children []NodeID
	Group    *PartGroup
	Part     *Part
}

// Tree is the finished part-group/part skeleton of a score
type Tree struct {
	nodes []Node
	root  NodeID
}

// NewTree creates an empty tree
func NewTree() *Tree {
	return &Tree{root: NoNode}
}

// Len returns the number of nodes in the arena
func (t *Tree) Len() int {
	return len(t.nodes)
}

// AddPartGroup stores a detached group node and returns its id
func (t *Tree) AddPartGroup(g PartGroup) NodeID {
	id := NodeID(len(t.nodes))
	t.nodes = append(t.nodes, Node{ID: id, Kind: KindPartGroup, Parent: NoNode, Group: &g})
	return id
}

// AddPart stores a detached part node and returns its id
func (t *Tree) AddPart(p Part) NodeID {
	id := NodeID(len(t.nodes))
	t.nodes = append(t.nodes, Node{ID: id, Kind: KindPart, Parent: NoNode, Part: &p})
	return id
}

func (t *Tree) valid(id NodeID) bool {
	return id >= 0 && int(id) < len(t.nodes)
}

// Node returns the node stored under id
func (t *Tree) Node(id NodeID) (*Node, error) {
	if !t.valid(id) {
		return nil, fmt.Errorf("%w: %d", ErrUnknownNode, id)
	}
	return &t.nodes[id], nil
}

// Group returns the part group stored under id, or nil if id is not a group
func (t *Tree) Group(id NodeID) *PartGroup {
	if !t.valid(id) {
		return nil
	}
	return t.nodes[id].Group
}

// Part returns the part stored under id, or nil if id is not a part
func (t *Tree) Part(id NodeID) *Part {
	if !t.valid(id) {
		return nil
	}
	return t.nodes[id].Part
}

// AppendChild attaches child as the last child of parent
func (t *Tree) AppendChild(parent, child NodeID) error {
	if !t.valid(parent) {
		return fmt.Errorf("%w: parent %d", ErrUnknownNode, parent)
	}
	if !t.valid(child) {
		return fmt.Errorf("%w: child %d", ErrUnknownNode, child)
	}
	if t.nodes[parent].Kind != KindPartGroup {
		return fmt.Errorf("%w: %d", ErrNotAGroup, parent)
	}
	if t.nodes[child].Parent != NoNode {
		return fmt.Errorf("%w: %d already under %d", ErrAlreadyAttached, child, t.nodes[child].Parent)
	}
	for anc := parent; anc != NoNode; anc = t.nodes[anc].Parent {
		if anc == child {
			return fmt.Errorf("%w: %d under %d", ErrCycle, child, parent)
		}
	}

	t.nodes[child].Parent = parent
	t.nodes[parent].Children = append(t.nodes[parent].Children, child)
	return nil
}

// SetRoot marks a detached group node as the root of the tree
func (t *Tree) SetRoot(id NodeID) error {
	if !t.valid(id) {
		return fmt.Errorf("%w: %d", ErrUnknownNode, id)
	}
	if t.nodes[id].Kind != KindPartGroup {
		return fmt.Errorf("%w: %d", ErrNotAGroup, id)
	}
	if t.nodes[id].Parent != NoNode {
		return fmt.Errorf("%w: root %d has a parent", ErrAlreadyAttached, id)
	}
	t.root = id
	return nil
}

// Root returns the root node id, NoNode while the tree is unfinished
func (t *Tree) Root() NodeID {
	return t.root
}

// Parent returns the parent of id
func (t *Tree) Parent(id NodeID) (NodeID, bool) {
	if !t.valid(id) || t.nodes[id].Parent == NoNode {
		return NoNode, false
	}
	return t.nodes[id].Parent, true
}

// Children returns the ordered children of id
func (t *Tree) Children(id NodeID) []NodeID {
	if !t.valid(id) {
		return nil
	}
	return t.nodes[id].Children
}

// Depth returns the number of ancestors of id
func (t *Tree) Depth(id NodeID) int {
	depth := 0
	for p, ok := t.Parent(id); ok; p, ok = t.Parent(p) {
		depth++
	}
	return depth
}

// Parts returns the part nodes reachable from the root in document order
func (t *Tree) Parts() []NodeID {
	var parts []NodeID
	t.preorder(t.root, func(id NodeID) {
		if t.nodes[id].Kind == KindPart {
			parts = append(parts, id)
		}
	})
	return parts
}

// Groups returns the group nodes reachable from the root in document order
func (t *Tree) Groups() []NodeID {
	var groups []NodeID
	t.preorder(t.root, func(id NodeID) {
		if t.nodes[id].Kind == KindPartGroup {
			groups = append(groups, id)
		}
	})
	return groups
}

// FindPart returns the node holding the part with the given id
func (t *Tree) FindPart(partID string) (NodeID, bool) {
	for i := range t.nodes {
		if t.nodes[i].Kind == KindPart && t.nodes[i].Part.ID == partID {
			return t.nodes[i].ID, true
		}
	}
	return NoNode, false
}

func (t *Tree) preorder(id NodeID, fn func(NodeID)) {
	if !t.valid(id) {
		return
	}
	fn(id)
	for _, c := range t.nodes[id].Children {
		t.preorder(c, fn)
	}
}

// Flatten returns one range per reachable group, ordered by creation order
func (t *Tree) Flatten() []GroupRange {
	var ranges []GroupRange
	var order []int
	t.preorder(t.root, func(id NodeID) {
		g := t.nodes[id].Group
		if g == nil {
			return
		}
		ranges = append(ranges, GroupRange{
			Number:   g.Number,
			Start:    g.StartPosition,
			Stop:     g.StopPosition,
			Implicit: g.Implicit,
			Depth:    t.Depth(id),
		})
		order = append(order, g.CreationOrder)
	})

	idx := make([]int, len(ranges))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool { return order[idx[a]] < order[idx[b]] })

	sorted := make([]GroupRange, len(ranges))
	for i, j := range idx {
		sorted[i] = ranges[j]
	}
	return sorted
}
