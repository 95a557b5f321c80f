package score

import "errors"

// ErrSkipChildren may be returned by EnterPartGroup to skip the group's children
var ErrSkipChildren = errors.New("skip children")

// Visitor receives the nodes of a tree in document order
type Visitor interface {
	EnterPartGroup(g *PartGroup, depth int) error
	LeavePartGroup(g *PartGroup, depth int) error
	VisitPart(p *Part, depth int) error
}

// Walk traverses the tree from its root, stopping at the first visitor error
func (t *Tree) Walk(v Visitor) error {
	if t.root == NoNode {
		return nil
	}
	return t.walk(t.root, 0, v)
}

func (t *Tree) walk(id NodeID, depth int, v Visitor) error {
	n := &t.nodes[id]
	switch n.Kind {
	case KindPart:
		return v.VisitPart(n.Part, depth)
	case KindPartGroup:
		if err := v.EnterPartGroup(n.Group, depth); err != nil {
			if errors.Is(err, ErrSkipChildren) {
				return v.LeavePartGroup(n.Group, depth)
			}
			return err
		}
		for _, c := range n.Children {
			if err := t.walk(c, depth+1, v); err != nil {
				return err
			}
		}
		return v.LeavePartGroup(n.Group, depth)
	}
	return nil
}

// VisitorFuncs adapts plain functions to a Visitor; nil funcs are skipped
type VisitorFuncs struct {
	OnEnter func(g *PartGroup, depth int) error
	OnLeave func(g *PartGroup, depth int) error
	OnPart  func(p *Part, depth int) error
}

func (f VisitorFuncs) EnterPartGroup(g *PartGroup, depth int) error {
	if f.OnEnter == nil {
		return nil
	}
	return f.OnEnter(g, depth)
}

func (f VisitorFuncs) LeavePartGroup(g *PartGroup, depth int) error {
	if f.OnLeave == nil {
		return nil
	}
	return f.OnLeave(g, depth)
}

func (f VisitorFuncs) VisitPart(p *Part, depth int) error {
	if f.OnPart == nil {
		return nil
	}
	return f.OnPart(p, depth)
}
