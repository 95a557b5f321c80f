package report

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/tildaslashalef/partnest/internal/score"
	"github.com/tildaslashalef/partnest/internal/skeleton"
)

// Node is one tree node of the JSON document
type Node struct {
	Kind     string           `json:"kind"`
	Group    *score.PartGroup `json:"group,omitempty"`
	Part     *score.Part      `json:"part,omitempty"`
	Children []*Node          `json:"children,omitempty"`
}

// Document is the JSON form of a skeleton
type Document struct {
	PartCount   int                   `json:"part_count"`
	GroupCount  int                   `json:"group_count"`
	Warnings    int                   `json:"warnings"`
	Fatals      int                   `json:"fatals"`
	Tree        *Node                 `json:"tree"`
	Diagnostics []skeleton.Diagnostic `json:"diagnostics"`
}

// NewDocument converts a result into its JSON document
func NewDocument(res *skeleton.Result) *Document {
	doc := &Document{
		PartCount:   res.PartCount,
		GroupCount:  res.GroupCount,
		Warnings:    res.Warnings(),
		Fatals:      res.Fatals(),
		Diagnostics: res.Diagnostics,
	}
	if doc.Diagnostics == nil {
		doc.Diagnostics = []skeleton.Diagnostic{}
	}
	if res.Tree != nil {
		doc.Tree = jsonTree(res.Tree)
	}
	return doc
}

func jsonTree(tree *score.Tree) *Node {
	var root *Node
	var stack []*Node

	push := func(n *Node) {
		if len(stack) == 0 {
			root = n
		} else {
			parent := stack[len(stack)-1]
			parent.Children = append(parent.Children, n)
		}
	}

	_ = tree.Walk(score.VisitorFuncs{
		OnEnter: func(g *score.PartGroup, depth int) error {
			n := &Node{Kind: score.KindPartGroup.String(), Group: g}
			push(n)
			stack = append(stack, n)
			return nil
		},
		OnLeave: func(g *score.PartGroup, depth int) error {
			stack = stack[:len(stack)-1]
			return nil
		},
		OnPart: func(p *score.Part, depth int) error {
			push(&Node{Kind: score.KindPart.String(), Part: p})
			return nil
		},
	})

	return root
}

// JSON writes the skeleton as an indented JSON document
func JSON(w io.Writer, res *skeleton.Result) error {
	if res == nil {
		return fmt.Errorf("nothing to render")
	}
	return WriteJSON(w, NewDocument(res))
}

// WriteJSON writes any value as indented JSON
func WriteJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("failed to encode JSON: %w", err)
	}
	return nil
}
