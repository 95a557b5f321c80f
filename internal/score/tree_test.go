package score

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func buildSample(t *testing.T) (*Tree, NodeID, NodeID, NodeID, NodeID) {
	t.Helper()

	tree := NewTree()
	root := tree.AddPartGroup(PartGroup{Implicit: true, CreationOrder: 0, StartPosition: 0, StopPosition: 2})
	strings := tree.AddPartGroup(PartGroup{Number: 1, Name: "Strings", CreationOrder: 1, StartPosition: 0, StopPosition: 2})
	violin := tree.AddPart(Part{ID: "P1", Name: "Violin", Position: 0})
	cello := tree.AddPart(Part{ID: "P2", Name: "Cello", Position: 1})

	require.NoError(t, tree.AppendChild(strings, violin))
	require.NoError(t, tree.AppendChild(strings, cello))
	require.NoError(t, tree.AppendChild(root, strings))
	require.NoError(t, tree.SetRoot(root))

	return tree, root, strings, violin, cello
}

func TestTreeStructure(t *testing.T) {
	tree, root, strings, violin, cello := buildSample(t)

	assert.Equal(t, root, tree.Root())
	assert.Equal(t, 4, tree.Len())

	parent, ok := tree.Parent(violin)
	assert.True(t, ok)
	assert.Equal(t, strings, parent)

	_, ok = tree.Parent(root)
	assert.False(t, ok, "root has no parent")

	assert.Equal(t, []NodeID{strings}, tree.Children(root))
	assert.Equal(t, []NodeID{violin, cello}, tree.Children(strings))
	assert.Equal(t, 2, tree.Depth(cello))
	assert.Equal(t, []NodeID{violin, cello}, tree.Parts())
	assert.Equal(t, []NodeID{root, strings}, tree.Groups())

	id, ok := tree.FindPart("P2")
	assert.True(t, ok)
	assert.Equal(t, cello, id)
}

func TestAppendChildErrors(t *testing.T) {
	tree, root, strings, violin, _ := buildSample(t)

	t.Run("re-parenting is rejected", func(t *testing.T) {
		err := tree.AppendChild(root, violin)
		assert.ErrorIs(t, err, ErrAlreadyAttached)
	})

	t.Run("parts cannot contain nodes", func(t *testing.T) {
		orphan := tree.AddPart(Part{ID: "P9"})
		err := tree.AppendChild(violin, orphan)
		assert.ErrorIs(t, err, ErrNotAGroup)
	})

	t.Run("cycles are rejected", func(t *testing.T) {
		loose := tree.AddPartGroup(PartGroup{Number: 7})
		require.NoError(t, tree.AppendChild(loose, tree.AddPart(Part{ID: "P8"})))
		err := tree.AppendChild(loose, loose)
		assert.ErrorIs(t, err, ErrCycle)
	})

	t.Run("unknown ids", func(t *testing.T) {
		assert.ErrorIs(t, tree.AppendChild(NodeID(99), strings), ErrUnknownNode)
		_, err := tree.Node(NodeID(-5))
		assert.ErrorIs(t, err, ErrUnknownNode)
	})
}

func TestWalkOrder(t *testing.T) {
	tree, _, _, _, _ := buildSample(t)

	var trace []string
	err := tree.Walk(VisitorFuncs{
		OnEnter: func(g *PartGroup, depth int) error {
			trace = append(trace, "enter "+g.Label())
			return nil
		},
		OnLeave: func(g *PartGroup, depth int) error {
			trace = append(trace, "leave "+g.Label())
			return nil
		},
		OnPart: func(p *Part, depth int) error {
			trace = append(trace, "part "+p.ID)
			return nil
		},
	})
	require.NoError(t, err)

	assert.Equal(t, []string{
		"enter implicit outer-most group",
		`enter group 1 "Strings"`,
		"part P1",
		"part P2",
		`leave group 1 "Strings"`,
		"leave implicit outer-most group",
	}, trace)
}

func TestWalkSkipChildren(t *testing.T) {
	tree, _, _, _, _ := buildSample(t)

	parts := 0
	err := tree.Walk(VisitorFuncs{
		OnEnter: func(g *PartGroup, depth int) error {
			if g.Number == 1 {
				return ErrSkipChildren
			}
			return nil
		},
		OnPart: func(p *Part, depth int) error {
			parts++
			return nil
		},
	})
	require.NoError(t, err)
	assert.Zero(t, parts)
}

func TestFlatten(t *testing.T) {
	tree, _, _, _, _ := buildSample(t)

	assert.Equal(t, []GroupRange{
		{Number: 0, Start: 0, Stop: 2, Implicit: true, Depth: 0},
		{Number: 1, Start: 0, Stop: 2, Depth: 1},
	}, tree.Flatten())
}

func TestAddVoiceKeepsOrder(t *testing.T) {
	p := &Part{}
	for _, v := range []int{3, 1, 2, 3, 1, 5} {
		p.AddVoice(v)
	}
	assert.Equal(t, []int{1, 2, 3, 5}, p.Voices)
}

func TestParseGroupSymbolAndBarline(t *testing.T) {
	sym, ok := ParseGroupSymbol(" brace ")
	assert.True(t, ok)
	assert.Equal(t, SymbolBrace, sym)

	_, ok = ParseGroupSymbol("curly")
	assert.False(t, ok)

	bar, ok := ParseGroupBarline("Mensurstrich")
	assert.True(t, ok)
	assert.Equal(t, BarlineMensurstrich, bar)

	bar, ok = ParseGroupBarline("maybe")
	assert.False(t, ok)
	assert.Equal(t, BarlineYes, bar)
}
