package runs

import (
	"context"
	"errors"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tildaslashalef/partnest/internal/loggy"
	"github.com/tildaslashalef/partnest/internal/musicxml"
	"github.com/tildaslashalef/partnest/internal/score"
	"github.com/tildaslashalef/partnest/internal/skeleton"
	"github.com/tildaslashalef/partnest/internal/ulid"
)

const quartet = `<?xml version="1.0" encoding="UTF-8"?>
<score-partwise version="4.0">
  <part-list>
    <part-group type="start" number="1">
      <group-name>Strings</group-name>
      <group-symbol>bracket</group-symbol>
    </part-group>
    <part-group type="start" number="2"><group-symbol>brace</group-symbol></part-group>
    <score-part id="P1"><part-name>Violin I</part-name></score-part>
    <score-part id="P2"><part-name>Violin II</part-name></score-part>
    <part-group type="stop" number="2"/>
    <score-part id="P3"><part-name>Viola</part-name></score-part>
    <score-part id="P4"><part-name>Cello</part-name></score-part>
    <part-group type="stop" number="1"/>
    <part-group type="stop" number="7"/>
  </part-list>
  <part id="P1"><measure number="1"/></part>
  <part id="P2"><measure number="1"/></part>
  <part id="P3"><measure number="1"/></part>
  <part id="P4"><measure number="1"/></part>
</score-partwise>`

const crossing = `<score-partwise>
  <part-list>
    <part-group type="start" number="1"/>
    <part-group type="start" number="2"/>
    <score-part id="P1"/>
    <part-group type="stop" number="1"/>
    <score-part id="P2"/>
    <part-group type="stop" number="2"/>
  </part-list>
</score-partwise>`

func buildResult(t *testing.T, doc string, opts skeleton.Options) (*skeleton.Result, error) {
	t.Helper()
	r, err := musicxml.NewReader(strings.NewReader(doc))
	require.NoError(t, err)
	return skeleton.Build(context.Background(), r, loggy.NewNoopLogger(), opts)
}

// outline renders a tree as e.g. [g1 [g2 P1 P2] P3]
func outline(t *testing.T, tree *score.Tree) string {
	t.Helper()
	var b strings.Builder
	err := tree.Walk(score.VisitorFuncs{
		OnEnter: func(g *score.PartGroup, depth int) error {
			if g.Implicit {
				b.WriteString("[*")
			} else {
				b.WriteString("[g" + strconv.Itoa(g.Number))
			}
			return nil
		},
		OnLeave: func(g *score.PartGroup, depth int) error {
			b.WriteString("]")
			return nil
		},
		OnPart: func(p *score.Part, depth int) error {
			b.WriteString(" " + p.ID)
			return nil
		},
	})
	require.NoError(t, err)
	return b.String()
}

func TestNewRun(t *testing.T) {
	run, err := NewRun("scores/quartet.musicxml", "quartet-run", true)
	require.NoError(t, err)

	assert.True(t, filepath.IsAbs(run.SourcePath))
	assert.True(t, strings.HasSuffix(run.SourcePath, filepath.Join("scores", "quartet.musicxml")))
	assert.Equal(t, "quartet-run", run.Name)
	assert.True(t, run.Lenient)
	assert.Equal(t, StatusSucceeded, run.Status)
	assert.Equal(t, time.UTC, run.CreatedAt.Location())

	id, err := ulid.ParseWithPrefix(run.ID, ulid.PrefixRun)
	require.NoError(t, err)
	assert.Equal(t, ulid.PrefixRun, id.Prefix())
}

func TestRunRecord(t *testing.T) {
	t.Run("successful build", func(t *testing.T) {
		res, err := buildResult(t, quartet, skeleton.Options{})
		require.NoError(t, err)

		run, err := NewRun("quartet.musicxml", "q", false)
		require.NoError(t, err)
		run.Record(res, nil, 1500*time.Microsecond)

		assert.True(t, run.Succeeded())
		assert.Equal(t, 4, run.PartCount)
		assert.Equal(t, 3, run.GroupCount, "the implicit group counts")
		assert.Equal(t, 1, run.WarningCount)
		assert.Zero(t, run.FatalCount)
		assert.Equal(t, int64(1), run.DurationMS)
		assert.Empty(t, run.ErrorMessage)
	})

	t.Run("fatal build", func(t *testing.T) {
		res, buildErr := buildResult(t, crossing, skeleton.Options{})
		require.Error(t, buildErr)

		run, err := NewRun("crossing.musicxml", "c", false)
		require.NoError(t, err)
		run.Record(res, buildErr, 0)

		assert.False(t, run.Succeeded())
		assert.Equal(t, StatusFailed, run.Status)
		assert.Equal(t, 1, run.FatalCount)
		assert.Equal(t, buildErr.Error(), run.ErrorMessage)
	})

	t.Run("no result", func(t *testing.T) {
		run := &Run{PartCount: 3}
		run.Record(nil, errors.New("unreadable"), 0)
		assert.Equal(t, StatusFailed, run.Status)
		assert.Equal(t, 3, run.PartCount)
	})
}

func TestNodesFromTree(t *testing.T) {
	res, err := buildResult(t, quartet, skeleton.Options{})
	require.NoError(t, err)

	nodes := NodesFromTree("run-1", res.Tree)
	require.Len(t, nodes, 7)

	kinds := make([]NodeKind, len(nodes))
	for i, n := range nodes {
		assert.Equal(t, i, n.NodeIndex)
		assert.Equal(t, "run-1", n.RunID)
		assert.Less(t, n.ParentIndex, n.NodeIndex, "parents precede children")
		kinds[i] = n.Kind
	}
	assert.Equal(t, []NodeKind{
		NodeKindGroup, NodeKindGroup, NodeKindGroup,
		NodeKindPart, NodeKindPart, NodeKindPart, NodeKindPart,
	}, kinds)

	assert.Equal(t, -1, nodes[0].ParentIndex)
	assert.True(t, nodes[0].Implicit)

	strings1 := nodes[1]
	assert.Equal(t, "Strings", strings1.Label)
	assert.Equal(t, 1, strings1.GroupNumber)
	assert.Equal(t, "bracket", strings1.Symbol)
	assert.Equal(t, -1, strings1.Position)

	violin := nodes[3]
	assert.Equal(t, "P1", violin.PartID)
	assert.Equal(t, "Violin I", violin.Label)
	assert.Equal(t, 2, violin.ParentIndex)
	assert.Equal(t, 0, violin.Position)
	assert.Equal(t, 0, violin.StartPosition)
	assert.Equal(t, 1, violin.StopPosition)

	assert.Nil(t, NodesFromTree("run-1", nil))
	assert.Nil(t, NodesFromTree("run-1", score.NewTree()))
}

func TestTreeFromNodesRoundTrip(t *testing.T) {
	res, err := buildResult(t, quartet, skeleton.Options{})
	require.NoError(t, err)

	nodes := NodesFromTree("run-1", res.Tree)

	// storage order is not guaranteed
	shuffled := []*RunNode{nodes[4], nodes[0], nodes[6], nodes[2], nodes[1], nodes[5], nodes[3]}

	tree, err := TreeFromNodes(shuffled)
	require.NoError(t, err)

	assert.Equal(t, outline(t, res.Tree), outline(t, tree))
	assert.Equal(t, res.Tree.Flatten(), tree.Flatten())

	id, ok := tree.FindPart("P3")
	require.True(t, ok)
	assert.Equal(t, "Viola", tree.Part(id).Name)
	assert.Equal(t, 2, tree.Part(id).Position)
}

func TestTreeFromNodesKeepsAttributes(t *testing.T) {
	doc := `<score-partwise>
  <part-list>
    <part-group type="start" number="1">
      <group-name>Winds</group-name>
      <group-name-display><display-text>Winds</display-text></group-name-display>
      <group-abbreviation>Wd.</group-abbreviation>
      <group-symbol>bracket</group-symbol>
      <group-barline>Mensurstrich</group-barline>
      <group-time/>
    </part-group>
    <score-part id="P1">
      <part-name>Flute</part-name>
      <part-abbreviation>Fl.</part-abbreviation>
      <score-instrument id="P1-I1"><instrument-name>Flute</instrument-name></score-instrument>
    </score-part>
    <part-group type="stop" number="1"/>
  </part-list>
  <part id="P1">
    <measure number="1"><attributes><staves>2</staves></attributes><note><voice>1</voice></note></measure>
    <measure number="2"><note><voice>2</voice><staff>2</staff></note></measure>
  </part>
</score-partwise>`

	res, err := buildResult(t, doc, skeleton.Options{})
	require.NoError(t, err)

	tree, err := TreeFromNodes(NodesFromTree("run-1", res.Tree))
	require.NoError(t, err)

	wantGroup := res.Tree.Group(res.Tree.Children(res.Tree.Root())[0])
	gotGroup := tree.Group(tree.Children(tree.Root())[0])
	assert.Equal(t, *wantGroup, *gotGroup)
	assert.Equal(t, score.BarlineMensurstrich, gotGroup.Barline)
	assert.True(t, gotGroup.GroupTime)
	assert.Equal(t, "Wd.", gotGroup.Abbreviation)

	assert.Equal(t, *res.Tree.Group(res.Tree.Root()), *tree.Group(tree.Root()))

	wantID, _ := res.Tree.FindPart("P1")
	gotID, ok := tree.FindPart("P1")
	require.True(t, ok)
	assert.Equal(t, *res.Tree.Part(wantID), *tree.Part(gotID))
	assert.Equal(t, 2, tree.Part(gotID).MeasureCount)
	assert.Equal(t, 2, tree.Part(gotID).StaffCount)
	assert.Equal(t, []int{1, 2}, tree.Part(gotID).Voices)
}

func TestTreeFromNodesErrors(t *testing.T) {
	t.Run("unknown kind", func(t *testing.T) {
		_, err := TreeFromNodes([]*RunNode{{NodeIndex: 0, ParentIndex: -1, Kind: "staff"}})
		assert.ErrorContains(t, err, "unknown kind")
	})

	t.Run("orphan", func(t *testing.T) {
		_, err := TreeFromNodes([]*RunNode{
			{NodeIndex: 0, ParentIndex: -1, Kind: NodeKindGroup},
			{NodeIndex: 1, ParentIndex: 5, Kind: NodeKindPart, PartID: "P1"},
		})
		assert.ErrorContains(t, err, "parent 5")
	})
}

func TestDiagnosticsRoundTrip(t *testing.T) {
	diags := []skeleton.Diagnostic{
		{
			Severity: skeleton.SeverityWarning,
			Code:     skeleton.CodeUnopenedGroupStop,
			Location: musicxml.Location{Line: 14, Column: 5},
			Message:  "group 7 stopped but never started",
		},
		{
			Severity: skeleton.SeverityFatal,
			Code:     skeleton.CodeOverlappingGroups,
			Location: musicxml.Location{Line: 6, Column: 5},
			Message:  "groups overlap",
			Subjects: []string{"group 2 (parts 0..2)", "group 1 (parts 0..1)"},
		},
	}

	rows := DiagnosticsFromResult("run-1", diags)
	require.Len(t, rows, 2)
	assert.Equal(t, 0, rows[0].Seq)
	assert.Equal(t, 1, rows[1].Seq)
	assert.Equal(t, "warning", rows[0].Severity)
	assert.Equal(t, 14, rows[0].Line)

	back := make([]skeleton.Diagnostic, len(rows))
	for i, r := range rows {
		back[i] = r.ToDiagnostic()
	}
	assert.Equal(t, diags, back)

	unknown := (&RunDiagnostic{Severity: "shrug"}).ToDiagnostic()
	assert.Equal(t, skeleton.SeverityInternal, unknown.Severity)
}

func TestSubjectsColumn(t *testing.T) {
	assert.Equal(t, "a\nb", joinSubjects([]string{"a", "b"}))
	assert.Equal(t, []string{"a", "b"}, splitSubjects("a\nb"))
	assert.Nil(t, splitSubjects(""))
}
