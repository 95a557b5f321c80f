package report

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tildaslashalef/partnest/internal/loggy"
	"github.com/tildaslashalef/partnest/internal/musicxml"
	"github.com/tildaslashalef/partnest/internal/skeleton"
)

const trio = `<score-partwise>
  <part-list>
    <part-group type="start" number="1">
      <group-name>Piano | Strings</group-name>
      <group-symbol>bracket</group-symbol>
    </part-group>
    <score-part id="P1"><part-name>Violin</part-name></score-part>
    <score-part id="P2"><part-name>Cello</part-name></score-part>
    <part-group type="stop" number="1"/>
    <score-part id="P3"><part-name>Piano</part-name></score-part>
    <part-group type="stop" number="4"/>
  </part-list>
  <part id="P1">
    <measure number="1"><note><voice>1</voice></note></measure>
    <measure number="2"><note><voice>1</voice></note></measure>
  </part>
  <part id="P3">
    <measure number="1">
      <attributes><staves>2</staves></attributes>
      <note><staff>1</staff><voice>1</voice></note>
      <note><staff>2</staff><voice>5</voice></note>
    </measure>
  </part>
</score-partwise>`

func buildTrio(t *testing.T) *skeleton.Result {
	t.Helper()
	r, err := musicxml.NewReader(strings.NewReader(trio))
	require.NoError(t, err)
	res, err := skeleton.Build(context.Background(), r, loggy.NewNoopLogger(), skeleton.Options{})
	require.NoError(t, err)
	return res
}

func TestSummary(t *testing.T) {
	res := buildTrio(t)
	assert.Equal(t, "3 parts, 2 groups, 1 warning, 0 fatal errors", Summary(res))
	assert.Equal(t, "no result", Summary(nil))
}

func TestRangeLabel(t *testing.T) {
	assert.Equal(t, "parts 0..2", rangeLabel(0, 3))
	assert.Equal(t, "empty at 2", rangeLabel(2, 2))
	assert.Equal(t, "parts 1..?", rangeLabel(1, -1))
}

func TestText(t *testing.T) {
	res := buildTrio(t)

	var buf bytes.Buffer
	require.NoError(t, Text(&buf, res, TextOptions{WrapWidth: 80, ShowPositions: true}))
	out := buf.String()

	assert.Contains(t, out, "Score skeleton")
	assert.Contains(t, out, "implicit outer-most group (parts 0..2)")
	assert.Contains(t, out, `group 1 "Piano | Strings" (bracket, parts 0..1)`)
	assert.Contains(t, out, `P1 "Violin" (#0, 2 measures 1-2, voices 1)`)
	assert.Contains(t, out, `P3 "Piano" (#2, 1 measure, 2 staves, voices 1,5)`)
	assert.Contains(t, out, "Diagnostics")
	assert.Contains(t, out, skeleton.CodeUnopenedGroupStop)
	assert.NotContains(t, out, "\x1b[", "no colors requested")

	// group lines precede their parts
	assert.Less(t, strings.Index(out, "group 1"), strings.Index(out, "P1"))
	assert.Less(t, strings.Index(out, "P2"), strings.Index(out, "P3"))
}

func TestTextWithoutPositions(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Text(&buf, buildTrio(t), TextOptions{}))

	assert.NotContains(t, buf.String(), "#0")
	assert.Contains(t, buf.String(), `group 1 "Piano | Strings" (bracket)`)
}

func TestTextFailedBuild(t *testing.T) {
	res := &skeleton.Result{
		Diagnostics: []skeleton.Diagnostic{{
			Severity: skeleton.SeverityFatal,
			Code:     skeleton.CodeOverlappingGroups,
			Location: musicxml.Location{Line: 6, Column: 5},
			Message:  "part groups overlap",
			Subjects: []string{"group 2", "group 1"},
		}},
	}

	var buf bytes.Buffer
	require.NoError(t, Text(&buf, res, TextOptions{}))
	out := buf.String()

	assert.Contains(t, out, "No tree")
	assert.Contains(t, out, "6:5")
	assert.Contains(t, out, "- group 2")
	assert.Contains(t, out, "fatal")

	assert.Error(t, Text(&buf, nil, TextOptions{}))
}

func TestMarkdown(t *testing.T) {
	md := Markdown(buildTrio(t), MarkdownOptions{Title: "trio.musicxml", ShowPositions: true})

	assert.True(t, strings.HasPrefix(md, "# trio.musicxml\n"))
	assert.Contains(t, md, "## Tree")
	assert.Contains(t, md, "- **implicit outer-most group** _parts 0..2_\n")
	assert.Contains(t, md, "  - **group 1 \"Piano \\| Strings\"** _bracket, parts 0..1_\n")
	assert.Contains(t, md, "    - `P1` Violin _#0, 2 measures 1-2, voices 1_\n")
	assert.Contains(t, md, "  - `P3` Piano")
	assert.Contains(t, md, "| Severity | Code | Line | Message |")
	assert.Contains(t, md, "| warning | `unopened-group-stop` |")
}

func TestMarkdownFailedBuild(t *testing.T) {
	res := &skeleton.Result{Diagnostics: []skeleton.Diagnostic{{
		Severity: skeleton.SeverityFatal,
		Code:     skeleton.CodeUnclosedGroup,
		Message:  "groups still open",
		Subjects: []string{"group_1", "group_2"},
	}}}

	md := Markdown(res, MarkdownOptions{})
	assert.Contains(t, md, "# Score skeleton")
	assert.Contains(t, md, "_No tree")
	assert.Contains(t, md, "| **fatal** | `unclosed-group` | - | groups still open<br>group\\_1<br>group\\_2 |")
}

func TestRenderMarkdown(t *testing.T) {
	out, err := RenderMarkdown("# Title\n\nSome *text*.", 60)
	require.NoError(t, err)
	assert.Contains(t, out, "Title")
	assert.Contains(t, out, "text")
}

func TestJSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, JSON(&buf, buildTrio(t)))

	var doc struct {
		PartCount   int `json:"part_count"`
		GroupCount  int `json:"group_count"`
		Warnings    int `json:"warnings"`
		Fatals      int `json:"fatals"`
		Tree        struct {
			Kind  string `json:"kind"`
			Group struct {
				Implicit bool `json:"implicit"`
			} `json:"group"`
			Children []struct {
				Kind  string `json:"kind"`
				Group *struct {
					Number int    `json:"number"`
					Name   string `json:"name"`
					Symbol string `json:"symbol"`
				} `json:"group"`
				Part *struct {
					ID     string `json:"id"`
					Voices []int  `json:"voices"`
				} `json:"part"`
				Children []json.RawMessage `json:"children"`
			} `json:"children"`
		} `json:"tree"`
		Diagnostics []struct {
			Severity string `json:"severity"`
			Code     string `json:"code"`
			Location struct {
				Line int `json:"line"`
			} `json:"location"`
		} `json:"diagnostics"`
	}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &doc))

	assert.Equal(t, 3, doc.PartCount)
	assert.Equal(t, 2, doc.GroupCount)
	assert.Equal(t, 1, doc.Warnings)
	assert.Equal(t, "part-group", doc.Tree.Kind)
	assert.True(t, doc.Tree.Group.Implicit)

	require.Len(t, doc.Tree.Children, 2)
	group := doc.Tree.Children[0]
	require.NotNil(t, group.Group)
	assert.Equal(t, "Piano | Strings", group.Group.Name)
	assert.Equal(t, "bracket", group.Group.Symbol)
	assert.Len(t, group.Children, 2)

	piano := doc.Tree.Children[1]
	require.NotNil(t, piano.Part)
	assert.Equal(t, "P3", piano.Part.ID)
	assert.Equal(t, []int{1, 5}, piano.Part.Voices)

	require.Len(t, doc.Diagnostics, 1)
	assert.Equal(t, "warning", doc.Diagnostics[0].Severity)
	assert.Equal(t, skeleton.CodeUnopenedGroupStop, doc.Diagnostics[0].Code)
	assert.Equal(t, 11, doc.Diagnostics[0].Location.Line)
}

func TestJSONFailedBuild(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, JSON(&buf, &skeleton.Result{}))
	assert.Contains(t, buf.String(), `"tree": null`)
	assert.Contains(t, buf.String(), `"diagnostics": []`)
}
