package ulid

import (
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerate(t *testing.T) {
	id := Generate("")

	assert.WithinDuration(t, time.Now(), id.Time(), time.Second)
	assert.Empty(t, id.Prefix())
	assert.Len(t, id.String(), 26)
}

func TestParse(t *testing.T) {
	raw := Generate("")
	parsedRaw, err := Parse(raw.String())
	require.NoError(t, err)
	assert.Equal(t, raw, parsedRaw)

	prefixed := Generate(PrefixRun)
	parsedPrefixed, err := Parse(prefixed.String())
	require.NoError(t, err)
	assert.Equal(t, prefixed, parsedPrefixed)
	assert.Equal(t, PrefixRun, parsedPrefixed.Prefix())

	for _, bad := range []string{"", "run-", "invalid-ulid"} {
		_, err = Parse(bad)
		assert.Error(t, err, bad)
	}
}

func TestParseWithPrefix(t *testing.T) {
	id := RunID()

	parsed, err := ParseWithPrefix(id, PrefixRun)
	require.NoError(t, err)
	assert.Equal(t, id, parsed.String())

	_, err = ParseWithPrefix(NodeID(), PrefixRun)
	assert.ErrorIs(t, err, ErrWrongPrefix)

	_, err = ParseWithPrefix("run-nope", PrefixRun)
	assert.Error(t, err)
	assert.NotErrorIs(t, err, ErrWrongPrefix)
}

func TestRecordIDs(t *testing.T) {
	tests := []struct {
		name   string
		fn     func() string
		prefix string
	}{
		{"RunID", RunID, PrefixRun},
		{"NodeID", NodeID, PrefixNode},
		{"DiagnosticID", DiagnosticID, PrefixDiagnostic},
		{"SettingID", SettingID, PrefixSetting},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			parsed, err := ParseWithPrefix(tt.fn(), tt.prefix)
			require.NoError(t, err)
			assert.Equal(t, tt.prefix, parsed.Prefix())
		})
	}
}

func TestMonotonicOrdering(t *testing.T) {
	now := time.Now()
	ids := make([]string, 50)
	for i := range ids {
		ids[i] = NewWithTime(PrefixNode, now).String()
	}
	assert.True(t, sort.StringsAreSorted(ids), "ids from the same millisecond sort in creation order")
}
