// Package ulid issues the prefixed identifiers ("run-01J...") of the records
// partnest stores. ULIDs sort by creation time, so stored rows keep their
// insertion order without a sequence column.
package ulid

import (
	"crypto/rand"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

// Record prefixes
const (
	PrefixRun        = "run"
	PrefixNode       = "node"
	PrefixDiagnostic = "diag"
	PrefixSetting    = "set"

	PrefixSeparator = "-"
)

// ErrWrongPrefix is returned by ParseWithPrefix when the id belongs to another record kind
var ErrWrongPrefix = errors.New("unexpected id prefix")

var (
	entropyMu sync.Mutex
	entropy   = ulid.Monotonic(rand.Reader, 0)
)

// ULID is a ulid.ULID tagged with the kind of record it identifies
type ULID struct {
	ulid.ULID
	prefix string
}

// NewWithTime creates a prefixed ULID for t. Ids created within the same
// millisecond stay monotonic.
func NewWithTime(prefix string, t time.Time) ULID {
	entropyMu.Lock()
	defer entropyMu.Unlock()
	return ULID{ULID: ulid.MustNew(ulid.Timestamp(t), entropy), prefix: prefix}
}

// Generate creates a prefixed ULID for the current time; an empty prefix gives a bare ULID
func Generate(prefix string) ULID {
	return NewWithTime(prefix, time.Now())
}

// Parse accepts a bare or prefixed ULID such as "run-01AN4Z07BY79KA1307SR9X4MV3"
func Parse(id string) (ULID, error) {
	prefix, raw, found := strings.Cut(id, PrefixSeparator)
	if !found {
		prefix, raw = "", id
	}
	parsed, err := ulid.Parse(raw)
	if err != nil {
		return ULID{}, err
	}
	return ULID{ULID: parsed, prefix: prefix}, nil
}

// ParseWithPrefix parses id and checks that it carries the expected prefix
func ParseWithPrefix(id, prefix string) (ULID, error) {
	parsed, err := Parse(id)
	if err != nil {
		return ULID{}, fmt.Errorf("invalid id %q: %w", id, err)
	}
	if parsed.prefix != prefix {
		return ULID{}, fmt.Errorf("%w: %q is not a %s id", ErrWrongPrefix, id, prefix)
	}
	return parsed, nil
}

func (u ULID) Prefix() string {
	return u.prefix
}

func (u ULID) String() string {
	if u.prefix == "" {
		return u.ULID.String()
	}
	return u.prefix + PrefixSeparator + u.ULID.String()
}

// Time returns the creation time encoded in the id
func (u ULID) Time() time.Time {
	return ulid.Time(u.ULID.Time())
}

func RunID() string        { return Generate(PrefixRun).String() }
func NodeID() string       { return Generate(PrefixNode).String() }
func DiagnosticID() string { return Generate(PrefixDiagnostic).String() }
func SettingID() string    { return Generate(PrefixSetting).String() }
