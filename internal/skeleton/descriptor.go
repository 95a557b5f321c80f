package skeleton

import (
	"fmt"

	"github.com/tildaslashalef/partnest/internal/musicxml"
	"github.com/tildaslashalef/partnest/internal/score"
)

const unknownPosition = -1

// descriptor tracks one part group while its extent is still being discovered.
// Positions are part positions: a group holds parts start..stop-1.
type descriptor struct {
	number   int
	creation int
	implicit bool

	start    int
	stop     int
	startLoc musicxml.Location
	stopLoc  musicxml.Location

	// startSeq/stopSeq order every start and stop marker of the document
	startSeq int
	stopSeq  int

	node score.NodeID

	// container is the group an empty descriptor is attached under
	container *descriptor
	attached  bool
}

func (d *descriptor) closed() bool {
	return d.stop != unknownPosition
}

func (d *descriptor) empty() bool {
	return d.closed() && d.start == d.stop
}

func (d *descriptor) String() string {
	if d.implicit {
		return fmt.Sprintf("implicit group (#%d, positions %d..%s)", d.creation, d.start, d.stopLabel())
	}
	return fmt.Sprintf("group %d (#%d, positions %d..%s, line %d)", d.number, d.creation, d.start, d.stopLabel(), d.startLoc.Line)
}

func (d *descriptor) stopLabel() string {
	if !d.closed() {
		return "?"
	}
	return fmt.Sprint(d.stop)
}
