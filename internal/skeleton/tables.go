package skeleton

import (
	"slices"
	"sort"
)

// tables holds the bookkeeping of one document's part groups
type tables struct {
	// all is indexed by creation order and never shrinks
	all []*descriptor
	// open maps a group number to its descriptor until the stop marker arrives
	open map[int]*descriptor

	// startingAt[p] is sorted by decreasing stop, then increasing creation
	startingAt [][]*descriptor
	// stoppingAt[p] is sorted by decreasing start, then decreasing creation
	stoppingAt [][]*descriptor
	// emptyAt[p] holds the zero-width groups at p in creation order
	emptyAt map[int][]*descriptor

	// stack is used by the nesting pass only; the top is the last element
	stack []*descriptor
}

func newTables() *tables {
	return &tables{
		open:    make(map[int]*descriptor),
		emptyAt: make(map[int][]*descriptor),
	}
}

// ensure grows the per-position lists so that p is addressable
func (t *tables) ensure(p int) {
	for len(t.startingAt) <= p {
		t.startingAt = append(t.startingAt, nil)
		t.stoppingAt = append(t.stoppingAt, nil)
	}
}

func (t *tables) register(d *descriptor) {
	t.all = append(t.all, d)
}

func (t *tables) isOpen(number int) (*descriptor, bool) {
	d, ok := t.open[number]
	return d, ok
}

// insertStarting places d in startingAt[d.start], before the first entry that sorts after it
func (t *tables) insertStarting(d *descriptor) {
	t.ensure(d.start)
	list := t.startingAt[d.start]
	i := 0
	for ; i < len(list); i++ {
		e := list[i]
		if e.stop < d.stop || (e.stop == d.stop && e.creation > d.creation) {
			break
		}
	}
	t.startingAt[d.start] = slices.Insert(list, i, d)
}

// insertStopping places d in stoppingAt[d.stop], before the first entry that sorts after it
func (t *tables) insertStopping(d *descriptor) {
	t.ensure(d.stop)
	list := t.stoppingAt[d.stop]
	i := 0
	for ; i < len(list); i++ {
		e := list[i]
		if e.start < d.start || (e.start == d.start && e.creation < d.creation) {
			break
		}
	}
	t.stoppingAt[d.stop] = slices.Insert(list, i, d)
}

func (t *tables) addEmpty(d *descriptor) {
	t.emptyAt[d.start] = append(t.emptyAt[d.start], d)
}

// unclosed returns the descriptors still open, in creation order
func (t *tables) unclosed() []*descriptor {
	out := make([]*descriptor, 0, len(t.open))
	for _, d := range t.open {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].creation < out[j].creation })
	return out
}

func (t *tables) push(d *descriptor) {
	t.stack = append(t.stack, d)
}

func (t *tables) pop() *descriptor {
	if len(t.stack) == 0 {
		return nil
	}
	d := t.stack[len(t.stack)-1]
	t.stack = t.stack[:len(t.stack)-1]
	return d
}

func (t *tables) top() *descriptor {
	if len(t.stack) == 0 {
		return nil
	}
	return t.stack[len(t.stack)-1]
}
