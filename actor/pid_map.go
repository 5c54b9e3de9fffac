package actor

// PIDSet is a set of PIDs supporting O(1) average membership, insertion,
// and removal.
type PIDSet struct {
	pids   []*PID
	lookup map[pidKey]int
}

// pidKey is the comparable key a *PID hashes to inside PIDSet's lookup.
type pidKey struct {
	address string
	id      string
}

func (p *PIDSet) key(pid *PID) pidKey {
	return pidKey{address: pid.Address, id: pid.ID}
}

// NewPIDSet returns a new PIDSet containing the given PIDs.
func NewPIDSet(pids ...*PID) *PIDSet {
	p := &PIDSet{}
	for _, pid := range pids {
		p.Add(pid)
	}
	return p
}

func (p *PIDSet) ensureInit() {
	if p.lookup == nil {
		p.lookup = make(map[pidKey]int)
	}
}

func (p *PIDSet) indexOf(v *PID) int {
	if idx, ok := p.lookup[p.key(v)]; ok {
		return idx
	}
	return -1
}

// Contains reports whether v is a member of the set.
func (p *PIDSet) Contains(v *PID) bool {
	_, ok := p.lookup[p.key(v)]
	return ok
}

// Add inserts v into the set. Adding an already-present PID is a no-op,
// matching the watch table's idempotent-add invariant.
func (p *PIDSet) Add(v *PID) {
	p.ensureInit()
	if p.Contains(v) {
		return
	}
	p.pids = append(p.pids, v)
	p.lookup[p.key(v)] = len(p.pids) - 1
}

// Remove deletes v from the set, reporting whether it was present.
func (p *PIDSet) Remove(v *PID) bool {
	p.ensureInit()
	i := p.indexOf(v)
	if i == -1 {
		return false
	}
	delete(p.lookup, p.key(v))
	if i < len(p.pids)-1 {
		last := p.pids[len(p.pids)-1]
		p.pids[i] = last
		p.lookup[p.key(last)] = i
	}
	p.pids = p.pids[:len(p.pids)-1]
	return true
}

// Len returns the number of PIDs in the set.
func (p *PIDSet) Len() int { return len(p.pids) }

// Clear empties the set.
func (p *PIDSet) Clear() {
	p.pids = p.pids[:0]
	p.lookup = make(map[pidKey]int)
}

// Empty reports whether the set has no members.
func (p *PIDSet) Empty() bool { return p.Len() == 0 }

// Values returns every PID currently in the set. The slice is owned by
// the set; callers must not mutate it.
func (p *PIDSet) Values() []*PID { return p.pids }

// ForEach visits every PID in the set.
func (p *PIDSet) ForEach(f func(i int, pid *PID)) {
	for i, pid := range p.pids {
		f(i, pid)
	}
}

// Get returns the PID at index.
func (p *PIDSet) Get(index int) *PID { return p.pids[index] }

// Clone returns a shallow copy of the set.
func (p *PIDSet) Clone() *PIDSet { return NewPIDSet(p.pids...) }
