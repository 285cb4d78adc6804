package board

// SpuriousID is returned by Acknowledge when nothing is pending.
const SpuriousID = 1023

const maxSources = 96

// GIC models a single-CPU generic interrupt controller: a distributor with
// per-source enable and pending bits, and a CPU interface with a priority
// mask, an acknowledge register and an end-of-interrupt register.
type GIC struct {
	distEnabled bool
	cpuEnabled  bool
	pmr         uint32

	enabled [maxSources / 32]uint32
	pending [maxSources / 32]uint32
	active  [maxSources / 32]uint32

	eoiCount int
	lastEOI  uint32
}

// NewGIC returns a controller with everything disabled.
func NewGIC() *GIC {
	return &GIC{lastEOI: SpuriousID}
}

func bit(id uint32) (int, uint32) {
	return int(id / 32), 1 << (id % 32)
}

// Enable turns on both the distributor and the CPU interface.
func (g *GIC) Enable() {
	g.distEnabled = true
	g.cpuEnabled = true
}

// SetPriorityMask writes GICC_PMR. A zero mask blocks every source.
func (g *GIC) SetPriorityMask(mask uint32) { g.pmr = mask }

// EnableSource sets the ISENABLER bit for id.
func (g *GIC) EnableSource(id uint32) {
	if id >= maxSources {
		return
	}
	w, b := bit(id)
	g.enabled[w] |= b
}

// Raise marks id pending, as the device line would.
func (g *GIC) Raise(id uint32) {
	if id >= maxSources {
		return
	}
	w, b := bit(id)
	g.pending[w] |= b
}

// Lower clears a pending source that has not been acknowledged yet.
func (g *GIC) Lower(id uint32) {
	if id >= maxSources {
		return
	}
	w, b := bit(id)
	g.pending[w] &^= b
}

// Pending reports whether a forwardable interrupt is waiting.
func (g *GIC) Pending() bool {
	return g.highest() != SpuriousID
}

func (g *GIC) highest() uint32 {
	if !g.distEnabled || !g.cpuEnabled || g.pmr == 0 {
		return SpuriousID
	}
	for w := range g.pending {
		if ready := g.pending[w] & g.enabled[w] &^ g.active[w]; ready != 0 {
			for i := uint32(0); i < 32; i++ {
				if ready&(1<<i) != 0 {
					return uint32(w)*32 + i
				}
			}
		}
	}
	return SpuriousID
}

// Acknowledge reads GICC_IAR: the lowest-numbered ready source becomes
// active and its pending bit is consumed.
func (g *GIC) Acknowledge() uint32 {
	id := g.highest()
	if id == SpuriousID {
		return id
	}
	w, b := bit(id)
	g.pending[w] &^= b
	g.active[w] |= b
	return id
}

// EndOfInterrupt writes GICC_EOIR.
func (g *GIC) EndOfInterrupt(id uint32) {
	g.eoiCount++
	g.lastEOI = id
	if id >= maxSources {
		return
	}
	w, b := bit(id)
	g.active[w] &^= b
}

// EOICount returns how many EOIR writes have been made.
func (g *GIC) EOICount() int { return g.eoiCount }

// LastEOI returns the id of the last EOIR write.
func (g *GIC) LastEOI() uint32 { return g.lastEOI }
