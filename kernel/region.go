package kernel

import "fmt"

// RegionState tells whether a descriptor is in use.
type RegionState uint8

const (
	Unoccupied RegionState = iota
	Occupied
)

func (s RegionState) String() string {
	if s == Occupied {
		return "occupied"
	}
	return "unoccupied"
}

// Region describes a shared-memory span. FD is also its index in the table.
type Region struct {
	FD     int
	Offset uint32
	Size   uint32
	State  RegionState
}

// Regions returns a snapshot of the region table.
func (k *Kernel) Regions() []Region {
	out := make([]Region, len(k.regions))
	copy(out, k.regions)
	return out
}

// shmOpen claims the first unoccupied descriptor and bump-allocates its span
// just below the previous descriptor's span.
func (k *Kernel) shmOpen(size uint32) (int, error) {
	fd := -1
	for i := range k.regions {
		if k.regions[i].State == Unoccupied {
			fd = i
			break
		}
	}
	if fd < 0 {
		return -1, ErrNoFreeRegion
	}

	top := k.cfg.ShmBase
	if fd > 0 {
		top = k.regions[fd-1].Offset
	}
	if size == 0 || size > top-k.cfg.ShmFloor {
		return -1, fmt.Errorf("%w: %d bytes below %#x", ErrArenaFull, size, top)
	}
	offset := top - size

	if err := k.mem.Zero(offset, size); err != nil {
		return -1, fmt.Errorf("zero region %d: %w", fd, err)
	}
	k.regions[fd] = Region{FD: fd, Offset: offset, Size: size, State: Occupied}
	return fd, nil
}

func (k *Kernel) region(fd uint32) (*Region, error) {
	if uint64(fd) >= uint64(len(k.regions)) {
		return nil, fmt.Errorf("%w: fd %d out of range", ErrBadRegion, int32(fd))
	}
	r := &k.regions[fd]
	if r.State != Occupied {
		return nil, fmt.Errorf("%w: fd %d not open", ErrBadRegion, fd)
	}
	return r, nil
}

// mmap returns the base address of an open region.
func (k *Kernel) mmap(fd uint32) (uint32, error) {
	r, err := k.region(fd)
	if err != nil {
		return 0, err
	}
	return r.Offset, nil
}

// shmUnlink zero-fills a region. The descriptor stays Occupied, so its fd is
// never handed out again and later offsets keep descending.
func (k *Kernel) shmUnlink(fd uint32) error {
	r, err := k.region(fd)
	if err != nil {
		return err
	}
	return k.mem.Zero(r.Offset, r.Size)
}
