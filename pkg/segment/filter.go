package segment

import "github.com/willf/bitset"

// Bit-set capacities for the reader-local record filters.
const (
	ClientBits   = 4096
	BackendBits  = 4096
	SuppressBits = 256
	SelectBits   = 256
)

// NamedFilter is a select filter registered by name. Order of registration
// is the order the filtering layer evaluates them in.
type NamedFilter struct {
	Class string
	Ident string
	Name  string
}

// Filters is opaque selection state for the record filtering layer. The
// segment layer allocates it and never reads it.
type Filters struct {
	Client   *bitset.BitSet
	Backend  *bitset.BitSet
	Suppress *bitset.BitSet
	Select   *bitset.BitSet

	named []NamedFilter
}

func newFilters() *Filters {
	return &Filters{
		Client:   bitset.New(ClientBits),
		Backend:  bitset.New(BackendBits),
		Suppress: bitset.New(SuppressBits),
		Select:   bitset.New(SelectBits),
	}
}

// AddSelectFilter appends a named select filter.
func (f *Filters) AddSelectFilter(class, ident, name string) {
	f.named = append(f.named, NamedFilter{Class: class, Ident: ident, Name: name})
}

// NamedFilters returns the registered named filters in insertion order.
func (f *Filters) NamedFilters() []NamedFilter {
	out := make([]NamedFilter, len(f.named))
	copy(out, f.named)
	return out
}

// Reset clears every bit and drops the named filters.
func (f *Filters) Reset() {
	f.Client.ClearAll()
	f.Backend.ClearAll()
	f.Suppress.ClearAll()
	f.Select.ClearAll()
	f.named = nil
}
