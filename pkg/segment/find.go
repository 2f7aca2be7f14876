package segment

import "errors"

// Match narrows a lookup beyond the chunk class.
type Match func(*matcher)

type matcher struct {
	typ, ident     string
	anyTyp, anyIdt bool
}

// WithType requires the chunk type to equal typ.
func WithType(typ string) Match {
	return func(m *matcher) {
		m.typ = typ
		m.anyTyp = false
	}
}

// WithIdent requires the chunk identifier to equal ident.
func WithIdent(ident string) Match {
	return func(m *matcher) {
		m.ident = ident
		m.anyIdt = false
	}
}

// Find returns the first chunk in storage order whose class is class and
// which satisfies every Match. Type and identifier match anything unless
// constrained. It returns nil when nothing matches or when the chunk list
// is recycled during the scan.
func (s *Segment) Find(class string, opts ...Match) (*Chunk, error) {
	m := matcher{anyTyp: true, anyIdt: true}
	for _, o := range opts {
		o(&m)
	}

	for c, err := range s.Chunks() {
		if err != nil {
			return nil, err
		}
		if c.Class() != class {
			continue
		}
		if !m.anyTyp && c.Type() != m.typ {
			continue
		}
		if !m.anyIdt && c.Ident() != m.ident {
			continue
		}
		return c, nil
	}
	return nil, nil
}

// FindAlloc is Find returning the payload of the match. The payload is a
// slice of the shared mapping; see Chunk.Payload.
func (s *Segment) FindAlloc(class string, opts ...Match) ([]byte, bool, error) {
	c, err := s.Find(class, opts...)
	if c == nil || err != nil {
		return nil, false, err
	}
	return allocPayload(c)
}

// allocPayload reads the payload of a matched chunk. A chunk recycled
// between the match and the read counts as not found.
func allocPayload(c *Chunk) ([]byte, bool, error) {
	p, err := c.Payload()
	if errors.Is(err, ErrStaleChunk) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return p, true, nil
}
