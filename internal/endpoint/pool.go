package endpoint

import "fmt"

// Pool is an ordered, fixed list of RPC endpoints with a rotating cursor.
// It is owned by a single control flow and is not safe for concurrent use.
type Pool struct {
	endpoints []string
	cursor    int
}

// New builds a Pool positioned on the first endpoint.
func New(endpoints []string) (*Pool, error) {
	if len(endpoints) == 0 {
		return nil, fmt.Errorf("at least one endpoint is required")
	}
	cp := make([]string, len(endpoints))
	copy(cp, endpoints)
	return &Pool{endpoints: cp}, nil
}

// Current returns the endpoint under the cursor.
func (p *Pool) Current() string {
	return p.endpoints[p.cursor]
}

// Advance moves the cursor forward by one, wrapping after the last endpoint,
// and returns the new current endpoint.
func (p *Pool) Advance() string {
	p.cursor = (p.cursor + 1) % len(p.endpoints)
	return p.endpoints[p.cursor]
}

// Len returns the number of endpoints.
func (p *Pool) Len() int {
	return len(p.endpoints)
}

// Index returns the cursor position.
func (p *Pool) Index() int {
	return p.cursor
}

// Endpoints returns a copy of the configured endpoints in order.
func (p *Pool) Endpoints() []string {
	out := make([]string, len(p.endpoints))
	copy(out, p.endpoints)
	return out
}
