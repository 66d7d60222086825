package pgnative

import "github.com/mickamy/pgnative/types"

// Portal is the spec.md §3 Portal: a bound instance of a Statement with
// concrete parameter values, identified by a server-assigned name (empty
// string for the unnamed portal, which is the default per spec.md §4.5).
type Portal struct {
	name      string
	stmt      *Statement
	formats   []types.FormatCode
	closed    bool
}

// Name returns the portal's server-assigned name, or "" for the unnamed
// portal.
func (p *Portal) Name() string { return p.name }

// Statement returns the Statement this portal was bound from.
func (p *Portal) Statement() *Statement { return p.stmt }

// portalCache tracks the unnamed portal plus any explicitly named ones.
// Unlike statementCache there is no dedup-by-content: a fresh Bind always
// produces a fresh portal (spec.md §4.5).
type portalCache struct {
	counter int
	byName  map[string]*Portal
}

func newPortalCache() *portalCache {
	return &portalCache{byName: make(map[string]*Portal)}
}

// nextName returns a unique server-side name for a named portal, derived
// from the caller-chosen prefix so repeated calls with the same prefix are
// still distinguishable in server logs (spec.md §4.4).
func (c *portalCache) nextName(prefix string) string {
	c.counter++
	return prefix + "_" + itoa(c.counter)
}

func (c *portalCache) store(p *Portal) {
	c.byName[p.name] = p
}

func (c *portalCache) remove(p *Portal) {
	delete(c.byName, p.name)
}
