package pgnative

import "github.com/mickamy/pgnative/types"

// ColumnDescriptor describes one result column, decoded from a
// RowDescription field, spec.md §3.
type ColumnDescriptor struct {
	Name          string
	TableOID      uint32
	ColumnAttrNum int16
	TypeOID       uint32
	TypeSize      int16
	TypeMod       int32
	Format        types.FormatCode
}

// Statement is the spec.md §3 Statement: a server-assigned name, the
// parameter OID list, and the result column descriptors, immutable once
// populated. Statements live in the Session's cache and hold a pointer back
// to their Session, which Close uses.
type Statement struct {
	session *Session

	name         string
	sql          string
	paramOIDs    []uint32
	columns      []ColumnDescriptor
	returnsNoData bool

	closed bool
}

// Name returns the server-assigned statement name ("s<N>").
func (s *Statement) Name() string { return s.name }

// SQL returns the literal text this statement was prepared from.
func (s *Statement) SQL() string { return s.sql }

// ParameterOIDs returns the parameter types the server inferred.
func (s *Statement) ParameterOIDs() []uint32 {
	out := make([]uint32, len(s.paramOIDs))
	copy(out, s.paramOIDs)
	return out
}

// Columns returns the result column descriptors (empty for statements with
// no result set, e.g. DML).
func (s *Statement) Columns() []ColumnDescriptor {
	out := make([]ColumnDescriptor, len(s.columns))
	copy(out, s.columns)
	return out
}

// statementCache deduplicates prepares by literal SQL text (spec.md §4.4)
// and generates monotonically increasing statement names.
type statementCache struct {
	byText  map[string]*Statement
	counter int
}

func newStatementCache() *statementCache {
	return &statementCache{byText: make(map[string]*Statement)}
}

func (c *statementCache) lookup(sql string) (*Statement, bool) {
	st, ok := c.byText[sql]
	return st, ok
}

func (c *statementCache) nextName() string {
	c.counter++
	return "s" + itoa(c.counter)
}

func (c *statementCache) store(st *Statement) {
	c.byText[st.sql] = st
}

func (c *statementCache) remove(st *Statement) {
	delete(c.byText, st.sql)
}

// itoa avoids pulling in strconv for this one hot path's worth of call
// sites; kept trivial and allocation-light.
func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	var buf [20]byte
	i := len(buf)
	neg := n < 0
	if neg {
		n = -n
	}
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	if neg {
		i--
		buf[i] = '-'
	}
	return string(buf[i:])
}
