package pgnative

import "github.com/mickamy/pgnative/types"

// Row is one decoded DataRow, scoped to the Rows iterator that produced it
// (spec.md §3 "Row" / §4.6 "decode-on-demand" — values are decoded lazily
// via Scan, not eagerly for every column of every row).
type Row struct {
	cols   []ColumnDescriptor
	raw    [][]byte
	reg    *types.Registry
}

// Columns returns the result column descriptors shared by every row in
// this result set.
func (r *Row) Columns() []ColumnDescriptor { return r.cols }

// Raw returns the column's raw wire bytes, or nil if the column is SQL
// NULL. Index must be in [0, len(Columns())).
func (r *Row) Raw(i int) ([]byte, error) {
	if i < 0 || i >= len(r.raw) {
		return nil, &OutOfBoundsError{Index: i}
	}
	return r.raw[i], nil
}

// Scan decodes column i using the registry's codec for its reported OID.
// A NULL column decodes to nil.
func (r *Row) Scan(i int) (any, error) {
	if i < 0 || i >= len(r.raw) {
		return nil, &OutOfBoundsError{Index: i}
	}
	if r.raw[i] == nil {
		return nil, nil
	}
	col := r.cols[i]
	v, err := r.reg.Decode(col.TypeOID, r.raw[i], col.Format)
	if err != nil {
		return nil, err
	}
	return v, nil
}

// Rows iterates the buffered result of an Execute call. The session
// buffers all DataRow messages up to CommandComplete before returning
// (the simpler synchronous-session model, rather than server-side
// streaming).
type Rows struct {
	cols []ColumnDescriptor
	data [][][]byte
	reg  *types.Registry
	idx  int
}

// Next advances to the next row, returning false once exhausted.
func (r *Rows) Next() bool {
	if r.idx >= len(r.data) {
		return false
	}
	r.idx++
	return true
}

// Row returns the current row. Valid only after a Next call returned true.
func (r *Rows) Row() *Row {
	return &Row{cols: r.cols, raw: r.data[r.idx-1], reg: r.reg}
}

// Len reports the total number of buffered rows.
func (r *Rows) Len() int { return len(r.data) }

// Columns returns the result column descriptors.
func (r *Rows) Columns() []ColumnDescriptor { return r.cols }

// ExecResult is the outcome of Session.Execute: either a Rows iterator
// (SELECT-shaped statements) or a command tag with an affected-row count
// (DML), mirroring libpq's PQresultStatus split.
type ExecResult struct {
	// Rows is non-nil for statements that return a result set.
	Rows *Rows

	// CommandTag is the raw tag from CommandComplete, e.g. "UPDATE 3".
	CommandTag string

	// RowsAffected is the trailing integer of CommandTag (INSERT/UPDATE/
	// DELETE/SELECT/MOVE/FETCH/COPY); zero when the tag has none.
	RowsAffected int64
}
