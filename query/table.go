package query

import (
	"github.com/apache/arrow-go/v18/arrow"

	"github.com/hugr-lab/segstore/column"
)

// Table is a query result: equally long columns typed by one schema.
// It owns its Arrow record; call Release when done.
type Table struct {
	schema   *column.Schema
	record   arrow.RecordBatch
	warnings []AbsentColumnWarning
}

// NumRows returns the row count shared by all columns.
func (t *Table) NumRows() int { return int(t.record.NumRows()) }

// NumCols returns the number of columns.
func (t *Table) NumCols() int { return t.schema.Len() }

// Schema returns the column schema of the result.
func (t *Table) Schema() *column.Schema { return t.schema }

// Column returns the named result column. The column borrows the table's
// buffer and is valid while the table is retained.
func (t *Table) Column(name string) (*column.Column, bool) {
	i := t.schema.Index(name)
	if i < 0 {
		return nil, false
	}
	f := t.schema.Field(i)
	return &column.Column{Name: f.Name, Type: f.Type, Values: t.record.Column(i)}, true
}

// Record returns the result as an Arrow record without retaining it.
func (t *Table) Record() arrow.RecordBatch { return t.record }

// Warnings returns the absent-column diagnostics gathered while evaluating.
func (t *Table) Warnings() []AbsentColumnWarning { return t.warnings }

// Retain increments the reference count.
func (t *Table) Retain() { t.record.Retain() }

// Release decrements the reference count.
func (t *Table) Release() { t.record.Release() }
