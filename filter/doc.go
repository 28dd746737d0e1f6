// Package filter defines the predicate expression tree evaluated against
// segments, together with its builders, validation, JSON wire form and a
// DuckDB SQL encoder.
//
// # Building predicates
//
// Builders are pure: each call returns a new node and never modifies its
// inputs, so a predicate can be shared across goroutines and reused.
//
//	pred := filter.And(
//	    filter.Col("price").Lt(100),
//	    filter.Col("venue").IsIn(filter.Set([]string{"XLON", "XPAR"})...),
//	)
//
// Column binding is nominal. A predicate that references a column no
// segment contains is not an error; the column evaluates as all-null.
//
// # Null semantics
//
// A null operand (including a column absent from a segment) makes
// =, <, <=, >, >= and IN false, and makes <> and NOT IN true. NOT negates
// the resulting two-valued mask.
//
// # Wire format
//
// Parse and Marshal convert predicates to and from JSON. Nodes carry an
// expression_class and a type discriminator:
//
//	{"expression_class": "BOUND_COMPARISON", "type": "COMPARE_LESSTHAN",
//	 "left":  {"expression_class": "BOUND_COLUMN_REF", "type": "BOUND_COLUMN_REF", "name": "price"},
//	 "right": {"expression_class": "BOUND_CONSTANT", "type": "VALUE_CONSTANT",
//	           "value": {"type": "int64", "value": 100}}}
//
// # SQL encoding
//
// DuckDBEncoder renders a predicate as a DuckDB boolean expression with the
// same null semantics, for diagnostics and for cross-checking results:
//
//	enc := filter.NewDuckDBEncoder(nil)
//	where := enc.Encode(pred)
package filter
