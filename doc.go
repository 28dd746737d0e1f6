// Package segstore reads filtered tables from a versioned columnar store
// whose symbols are made of segments with evolving schemas.
//
// A symbol's version is an ordered list of immutable segments. Segments
// written at different times may lack columns or declare narrower types
// than later ones. A read resolves one unified schema across the
// segments, evaluates a predicate per segment in parallel and assembles
// the selected rows in segment order.
//
// # Quick Start
//
//	lib, _ := catalog.NewMemoryLibrary()
//	defer lib.Close()
//	lib.Write(ctx, "prices", rec)
//
//	store, err := segstore.Open(segstore.Config{Library: lib})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	tbl, err := store.Read(ctx, "prices", segstore.ReadOptions{
//	    Filter:  filter.And(filter.Col("price").Gt(100), filter.Col("side").IsIn("buy")),
//	    Columns: []string{"ts", "price"},
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer tbl.Release()
//
// # Null Semantics
//
// A column absent from a segment reads as null in that segment. Null
// operands make =, <, <=, >, >= and IN false and make != and NOT IN true.
// An empty IN list selects nothing and an empty NOT IN list selects every
// row.
//
// # Serving
//
// NewServer registers an Arrow Flight service on a user-provided
// grpc.Server. Clients send MessagePack tickets naming the symbol, point in
// time, columns and predicate; see the flight package.
//
// # Memory Management
//
// Arrow uses manual reference counting. Callers MUST call Release() on
// tables returned by Read.
package segstore
