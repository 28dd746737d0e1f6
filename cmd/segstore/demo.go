package main

import (
	"context"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"

	"github.com/hugr-lab/segstore/catalog"
)

const demoSymbol = "ticks"

// seedDemo writes demoSymbol as three appends whose schemas evolve: price
// narrows from float64 to uint8, venue widens from a two byte code to a
// string and qty appears only in the last segment.
func seedDemo(ctx context.Context, lib *catalog.MemoryLibrary) error {
	mem := memory.DefaultAllocator

	first := arrow.NewSchema([]arrow.Field{
		{Name: "id", Type: arrow.PrimitiveTypes.Int64, Nullable: true},
		{Name: "price", Type: arrow.PrimitiveTypes.Float64, Nullable: true},
		{Name: "venue", Type: &arrow.FixedSizeBinaryType{ByteWidth: 2}, Nullable: true},
	}, nil)
	b := array.NewRecordBuilder(mem, first)
	defer b.Release()
	b.Field(0).(*array.Int64Builder).AppendValues([]int64{1, 2, 3}, nil)
	b.Field(1).(*array.Float64Builder).AppendValues([]float64{99.5, 101.25, 100}, nil)
	b.Field(2).(*array.FixedSizeBinaryBuilder).AppendValues([][]byte{[]byte("NY"), []byte("LN"), []byte("NY")}, nil)
	rec := b.NewRecordBatch()
	defer rec.Release()
	if _, err := lib.Write(ctx, demoSymbol, rec); err != nil {
		return err
	}

	second := arrow.NewSchema([]arrow.Field{
		{Name: "id", Type: arrow.PrimitiveTypes.Int64, Nullable: true},
		{Name: "price", Type: arrow.PrimitiveTypes.Uint8, Nullable: true},
		{Name: "venue", Type: arrow.BinaryTypes.String, Nullable: true},
	}, nil)
	b2 := array.NewRecordBuilder(mem, second)
	defer b2.Release()
	b2.Field(0).(*array.Int64Builder).AppendValues([]int64{4, 5}, nil)
	b2.Field(1).(*array.Uint8Builder).AppendValues([]uint8{100, 102}, []bool{true, false})
	b2.Field(2).(*array.StringBuilder).AppendValues([]string{"TOKYO", "NY"}, nil)
	rec2 := b2.NewRecordBatch()
	defer rec2.Release()
	if _, err := lib.Append(ctx, demoSymbol, rec2, nil); err != nil {
		return err
	}

	third := arrow.NewSchema([]arrow.Field{
		{Name: "id", Type: arrow.PrimitiveTypes.Int64, Nullable: true},
		{Name: "qty", Type: arrow.PrimitiveTypes.Int32, Nullable: true},
	}, nil)
	b3 := array.NewRecordBuilder(mem, third)
	defer b3.Release()
	b3.Field(0).(*array.Int64Builder).AppendValues([]int64{6, 7}, nil)
	b3.Field(1).(*array.Int32Builder).AppendValues([]int32{10, 20}, nil)
	rec3 := b3.NewRecordBatch()
	defer rec3.Release()
	_, err := lib.Append(ctx, demoSymbol, rec3, nil)
	return err
}
