package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"google.golang.org/grpc/metadata"

	"github.com/hugr-lab/segstore/filter"
	"github.com/hugr-lab/segstore/flight"
)

func newQueryCmd(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "query symbol",
		Short: "Read a symbol from a running server and print the rows",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runQuery(cmd.Context(), v, args[0], cmd.OutOrStdout())
		},
	}
	cmd.Flags().String("server", "localhost:8815", "server address")
	cmd.Flags().String("filter", "", "filter predicate as JSON, or @file to read it from a file")
	cmd.Flags().StringSlice("columns", nil, "output columns in order")
	cmd.Flags().Int64("version", 0, "read this version (negative counts back from the latest)")
	cmd.Flags().String("as-of", "", "read the latest version at or before this RFC3339 time")
	cmd.Flags().String("snapshot", "", "read this named snapshot")
	cmd.Flags().String("auth-token", "", "bearer token")
	cmd.Flags().Duration("timeout", 30*time.Second, "request timeout")
	return cmd
}

func runQuery(ctx context.Context, v *viper.Viper, symbol string, out io.Writer) error {
	td, err := queryTicket(v, symbol)
	if err != nil {
		return err
	}

	client, err := flight.Dial(v.GetString("server"))
	if err != nil {
		return err
	}
	defer client.Close()

	ctx, cancel := context.WithTimeout(ctx, v.GetDuration("timeout"))
	defer cancel()
	if token := v.GetString("auth-token"); token != "" {
		ctx = metadata.AppendToOutgoingContext(ctx, "authorization", "Bearer "+token)
	}

	tbl, err := client.Read(ctx, td)
	if err != nil {
		return err
	}
	defer tbl.Release()
	return printTable(out, tbl)
}

func queryTicket(v *viper.Viper, symbol string) (*flight.TicketData, error) {
	var expr filter.Expression
	if raw := v.GetString("filter"); raw != "" {
		data := []byte(raw)
		if path, ok := strings.CutPrefix(raw, "@"); ok {
			var err error
			if data, err = os.ReadFile(path); err != nil {
				return nil, err
			}
		}
		var err error
		if expr, err = filter.Parse(data); err != nil {
			return nil, err
		}
	}

	td, err := flight.NewTicket(symbol, expr, v.GetStringSlice("columns")...)
	if err != nil {
		return nil, err
	}
	if v.IsSet("version") {
		version := v.GetInt64("version")
		td.Version = &version
	}
	if asOf := v.GetString("as-of"); asOf != "" {
		t, err := time.Parse(time.RFC3339Nano, asOf)
		if err != nil {
			return nil, fmt.Errorf("invalid --as-of: %w", err)
		}
		ns := t.UnixNano()
		td.Timestamp = &ns
	}
	td.Snapshot = v.GetString("snapshot")
	return td, nil
}

// printTable writes tbl as tab-aligned text with a header row.
func printTable(out io.Writer, tbl arrow.Table) error {
	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	schema := tbl.Schema()

	names := make([]string, schema.NumFields())
	for i, f := range schema.Fields() {
		names[i] = f.Name
	}
	fmt.Fprintln(w, strings.Join(names, "\t"))

	tr := array.NewTableReader(tbl, 1024)
	defer tr.Release()
	for tr.Next() {
		rec := tr.RecordBatch()
		cells := make([]string, rec.NumCols())
		for row := 0; row < int(rec.NumRows()); row++ {
			for i := range cells {
				cells[i] = rec.Column(i).ValueStr(row)
			}
			fmt.Fprintln(w, strings.Join(cells, "\t"))
		}
	}
	if err := tr.Err(); err != nil {
		return err
	}
	return w.Flush()
}
