// Command kvidx-load populates a kvindex.Index from a CSV file of
// name,protein,calories,cost rows — the column shape the original
// reference's csvLoader established. It is a thin consumer of the
// public kvindex.Insert operation only; it never reaches into
// kvindex/tree internals.
package main

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"unicode"

	"github.com/spf13/cobra"

	"github.com/ngina/kvidx/kvindex"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	var dbPath, csvPath string
	var order int

	cmd := &cobra.Command{
		Use:   "kvidx-load",
		Short: "Load a name,protein,calories,cost CSV file into a kvidx index",
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(csvPath)
			if err != nil {
				return err
			}
			defer f.Close()

			opts := kvindex.DefaultOptions()
			if order > 0 {
				opts.Order = order
			}
			idx, err := kvindex.Open(dbPath, opts)
			if err != nil {
				return err
			}
			defer idx.Close()

			n, err := loadCSV(f, idx)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "loaded %d records into %s\n", n, dbPath)
			return nil
		},
	}
	cmd.Flags().StringVar(&dbPath, "db", "kvidx-load.db", "path to the index file")
	cmd.Flags().StringVar(&csvPath, "csv", "", "path to the source CSV file")
	cmd.Flags().IntVar(&order, "order", 0, "B+ tree order override (0 = default)")
	cmd.MarkFlagRequired("csv")
	return cmd
}

// normalizeName collapses any run of whitespace in name to a single
// space and trims the result, matching the reference loader's
// normalization before the name is handed to the key encoder.
func normalizeName(name string) string {
	var b strings.Builder
	lastWasSpace := false
	for _, r := range name {
		if unicode.IsSpace(r) {
			if !lastWasSpace {
				b.WriteByte(' ')
				lastWasSpace = true
			}
			continue
		}
		b.WriteRune(r)
		lastWasSpace = false
	}
	return strings.TrimSpace(b.String())
}

// loadCSV reads rows of name,protein,calories,cost (the name is
// whitespace-collapsed and trimmed; the other fields are trimmed) and
// inserts one Record per row. A header row, if present, is detected by
// its non-numeric protein column and skipped.
func loadCSV(r io.Reader, idx *kvindex.Index) (int, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = 4

	n := 0
	first := true
	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return n, err
		}

		name := normalizeName(row[0])
		protein, perr := strconv.ParseInt(strings.TrimSpace(row[1]), 10, 32)
		if first {
			first = false
			if perr != nil {
				continue // header row
			}
		}
		if perr != nil {
			return n, fmt.Errorf("row %d: invalid protein value %q", n+1, row[1])
		}
		calories, err := strconv.ParseInt(strings.TrimSpace(row[2]), 10, 32)
		if err != nil {
			return n, fmt.Errorf("row %d: invalid calories value %q", n+1, row[2])
		}
		cost, err := strconv.ParseFloat(strings.TrimSpace(row[3]), 64)
		if err != nil {
			return n, fmt.Errorf("row %d: invalid cost value %q", n+1, row[3])
		}

		if err := idx.Insert(kvindex.Record{
			Name:  name,
			A:     int32(protein),
			B:     int32(calories),
			Value: cost,
		}); err != nil {
			return n, err
		}
		n++
	}
	return n, nil
}
