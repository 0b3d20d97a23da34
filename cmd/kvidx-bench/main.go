// Command kvidx-bench drives a kvindex.Index from the command line: bulk
// loading synthetic records, point lookups, range scans, and a combined
// build+lookup timing pass. It stands in for the teacher's bare
// func-main smoke test, upgraded to real subcommands.
package main

import (
	"fmt"
	"math/rand"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/ngina/kvidx/kvindex"
)

var (
	dbPath     string
	order      int
	poolFrames int
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "kvidx-bench",
		Short: "Exercise a kvidx index file from the command line",
	}
	root.PersistentFlags().StringVar(&dbPath, "db", "kvidx-bench.db", "path to the index file")
	root.PersistentFlags().IntVar(&order, "order", 64, "B+ tree order (t)")
	root.PersistentFlags().IntVar(&poolFrames, "pool-frames", 256, "buffer pool frame count")

	root.AddCommand(buildCmd(), lookupCmd(), rangeCmd(), prefixCmd(), benchCmd())
	return root
}

func openIndex() (*kvindex.Index, error) {
	opts := kvindex.DefaultOptions()
	opts.Order = order
	opts.PoolFrames = poolFrames
	return kvindex.Open(dbPath, opts)
}

func buildCmd() *cobra.Command {
	var count int
	cmd := &cobra.Command{
		Use:   "build",
		Short: "Bulk-load N synthetic records into the index",
		RunE: func(cmd *cobra.Command, args []string) error {
			idx, err := openIndex()
			if err != nil {
				return err
			}
			defer idx.Close()

			start := time.Now()
			for i := 0; i < count; i++ {
				name := fmt.Sprintf("item-%s", uuid.NewString()[:8])
				rec := kvindex.Record{
					Name:  name,
					A:     int32(rand.Intn(1000)),
					B:     int32(rand.Intn(1000)),
					Value: rand.Float64() * 100,
				}
				if err := idx.Insert(rec); err != nil {
					return err
				}
			}
			elapsed := time.Since(start)
			depth, err := idx.ComputeTreeDepth()
			if err != nil {
				return err
			}
			stats := idx.Stats()
			fmt.Fprintf(cmd.OutOrStdout(),
				"inserted %d records in %s (depth=%d fetches=%d hits=%d misses=%d evictions=%d writes=%d)\n",
				count, elapsed, depth, stats.Fetches, stats.Hits, stats.Misses, stats.Evictions, stats.Writes)
			return nil
		},
	}
	cmd.Flags().IntVar(&count, "count", 1000, "number of synthetic records to insert")
	return cmd
}

func lookupCmd() *cobra.Command {
	var name string
	var withoutBloom bool
	cmd := &cobra.Command{
		Use:   "lookup",
		Short: "Look up one record by exact name",
		RunE: func(cmd *cobra.Command, args []string) error {
			idx, err := openIndex()
			if err != nil {
				return err
			}
			defer idx.Close()

			var rec kvindex.Record
			var found bool
			if withoutBloom {
				rec, found, err = idx.SearchWithoutBloom(name)
			} else {
				rec, found, err = idx.Search(name)
			}
			if err != nil {
				return err
			}
			if !found {
				fmt.Fprintf(cmd.OutOrStdout(), "%q: not found\n", name)
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%q: %+v\n", name, rec)
			return nil
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "record name to look up")
	cmd.Flags().BoolVar(&withoutBloom, "no-bloom", false, "bypass the leaf Bloom filter")
	cmd.MarkFlagRequired("name")
	return cmd
}

func rangeCmd() *cobra.Command {
	var from, to string
	cmd := &cobra.Command{
		Use:   "range",
		Short: "List records whose name starts with a letter in [from, to]",
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(from) != 1 || len(to) != 1 {
				return fmt.Errorf("--from and --to must each be a single letter")
			}
			idx, err := openIndex()
			if err != nil {
				return err
			}
			defer idx.Close()

			recs, err := idx.RangeSearchByChar(from[0], to[0])
			if err != nil {
				return err
			}
			for _, r := range recs {
				fmt.Fprintf(cmd.OutOrStdout(), "%s\n", r.Name)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%d records\n", len(recs))
			return nil
		},
	}
	cmd.Flags().StringVar(&from, "from", "a", "starting letter (inclusive)")
	cmd.Flags().StringVar(&to, "to", "z", "ending letter (inclusive)")
	return cmd
}

func prefixCmd() *cobra.Command {
	var prefix string
	cmd := &cobra.Command{
		Use:   "prefix",
		Short: "List records whose name starts with a prefix",
		RunE: func(cmd *cobra.Command, args []string) error {
			idx, err := openIndex()
			if err != nil {
				return err
			}
			defer idx.Close()

			recs, err := idx.PrefixSearch(prefix)
			if err != nil {
				return err
			}
			for _, r := range recs {
				fmt.Fprintf(cmd.OutOrStdout(), "%s\n", r.Name)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%d records\n", len(recs))
			return nil
		},
	}
	cmd.Flags().StringVar(&prefix, "prefix", "", "case-insensitive name prefix")
	cmd.MarkFlagRequired("prefix")
	return cmd
}

func benchCmd() *cobra.Command {
	var count int
	cmd := &cobra.Command{
		Use:   "bench",
		Short: "Build then point-lookup every inserted record, reporting Bloom on/off timing",
		RunE: func(cmd *cobra.Command, args []string) error {
			idx, err := openIndex()
			if err != nil {
				return err
			}
			defer idx.Close()

			names := make([]string, count)
			for i := range names {
				names[i] = fmt.Sprintf("bench-%s", uuid.NewString()[:8])
				if err := idx.Insert(kvindex.Record{Name: names[i], Value: float64(i)}); err != nil {
					return err
				}
			}

			start := time.Now()
			for _, n := range names {
				if _, _, err := idx.Search(n); err != nil {
					return err
				}
			}
			withBloom := time.Since(start)

			start = time.Now()
			for _, n := range names {
				if _, _, err := idx.SearchWithoutBloom(n); err != nil {
					return err
				}
			}
			withoutBloom := time.Since(start)

			fmt.Fprintf(cmd.OutOrStdout(), "%d lookups: with bloom=%s without bloom=%s\n",
				count, withBloom, withoutBloom)
			return nil
		},
	}
	cmd.Flags().IntVar(&count, "count", 1000, "number of records to build and look up")
	return cmd
}
