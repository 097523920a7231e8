package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os/signal"
	"syscall"

	"nutriplan/kb"
	"nutriplan/loader/internal"
	"nutriplan/loader/service"

	"github.com/spf13/cobra"
)

// Runtime is everything a command needs, built lazily so --help works offline.
type Runtime struct {
	Service  *service.Service
	KB       *kb.KnowledgeStore
	Watcher  *internal.Watcher
	Document string
	Close    func()
}

type Opener func(ctx context.Context) (*Runtime, error)

func NewRootCmd(open Opener) *cobra.Command {
	var asJSON bool
	root := &cobra.Command{
		Use:           "loader",
		Short:         "Manage the nutrition knowledge base",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().BoolVar(&asJSON, "json", false, "output as JSON")

	run := func(fn func(cmd *cobra.Command, rt *Runtime) error) func(*cobra.Command, []string) error {
		return func(cmd *cobra.Command, _ []string) error {
			rt, err := open(cmd.Context())
			if err != nil {
				return err
			}
			if rt.Close != nil {
				defer rt.Close()
			}
			return fn(cmd, rt)
		}
	}
	output := func(cmd *cobra.Command, v any, text func()) error {
		if !asJSON {
			text()
			return nil
		}
		data, err := json.MarshalIndent(v, "", "  ")
		if err != nil {
			return fmt.Errorf("marshal output: %w", err)
		}
		cmd.Println(string(data))
		return nil
	}

	var pdfPath string
	reindex := &cobra.Command{
		Use:   "reindex",
		Short: "Delete and rebuild the collection from the PDF",
		Args:  cobra.NoArgs,
	}
	reindex.Flags().StringVar(&pdfPath, "pdf", "", "document to index (defaults to KB_DOCUMENT)")
	reindex.RunE = run(func(cmd *cobra.Command, rt *Runtime) error {
		path := pdfPath
		if path == "" {
			path = rt.Document
		}
		report, err := rt.Service.Reindex(cmd.Context(), path)
		if outErr := output(cmd, report, func() {
			cmd.Printf("Document: %s\n", report.Document)
			cmd.Printf("Pages: %d  Chunks: %d  Written: %d  Stored: %d\n", report.Pages, report.Chunks, report.Written, report.Stored)
			if n := report.Shortfall(); n > 0 {
				cmd.Printf("WARNING: %d chunks missing from the store\n", n)
			}
		}); outErr != nil {
			return outErr
		}
		return err
	})

	verify := &cobra.Command{
		Use:   "verify",
		Short: "Check content coverage with probe queries",
		Args:  cobra.NoArgs,
		RunE: run(func(cmd *cobra.Command, rt *Runtime) error {
			report, err := rt.Service.VerifyCoverage(cmd.Context())
			if err != nil {
				return err
			}
			return output(cmd, report, func() {
				for _, c := range report.Categories {
					cmd.Printf("%s: %.1f%%\n", c.Name, c.Percent)
					for _, p := range c.Probes {
						if !p.Found {
							cmd.Printf("  missing: %s\n", p.Query)
						}
					}
				}
				cmd.Printf("Total coverage: %.1f%%\n", report.Percent)
			})
		}),
	}

	var (
		topK      int
		threshold float64
	)
	search := &cobra.Command{
		Use:   "search [query]",
		Short: "Search the knowledge base",
		Args:  cobra.ExactArgs(1),
	}
	search.Flags().IntVarP(&topK, "top-k", "k", 5, "maximum number of results")
	search.Flags().Float64VarP(&threshold, "threshold", "t", 0.5, "minimum similarity")
	search.RunE = func(cmd *cobra.Command, args []string) error {
		return run(func(cmd *cobra.Command, rt *Runtime) error {
			results, err := rt.KB.Search(cmd.Context(), args[0], topK, threshold)
			if err != nil {
				return err
			}
			return output(cmd, results, func() {
				if len(results) == 0 {
					cmd.Println("No results found.")
					return
				}
				for i, r := range results {
					cmd.Printf("  [%d] %s p.%d (%.2f)\n", i+1, r.Section, r.Page, r.Score)
					cmd.Printf("      %s\n", snippet(r.Text, 160))
				}
			})
		})(cmd, args)
	}

	stats := &cobra.Command{
		Use:   "stats",
		Short: "Show collection statistics",
		Args:  cobra.NoArgs,
		RunE: run(func(cmd *cobra.Command, rt *Runtime) error {
			s, err := rt.KB.Stats(cmd.Context())
			if err != nil {
				return err
			}
			return output(cmd, s, func() {
				cmd.Printf("Collection: %s\nVectors: %d\nDimension: %d\n", rt.KB.Collection(), s.TotalVectorCount, s.Dimension)
			})
		}),
	}

	watch := &cobra.Command{
		Use:   "watch",
		Short: "Rebuild the collection when a new PDF lands in the inbox",
		Args:  cobra.NoArgs,
		RunE: run(func(cmd *cobra.Command, rt *Runtime) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			err := rt.Service.Watch(ctx, rt.Watcher)
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		}),
	}

	root.AddCommand(reindex, verify, search, stats, watch)
	return root
}

func snippet(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
