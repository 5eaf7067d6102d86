// Command obirctl runs one search or index lookup and prints the JSON envelope.
package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/kailas-cloud/obirdex"
	"github.com/kailas-cloud/obirdex/internal/envelope"
	"github.com/kailas-cloud/obirdex/internal/version"
)

// errFailed marks a command whose failure envelope was already printed.
var errFailed = errors.New("command failed")

type globalFlags struct {
	baseURL       string
	timeout       time.Duration
	maxConcurrent int
}

type queryFlags struct {
	keyword string
	x, y    float64
	k       int
}

func main() {
	if err := newRootCmd(os.Stdout).Execute(); err != nil {
		if !errors.Is(err, errFailed) {
			fmt.Fprintln(os.Stderr, "Error:", err)
		}
		os.Exit(1)
	}
}

func newRootCmd(out io.Writer) *cobra.Command {
	g := &globalFlags{}

	root := &cobra.Command{
		Use:           "obirctl",
		Short:         "Query an OBIR-Tree index and compare ORAM access paths",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetOut(out)

	defaultURL := os.Getenv("OBIR_BASE_URL")
	if defaultURL == "" {
		defaultURL = "http://localhost:8080"
	}
	root.PersistentFlags().StringVar(&g.baseURL, "base-url", defaultURL, "index service address (env OBIR_BASE_URL)")
	root.PersistentFlags().DurationVar(&g.timeout, "timeout", 10*time.Second, "per-call timeout")
	root.PersistentFlags().IntVar(&g.maxConcurrent, "max-concurrent", 0, "round-2 concurrency bound, 0 = unbounded")

	root.AddCommand(
		newTwoRoundCmd(g),
		newBasicCmd(g),
		newPathsCmd(g),
		newInitInfoCmd(g),
		newOramInfoCmd(g),
		newVersionCmd(),
	)
	return root
}

func newClient(g *globalFlags) (*obirdex.Client, error) {
	c, err := obirdex.New(
		obirdex.WithBaseURL(g.baseURL),
		obirdex.WithTimeout(g.timeout),
		obirdex.WithMaxConcurrentSubQueries(g.maxConcurrent),
	)
	if err != nil {
		return nil, fmt.Errorf("create client: %w", err)
	}
	return c, nil
}

func bindQueryFlags(cmd *cobra.Command, q *queryFlags) {
	cmd.Flags().StringVar(&q.keyword, "keyword", "", "search keyword")
	cmd.Flags().Float64Var(&q.x, "x", 0, "query x (longitude)")
	cmd.Flags().Float64Var(&q.y, "y", 0, "query y (latitude)")
	cmd.Flags().IntVar(&q.k, "k", 10, "number of results")
	_ = cmd.MarkFlagRequired("keyword")
}

func newTwoRoundCmd(g *globalFlags) *cobra.Command {
	q := &queryFlags{}
	cmd := &cobra.Command{
		Use:   "two-round",
		Short: "Run the round-1 query and one verification query per result",
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, err := newClient(g)
			if err != nil {
				return err
			}
			res, err := c.TwoRoundSearch(cmd.Context(), q.keyword, q.x, q.y, q.k)
			if err != nil {
				return fail(cmd, err)
			}
			return printJSON(cmd, envelope.NewTwoRound(res))
		},
	}
	bindQueryFlags(cmd, q)
	return cmd
}

func newBasicCmd(g *globalFlags) *cobra.Command {
	q := &queryFlags{}
	cmd := &cobra.Command{
		Use:   "basic",
		Short: "Run the first-stage query and apply the session path pair",
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, err := newClient(g)
			if err != nil {
				return err
			}
			res, err := c.BasicSearch(cmd.Context(), q.keyword, q.x, q.y, q.k)
			if err != nil {
				return fail(cmd, err)
			}
			return printJSON(cmd, envelope.NewBasic(res))
		},
	}
	bindQueryFlags(cmd, q)
	return cmd
}

func newPathsCmd(g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "paths <cache-key>",
		Short: "Fetch the before/after path pair of a first-stage session and apply it to its results",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := newClient(g)
			if err != nil {
				return err
			}
			o, ok := c.ApplyPathComparison(cmd.Context(), args[0], nil)
			if !ok {
				return fail(cmd, errors.New("path info not available"))
			}
			return printJSON(cmd, envelope.NewPaths(o))
		},
	}
}

func newInitInfoCmd(g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "init-info",
		Short: "Show index initialisation info",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, err := newClient(g)
			if err != nil {
				return err
			}
			info, err := c.InitInfo(cmd.Context())
			if err != nil {
				return fail(cmd, err)
			}
			return printJSON(cmd, info)
		},
	}
}

func newOramInfoCmd(g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "oram-info",
		Short: "Show index ORAM runtime counters",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, err := newClient(g)
			if err != nil {
				return err
			}
			info, err := c.OramInfo(cmd.Context())
			if err != nil {
				return fail(cmd, err)
			}
			return printJSON(cmd, envelope.NewOram(info))
		},
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version info",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return printJSON(cmd, map[string]string{
				"version": version.Version,
				"commit":  version.Commit,
				"date":    version.Date,
			})
		},
	}
}

func fail(cmd *cobra.Command, err error) error {
	if perr := printJSON(cmd, envelope.NewFailure(err)); perr != nil {
		return perr
	}
	return errFailed
}

func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("encode output: %w", err)
	}
	return nil
}
