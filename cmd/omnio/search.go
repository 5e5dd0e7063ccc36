package main

import (
	"encoding/json"
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/tai-kun/omnio"
)

func newSearchCmd() *cobra.Command {
	var (
		flagDir       string
		flagRecursive bool
		flagThreshold float64
		flagTake      int
	)

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Full-text search over object descriptions",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var dirArgs []string
			if flagDir != "" {
				dirArgs = []string{flagDir}
			}

			dir, err := parseDirArg(dirArgs)
			if err != nil {
				return err
			}

			store, _, err := openStore(cmd)
			if err != nil {
				return err
			}
			defer store.Close(cmd.Context())

			results, err := store.Search(cmd.Context(), omnio.SearchOptions{
				Dir:            dir,
				Query:          args[0],
				Recursive:      flagRecursive,
				ScoreThreshold: flagThreshold,
				Take:           flagTake,
			})
			if err != nil {
				return err
			}

			if flagJSON {
				return json.NewEncoder(cmd.OutOrStdout()).Encode(results)
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)

			for _, r := range results {
				desc := ""
				if r.Description != nil {
					desc = strings.ReplaceAll(*r.Description, "\n", " ")
				}

				fmt.Fprintf(w, "%.4f\t%s\t%s\n", r.Score, r.Path, desc)
			}

			return w.Flush()
		},
	}

	cmd.Flags().StringVar(&flagDir, "dir", "", "directory to search beneath")
	cmd.Flags().BoolVarP(&flagRecursive, "recursive", "r", false, "descend below immediate children")
	cmd.Flags().Float64Var(&flagThreshold, "threshold", 0, "minimum BM25 score")
	cmd.Flags().IntVar(&flagTake, "take", 0, "return at most this many results")

	return cmd
}
