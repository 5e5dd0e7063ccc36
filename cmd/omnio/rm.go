package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tai-kun/omnio"
)

func newRmCmd() *cobra.Command {
	var flagHard bool

	cmd := &cobra.Command{
		Use:   "rm <path>",
		Short: "Trash an object (or hard-delete with --hard)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := omnio.ParsePath(args[0])
			if err != nil {
				return err
			}

			store, _, err := openStore(cmd)
			if err != nil {
				return err
			}
			defer store.Close(cmd.Context())

			if flagHard {
				return store.RemoveObject(cmd.Context(), path)
			}

			rec, err := store.TrashObject(cmd.Context(), path)
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "trashed %s (object id %s)\n", path, rec.ObjectID)

			return nil
		},
	}

	cmd.Flags().BoolVar(&flagHard, "hard", false, "delete the row and content immediately")

	return cmd
}
