package main

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/tai-kun/omnio"
)

func newTrashCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "trash",
		Short: "Inspect and empty the trash",
	}

	cmd.AddCommand(newTrashLsCmd(), newTrashRmCmd())

	return cmd
}

func newTrashLsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ls [dir]",
		Short: "List trashed objects beneath a directory",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, err := parseDirArg(args)
			if err != nil {
				return err
			}

			store, _, err := openStore(cmd)
			if err != nil {
				return err
			}
			defer store.Close(cmd.Context())

			entries, err := store.ListTrash(cmd.Context(), omnio.ListOptions{
				Dir:    dir,
				Filter: omnio.ListObjectsOnly,
			})
			if err != nil {
				return err
			}

			if flagJSON {
				return json.NewEncoder(cmd.OutOrStdout()).Encode(entries)
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)

			for _, e := range entries {
				fmt.Fprintf(w, "%s\t%s\t%s\n",
					e.ObjectID, e.Path, e.TrashedAt.Format("2006-01-02 15:04:05"))
			}

			return w.Flush()
		},
	}

	return cmd
}

func newTrashRmCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rm <object-id>",
		Short: "Hard-delete a trashed object",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := omnio.ParseObjectID(args[0])
			if err != nil {
				return err
			}

			store, _, err := openStore(cmd)
			if err != nil {
				return err
			}
			defer store.Close(cmd.Context())

			return store.DeleteObject(cmd.Context(), id)
		},
	}

	return cmd
}
