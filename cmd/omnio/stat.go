package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tai-kun/omnio"
)

func newStatCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stat <path>",
		Short: "Show an object's catalog row",
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

			info, err := store.HeadObject(cmd.Context(), path)
			if err != nil {
				return err
			}

			if flagJSON {
				return json.NewEncoder(cmd.OutOrStdout()).Encode(info)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "path:      %s\n", info.Path)
			fmt.Fprintf(out, "size:      %d\n", info.Size)
			fmt.Fprintf(out, "parts:     %d x %d\n", info.NumParts, info.PartSize)
			fmt.Fprintf(out, "mime:      %s\n", info.MimeType)
			fmt.Fprintf(out, "checksum:  %s\n", info.Checksum)
			fmt.Fprintf(out, "created:   %s\n", info.CreatedAt.Format("2006-01-02 15:04:05"))
			fmt.Fprintf(out, "modified:  %s\n", info.ModifiedAt.Format("2006-01-02 15:04:05"))

			if len(info.Tags) > 0 {
				fmt.Fprintf(out, "tags:      %v\n", info.Tags)
			}

			if info.Description != nil {
				fmt.Fprintf(out, "desc:      %s\n", *info.Description)
			}

			return nil
		},
	}

	return cmd
}
