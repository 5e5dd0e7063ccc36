package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tai-kun/omnio"
)

func newMetaCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "meta",
		Short: "Update object metadata",
	}

	cmd.AddCommand(newMetaSetCmd())

	return cmd
}

func newMetaSetCmd() *cobra.Command {
	var (
		flagMimeType    string
		flagTags        []string
		flagClearTags   bool
		flagDescription string
		flagClearDesc   bool
		flagMetaJSON    string
		flagClearMeta   bool
	)

	cmd := &cobra.Command{
		Use:   "set <path>",
		Short: "Set MIME type, tags, description or user metadata",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := omnio.ParsePath(args[0])
			if err != nil {
				return err
			}

			opts := omnio.UpdateOptions{ClearUserMetadata: flagClearMeta}

			if flagMimeType != "" {
				opts.MimeType = &flagMimeType
			}

			switch {
			case flagClearTags:
				empty := []string{}
				opts.Tags = &empty
			case len(flagTags) > 0:
				opts.Tags = &flagTags
			}

			switch {
			case flagClearDesc:
				empty := ""
				opts.Description = &empty
			case flagDescription != "":
				opts.Description = &flagDescription
			}

			if flagMetaJSON != "" {
				var meta any
				if err := json.Unmarshal([]byte(flagMetaJSON), &meta); err != nil {
					return fmt.Errorf("parsing --metadata: %w", err)
				}

				opts.UserMetadata = meta
			}

			store, _, err := openStore(cmd)
			if err != nil {
				return err
			}
			defer store.Close(cmd.Context())

			return store.UpdateMetadata(cmd.Context(), path, opts)
		},
	}

	cmd.Flags().StringVar(&flagMimeType, "mime-type", "", "new MIME type")
	cmd.Flags().StringSliceVar(&flagTags, "tag", nil, "replace tags (repeatable)")
	cmd.Flags().BoolVar(&flagClearTags, "clear-tags", false, "remove all tags")
	cmd.Flags().StringVar(&flagDescription, "description", "", "new description")
	cmd.Flags().BoolVar(&flagClearDesc, "clear-description", false, "remove the description")
	cmd.Flags().StringVar(&flagMetaJSON, "metadata", "", "replace user metadata (JSON)")
	cmd.Flags().BoolVar(&flagClearMeta, "clear-metadata", false, "remove user metadata")

	return cmd
}
