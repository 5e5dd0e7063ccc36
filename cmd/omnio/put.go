package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/tai-kun/omnio"
)

func newPutCmd() *cobra.Command {
	var (
		flagFlag        string
		flagMimeType    string
		flagTags        []string
		flagDescription string
		flagMetaJSON    string
	)

	cmd := &cobra.Command{
		Use:   "put <path> [file]",
		Short: "Write an object from a file or stdin",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := omnio.ParsePath(args[0])
			if err != nil {
				return err
			}

			var in io.Reader = os.Stdin

			if len(args) == 2 {
				f, err := os.Open(args[1])
				if err != nil {
					return err
				}
				defer f.Close()

				in = f
			}

			opts := omnio.PutOptions{
				Flag:     omnio.Flag(flagFlag),
				MimeType: flagMimeType,
				Tags:     flagTags,
			}

			if flagDescription != "" {
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

			info, err := store.PutObject(cmd.Context(), path, in, opts)
			if err != nil {
				return err
			}

			if flagJSON {
				return json.NewEncoder(cmd.OutOrStdout()).Encode(info)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "%s\t%d bytes\t%s\n",
				info.Path, info.Size, info.Checksum)

			return nil
		},
	}

	cmd.Flags().StringVar(&flagFlag, "flag", "w", "open mode: w, a, wx or ax")
	cmd.Flags().StringVar(&flagMimeType, "mime-type", "", "override MIME type detection")
	cmd.Flags().StringSliceVar(&flagTags, "tag", nil, "object tag (repeatable)")
	cmd.Flags().StringVar(&flagDescription, "description", "", "searchable description")
	cmd.Flags().StringVar(&flagMetaJSON, "metadata", "", "user metadata as a JSON document")

	return cmd
}
