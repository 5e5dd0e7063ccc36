package main

import (
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/tai-kun/omnio"
)

func newGetCmd() *cobra.Command {
	var flagOutput string

	cmd := &cobra.Command{
		Use:   "get <path>",
		Short: "Read an object to a file or stdout",
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

			obj, err := store.GetObject(cmd.Context(), path)
			if err != nil {
				return err
			}
			defer obj.Close()

			var out io.Writer = cmd.OutOrStdout()

			if flagOutput != "" {
				f, err := os.Create(flagOutput)
				if err != nil {
					return err
				}
				defer f.Close()

				out = f
			}

			_, err = io.Copy(out, obj.Stream())

			return err
		},
	}

	cmd.Flags().StringVarP(&flagOutput, "output", "o", "", "write to file instead of stdout")

	return cmd
}
