package main

import (
	"encoding/json"
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/tai-kun/omnio"
)

// parseDirArg turns an optional "a/b/c" argument into a DirPath.
func parseDirArg(args []string) (omnio.DirPath, error) {
	if len(args) == 0 || args[0] == "" || args[0] == "/" {
		return omnio.DirPath{}, nil
	}

	return omnio.ParseDirPath(strings.Split(strings.Trim(args[0], "/"), "/"))
}

func newLsCmd() *cobra.Command {
	var (
		flagObjects bool
		flagDirs    bool
		flagCollate string
		flagSkip    int
		flagTake    int
		flagDesc    bool
	)

	cmd := &cobra.Command{
		Use:   "ls [dir]",
		Short: "List the children of a directory",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, err := parseDirArg(args)
			if err != nil {
				return err
			}

			filter := omnio.ListAll

			switch {
			case flagObjects && flagDirs:
			case flagObjects:
				filter = omnio.ListObjectsOnly
			case flagDirs:
				filter = omnio.ListDirectoriesOnly
			}

			store, _, err := openStore(cmd)
			if err != nil {
				return err
			}
			defer store.Close(cmd.Context())

			entries, err := store.List(cmd.Context(), omnio.ListOptions{
				Dir:     dir,
				Filter:  filter,
				Skip:    flagSkip,
				Take:    flagTake,
				Desc:    flagDesc,
				Collate: flagCollate,
			})
			if err != nil {
				return err
			}

			if flagJSON {
				return json.NewEncoder(cmd.OutOrStdout()).Encode(entries)
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)

			for _, e := range entries {
				if e.IsObject {
					fmt.Fprintf(w, "%s\t%d\t%s\t%s\n",
						e.Name, e.Info.Size, e.Info.MimeType,
						e.Info.ModifiedAt.Format("2006-01-02 15:04:05"))
				} else {
					fmt.Fprintf(w, "%s/\t\t\t\n", e.Name)
				}
			}

			return w.Flush()
		},
	}

	cmd.Flags().BoolVar(&flagObjects, "objects", false, "objects only")
	cmd.Flags().BoolVar(&flagDirs, "dirs", false, "directories only")
	cmd.Flags().StringVar(&flagCollate, "collate", "", "name collation (e.g. nocase)")
	cmd.Flags().IntVar(&flagSkip, "skip", 0, "skip this many entries")
	cmd.Flags().IntVar(&flagTake, "take", 0, "return at most this many entries")
	cmd.Flags().BoolVar(&flagDesc, "reverse", false, "reverse name order")

	return cmd
}
