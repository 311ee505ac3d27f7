package doc

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var (
	listCmd = &cobra.Command{
		Use:   "list [collection]",
		Short: "Prints every document of a collection, one JSON object per line",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			docs, err := sh.Store.ReadCollection(args[0])
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			for _, d := range docs {
				if err := enc.Encode(d); err != nil {
					return err
				}
			}
			return nil
		},
	}
	getCmd = &cobra.Command{
		Use:   "get [collection] [id]",
		Short: "Prints a single document",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := sh.Store.FindByID(args[0], args[1])
			if err != nil {
				return err
			}
			out, err := json.MarshalIndent(d, "", "  ")
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(out))
			return nil
		},
	}
	delCmd = &cobra.Command{
		Use:   "del [collection] [id]",
		Short: "Deletes a single document",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := sh.Store.DeleteByID(args[0], args[1]); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "deleted successfully")
			return nil
		},
	}
	statsCmd = &cobra.Command{
		Use:   "stats",
		Short: "Prints the state of every collection",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			infos, err := sh.Collections()
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "COLLECTION\tDOCUMENTS\tBYTES\tEXISTS")
			for _, info := range infos {
				fmt.Fprintf(w, "%s\t%d\t%d\t%t\n", info.Name, info.Count, info.SizeBytes, info.Exists)
			}
			return w.Flush()
		},
	}
)
