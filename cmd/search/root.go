package search

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/ValentinKolb/dShop/cmd/util"
	"github.com/spf13/cobra"
)

// SearchCmd searches the product catalog
var SearchCmd = &cobra.Command{
	Use:   "search [term...]",
	Short: "Search the product catalog",
	Long:  `Search the product catalog by title, description and category. Every word of the term has to occur in at least one of the fields.`,
	Args:  cobra.MinimumNArgs(1),
	RunE:  run,
}

func init() {
	util.SetupShopFlags(SearchCmd)

	SearchCmd.Flags().Int("limit", 0, util.WrapString("Maximum number of results (0 = search-limit)"))
}

func run(cmd *cobra.Command, args []string) error {
	sh, err := util.OpenShop(cmd)
	if err != nil {
		return err
	}
	defer sh.Close()

	limit, err := cmd.Flags().GetInt("limit")
	if err != nil {
		return err
	}

	products, err := sh.Search.Search(strings.Join(args, " "), limit)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tTITLE\tCATEGORY\tPRICE\tIN STOCK")
	for _, p := range products {
		fmt.Fprintf(w, "%s\t%s\t%s\t%.2f\t%t\n", p.ID, p.Title, p.Category, p.Price, p.InStock)
	}
	if err := w.Flush(); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%d result(s)\n", len(products))
	return nil
}
