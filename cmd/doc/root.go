package doc

import (
	"github.com/ValentinKolb/dShop/cmd/util"
	"github.com/ValentinKolb/dShop/lib/shop"
	"github.com/spf13/cobra"
)

var (
	sh *shop.Shop

	// DocumentCommands represents the document command group
	DocumentCommands = &cobra.Command{
		Use:                "doc",
		Short:              "Inspect and edit the collections in the data directory",
		PersistentPreRunE:  openShop,
		PersistentPostRunE: closeShop,
	}
)

func init() {
	util.SetupShopFlags(DocumentCommands)

	// Add subcommands
	DocumentCommands.AddCommand(listCmd)
	DocumentCommands.AddCommand(getCmd)
	DocumentCommands.AddCommand(delCmd)
	DocumentCommands.AddCommand(statsCmd)
}

// openShop opens the data directory configured by the flags
func openShop(cmd *cobra.Command, args []string) error {
	if err := closeShop(cmd, args); err != nil {
		return err
	}
	var err error
	sh, err = util.OpenShop(cmd)
	return err
}

func closeShop(_ *cobra.Command, _ []string) error {
	if sh == nil {
		return nil
	}
	err := sh.Close()
	sh = nil
	return err
}
