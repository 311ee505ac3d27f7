package cmd

import (
	"fmt"
	"os"

	"github.com/ValentinKolb/dShop/cmd/doc"
	"github.com/ValentinKolb/dShop/cmd/search"
	"github.com/ValentinKolb/dShop/cmd/seed"
	"github.com/ValentinKolb/dShop/cmd/serve"
	"github.com/ValentinKolb/dShop/cmd/util"
	"github.com/spf13/cobra"
)

const (
	Version = "1.0.0"
)

var (

	// RootCmd represents the base command when called without any subcommands
	RootCmd = &cobra.Command{
		Use:   "dshop",
		Short: "file backed e-commerce data layer",
		Long: fmt.Sprintf(`dShop (v%s)

The data layer of a small web shop: products, users, carts, orders,
sessions and activity stored as JSON collections on disk, fronted by
a tag invalidated cache.`, Version),
		SilenceUsage: true,
	}
	versionCmd = &cobra.Command{
		Use:   "version",
		Short: "Print the version number of dShop",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("dShop v%s\n", Version)
		},
	}
)

func init() {
	// initialize viper
	cobra.OnInitialize(util.InitConfig)

	// Add Commands
	RootCmd.AddCommand(serve.ServeCmd)
	RootCmd.AddCommand(doc.DocumentCommands)
	RootCmd.AddCommand(search.SearchCmd)
	RootCmd.AddCommand(seed.SeedCmd)
	RootCmd.AddCommand(versionCmd)
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the RootCmd.
func Execute() {
	if err := RootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
