package seed

import (
	"fmt"
	"io"
	"os"

	"github.com/ValentinKolb/dShop/cmd/util"
	"github.com/spf13/cobra"
)

// SeedCmd imports products and users from a YAML file
var SeedCmd = &cobra.Command{
	Use:   "seed [file.yaml]",
	Short: "Import products and users from a YAML file",
	Long: `Import products and users from a YAML file ("-" reads stdin). Products whose id already
exists and users whose name is taken are skipped, so seeding twice is harmless.`,
	Args: cobra.ExactArgs(1),
	RunE: run,
}

func init() {
	util.SetupShopFlags(SeedCmd)
}

func run(cmd *cobra.Command, args []string) error {
	var r io.Reader = cmd.InOrStdin()
	if args[0] != "-" {
		f, err := os.Open(args[0])
		if err != nil {
			return err
		}
		defer f.Close()
		r = f
	}

	sh, err := util.OpenShop(cmd)
	if err != nil {
		return err
	}
	defer sh.Close()

	res, err := sh.Seed(r)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "imported %d product(s) and %d user(s), skipped %d\n", res.Products, res.Users, res.Skipped)
	return nil
}
