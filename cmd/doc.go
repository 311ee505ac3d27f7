// Package cmd implements the command-line interface of dShop. It provides
// commands for running the data layer and for working with the collections
// in a data directory directly.
//
// The package is organized into several subpackages:
//
//   - serve: Starts the session sweeper and serves /metrics and /healthz
//   - doc: Lists, prints and deletes documents, prints collection stats
//   - search: Searches the product catalog
//   - seed: Imports products and users from YAML
//   - util: Shared flags and configuration handling (internal use)
//
// Every flag can also be set as environment variable DSHOP_<flag>, or in a
// .env / .env.local file. See dshop -help for a list of all commands.
package cmd
