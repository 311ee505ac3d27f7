package serve

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	cmdUtil "github.com/ValentinKolb/dShop/cmd/util"
	"github.com/ValentinKolb/dShop/lib/shop"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// shutdownTimeout bounds how long in-flight requests may take after a signal
const shutdownTimeout = 10 * time.Second

var (
	ServeCmd = &cobra.Command{
		Use:   "serve",
		Short: "Start the dShop data layer",
		Long:  `Open the data directory, start the session sweeper and serve /metrics and /healthz until SIGINT or SIGTERM is received. The configuration can be set via command line flags or environment variables. The format of the environment variables is DSHOP_<flag> (e.g. DSHOP_SESSION_TTL=1h)`,
		RunE:  run,
	}
)

func init() {
	cmdUtil.SetupShopFlags(ServeCmd)

	key := "endpoint"
	ServeCmd.Flags().String(key, "127.0.0.1:8080", cmdUtil.WrapString("The address on which /metrics and /healthz are served"))

	key = "debug-http"
	ServeCmd.Flags().Bool(key, false, cmdUtil.WrapString("Log every HTTP request at debug level"))
}

// run opens the shop and serves until the process is signalled
func run(cmd *cobra.Command, _ []string) error {
	sh, err := cmdUtil.OpenShop(cmd)
	if err != nil {
		return err
	}
	defer func() {
		if err := sh.Close(); err != nil {
			Logger.Errorf("closing shop: %v", err)
		}
	}()

	fmt.Println(sh.Config.String())

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	server := newServer(sh, viper.GetBool("debug-http"))

	errCh := make(chan error, 1)
	go func() {
		Logger.Infof("Starting HTTP server on %s", server.Addr)
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	Logger.Infof("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

// newServer starts the background work of sh and returns the HTTP server for its endpoint
func newServer(sh *shop.Shop, debug bool) *http.Server {
	sh.Sessions.StartSweeper(sh.Config.SweepInterval)

	return &http.Server{
		Addr:              sh.Config.Endpoint,
		Handler:           NewHandler(sh, debug),
		ReadHeaderTimeout: 5 * time.Second,
	}
}
