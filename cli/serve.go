package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/danthegoodman1/icefields/datastore"
	"github.com/danthegoodman1/icefields/http_server"
	"github.com/danthegoodman1/icefields/metastore"
	"github.com/danthegoodman1/icefields/resolver"
	"github.com/danthegoodman1/icefields/utils"
)

// NewServeCommand creates the serve command.
func NewServeCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve table configs and row resolution over HTTP",
		Long: `Serve starts the HTTP API on HTTP_PORT. Table configs live in the
metastore selected by METASTORE (file, redis, or crdb), resolved parts are
written under OUTPUT_DIR.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context())
		},
	}
}

func runServe(ctx context.Context) error {
	logger.Debug().Str("metastore", utils.METASTORE).Msg("starting icefields")

	ms, err := metastore.New(ctx, utils.METASTORE)
	if err != nil {
		return fmt.Errorf("error in metastore.New: %w", err)
	}
	ds, err := datastore.New(utils.OUTPUT_DIR)
	if err != nil {
		return fmt.Errorf("error in datastore.New: %w", err)
	}
	res, err := resolver.New(ms, ds)
	if err != nil {
		return err
	}

	httpServer, err := http_server.StartHTTPServer(res)
	if err != nil {
		return fmt.Errorf("error starting http server: %w", err)
	}

	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)
	<-c
	logger.Warn().Msg("received shutdown signal!")

	// For AWS ALB needing some time to de-register pod
	sleepTime := utils.GetEnvOrDefaultInt("SHUTDOWN_SLEEP_SEC", 0)
	logger.Info().Msg(fmt.Sprintf("sleeping for %ds before exiting", sleepTime))

	time.Sleep(time.Second * time.Duration(sleepTime))
	logger.Info().Msg(fmt.Sprintf("slept for %ds, exiting", sleepTime))

	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Second*10)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("failed to shutdown HTTP server")
	} else {
		logger.Info().Msg("successfully shutdown HTTP server")
	}
	if err := ms.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("failed to shutdown metastore")
	}
	if err := ds.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("failed to shutdown datastore")
	}
	return nil
}
