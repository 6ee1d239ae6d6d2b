package commands

import (
	"context"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/form3tech-oss/pact-engine/internal/app/configuration"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	log "github.com/sirupsen/logrus"
)

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the engine HTTP API",
	RunE: func(cmd *cobra.Command, args []string) error {
		config, err := configuration.NewFromEnv()
		if err != nil {
			return err
		}
		if serveAddr != "" {
			addr, err := url.Parse(serveAddr)
			if err != nil {
				return errors.Wrap(err, "parse listen address")
			}
			config.ServerAddress = *addr
		}
		if config.ServerAddress.Host == "" {
			config.ServerAddress = url.URL{Scheme: "http", Host: ":8080"}
		}

		log.Infof("starting engine on %s", config.ServerAddress.Host)
		if err := configuration.StartServer(&config); err != nil {
			return err
		}

		c := make(chan os.Signal, 2)
		signal.Notify(c, os.Interrupt, syscall.SIGTERM)
		<-c

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		configuration.ShutdownAllServers(ctx)
		return nil
	},
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "listen address, e.g. http://localhost:8080")
	rootCmd.AddCommand(serveCmd)
}
