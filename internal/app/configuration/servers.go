package configuration

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"net/http"
	"os"
	"sync"

	"github.com/form3tech-oss/pact-engine/internal/app/engineapi"
	"github.com/labstack/echo/v4"
	log "github.com/sirupsen/logrus"
)

var servers sync.Map

func StartServer(config *engineapi.Config) error {
	addr := config.ServerAddress.Host
	if _, loaded := servers.Load(addr); loaded {
		return fmt.Errorf("engine already running at %s", config.ServerAddress.String())
	}

	server, err := newServer(config)
	if err != nil {
		return err
	}
	servers.Store(addr, server)

	go func() {
		var err error
		if config.TLSCertFile != "" && config.TLSKeyFile != "" {
			err = server.ListenAndServeTLS(config.TLSCertFile, config.TLSKeyFile)
		} else {
			err = server.ListenAndServe()
		}
		if err != nil && err != http.ErrServerClosed {
			log.Error(err)
		}
	}()
	return nil
}

func ShutdownAllServers(ctx context.Context) {
	servers.Range(func(key, _ interface{}) bool {
		server, loaded := servers.LoadAndDelete(key)
		if loaded {
			if err := server.(*http.Server).Shutdown(ctx); err != nil {
				log.Error(err)
			}
		}
		return true
	})
}

func newServer(config *engineapi.Config) (*http.Server, error) {
	e := echo.New()
	e.HideBanner = true

	engineapi.SetupRoutes(e, config)

	s := http.Server{
		Addr:    config.ServerAddress.Host,
		Handler: e,
	}

	if config.TLSCAFile != "" {
		if config.TLSCertFile == "" || config.TLSKeyFile == "" {
			return nil, fmt.Errorf("cannot run in mTLS mode without TLS cert and key")
		}

		caCertFile, err := os.ReadFile(config.TLSCAFile)
		if err != nil {
			return nil, fmt.Errorf("error reading CA certificate: %w", err)
		}
		certPool := x509.NewCertPool()
		certPool.AppendCertsFromPEM(caCertFile)
		s.TLSConfig = &tls.Config{
			ClientAuth: tls.RequireAndVerifyClientCert,
			ClientCAs:  certPool,
			MinVersion: tls.VersionTLS12,
		}
	}

	return &s, nil
}
