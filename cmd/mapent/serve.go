package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/omniscale/mapent/auth"
	"github.com/omniscale/mapent/cache"
	"github.com/omniscale/mapent/config"
	"github.com/omniscale/mapent/database"
	_ "github.com/omniscale/mapent/database/postgis"
	"github.com/omniscale/mapent/mapping"
	"github.com/omniscale/mapent/web"
)

const shutdownTimeout = 10 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the entity views",
	RunE: func(cmd *cobra.Command, args []string) error {
		return serve()
	},
}

func serve() error {
	conf, m, err := loadSetup()
	if err != nil {
		return err
	}

	store, err := openStore(conf, m)
	if err != nil {
		return err
	}
	defer store.Close()

	c, err := cache.Open(conf.CacheDir)
	if err != nil {
		return errors.Wrap(err, "opening cache")
	}
	defer c.Close()

	var users auth.Authenticator
	if conf.UsersFile != "" {
		if users, err = auth.LoadUsersFile(conf.UsersFile); err != nil {
			return errors.Wrap(err, "loading users")
		}
	} else {
		logger.Warn("no users file configured, only anonymous views are reachable")
		users = auth.NewMemoryAuth()
	}

	srv, err := web.NewServer(web.Options{
		Config:  conf,
		Mapping: m,
		Store:   store,
		Cache:   c,
		Auth:    users,
		Logger:  logger,
	})
	if err != nil {
		return err
	}
	defer srv.Close()

	httpSrv := &http.Server{
		Addr:    conf.ListenAddress,
		Handler: srv.Router(),
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		logger.Info("shutting down")
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		httpSrv.Shutdown(ctx)
	}()

	logger.Info("listening", zap.String("address", conf.ListenAddress))
	if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func loadSetup() (*config.Config, *mapping.Mapping, error) {
	conf, err := config.Load(configFile)
	if err != nil {
		return nil, nil, errors.Wrap(err, "loading config")
	}
	if errs := conf.Check(); len(errs) > 0 {
		for _, err := range errs {
			logger.Error("configuration", zap.Error(err))
		}
		return nil, nil, errors.Errorf("%d error(s) in %s", len(errs), configFile)
	}
	m, err := mapping.NewMapping(mappingFile)
	if err != nil {
		return nil, nil, errors.Wrap(err, "loading mapping")
	}
	return conf, m, nil
}

func openStore(conf *config.Config, m *mapping.Mapping) (database.Store, error) {
	store, err := database.Open(database.Config{
		ConnectionParams: conf.Connection,
		Srid:             conf.Srid,
		GeomColumn:       conf.GeomFieldName,
	}, m)
	if err != nil {
		return nil, errors.Wrap(err, "opening store")
	}
	return store, nil
}
