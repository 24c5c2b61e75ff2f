package main

import (
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var initDBCmd = &cobra.Command{
	Use:   "initdb",
	Short: "Create the tables of all mapped entities",
	RunE: func(cmd *cobra.Command, args []string) error {
		conf, m, err := loadSetup()
		if err != nil {
			return err
		}
		store, err := openStore(conf, m)
		if err != nil {
			return err
		}
		defer store.Close()

		for _, name := range m.EntityNames() {
			if err := store.Init(m.Entities[name]); err != nil {
				return errors.Wrapf(err, "initializing %s", name)
			}
			logger.Info("initialized", zap.String("entity", name))
		}
		return nil
	},
}
