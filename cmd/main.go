/*
Copyright 2024 Blnk Finance Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package main

import (
	"fmt"
	"log"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/printwell/orderflow"
	"github.com/printwell/orderflow/config"
	"github.com/printwell/orderflow/database"
	"github.com/printwell/orderflow/internal/notification"
)

// CLI wraps the root cobra command.
type CLI struct {
	cmd *cobra.Command
}

// app holds the engine and configuration shared by every subcommand.
type app struct {
	engine *orderflow.Orderflow
	cnf    *config.Configuration
}

func recoverPanic() {
	if rec := recover(); rec != nil {
		logrus.Error(rec)
		os.Exit(1)
	}
}

// preRun loads configuration from configFile and builds the engine before any command runs.
func preRun(a *app, configFile *string) func(cmd *cobra.Command, args []string) error {
	return func(cmd *cobra.Command, args []string) error {
		err := config.InitConfig(*configFile)
		if err != nil {
			log.Fatal("error loading config", err)
		}

		cnf, err := config.Fetch()
		if err != nil {
			return err
		}
		a.cnf = cnf

		// migrations run before the schema the engine reads exists
		if cmd.Annotations["engine"] == "none" {
			return nil
		}

		engine, err := setupOrderflow(cnf)
		if err != nil {
			notification.NotifyError(err)
			log.Fatal(err)
		}
		a.engine = engine
		return nil
	}
}

func setupOrderflow(cfg *config.Configuration) (*orderflow.Orderflow, error) {
	db, err := database.NewDataSource(cfg)
	if err != nil {
		return nil, fmt.Errorf("error getting datasource: %v", err)
	}

	engine, err := orderflow.NewOrderflow(db)
	if err != nil {
		return nil, fmt.Errorf("error creating orderflow: %v", err)
	}
	return engine, nil
}

func NewCLI() *CLI {
	var configFile string
	a := &app{}

	var rootCmd = &cobra.Command{
		Use:   "orderflow",
		Short: "Order fulfilment and payment reconciliation service",
		Run:   func(cmd *cobra.Command, args []string) {},
	}

	rootCmd.PersistentFlags().StringVar(&configFile, "config", "./orderflow.json", "Configuration file for orderflow")
	rootCmd.PersistentPreRunE = preRun(a, &configFile)

	rootCmd.AddCommand(serverCommands(a))
	rootCmd.AddCommand(workerCommands(a))
	rootCmd.AddCommand(migrateCommands(a))
	rootCmd.AddCommand(reconcileCommands(a))
	rootCmd.AddCommand(configCommands())

	return &CLI{cmd: rootCmd}
}

func (c CLI) executeCLI() {
	if err := c.cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func main() {
	defer recoverPanic()

	cli := NewCLI()
	cli.executeCLI()
}
