/*
Copyright 2025 WagerOps Authors.

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

	"github.com/wagerops/p2pqueue"
	"github.com/wagerops/p2pqueue/config"
	"github.com/wagerops/p2pqueue/internal/notification"
)

// P2PQueue represents the CLI application, encapsulating the root Cobra command.
type P2PQueue struct {
	cmd *cobra.Command
}

// queueInstance holds the engine instance and its configuration, shared by
// every subcommand.
type queueInstance struct {
	engine *p2pqueue.Engine
	cnf    *config.Configuration
}

// recoverPanic handles any panics during program execution and logs the error.
func recoverPanic() {
	if rec := recover(); rec != nil {
		logrus.Error(rec)
		os.Exit(1)
	}
}

// preRun sets up the configuration and initializes the engine before running
// any command.
func preRun(app *queueInstance) func(cmd *cobra.Command, args []string) error {
	return func(cmd *cobra.Command, args []string) error {
		err := config.InitConfig("p2pqueue.json")
		if err != nil {
			log.Fatal("error loading config", err)
		}

		cnf, err := config.Fetch()
		if err != nil {
			return err
		}

		newEngine, err := setupEngine(cnf)
		if err != nil {
			notification.NotifyError(err)
			log.Fatal(err)
		}

		app.engine = newEngine
		app.cnf = cnf

		return nil
	}
}

// setupEngine creates a new engine wired to the HTTP settlement executor from
// the provided configuration.
func setupEngine(cfg *config.Configuration) (*p2pqueue.Engine, error) {
	executor := p2pqueue.NewHTTPSettlementExecutor(cfg)
	newEngine, err := p2pqueue.NewEngine(executor)
	if err != nil {
		return nil, fmt.Errorf("error creating engine: %v", err)
	}
	return newEngine, nil
}

// NewCLI creates the command-line interface for the reconciliation queue.
func NewCLI() *P2PQueue {
	var configFile string
	q := &queueInstance{}

	var rootCmd = &cobra.Command{
		Use:   "p2pqueue",
		Short: "P2P transaction reconciliation queue",
		Run:   func(cmd *cobra.Command, args []string) {},
	}

	rootCmd.PersistentFlags().StringVar(&configFile, "config", "./p2pqueue.json", "Configuration file for the queue server")

	rootCmd.PersistentPreRunE = preRun(q)

	rootCmd.AddCommand(serverCommands(q))
	rootCmd.AddCommand(workerCommands(q))
	rootCmd.AddCommand(opsCommands(q))
	rootCmd.AddCommand(configCommands())

	return &P2PQueue{cmd: rootCmd}
}

// executeCLI runs the root command, handling any errors that occur during
// execution.
func (w P2PQueue) executeCLI() {
	if err := w.cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func main() {
	defer recoverPanic()

	cli := NewCLI()
	cli.executeCLI()
}
