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
	"context"
	"fmt"
	"log"
	"net/http"

	"github.com/caddyserver/certmagic"
	"github.com/gin-gonic/gin"
	"github.com/hibiken/asynq"
	"github.com/spf13/cobra"

	"github.com/wagerops/p2pqueue/api"
	"github.com/wagerops/p2pqueue/config"
	trace "github.com/wagerops/p2pqueue/internal/traces"
)

/*
serveTLS starts an HTTPS server with TLS enabled using CertMagic for automatic
certificate management. If no domain is specified, the server defaults to
localhost.
*/
func serveTLS(r *gin.Engine, conf config.ServerConfig) error {
	certmagic.DefaultACME.Agreed = true
	certmagic.DefaultACME.Email = conf.Email
	cfg := certmagic.NewDefault()
	cfg.Storage = &certmagic.FileStorage{Path: "path/to/certmagic/storage"}

	domains := []string{conf.Domain}
	if conf.Domain == "" {
		log.Println("No domain specified, defaulting to localhost")
		domains = []string{"localhost"}
	}

	if err := cfg.ManageSync(context.Background(), domains); err != nil {
		return err
	}

	server := &http.Server{
		Addr:      ":" + conf.Port,
		Handler:   r,
		TLSConfig: cfg.TLSConfig(),
	}

	log.Printf("Starting HTTPS server on %s\n", conf.Port)
	if err := server.ListenAndServeTLS("", ""); err != nil && err != http.ErrServerClosed {
		log.Fatalf("Failed to start HTTPS server: %v", err)
	}

	return nil
}

func initializeRouter(q *queueInstance) *gin.Engine {
	return api.NewAPI(q.engine).Router()
}

// initializeTracing installs the OTel SDK so engine spans are exported. When
// telemetry is disabled the returned shutdown is a no-op and spans stay local.
func initializeTracing(ctx context.Context, cfg *config.Configuration) (func(context.Context) error, error) {
	if !cfg.EnableTelemetry {
		return func(context.Context) error { return nil }, nil
	}

	shutdown, err := trace.SetupOTelSDK(ctx, cfg.ProjectName)
	if err != nil {
		return nil, fmt.Errorf("error setting up OTel SDK: %v", err)
	}
	return shutdown, nil
}

// startMatchingConsumer consumes the matching trigger queues inside the
// server process. The handlers have to run here: the queue store is process
// local, and a trigger consumed anywhere else would scan an empty store.
func startMatchingConsumer(q *queueInstance, cfg *config.Configuration) error {
	queues := matchingQueues(cfg)
	srv, err := initializeWorkerServer(cfg, queues)
	if err != nil {
		return err
	}

	mux := asynq.NewServeMux()
	for queueName := range queues {
		mux.HandleFunc(queueName, q.engine.ProcessMatchingTrigger)
	}

	go func() {
		if err := srv.Run(mux); err != nil {
			log.Fatalf("could not run matching trigger consumer: %v", err)
		}
	}()
	return nil
}

func startServer(router *gin.Engine, cfg config.ServerConfig) error {
	if cfg.SSL {
		return serveTLS(router, cfg)
	}
	log.Printf("Starting server on http://localhost:%s", cfg.Port)
	return router.Run(":" + cfg.Port)
}

/*
serverCommands returns the Cobra command responsible for starting the queue
server. It wires the API routes, launches the sweep and cleanup schedulers
and the matching trigger consumer, then serves HTTP.
*/
func serverCommands(q *queueInstance) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "start",
		Short: "start p2p queue server",
		Run: func(cmd *cobra.Command, args []string) {
			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()

			router := initializeRouter(q)

			cfg, err := config.Fetch()
			if err != nil {
				log.Fatal(err)
			}

			shutdown, err := initializeTracing(ctx, cfg)
			if err != nil {
				log.Fatal(err)
			}
			defer func() {
				if err := shutdown(ctx); err != nil {
					log.Printf("Error during tracing shutdown: %v", err)
				}
			}()

			if err := q.engine.StartSchedulers(ctx); err != nil {
				log.Fatal(err)
			}

			if err := startMatchingConsumer(q, cfg); err != nil {
				log.Fatal(err)
			}

			if err := startServer(router, cfg.Server); err != nil {
				log.Fatal(err)
			}
		},
	}

	return cmd
}
