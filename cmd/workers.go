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

	"github.com/hibiken/asynq"
	"github.com/hibiken/asynqmon"
	"github.com/spf13/cobra"

	"github.com/wagerops/p2pqueue"
	"github.com/wagerops/p2pqueue/config"
	redis_db "github.com/wagerops/p2pqueue/internal/redis-db"
)

// deliveryQueues returns the queue concurrency map for the delivery workers.
// The matching trigger queues are deliberately absent: the queue store is
// process-local to the server, so the server consumes those itself.
func deliveryQueues(cfg *config.Configuration) map[string]int {
	return map[string]int{
		cfg.Queue.WebhookQueue: 3,
		cfg.Queue.AuditQueue:   3,
	}
}

// matchingQueues returns the queue concurrency map for the matching trigger
// consumer embedded in the server process. Concurrency 1 per queue keeps a
// single customer's triggers serial while distinct customers fan out.
func matchingQueues(cfg *config.Configuration) map[string]int {
	queues := make(map[string]int)
	for i := 1; i <= cfg.Queue.NumberOfQueues; i++ {
		queueName := fmt.Sprintf("%s_%d", cfg.Queue.MatchingQueue, i)
		queues[queueName] = 1
	}
	return queues
}

func initializeWorkerServer(conf *config.Configuration, queues map[string]int) (*asynq.Server, error) {
	redisOption, err := redis_db.ParseRedisURL(conf.Redis.Dns, conf.Redis.SkipTLSVerify)
	if err != nil {
		return nil, fmt.Errorf("error parsing Redis URL: %v", err)
	}

	return asynq.NewServer(
		asynq.RedisClientOpt{
			Addr:      redisOption.Addr,
			Password:  redisOption.Password,
			DB:        redisOption.DB,
			TLSConfig: redisOption.TLSConfig,
		},
		asynq.Config{
			Concurrency: 1,
			Queues:      queues,
		},
	), nil
}

func initializeDeliveryHandlers(cfg *config.Configuration, mux *asynq.ServeMux) {
	mux.HandleFunc(cfg.Queue.AuditQueue, p2pqueue.ProcessAuditEvent)
	mux.HandleFunc(cfg.Queue.WebhookQueue, p2pqueue.ProcessWebhook)
}

// workerCommands defines the "workers" command. The workers deliver audit
// events and customer webhooks; both are stateless HTTP posts, so any number
// of worker processes may run against the same redis.
func workerCommands(q *queueInstance) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "workers",
		Short: "start audit and webhook delivery workers",
		Run: func(cmd *cobra.Command, args []string) {
			ctx := context.Background()

			conf, err := config.Fetch()
			if err != nil {
				log.Fatal("Error fetching config:", err)
			}

			shutdown, err := initializeTracing(ctx, conf)
			if err != nil {
				log.Fatal(err)
			}
			defer func() {
				if err := shutdown(ctx); err != nil {
					log.Printf("Error during tracing shutdown: %v", err)
				}
			}()

			srv, err := initializeWorkerServer(conf, deliveryQueues(conf))
			if err != nil {
				log.Fatal(err)
			}

			mux := asynq.NewServeMux()
			initializeDeliveryHandlers(conf, mux)

			// Start asynqmon server for health checks and monitoring
			redisOption, _ := redis_db.ParseRedisURL(conf.Redis.Dns, conf.Redis.SkipTLSVerify)
			h := asynqmon.New(asynqmon.Options{
				RootPath: "/monitoring", //  Optional: if you want to serve asynqmon under a sub-path.
				RedisConnOpt: asynq.RedisClientOpt{
					Addr:      redisOption.Addr,
					Password:  redisOption.Password,
					DB:        redisOption.DB,
					TLSConfig: redisOption.TLSConfig,
				},
			})

			go func() {
				monitoringAddr := fmt.Sprintf(":%s", conf.Queue.MonitoringPort)
				log.Printf("Asynqmon server listening on %s/monitoring", monitoringAddr)
				if err := http.ListenAndServe(monitoringAddr, h); err != nil {
					log.Fatalf("could not start asynqmon server: %v", err)
				}
			}()

			if err := srv.Run(mux); err != nil {
				log.Fatalf("could not run server: %v", err)
			}
		},
	}

	return cmd
}
