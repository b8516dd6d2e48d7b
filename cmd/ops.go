package main

import (
	"context"
	"fmt"

	"github.com/hibiken/asynq"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/wagerops/p2pqueue/config"
	redis_db "github.com/wagerops/p2pqueue/internal/redis-db"
)

// opsCommands groups one-off maintenance commands. Everything here reaches
// the running deployment through redis; the queue store itself lives inside
// the server process and is not addressable from a second process.
func opsCommands(q *queueInstance) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ops",
		Short: "run one-off queue maintenance commands",
	}

	cmd.AddCommand(flushStatsCommand(q))
	cmd.AddCommand(queueDepthCommand())

	return cmd
}

func flushStatsCommand(q *queueInstance) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "flush-stats",
		Short: "invalidate the cached queue stats snapshot",
		Run: func(cmd *cobra.Command, args []string) {
			if err := q.engine.InvalidateStatsCache(context.Background()); err != nil {
				logrus.Error(err)
				return
			}
			logrus.Info("stats cache flushed, next poll recomputes from the store")
		},
	}

	return cmd
}

// queueDepthCommand prints the task counts of every redis queue, for
// debugging a stuck deployment without opening asynqmon.
func queueDepthCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "queues",
		Short: "print task counts for every redis queue",
		Run: func(cmd *cobra.Command, args []string) {
			conf, err := config.Fetch()
			if err != nil {
				logrus.Error(err)
				return
			}

			redisOption, err := redis_db.ParseRedisURL(conf.Redis.Dns, conf.Redis.SkipTLSVerify)
			if err != nil {
				logrus.Error(err)
				return
			}

			inspector := asynq.NewInspector(asynq.RedisClientOpt{
				Addr:      redisOption.Addr,
				Password:  redisOption.Password,
				DB:        redisOption.DB,
				TLSConfig: redisOption.TLSConfig,
			})

			names, err := inspector.Queues()
			if err != nil {
				logrus.Error(err)
				return
			}
			for _, name := range names {
				info, err := inspector.GetQueueInfo(name)
				if err != nil {
					logrus.Error(err)
					continue
				}
				fmt.Printf("%s\tpending=%d active=%d retry=%d\n", info.Queue, info.Pending, info.Active, info.Retry)
			}
		},
	}

	return cmd
}
