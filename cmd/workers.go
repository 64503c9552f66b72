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
	"context"
	"fmt"
	"log"
	"net/http"

	"github.com/hibiken/asynq"
	"github.com/hibiken/asynqmon"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"go.elastic.co/apm/module/apmlogrus/v2"

	"github.com/printwell/orderflow"
	"github.com/printwell/orderflow/config"
)

func init() {
	logrus.AddHook(&apmlogrus.Hook{})
}

func initializeQueues(cfg *config.Configuration) map[string]int {
	queues := make(map[string]int)
	queues[cfg.Queue.EmailQueue] = 3
	queues[cfg.Queue.SweepQueue] = 1
	return queues
}

func initializeWorkerServer(conf *config.Configuration, queues map[string]int) (*asynq.Server, error) {
	redisOption, err := orderflow.RedisClientOpt(conf)
	if err != nil {
		return nil, fmt.Errorf("error parsing Redis URL: %v", err)
	}

	return asynq.NewServer(redisOption, asynq.Config{
		Concurrency: 4,
		Queues:      queues,
		ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
			logrus.WithError(err).WithField("type", task.Type()).Error("task failed")
		}),
	}), nil
}

func initializeTaskHandlers(a *app, mux *asynq.ServeMux) {
	mux.HandleFunc(orderflow.TypeSendEmail, a.engine.ProcessEmailTask)
	mux.HandleFunc(orderflow.TypeReconcileSweep, a.engine.ProcessSweepTask)
}

// initializeScheduler registers the periodic reconciliation sweep. An empty cron
// expression leaves the sweep to manual runs.
func initializeScheduler(conf *config.Configuration) (*asynq.Scheduler, error) {
	if conf.Reconciliation.SweepCron == "" {
		return nil, nil
	}
	redisOption, err := orderflow.RedisClientOpt(conf)
	if err != nil {
		return nil, err
	}

	scheduler := asynq.NewScheduler(redisOption, &asynq.SchedulerOpts{Location: conf.Location()})
	entryID, err := scheduler.Register(conf.Reconciliation.SweepCron, orderflow.NewSweepTask(conf))
	if err != nil {
		return nil, fmt.Errorf("invalid sweep cron %q: %w", conf.Reconciliation.SweepCron, err)
	}
	logrus.WithFields(logrus.Fields{"cron": conf.Reconciliation.SweepCron, "entry": entryID}).Info("reconciliation sweep scheduled")
	return scheduler, nil
}

func startMonitoring(conf *config.Configuration) {
	redisOption, err := orderflow.RedisClientOpt(conf)
	if err != nil {
		log.Printf("monitoring disabled: %v", err)
		return
	}
	h := asynqmon.New(asynqmon.Options{
		RootPath:     "/monitoring",
		RedisConnOpt: redisOption,
	})

	go func() {
		monitoringAddr := fmt.Sprintf(":%s", conf.Queue.MonitoringPort)
		log.Printf("Asynqmon server listening on %s/monitoring", monitoringAddr)
		if err := http.ListenAndServe(monitoringAddr, h); err != nil {
			log.Fatalf("could not start asynqmon server: %v", err)
		}
	}()
}

// workerCommands defines the "workers" command. Workers deliver queued emails
// and run the reconciliation sweep on its schedule.
func workerCommands(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "workers",
		Short: "start orderflow workers",
		Run: func(cmd *cobra.Command, args []string) {
			ctx := context.Background()
			conf := a.cnf

			phClient, shutdown, err := initializeObservability(ctx, conf)
			if err != nil {
				log.Fatal(err)
			}
			if shutdown != nil {
				defer func() {
					if err := shutdown(ctx); err != nil {
						log.Printf("Error during shutdown: %v", err)
					}
				}()
			}
			if phClient != nil {
				defer phClient.Close()
			}

			srv, err := initializeWorkerServer(conf, initializeQueues(conf))
			if err != nil {
				log.Fatal(err)
			}

			mux := asynq.NewServeMux()
			initializeTaskHandlers(a, mux)

			scheduler, err := initializeScheduler(conf)
			if err != nil {
				log.Fatal(err)
			}
			if scheduler != nil {
				if err := scheduler.Start(); err != nil {
					log.Fatalf("could not start scheduler: %v", err)
				}
				defer scheduler.Shutdown()
			}

			startMonitoring(conf)

			if err := srv.Run(mux); err != nil {
				log.Fatalf("could not run server: %v", err)
			}
		},
	}

	return cmd
}
