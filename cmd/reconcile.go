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
	"encoding/json"
	"errors"
	"log"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/printwell/orderflow"
)

// reconcileCommands runs the NA sweep once, either inline or through the worker queue.
func reconcileCommands(a *app) *cobra.Command {
	var enqueue bool

	cmd := &cobra.Command{
		Use:   "reconcile",
		Short: "run the NA payment sweep once",
		Run: func(cmd *cobra.Command, args []string) {
			ctx := context.Background()

			if enqueue {
				queue, err := orderflow.NewQueue(a.cnf)
				if err != nil {
					log.Fatal(err)
				}
				defer queue.Close()
				if err := queue.EnqueueSweep(ctx); err != nil {
					log.Fatal(err)
				}
				log.Println(" [*] Sweep queued")
				return
			}

			report, err := a.engine.RunSweep(ctx)
			if errors.Is(err, orderflow.ErrSweepInProgress) {
				logrus.Warn("another sweep holds the lock")
				return
			}
			if err != nil {
				log.Fatal(err)
			}

			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			if err := enc.Encode(report.Summary); err != nil {
				log.Fatal(err)
			}
		},
	}

	cmd.Flags().BoolVar(&enqueue, "enqueue", false, "queue the sweep for the workers instead of running it here")
	return cmd
}
