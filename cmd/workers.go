/*
Copyright 2024 FCG Cloud Authors.

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
	"errors"
	"log"
	"os/signal"
	"sync"
	"syscall"

	"github.com/spf13/cobra"
)

// workerCommands returns the command that runs the queue consumer and the
// outbox publisher. Both loops stop on SIGINT/SIGTERM and the command
// waits for them to drain before exiting.
func workerCommands(p *paymentsInstance) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "workers",
		Short: "start payments workers",
		Run: func(cmd *cobra.Command, args []string) {
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			var wg sync.WaitGroup

			wg.Add(1)
			go func() {
				defer wg.Done()
				if err := p.service.StartConsumer(ctx); err != nil && !errors.Is(err, context.Canceled) {
					log.Printf("consumer exited: %v", err)
					stop()
				}
			}()

			wg.Add(1)
			go func() {
				defer wg.Done()
				if err := p.service.StartPublisher(ctx); err != nil && !errors.Is(err, context.Canceled) {
					log.Printf("outbox publisher exited: %v", err)
					stop()
				}
			}()

			<-ctx.Done()
			log.Println("Shutting down workers...")
			wg.Wait()
		},
	}

	return cmd
}
