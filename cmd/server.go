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
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"github.com/fcgcloud/payments/api"
)

const shutdownGrace = 10 * time.Second

func initializeRouter(p *paymentsInstance) *gin.Engine {
	return api.NewAPI(p.service).Router()
}

// serverCommands returns the command that runs the HTTP API together with
// the outbox publisher. Both stop on SIGINT/SIGTERM; in-flight requests
// get a grace period to finish.
func serverCommands(p *paymentsInstance) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "start",
		Short: "start payments server",
		Run: func(cmd *cobra.Command, args []string) {
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			router := initializeRouter(p)

			server := &http.Server{
				Addr:    ":" + p.cnf.Server.Port,
				Handler: router,
			}

			go func() {
				if err := p.service.StartPublisher(ctx); err != nil && !errors.Is(err, context.Canceled) {
					log.Printf("outbox publisher exited: %v", err)
				}
			}()

			go func() {
				log.Printf("Starting server on http://localhost:%s", p.cnf.Server.Port)
				if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					log.Fatalf("Failed to start server: %v", err)
				}
			}()

			<-ctx.Done()
			log.Println("Shutting down server...")

			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
			defer cancel()
			if err := server.Shutdown(shutdownCtx); err != nil {
				log.Printf("Server shutdown error: %v", err)
			}
		},
	}

	return cmd
}
