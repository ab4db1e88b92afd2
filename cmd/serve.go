package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/e-roy/find-a-flight-school-sub001/internal/authz"
	"github.com/e-roy/find-a-flight-school-sub001/internal/server"
)

// tokenIssuer is stamped into access tokens and checked on validation.
const tokenIssuer = "fsd"

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the pipeline and fact store over HTTP",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if cfg.Auth.SigningKey == "" {
			return eris.New("auth.signing_key is required in serve mode")
		}

		e, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer e.Close()

		srv := server.New(server.Deps{
			Policy:   authz.NewPolicy(cfg.Auth.SigningKey, tokenIssuer, cfg.Auth.SchedulerToken),
			Schools:  e.Schools,
			Facts:    e.Facts,
			Queue:    e.Queue,
			Crawler:  e.newCrawlWorker(),
			Resolver: e.newSeedBatch(),
			Deduper:  e.newDedupeEngine(),
			Refresh:  e.newRefreshScheduler(),
			Claims:   e.newClaimService(),
		})

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}
		httpSrv := &http.Server{
			Addr:              fmt.Sprintf(":%d", port),
			Handler:           srv.Handler(),
			ReadHeaderTimeout: 10 * time.Second,
		}

		g, ctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			zap.L().Info("starting server", zap.Int("port", port))
			if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return eris.Wrap(err, "server listen")
			}
			return nil
		})
		g.Go(func() error {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
			defer cancel()
			return httpSrv.Shutdown(shutdownCtx)
		})

		return g.Wait()
	},
}

var (
	tokenSubject string
	tokenRole    string
	tokenTTL     time.Duration
)

// serve token mints an access token for operators and moderators.
var serveTokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Issue an access token for the HTTP interface",
	RunE: func(cmd *cobra.Command, args []string) error {
		if cfg.Auth.SigningKey == "" {
			return eris.New("auth.signing_key is required to issue tokens")
		}

		policy := authz.NewPolicy(cfg.Auth.SigningKey, tokenIssuer, cfg.Auth.SchedulerToken)
		signed, err := policy.IssueToken(tokenSubject, authz.Role(tokenRole), tokenTTL)
		if err != nil {
			return err
		}

		fmt.Println(signed)
		return nil
	},
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")

	serveTokenCmd.Flags().StringVar(&tokenSubject, "subject", "", "token subject")
	serveTokenCmd.Flags().StringVar(&tokenRole, "role", string(authz.RoleOperator), "admin, moderator, or operator")
	serveTokenCmd.Flags().DurationVar(&tokenTTL, "ttl", 24*time.Hour, "token lifetime")
	_ = serveTokenCmd.MarkFlagRequired("subject")

	serveCmd.AddCommand(serveTokenCmd)
	rootCmd.AddCommand(serveCmd)
}
