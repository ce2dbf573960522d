package main

import (
	"context"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/eion/userdesk/internal/config"
	"github.com/eion/userdesk/internal/health"
	"github.com/eion/userdesk/internal/upstream"
)

// upstreamCmd runs the local user collection
var upstreamCmd = &cobra.Command{
	Use:   "upstream",
	Short: "Run a local user collection backed by memory or PostgreSQL",
	Long: `Serves GET/POST /users and GET/PUT/PATCH/DELETE /users/:id with the
same JSON shape as the public endpoint, so serve can run against it with
api.base_url set to http://<host>:<port>/users.`,
	RunE: runUpstream,
}

func runUpstream(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	upstreamCfg := config.Upstream()
	checks := health.NewManager(logger.Named("health"))

	var store upstream.Store
	switch upstreamCfg.Store {
	case "memory":
		seed := upstream.DefaultSeed()
		if !upstreamCfg.Seed {
			seed = nil
		}
		store = upstream.NewMemoryStore(seed)
	case "postgres":
		db, err := upstream.OpenDB(ctx, config.Postgres().DSN())
		if err != nil {
			return err
		}
		defer db.Close()

		if err := upstream.CreateTables(ctx, db); err != nil {
			return err
		}
		if upstreamCfg.Seed {
			n, err := upstream.SeedIfEmpty(ctx, db)
			if err != nil {
				return err
			}
			logger.Info("Seeded users table", zap.Int("count", n))
		}
		checks.AddChecker(health.NewDatabaseChecker(db))
		store = upstream.NewPostgresStore(db)
	default:
		return fmt.Errorf("unknown upstream store %q (want memory or postgres)", upstreamCfg.Store)
	}

	if err := checks.StartupHealthCheck(ctx); err != nil {
		return err
	}

	router := newRouter(config.Http().AllowedOrigins, logger.Named("http"))
	router.GET("/health", func(c *gin.Context) {
		status := http.StatusOK
		for _, err := range checks.RuntimeHealthCheck(c.Request.Context()) {
			if err != nil {
				status = http.StatusServiceUnavailable
			}
		}
		c.JSON(status, gin.H{"status": http.StatusText(status), "store": upstreamCfg.Store})
	})
	upstream.NewHandlers(store, logger.Named("upstream")).RegisterRoutes(router.Group(""))

	server := &http.Server{
		Addr:    upstreamCfg.Addr(),
		Handler: router,
	}
	return runServer(ctx, server, config.Http().ShutdownTimeout, logger)
}
