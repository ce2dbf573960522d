package main

import (
	"context"
	"net/http"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/eion/userdesk/internal/cache"
	"github.com/eion/userdesk/internal/config"
	"github.com/eion/userdesk/internal/health"
	"github.com/eion/userdesk/internal/shell"
	"github.com/eion/userdesk/internal/userapi"
	"github.com/eion/userdesk/internal/userlist"
)

// serveCmd runs the hosting shell
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the JSON API hosting the user list and the user form",
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	list := cache.NewUserList()
	defer list.Close()

	checks := health.NewManager(logger.Named("health"))

	if redisCfg := config.Redis(); redisCfg.Enabled {
		mirror := cache.NewRedisMirror(redisCfg.Addr(), redisCfg.Password, redisCfg.Database, redisCfg.TTL, logger.Named("cache"))
		defer mirror.Close()
		detach := mirror.Attach(ctx, list)
		defer detach()
		checks.AddChecker(health.NewRedisChecker(mirror.Client()))
	}

	client := newClient(list)
	checks.AddChecker(health.Func{
		CheckName: "upstream",
		Check: func(ctx context.Context) error {
			_, err := client.FetchAll(ctx)
			return err
		},
	})

	listCfg := config.List()
	s := shell.New(client, client, shell.Config{
		List: userlist.Config{
			ShowInactive:   listCfg.ShowInactive,
			MaxCount:       listCfg.MaxCount,
			DebounceWindow: listCfg.DebounceWindow,
		},
		SubmitDelay: config.Form().SubmitDelay,
	}, checks, logger.Named("shell"))
	defer s.Close()

	if err := checks.StartupHealthCheck(ctx); err != nil {
		return err
	}
	if err := s.Start(ctx); err != nil {
		logger.Warn("Initial user load failed", zap.Error(err))
	}

	httpCfg := config.Http()
	router := newRouter(httpCfg.AllowedOrigins, logger.Named("http"))
	s.RegisterRoutes(router.Group(""))

	server := &http.Server{
		Addr:    httpCfg.Addr(),
		Handler: router,
	}
	return runServer(ctx, server, httpCfg.ShutdownTimeout, logger)
}

// newClient builds the data client from the api config section, sharing
// list as its cache.
func newClient(list *cache.UserList) *userapi.Client {
	apiCfg := config.API()
	return userapi.NewClient(apiCfg.BaseURL, logger.Named("userapi"),
		userapi.WithHTTPClient(&http.Client{Timeout: apiCfg.Timeout}),
		userapi.WithCache(list),
	)
}
