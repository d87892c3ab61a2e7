package app

import (
	"context"
	"net/http"

	"github.com/debapps/WebAuthSecurity/internal/auth/credentials"
	"github.com/debapps/WebAuthSecurity/internal/auth/gateway"
	"github.com/debapps/WebAuthSecurity/internal/auth/handler"
	"github.com/debapps/WebAuthSecurity/internal/auth/provider"
	"github.com/debapps/WebAuthSecurity/internal/auth/provider/facebook"
	"github.com/debapps/WebAuthSecurity/internal/auth/provider/google"
	"github.com/debapps/WebAuthSecurity/internal/auth/strategy"
	"github.com/debapps/WebAuthSecurity/internal/auth/userstore"
	"github.com/debapps/WebAuthSecurity/internal/config"
	"github.com/debapps/WebAuthSecurity/internal/db"
	"github.com/debapps/WebAuthSecurity/internal/logger"
	"github.com/debapps/WebAuthSecurity/internal/middleware"
	"github.com/debapps/WebAuthSecurity/internal/session"

	"github.com/gin-gonic/gin"
	goredis "github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

func setupHTTP(ctx context.Context, cfg config.Config) (http.Handler, func() error, error) {

	infra, err := setupInfra(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}

	providers, err := setupProviders(ctx, cfg)
	if err != nil {
		_ = infra.Close()
		return nil, nil, err
	}

	gin.SetMode(gin.ReleaseMode)
	router := buildRouter(cfg, infra.DB, infra.Redis.Client, providers...)

	return otelhttp.NewHandler(router, "http.server"), infra.Close, nil
}

// setupProviders builds the OAuth providers whose credentials are configured.
func setupProviders(ctx context.Context, cfg config.Config) ([]provider.OAuthProvider, error) {
	var providers []provider.OAuthProvider

	if cfg.Google.Enabled() {
		p, err := google.New(ctx, google.Config{
			ClientID:     cfg.Google.ClientID,
			ClientSecret: cfg.Google.ClientSecret,
			RedirectURL:  cfg.Google.RedirectURL,
		})
		if err != nil {
			return nil, err
		}
		providers = append(providers, p)
	}

	if cfg.Facebook.Enabled() {
		p, err := facebook.New(facebook.Config{
			ClientID:     cfg.Facebook.ClientID,
			ClientSecret: cfg.Facebook.ClientSecret,
			RedirectURL:  cfg.Facebook.RedirectURL,
			GraphURL:     cfg.Facebook.GraphURL,
		})
		if err != nil {
			return nil, err
		}
		providers = append(providers, p)
	}

	names := make([]string, 0, len(providers))
	for _, p := range providers {
		names = append(names, p.Name())
	}
	logger.Info("oauth providers configured", map[string]any{
		"providers": names,
	})

	return providers, nil
}

func buildRouter(
	cfg config.Config,
	database *db.DB,
	rdb goredis.Cmdable,
	providers ...provider.OAuthProvider,
) *gin.Engine {

	// ----------------------------
	// Dependencies
	// ----------------------------

	hasher := credentials.NewHasher(credentials.Params{
		Time:        cfg.Password.Time,
		MemoryKiB:   cfg.Password.MemoryKiB,
		Parallelism: cfg.Password.Parallelism,
	}, cfg.Password.MaxConcurrent, cfg.Password.MinLength)
	users := userstore.New(database, hasher)

	sessions := session.NewManager(session.NewRedisStore(rdb), session.ManagerOptions{
		IdleTimeout:     cfg.Session.IdleTimeout,
		AbsoluteTimeout: cfg.Session.AbsoluteTimeout,
		Cookie: session.CookieOptions{
			Name:     cfg.Session.CookieName,
			Secure:   cfg.Session.CookieSecure,
			SameSite: http.SameSiteLaxMode,
		},
	})

	engine := strategy.NewEngine(
		strategy.NewLocal(users),
		provider.NewRegistry(providers...),
		users,
	)
	gw := gateway.New(engine, users, sessions)

	authMiddleware := middleware.NewAuthMiddleware(sessions, gw, cfg.Session.SaveUninitialized)
	authHandler := handler.NewHandler(gw, sessions)

	// ----------------------------
	// Router
	// ----------------------------

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestLogger())

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	// ----------------------------
	// Session-aware Routes
	// ----------------------------

	router.Use(middleware.GinLoadSession(authMiddleware))
	authHandler.RegisterRoutes(router, authMiddleware)

	return router
}
