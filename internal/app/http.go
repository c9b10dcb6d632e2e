package app

import (
	"context"
	"net/http"

	"storefront-auth/internal/auth"
	"storefront-auth/internal/auth/callback"
	"storefront-auth/internal/auth/credentials"
	"storefront-auth/internal/auth/flow"
	"storefront-auth/internal/auth/handler"
	"storefront-auth/internal/auth/identity"
	"storefront-auth/internal/auth/provider"
	"storefront-auth/internal/auth/provider/google"
	"storefront-auth/internal/auth/provider/keycloak"
	"storefront-auth/internal/auth/resolver"
	"storefront-auth/internal/config"
	"storefront-auth/internal/logger"
	"storefront-auth/internal/middleware"
	"storefront-auth/internal/profile"
	"storefront-auth/internal/session"

	"github.com/gin-gonic/gin"
)

func setupProviders(ctx context.Context, cfg config.Config) (*provider.Registry, error) {
	var list []provider.OAuthProvider

	if cfg.GoogleEnabled() {
		p, err := google.New(
			ctx,
			cfg.GoogleClientID,
			cfg.GoogleClientSecret,
			cfg.GoogleRedirectURL,
		)
		if err != nil {
			return nil, err
		}
		list = append(list, p)
	}

	if cfg.KeycloakEnabled() {
		p, err := keycloak.New(
			ctx,
			cfg.KeycloakIssuer,
			cfg.KeycloakClientID,
			cfg.KeycloakRedirectURL,
			cfg.KeycloakPublicBaseURL,
		)
		if err != nil {
			return nil, err
		}
		list = append(list, p)
	}

	registry := provider.NewRegistry(list...)
	logger.Info("oauth providers ready", map[string]any{
		"providers": registry.Names(),
	})
	return registry, nil
}

// wire builds the session manager and the router on top of infra.
func wire(cfg config.Config, infra *Infra, registry *provider.Registry) (*session.Manager, *gin.Engine) {
	prefix := infra.Redis.Prefix

	identitySvc := identity.NewService(identity.Options{
		Credentials: credentials.NewService(infra.DB),
		Providers:   registry,
		Resolver:    resolver.NewDBResolver(infra.DB),
		Pending:     flow.NewRedisPendingStore(infra.Redis.Client, prefix),
		Grants:      flow.NewRedisGrantStore(infra.Redis.Client, prefix),
		GrantTTL:    cfg.SessionTTL,
	})

	reconciler := profile.NewReconciler(profile.NewPostgresDirectory(infra.DB))
	manager := session.NewManager(
		identitySvc,
		reconciler,
		session.NewRedisStore(infra.Redis.Client, prefix),
	)

	authHandler := handler.NewHandler(
		manager,
		identitySvc,
		callback.NewHandler(identitySvc, reconciler, manager),
		session.CookieOptions{
			Secure:   cfg.CookieSecure,
			SameSite: http.SameSiteLaxMode,
		},
	)

	return manager, newRouter(authHandler, manager, cfg)
}

func newRouter(authHandler *handler.Handler, sessions middleware.SessionSource, cfg config.Config) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())

	// ----------------------------
	// Public Routes
	// ----------------------------

	authHandler.RegisterRoutes(router)

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	router.GET(auth.HomePath, func(c *gin.Context) {
		body := gin.H{"page": "home"}
		if code := c.Query("error"); code != "" {
			body["error"] = code
		}
		c.JSON(http.StatusOK, body)
	})

	// ----------------------------
	// Role-gated Dashboards
	// ----------------------------

	gated := map[auth.Role]string{
		auth.RoleAdmin:  "admin",
		auth.RoleSales:  "sales",
		auth.RoleSeller: "seller",
	}
	for role, name := range gated {
		router.GET(role.Destination(),
			middleware.RequireRoles(sessions, cfg.GuardWait, role),
			handler.RoleDashboard(name),
		)
	}

	return router
}
