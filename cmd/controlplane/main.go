// Command controlplane is the HTTP transport for the control plane: it boots an App
// (internal/app), exposes spec §6's REST surface over gin, mounts the GitOps webhook
// ingester, and runs the drift sweep on a ticker. It generalizes the teacher's
// main.go — ctrl.NewManager + SetupWithManager per controller — into gin route
// registration + router.Router dispatch, since InfraWeave has no controller-runtime
// watch loop driving this entrypoint.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/infraweave-io/control-plane/internal/app"
	"github.com/infraweave-io/control-plane/internal/config"
	"github.com/infraweave-io/control-plane/internal/drift"
	"github.com/infraweave-io/control-plane/internal/gitops"
	"github.com/infraweave-io/control-plane/internal/logging"
	"github.com/infraweave-io/control-plane/internal/router"
	"github.com/infraweave-io/control-plane/internal/router/authn"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logger, err := logging.New(cfg.Env == "dev")
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := cfg.ValidateAuth(); err != nil {
		logger.Fatal("invalid auth configuration", zap.Error(err))
	}

	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("unable to build app", zap.Error(err))
	}

	authenticator, err := authn.New(authn.Options{
		Issuer:          cfg.JWTIssuer,
		Audience:        cfg.JWTAudience,
		ProjectClaimKey: cfg.JWTProjectClaimKey,
		JWKSURL:         cfg.JWKSURL,
		SigningKey:      cfg.JWTSigningKey,
		Insecure:        cfg.DisableJWTAuthInsecure,
	})
	if err != nil {
		logger.Fatal("unable to build authenticator", zap.Error(err))
	}

	r := router.New(authenticator, logger)
	a.RegisterRoutes(r)

	ingester := gitops.New(cfg.GitOpsWebhookSecret, gitops.NewGitHubFetcher(cfg.GitHubToken), a)

	engine := buildEngine(logger, r, ingester)

	startDriftSweep(ctx, cfg, a, logger)

	srv := &http.Server{Addr: cfg.HTTPListenAddr, Handler: engine}
	go func() {
		logger.Info("starting control plane", zap.String("addr", cfg.HTTPListenAddr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("http server failed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", zap.Error(err))
	}
}

func buildEngine(logger *zap.Logger, r *router.Router, ingester *gitops.Ingester) *gin.Engine {
	if logger.Core().Enabled(zap.DebugLevel) {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(ginZapLogger(logger))

	engine.GET("/healthz", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })
	engine.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := engine.Group("/api/v1")
	v1.POST("/dispatch", dispatchHandler(r))
	v1.POST("/webhooks/gitops", gitopsWebhookHandler(ingester))

	return engine
}

// dispatchHandler adapts one HTTP POST into the shared Envelope/Response path spec
// §9's Open Question resolves by keeping a single router.Dispatch entrypoint behind
// every transport (HTTP here, used by cmd/cli and cmd/loadtest; direct calls to
// router.Dispatch elsewhere). The gitops and k8s adapters do not go through the
// router: they call App.RunClaim through their ClaimRunner interfaces.
func dispatchHandler(r *router.Router) gin.HandlerFunc {
	return func(c *gin.Context) {
		var env router.Envelope
		if err := c.ShouldBindJSON(&env); err != nil {
			c.JSON(http.StatusBadRequest, router.Response{OK: false, Error: &router.ErrorBody{Message: "malformed request body"}})
			return
		}
		token := router.BearerToken(c.GetHeader("Authorization"))
		resp := r.Dispatch(c.Request.Context(), token, env)
		c.JSON(statusFor(resp), resp)
	}
}

func gitopsWebhookHandler(ingester *gitops.Ingester) gin.HandlerFunc {
	return func(c *gin.Context) {
		body, err := c.GetRawData()
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "unable to read request body"})
			return
		}
		sig := c.GetHeader("X-Hub-Signature-256")
		if err := ingester.Process(c.Request.Context(), body, sig); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusAccepted, gin.H{"accepted": true})
	}
}

func statusFor(resp router.Response) int {
	if resp.OK {
		return http.StatusOK
	}
	if resp.Error == nil {
		return http.StatusInternalServerError
	}
	switch resp.Error.Kind {
	case "Unauthenticated", "InvalidToken":
		return http.StatusUnauthorized
	case "Forbidden", "PermissionDenied":
		return http.StatusForbidden
	case "NotFound":
		return http.StatusNotFound
	case "AlreadyExists", "Conflict", "Busy":
		return http.StatusConflict
	case "Malformed", "UnknownVariable", "MissingRequired", "TypeMismatch",
		"ConstraintViolation", "UnresolvedDependency", "CyclicDependency", "ProviderConflict":
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func ginZapLogger(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Info("request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
		)
	}
}

// startDriftSweep runs drift.Controller.Sweep on a ticker for every configured
// project:region scope (spec §4.7). Drift sweeping is skipped entirely when no scopes
// are configured, rather than sweeping an arbitrary default scope.
func startDriftSweep(ctx context.Context, cfg *config.Config, a *app.App, logger *zap.Logger) {
	scopes := parseDriftScopes(cfg.DriftScopes)
	if len(scopes) == 0 {
		logger.Info("drift sweep disabled: no DRIFT_SCOPES configured")
		return
	}

	controller := drift.New(a.Registry, a, scopes, cfg.ConcurrencyLimit, logger)
	ticker := time.NewTicker(cfg.DriftSweepInterval)

	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := controller.Sweep(ctx); err != nil {
					logger.Warn("drift sweep failed", zap.Error(err))
				}
			}
		}
	}()
}

func parseDriftScopes(raw []string) []drift.ProjectRegion {
	scopes := make([]drift.ProjectRegion, 0, len(raw))
	for _, s := range raw {
		parts := strings.SplitN(strings.TrimSpace(s), ":", 2)
		if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
			continue
		}
		scopes = append(scopes, drift.ProjectRegion{Project: parts[0], Region: parts[1]})
	}
	return scopes
}
