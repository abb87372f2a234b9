package main

import (
	"context"
	"net/http"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/jonboulle/clockwork"
	"github.com/spf13/viper"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"golang.org/x/sync/errgroup"

	"github.com/kisschan/monachat-like/chat/directory"
	chattransport "github.com/kisschan/monachat-like/chat/transport"
	"github.com/kisschan/monachat-like/chat/tripper"
	"github.com/kisschan/monachat-like/internal/config"
	"github.com/kisschan/monachat-like/internal/cryptoutil"
	"github.com/kisschan/monachat-like/internal/httputil"
	"github.com/kisschan/monachat-like/internal/jwt"
	"github.com/kisschan/monachat-like/internal/log"
	"github.com/kisschan/monachat-like/internal/otel"
	"github.com/kisschan/monachat-like/internal/workflow"
	"github.com/kisschan/monachat-like/live"
	"github.com/kisschan/monachat-like/live/edge"
	"github.com/kisschan/monachat-like/live/registry"
	"github.com/kisschan/monachat-like/live/service"
	"github.com/kisschan/monachat-like/live/token"
	livetransport "github.com/kisschan/monachat-like/live/transport"
	"github.com/kisschan/monachat-like/push"
)

type Config struct {
	App  config.App      `mapstructure:"app"`
	HTTP httputil.Config `mapstructure:"http"`
	Otel otel.Config     `mapstructure:"otel"`
	Live live.Config     `mapstructure:"live"`

	SessionSecret string   `mapstructure:"session_secret"`
	IHashSeed     string   `mapstructure:"ihash_seed"`
	CORSOrigins   []string `mapstructure:"cors_origins"`
}

func loadConfig() (*Config, error) {
	return config.Load(&Config{}, func(v *viper.Viper) {
		v.SetDefault("session_secret", "")
		v.SetDefault("ihash_seed", "")
		v.SetDefault("cors_origins", []string{"*"})

		config.Setup(v, "app")
		otel.Setup(v, "otel")
		httputil.Setup(v, "http")
		live.Setup(v, "live")

		v.SetDefault("http.addr", "0.0.0.0:3000")
	})
}

// newSigner validates the token secret up front; a live-enabled
// deployment with a weak secret must not come up at all. When live is
// disabled the signer still has to exist for the edge callbacks, so it
// runs on a throwaway secret that admits nothing issued elsewhere.
func newSigner(cfg live.Config, logger *log.Logger) token.Signer {
	if cfg.Enabled() {
		signer, err := token.New(cfg.TokenSecret)
		if err != nil {
			logger.Fatal("Invalid stream token secret", log.Error(err))
		}
		if cfg.EdgeSecret == "" {
			logger.Fatal("live.edge_secret is required when live streaming is enabled")
		}
		return signer
	}

	ephemeral, err := cryptoutil.RandomHex(token.MinSecretLen)
	if err != nil {
		logger.Fatal("Failed to generate ephemeral secret", log.Error(err))
	}
	signer, err := token.New(ephemeral)
	if err != nil {
		logger.Fatal("Failed to build signer", log.Error(err))
	}
	return signer
}

func main() {
	cfg, err := loadConfig()
	if err != nil {
		log.Fatal("Failed to load configuration", err)
	}

	logger, err := log.NewLogger(cfg.App.LogConfigFile)
	if err != nil {
		log.Fatal("Failed to create logger", err)
	}
	defer func() { _ = logger.Sync() }()

	ctx := context.Background()

	otelShutdown, err := otel.Init(ctx, &cfg.Otel, logger)
	if err != nil {
		logger.Fatal("Failed to initialize OTEL provider", log.Error(err))
	}

	if cfg.SessionSecret == "" {
		logger.Fatal("session_secret is required")
	}

	logger.Info("Starting chat server",
		log.String("addr", cfg.HTTP.Addr),
		log.Bool("liveEnabled", cfg.Live.Enabled()))

	// chat side
	jwtAuth := jwt.NewAuth(cfg.SessionSecret)
	dir := directory.New(jwtAuth, tripper.New(cfg.IHashSeed), logger.Module("Directory"))
	hub := push.NewHub(logger.Module("Hub"))
	notifier := push.NewNotifier(hub, dir, logger.Module("Notifier"))

	// broadcast side
	clock := clockwork.NewRealClock()
	reg := registry.NewWithClock(logger.Module("Registry"), clock)
	signer := newSigner(cfg.Live, logger)
	liveService := service.New(cfg.Live, reg, signer, dir, notifier, clock, logger.Module("LiveSvc"))
	sweeper := service.NewSweeper(cfg.Live, reg, notifier, clock, logger.Module("Sweeper"))

	// the edge must answer before broadcast requests are accepted
	if err := edge.NewClient(logger.Module("Edge")).Preflight(ctx, cfg.Live); err != nil {
		logger.Fatal("Edge preflight failed", log.Error(err))
	}

	// shared engine for both surfaces
	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(otelgin.Middleware("chat-server"))
	engine.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.CORSOrigins,
		AllowMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:     []string{"Content-Type", chattransport.TokenHeader},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: false,
	}))
	// room identifiers carry encoded slashes, keep them in one segment
	engine.UseRawPath = true

	chattransport.NewRouter(engine, dir, hub, logger.Module("ChatRouter"))
	livetransport.NewRouter(engine, liveService, dir, cfg.Live, logger.Module("LiveRouter"))

	server := httputil.NewServer(&cfg.HTTP, engine)

	runCtx, cancelRun := context.WithCancel(ctx)
	g, gctx := errgroup.WithContext(runCtx)
	g.Go(func() error { return sweeper.Run(gctx) })

	go func() {
		logger.Info("Starting HTTP server", log.String("addr", cfg.HTTP.Addr))
		if err := server.Listen(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Failed to start HTTP server", log.Error(err))
		}
	}()

	logger.Info("Chat server started")

	cleanup := func(ctx context.Context) {
		_ = server.Shutdown(ctx)

		cancelRun()
		if err := g.Wait(); err != nil {
			logger.Error("Background worker exited with error", log.Error(err))
		}
		if err := otelShutdown(ctx); err != nil {
			logger.Error("Failed to shutdown OTEL", log.Error(err))
		}
	}
	workflow.WaitGracefulShutdown(ctx, logger.Module("CleanUp"), cleanup, cfg.App.ShutdownTimeout)
}
