package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"qsec/internal/blueteam"
	"qsec/internal/config"
	"qsec/internal/handlers"
	"qsec/internal/integrations/discord"
	"qsec/internal/middleware"
	"qsec/internal/models"
	"qsec/internal/quantum"
	"qsec/internal/redteam"
	"qsec/internal/utils"
	"qsec/internal/version"

	"github.com/gin-gonic/gin"
	"github.com/klauspost/compress/gzhttp"
)

type App struct {
	cfg         *config.Config
	log         *utils.Logger
	monitor     *blueteam.Monitor
	authService *middleware.AuthService
	wsHub       *middleware.Hub
	rateLimiter *middleware.RateLimiter
	notifier    *discord.Notifier
	handlers    *handlers.Handlers
}

var app *App

func newApp(cfg *config.Config, logger *utils.Logger) *App {
	a := &App{
		cfg:         cfg,
		log:         logger,
		authService: middleware.NewAuthService(cfg.JWTSecret, cfg.AuthEnabled, cfg.AdminUser, cfg.AdminPasswordHash),
		wsHub:       middleware.NewHub(logger),
		rateLimiter: middleware.PerMinute(cfg.RateLimitPerMin),
		notifier:    discord.NewNotifier(cfg.DiscordWebhook, logger),
	}
	a.monitor = blueteam.NewMonitor(blueteam.Options{
		HistorySize: cfg.HistorySize,
		Synthetic:   cfg.SyntheticLogs,
		Log:         logger,
	})
	a.monitor.OnLog(func(entry models.LogEntry) {
		a.wsHub.Publish(handlers.EventLog, entry)
		a.notifier.NotifyEntry(entry)
	})
	a.handlers = handlers.New(
		a.monitor,
		redteam.NewScanner(cfg.ScanTimeout(), cfg.ScanWorkers, cfg.MaxScanPorts),
		quantum.NewEngine(cfg.MaxQubits, nil),
		a.authService,
		a.wsHub,
		logger,
	)
	return a
}

func main() {
	configPath := flag.String("config", config.DefaultFile, "path to the configuration file (.config/.json or .yaml)")
	showVersion := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Println(version.String())
		return
	}

	if os.Getenv("GIN_MODE") == "" {
		gin.SetMode(gin.ReleaseMode)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	logger := utils.NewLogger(cfg.Paths.LogFile())
	defer logger.Close()
	logger.SetEcho(os.Stdout)
	logger.Writef("Q-SEC backend %s starting (config %s)", version.String(), cfg.File)

	if cfg.AuthEnabled && cfg.UsingDefaultSecret() {
		logger.Write("WARNING: auth is enabled with the default JWT secret; set jwt_secret or QSEC_JWT_SECRET")
	}
	if cfg.AuthEnabled && cfg.AdminPasswordHash == "" {
		logger.Write("WARNING: auth is enabled but no admin password is set; run qsec-passwd")
	}

	app = newApp(cfg, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go app.wsHub.Run(ctx)
	if app.notifier.Enabled() {
		go app.notifier.Run(ctx)
	}

	var forwarder *utils.PortForwarder
	if cfg.AutoPortForward {
		forwarder = utils.NewPortForwarder(cfg.Port, "Q-SEC API", logger)
		forwarder.Start(ctx)
	}

	srv := &http.Server{
		Addr:           ":" + strconv.Itoa(cfg.Port),
		Handler:        compress(setupRouter()),
		ReadTimeout:    10 * time.Second,
		WriteTimeout:   30 * time.Second,
		MaxHeaderBytes: 1 << 20,
	}

	if cfg.TLSEnabled {
		certFile, keyFile, err := cfg.TLSFiles()
		if err != nil {
			log.Fatalf("TLS is enabled but misconfigured: %v", err)
		}
		go func() {
			logger.Writef("Starting HTTPS server on port %d", cfg.Port)
			if err := srv.ListenAndServeTLS(certFile, keyFile); err != nil && err != http.ErrServerClosed {
				log.Fatalf("HTTPS server failed to start: %v", err)
			}
		}()
	} else {
		go func() {
			logger.Writef("Starting server on port %d", cfg.Port)
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Fatalf("Server failed to start: %v", err)
			}
		}()
	}

	<-ctx.Done()
	logger.Write("Shutting down server...")

	forwarder.Stop()
	app.rateLimiter.Stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatal("Server forced to shutdown:", err)
	}

	logger.Write("Server exited")
}

func setupRouter() *gin.Engine {
	r := gin.New()

	r.Use(gin.Recovery())

	logCfg := gin.LoggerConfig{Formatter: accessLogFormat}
	if !app.cfg.VerboseHTTP {
		// Polled every tick by each agent.
		logCfg.SkipPaths = []string{"/healthz", "/api/blue/stats", "/api/blue/logs"}
	}
	r.Use(gin.LoggerWithConfig(logCfg))

	r.Use(middleware.SecurityHeaders(app.cfg.AllowIFrame))
	r.Use(middleware.CORS())
	r.Use(app.rateLimiter.Middleware())

	app.handlers.Register(r)

	r.GET("/ws", app.wsHub.HandleWebSocket())

	return r
}

func accessLogFormat(param gin.LogFormatterParams) string {
	return fmt.Sprintf("%s - [%s] \"%s %s %s %d %s \"%s\" %s\"\n",
		param.ClientIP,
		param.TimeStamp.Format(time.RFC1123),
		param.Method,
		param.Path,
		param.Request.Proto,
		param.StatusCode,
		param.Latency,
		param.Request.UserAgent(),
		param.ErrorMessage,
	)
}

// compress gzips responses except websocket upgrades, which must reach gin
// with a hijackable writer.
func compress(next http.Handler) http.Handler {
	gz := gzhttp.GzipHandler(next)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Upgrade") != "" {
			next.ServeHTTP(w, r)
			return
		}
		gz.ServeHTTP(w, r)
	})
}
