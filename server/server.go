package server

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"StuffChat/cache"
	"StuffChat/config"
	"StuffChat/core/audio"
	"StuffChat/core/auth"
	"StuffChat/core/download"
	"StuffChat/core/media"
	"StuffChat/core/room"
	"StuffChat/core/shareplay"
	"StuffChat/db"
	"StuffChat/logger"
	"StuffChat/repository"

	"github.com/gorilla/mux"
)

// Routes 路由依赖
type Routes struct {
	Hub            *room.Hub
	Dispatcher     *room.Dispatcher
	Tokens         TokenParser
	Presence       Presence        // 可为 nil
	Online         OnlineChecker   // 可为 nil，此时在线状态接口返回 503
	Access         room.Authorizer // 可为 nil
	AllowedOrigins []string
}

// NewRouter 注册所有 HTTP 路由。CORS 包在路由外层，
// 预检请求不经过 mux 的方法匹配
func NewRouter(rt Routes) http.Handler {
	router := mux.NewRouter()

	authMiddleware := AuthMiddleware(rt.Tokens)
	sharePlay := NewSharePlayHandler(rt.Hub, rt.Access)

	router.HandleFunc("/api/health", HealthHandler(rt.Hub)).Methods(http.MethodGet)
	router.HandleFunc("/api/presence/users", authMiddleware(PresenceHandler(rt.Online))).Methods(http.MethodGet)
	router.HandleFunc("/api/shareplay/song/{song_id}", authMiddleware(sharePlay.SongHandler)).Methods(http.MethodGet, http.MethodHead)
	router.HandleFunc("/api/shareplay/thumbnail/{item_id}", authMiddleware(sharePlay.ThumbnailHandler)).Methods(http.MethodGet, http.MethodHead)
	router.HandleFunc("/api/shareplay/{channel_id}/current", authMiddleware(sharePlay.CurrentHandler)).Methods(http.MethodGet)
	router.Handle("/ws", NewWSHandler(rt.Hub, rt.Dispatcher, rt.Tokens, rt.Presence, rt.AllowedOrigins)).Methods(http.MethodGet)

	return corsMiddleware(rt.AllowedOrigins)(router)
}

// Start initializes and starts the HTTP server.
func Start(cfg *config.Config) {
	logger.InitLogger(logger.Config{
		Level:      logger.ParseLevel(cfg.LogLevel),
		OutputPath: cfg.LogFile,
		MaxSize:    100,
		MaxBackups: 5,
		MaxAge:     30,
		Compress:   true,
	})
	defer logger.Sync()

	// 临时目录里的文件都属于上一次运行，直接清空
	if err := shareplay.PrepareWorkDir(cfg.TempDir); err != nil {
		logger.Fatal("failed to prepare temp dir", logger.ErrorField(err))
	}

	var (
		access   room.Authorizer
		members  room.MemberLister
		presence Presence
		online   OnlineChecker
	)
	dispatcherOpts := []room.DispatcherOption{}

	if cfg.DatabaseEnabled() {
		if err := db.ConnectGormDB(cfg); err != nil {
			logger.Fatal("failed to connect to database", logger.ErrorField(err))
		}
		defer db.CloseGormDB()
		if err := db.AutoMigrate(); err != nil {
			logger.Fatal("failed to migrate database", logger.ErrorField(err))
		}
		channels := repository.NewGormChannelRepository(db.GormDB)
		access, members = channels, channels
		dispatcherOpts = append(dispatcherOpts, room.WithAuthorizer(access), room.WithMemberLister(members))
	} else {
		logger.Warn("database not configured, channel membership checks disabled")
	}

	resolverOpts := []media.ResolverOption{media.WithFallback(media.NewYouTube())}
	if cfg.RedisEnabled() {
		if err := cache.ConnectRedis(cfg); err != nil {
			logger.Fatal("failed to connect to Redis", logger.ErrorField(err))
		}
		defer cache.CloseRedis()
		logger.Info("connected to Redis", logger.String("host", cfg.RedisHost))

		presenceCache := cache.NewPresenceCache(cache.RedisClient, cfg.PresenceTTL)
		presence, online = presenceCache, presenceCache
		dispatcherOpts = append(dispatcherOpts, room.WithPresence(presenceCache))
		resolverOpts = append(resolverOpts, media.WithCache(cache.NewMetadataCache(cache.RedisClient, cfg.MetadataCacheTTL)))
	} else {
		logger.Warn("redis not configured, presence and metadata cache disabled")
	}

	ytdlp := media.NewYtDlp(media.YtDlpConfig{
		Binary:        cfg.YtDlpPath,
		CookieBrowser: cfg.YtDlpCookieBrowser,
		Proxy:         cfg.YtDlpProxy,
		AudioFormat:   cfg.AudioFormat,
	})
	resolver := media.NewResolver(ytdlp, ytdlp, resolverOpts...)
	orchestrator := download.New(
		download.Config{WorkDir: cfg.TempDir, Workers: cfg.DownloadWorkers},
		resolver,
		download.WithThumbnailer(media.NewThumbnailer(cfg.ThumbnailSize, nil)),
		download.WithProber(audio.NewProber(cfg.FFprobePath)),
	)

	hub := room.NewHub(
		room.WithAcquirer(orchestrator),
		room.WithFileRemover(shareplay.NewDirRemover(cfg.TempDir)),
	)
	hubCtx, stopHub := context.WithCancel(context.Background())
	hubDone := make(chan struct{})
	go func() {
		hub.Run(hubCtx)
		close(hubDone)
	}()

	router := NewRouter(Routes{
		Hub:            hub,
		Dispatcher:     room.NewDispatcher(hub, dispatcherOpts...),
		Tokens:         auth.NewTokenManager(cfg.JWTSecret),
		Presence:       presence,
		Online:         online,
		Access:         access,
		AllowedOrigins: cfg.AllowedOrigins,
	})

	// 媒体文件可能较大，不设置写超时
	server := &http.Server{
		Addr:        cfg.ListenAddr,
		Handler:     router,
		ReadTimeout: 30 * time.Second,
		IdleTimeout: 120 * time.Second,
	}

	// 创建一个通道来接收操作系统信号
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	go func() {
		logger.Info("server starting", logger.String("addr", cfg.ListenAddr), logger.String("tempDir", cfg.TempDir))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("failed to start server", logger.ErrorField(err))
		}
	}()

	// 等待中断信号
	<-stop
	logger.Info("shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		logger.Error("server forced to shutdown", logger.ErrorField(err))
	}

	// hub 停止时关闭所有连接并清理临时文件
	stopHub()
	<-hubDone
	logger.Info("server stopped")
}
