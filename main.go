package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"influencia-studio-server/modules/common/config"
	"influencia-studio-server/modules/common/gemini"
	"influencia-studio-server/modules/common/logger"
	"influencia-studio-server/modules/common/metrics"
	"influencia-studio-server/modules/common/middleware"
	"influencia-studio-server/modules/common/redis"
	"influencia-studio-server/modules/generation"
	"influencia-studio-server/modules/studio"
)

const shutdownTimeout = 15 * time.Second

func main() {
	// 환경변수 로드
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("❌ Failed to load config")
	}

	l := logger.New(cfg.IsDevelopment())
	logger.SetGlobal(l)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	m := metrics.New()

	// Gemini 클라이언트
	client, err := gemini.NewClient(ctx, cfg)
	if err != nil {
		l.Fatal().Err(err).Msg("❌ Failed to initialize Gemini client")
	}
	svc := generation.NewService(client.Models, generation.OptionsFromConfig(cfg), l, m)

	// 스냅샷 Redis 전파 (선택)
	opts := studio.ManagerOptions{
		InactiveTTL: cfg.SessionInactiveTTL,
		MaxAge:      cfg.SessionMaxAge,
	}
	if cfg.RedisEnabled {
		rdb, err := redis.Connect(ctx, cfg)
		if err != nil {
			l.Fatal().Err(err).Msg("❌ Failed to connect to Redis")
		}
		defer rdb.Close()
		opts.Publisher = redis.NewPublisher(rdb, cfg.RedisChannelPrefix)
		l.Info().Msgf("📡 Publishing snapshots to %s:<sessionId>", cfg.RedisChannelPrefix)
	}

	manager := studio.NewManager(svc, opts, l, m)

	// 정리 루틴 시작
	manager.StartCleanupRoutine(ctx)

	// 라우터 설정
	r := mux.NewRouter()

	r.HandleFunc("/", healthCheck).Methods(http.MethodGet)
	r.HandleFunc("/health", healthCheck).Methods(http.MethodGet)
	r.Handle("/metrics", m.Handler()).Methods(http.MethodGet)
	r.HandleFunc("/stats", getStats(manager)).Methods(http.MethodGet)
	r.HandleFunc("/admin/cleanup", forceCleanupSessions(manager)).Methods(http.MethodPost)
	studio.NewHandler(manager, cfg.MaxUploadBytes, l).RegisterRoutes(r)

	// 라우터 바깥 미들웨어 (OPTIONS preflight 포함)
	var handler http.Handler = r
	handler = middleware.CORS(cfg.AllowedOrigins)(handler)
	handler = middleware.Logger(l)(handler)
	handler = middleware.RequestID(handler)

	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		l.Info().Msgf("🚀 Influencia Studio Server starting on port %s", cfg.Port)
		l.Info().Msgf("📡 WebSocket endpoint: ws://localhost:%s/ws?session=<id>", cfg.Port)
		l.Info().Msgf("❤️  Health check: http://localhost:%s/health", cfg.Port)
		l.Info().Msgf("📊 Metrics: http://localhost:%s/metrics", cfg.Port)
		l.Info().Msgf("🧹 Admin cleanup: http://localhost:%s/admin/cleanup", cfg.Port)

		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			l.Fatal().Err(err).Msg("Server failed to start")
		}
	}()

	<-ctx.Done()
	shutdown(server, l)
}

func shutdown(server *http.Server, l zerolog.Logger) {
	l.Info().Msg("🛑 Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		l.Error().Err(err).Msg("Server forced to shutdown")
		return
	}
	l.Info().Msg("👋 Server stopped")
}

func healthCheck(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "healthy",
		"service": "influencia-studio",
	})
}

// 서버/세션 통계 조회 엔드포인트
func getStats(manager *studio.Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, manager.Stats())
	}
}

// 비활성/만료 세션 강제 정리 (관리자용)
func forceCleanupSessions(manager *studio.Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		cleaned := manager.Cleanup()
		writeJSON(w, http.StatusOK, map[string]any{
			"status":  "Cleanup completed",
			"cleaned": cleaned,
			"active":  manager.Count(),
		})
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
