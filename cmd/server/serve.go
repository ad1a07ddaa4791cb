package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	_ "net/http/pprof"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"

	"ring-haptics-service/internal/cache"
	"ring-haptics-service/internal/handlers"
	"ring-haptics-service/internal/logger"
	"ring-haptics-service/internal/metrics"
	"ring-haptics-service/internal/store"
	"ring-haptics-service/internal/tracing"
	"ring-haptics-service/internal/transport"
	"ring-haptics-service/internal/wellness"
)

const serviceName = "ring-haptics-service"

func runServe(cfg Config) error {
	log, err := logger.New(cfg.LogLevel, cfg.LogFormat, serviceName)
	if err != nil {
		return fmt.Errorf("failed to build logger: %w", err)
	}
	defer func() { _ = log.Sync() }()

	log.Info("Starting ring haptics service",
		zap.String("version", version),
		zap.String("go_version", runtime.Version()),
		zap.Int("num_cpu", runtime.NumCPU()),
		zap.String("device_id", cfg.DeviceID))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.OTelEnabled {
		shutdown, err := tracing.Init(ctx, serviceName)
		if err != nil {
			return fmt.Errorf("failed to init tracing: %w", err)
		}
		defer func() {
			sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := shutdown(sctx); err != nil {
				log.Warn("Tracer shutdown error", zap.Error(err))
			}
		}()
		log.Info("OpenTelemetry tracing enabled")
	}

	// Настройки пользователя переживают перезапуск
	st, err := store.Open(cfg.BadgerPath, log)
	if err != nil {
		return err
	}
	defer func() {
		if err := st.Close(); err != nil {
			log.Warn("Store close error", zap.Error(err))
		}
	}()

	runner := wellness.NewRunner(wellness.RunnerConfig{
		Options: wellness.Options{
			Autonomous:    cfg.Autonomous,
			SignatureFeel: cfg.SignatureFeel,
		},
		BufferSize: cfg.EventBuffer,
		Streaming:  cfg.Streaming,
	}, log.Named("runner"))
	runner.Start()
	defer runner.Stop()

	if err := restoreSettings(ctx, runner, st, log); err != nil {
		return err
	}

	redisCache := connectRedis(cfg, log)
	if redisCache != nil {
		defer redisCache.Close()
	}

	hub := transport.NewHub(log)
	defer hub.Close()
	fanout := transport.NewFanout(log, hub)

	if cfg.MQTTBroker != "" {
		m, err := transport.NewMQTT(transport.MQTTConfig{
			Broker:      cfg.MQTTBroker,
			ClientID:    cfg.MQTTClientID,
			Username:    cfg.MQTTUsername,
			Password:    cfg.MQTTPassword,
			TopicPrefix: cfg.MQTTTopicPrefix,
			DeviceID:    cfg.DeviceID,
			QoS:         1,
		}, log)
		if err != nil {
			log.Warn("Running without MQTT", zap.Error(err))
		} else {
			defer m.Close()
			if err := m.Subscribe(runner); err != nil {
				log.Warn("MQTT subscribe failed", zap.Error(err))
			}
			fanout.Add(m)
		}
	}

	if cfg.NATSURL != "" {
		conn, err := transport.ConnectNATS(cfg.NATSURL, serviceName)
		if err != nil {
			log.Warn("Running without NATS", zap.Error(err))
		} else {
			n := transport.NewNATS(conn, cfg.NATSSubjectPrefix, cfg.DeviceID, log)
			defer func() {
				if err := n.Close(); err != nil {
					log.Warn("NATS close error", zap.Error(err))
				}
			}()
			if err := n.Subscribe(runner); err != nil {
				log.Warn("NATS subscribe failed", zap.Error(err))
			}
			fanout.Add(n)
		}
	}

	// События runner: кэш, затем транспорты
	go fanout.Run(ctx, runner.Results(), func(e wellness.Event) {
		if redisCache == nil {
			return
		}
		if err := redisCache.CacheEvent(e); err != nil {
			metrics.CacheMisses.Inc()
			log.Debug("Cache write failed", zap.String("event", string(e.Type)), zap.Error(err))
			return
		}
		metrics.CacheHits.Inc()
	})

	go updateMetricsLoop(ctx)

	handler := handlers.NewHandler(runner, redisCache, st, log)
	router := handlers.NewRouter(handler, hub)

	// pprof для профилирования
	router.PathPrefix("/debug/pprof/").Handler(http.DefaultServeMux)
	router.Use(loggingMiddleware(log))

	// Создаем HTTP сервер с настройками таймаутов
	server := &http.Server{
		Addr:         cfg.ServerAddr,
		Handler:      otelhttp.NewHandler(router, "ring-http"),
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}

	errChan := make(chan error, 1)
	go func() {
		log.Info("Server listening",
			zap.String("addr", cfg.ServerAddr),
			zap.Int("sinks", fanout.Len()),
			zap.Bool("cache", redisCache != nil))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- err
		}
	}()

	// Ожидаем сигнал завершения
	select {
	case <-ctx.Done():
	case err := <-errChan:
		return fmt.Errorf("server error: %w", err)
	}
	log.Info("Shutting down server...")

	// Контекст с таймаутом для завершения
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Warn("Server shutdown error", zap.Error(err))
	}

	log.Info("Server stopped")
	return nil
}

// restoreSettings возвращает сохраненные конфигурацию и предпочтения в ядро.
// Конфигурация применяется первой: она переносит лимиты в предпочтения
func restoreSettings(ctx context.Context, runner *wellness.Runner, st *store.Store, log *zap.Logger) error {
	if c, err := st.LoadConfig(); err == nil {
		if _, err := runner.ApplyConfig(ctx, c); err != nil {
			return err
		}
		log.Info("Restored device config")
	} else if !errors.Is(err, store.ErrNotFound) {
		return err
	}

	if p, err := st.LoadPreferences(); err == nil {
		if _, err := runner.SetPreferences(ctx, p); err != nil {
			return err
		}
		log.Info("Restored cue preferences")
	} else if !errors.Is(err, store.ErrNotFound) {
		return err
	}
	return nil
}

// connectRedis пробует подключиться к Redis с повторами, без Redis сервис работает без кэша
func connectRedis(cfg Config, log *zap.Logger) *cache.RedisCache {
	var err error
	for i := 0; i < 5; i++ {
		var c *cache.RedisCache
		c, err = cache.NewRedisCache(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, log)
		if err == nil {
			log.Info("Connected to Redis", zap.String("addr", cfg.RedisAddr))
			return c
		}
		log.Warn("Redis connection attempt failed", zap.Int("attempt", i+1), zap.Error(err))
		if i < 4 {
			time.Sleep(time.Duration(i+1) * time.Second)
		}
	}
	log.Warn("Failed to connect to Redis, running without cache", zap.Error(err))
	return nil
}

// loggingMiddleware логирует HTTP запросы
func loggingMiddleware(log *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			next.ServeHTTP(w, r)
			log.Debug("HTTP request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Duration("duration", time.Since(start)))
		})
	}
}

// updateMetricsLoop периодически обновляет метрики Prometheus
func updateMetricsLoop(ctx context.Context) {
	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			metrics.ActiveGoroutines.Set(float64(runtime.NumGoroutine()))
		case <-ctx.Done():
			return
		}
	}
}
