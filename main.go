package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/bytedance/sonic"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/compress"
	"github.com/gofiber/fiber/v2/middleware/etag"
	"github.com/gofiber/fiber/v2/utils"

	"presensiku_backend/internals/configs"
	database "presensiku_backend/internals/databases"
	"presensiku_backend/internals/features/attendance/nonce"
	"presensiku_backend/internals/features/attendance/qrtoken"
	"presensiku_backend/internals/features/attendance/realtime"
	helper "presensiku_backend/internals/helpers"
	middlewares "presensiku_backend/internals/middlewares"
	routes "presensiku_backend/internals/route"
)

func main() {
	configs.LoadEnv()

	app := fiber.New(fiber.Config{
		// 🚀 JSON super cepat
		JSONEncoder:             sonic.Marshal,
		JSONDecoder:             sonic.Unmarshal,
		DisableStartupMessage:   true,
		ProxyHeader:             fiber.HeaderXForwardedFor,
		EnableTrustedProxyCheck: true,
		TrustedProxies:          []string{"0.0.0.0/0"},
		// Error service (fiber.NewError) dirender lewat envelope JSON.
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			return helper.FromFiberError(c, err)
		},
	})

	// ⚙️ middleware dasar + performa
	app.Use(compress.New(compress.Config{Level: compress.LevelDefault}))
	app.Use(etag.New())

	// 🔎 Request-ID + timing (observability ringan)
	app.Use(func(c *fiber.Ctx) error {
		id := c.Get("X-Request-ID")
		if id == "" {
			id = utils.UUID()
		}
		c.Set("X-Request-ID", id)
		c.Locals("reqid", id)
		start := time.Now()
		ctx, cancel := context.WithTimeout(c.Context(), 5*time.Second)
		defer cancel()
		c.SetUserContext(ctx)
		err := c.Next()
		dur := time.Since(start)
		log.Printf("[REQ] id=%s %s %s status=%d dur=%s", id, c.Method(), c.OriginalURL(), c.Response().StatusCode(), dur)
		return err
	})

	middlewares.SetupMiddlewares(app)

	// 🔌 DB connect + pool + warm-up
	database.ConnectDB()
	database.TunePool()
	database.WarmUpQueries()

	// 🧱 Replay guard: Redis kalau ada, fallback Postgres.
	rdb := database.ConnectRedis()
	nonceStore := nonce.Select(rdb, database.DB)

	sweepCtx, stopSweep := context.WithCancel(context.Background())
	defer stopSweep()
	if pg, ok := nonceStore.(*nonce.PostgresStore); ok {
		// Mode fallback butuh GC; Redis expire sendiri lewat EX.
		pg.StartSweeper(sweepCtx, configs.NonceTTL)
	}

	// 🎫 QR token manager (HS256, key terpisah dari auth token)
	tokens := qrtoken.NewManager(configs.QRJWTSecret, configs.QRTokenTTL)

	// 📡 Live attendance: buffer sesi + flush engine + websocket hub
	sessions := realtime.NewMemorySessionStore()
	flusher := realtime.NewFlusher(sessions, realtime.NewGormFlushWriter(database.DB), configs.FlushInterval)
	flusher.Start()
	hub := realtime.NewHub(sessions, flusher, configs.GeofenceDefaultRadius)

	// ✅ Routes
	routes.SetupRoutes(app, routes.Deps{
		DB:      database.DB,
		Tokens:  tokens,
		Nonces:  nonceStore,
		Hub:     hub,
		Flusher: flusher,
	})

	// 🔒 Keep-Alive & timeout koneksi server
	app.Server().ReadTimeout = 15 * time.Second
	app.Server().WriteTimeout = 30 * time.Second
	app.Server().IdleTimeout = 90 * time.Second

	port := os.Getenv("PORT")
	if port == "" {
		port = "3000"
	}

	// Start server non-blocking
	go func() {
		log.Printf("✅ Listening on :%s", port)
		if err := app.Listen("0.0.0.0:" + port); err != nil {
			log.Fatalf("server error: %v", err)
		}
	}()

	// graceful shutdown: stop server, flush terakhir, tutup pool
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = app.ShutdownWithContext(ctx)

	// Buffer sesi live jangan hilang saat deploy.
	flusher.Stop()

	if rdb != nil {
		_ = rdb.Close()
	}
	if sqlDB, err := database.DB.DB(); err == nil {
		_ = sqlDB.Close()
	}
}
