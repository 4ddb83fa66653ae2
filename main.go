package main

import (
	"log"
	"time"

	"github.com/pocketbase/pocketbase"
	"github.com/pocketbase/pocketbase/core"

	"github.com/oculab/gazetrack/internal/config"
	"github.com/oculab/gazetrack/internal/handlers"
	"github.com/oculab/gazetrack/internal/services"
	_ "github.com/oculab/gazetrack/pb_migrations"
	"github.com/oculab/gazetrack/utils"
)

func main() {

	pb := pocketbase.New()

	// load/store config
	cfg := utils.LoadConfig()
	pb.Store().Set("cfg", cfg)

	limits, err := config.LoadLimits(cfg.LimitsFile)
	if err != nil {
		log.Fatal(err)
	}
	if len(cfg.AllowedOrigins) > 0 {
		limits.AllowedOrigins = cfg.AllowedOrigins
	}

	metrics := services.NewMetrics()
	registry := services.NewRegistry()
	rooms := services.NewRoomStore(metrics)
	hub := services.NewHub(metrics, limits)
	store := services.NewSessionStore(pb)
	notifier := services.NewNotifier(registry, hub)
	router := services.NewRouter(store, rooms, hub, metrics)
	hub.OnMessage(router.Route)

	go hub.Run()

	// Rooms that never receive an end_session are swept on a TTL.
	go func() {
		ticker := time.NewTicker(time.Duration(limits.RoomSweepEvery))
		defer ticker.Stop()
		for range ticker.C {
			if n := rooms.EvictIdle(time.Duration(limits.RoomIdleTTL)); n > 0 {
				log.Printf("evicted %d idle session rooms", n)
			}
		}
	}()

	// Add HTTP routes
	pb.OnServe().BindFunc(func(se *core.ServeEvent) error {
		se.Router.Bind(utils.AuthCookieMiddleware())

		ws := handlers.NewWSHandler(hub, registry, metrics, limits)
		sessions := handlers.NewSessionHandlers(store, notifier)

		se.Router.GET("/ws", ws.HandleWebSocket)

		g := se.Router.Group("/api/gaze")
		g.POST("/sessions", sessions.Create)
		g.GET("/sessions", sessions.List)
		g.GET("/sessions/mine", sessions.Mine)
		g.POST("/sessions/{id}/invite", sessions.Invite)

		se.Router.GET("/metrics", handlers.HandleMetrics(hub))
		se.Router.GET("/healthz", handlers.HandleHealth(hub))

		return se.Next()
	})

	if err := pb.Start(); err != nil {
		log.Fatal(err)
	}
}
