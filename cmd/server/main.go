package main

import (
	"flag"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/shrimpsizemoose/trekker/logger"

	"github.com/campuspointe/pointage/internal/app"
	"github.com/campuspointe/pointage/internal/handlers"
)

func main() {
	var configPath = flag.String("config", "config.toml", "Path to config file")
	flag.Parse()

	service, err := app.NewService(*configPath)
	if err != nil {
		logger.Error.Fatalf("Failed to load config: %v", err)
	}
	defer service.Close()

	if err := service.Store.ApplyMigrations(service.Config.Database.MigrationsDir); err != nil {
		logger.Error.Fatalf("Failed to apply migrations: %v", err)
	}

	attendanceHandler := handlers.NewAttendanceHandler(service)

	http.HandleFunc("POST /api/v1/attendance/reconcile", attendanceHandler.HandleReconcile)
	http.HandleFunc("POST /api/v1/attendance/reconcile/batch", attendanceHandler.HandleReconcileBatch)
	http.HandleFunc("GET /api/v1/attendance/daily", attendanceHandler.HandleReconcileDaily)
	http.HandleFunc("/api/v1/sessions", attendanceHandler.HandleSessions)
	http.HandleFunc("/api/v1/roster", attendanceHandler.HandleRoster)
	http.HandleFunc("/api/v1/overrides", attendanceHandler.HandleOverrides)
	http.HandleFunc("GET /api/v1/punches", attendanceHandler.HandlePunchPeek)

	http.Handle("/metrics", promhttp.Handler())

	logger.Info.Printf("Starting pointage server on %s", service.Config.Server.Port)
	logger.Debug.Println("Requiring headers:")
	for _, h := range service.Config.API.RequiredHeaders {
		logger.Debug.Printf("  %s: %s", h.Name, h.Value)
	}
	if err := http.ListenAndServe(service.Config.Server.Port, nil); err != nil {
		logger.Error.Fatalf("Pointage server failed: %v", err)
	}
}
