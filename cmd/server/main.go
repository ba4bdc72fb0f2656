package main

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/shrimpsizemoose/trekker/logger"

	"github.com/sqlroom/sqlroom/internal/app"
	"github.com/sqlroom/sqlroom/internal/handlers"
)

func main() {
	service, err := app.NewService("config.toml")
	if err != nil {
		logger.Error.Fatalf("Failed to load config: %v", err)
	}
	defer service.Close()

	janitor, err := app.StartJanitor(service)
	if err != nil {
		logger.Error.Fatalf("Failed to start janitor: %v", err)
	}
	if janitor != nil {
		defer janitor.Stop()
	}

	queryHandler := handlers.NewQueryHandler(service)
	schemaHandler := handlers.NewSchemaHandler(service)

	http.HandleFunc("POST /api/v1/questions/{questionID}/query", queryHandler.HandleRunQuery)
	http.HandleFunc("POST /api/v1/assignments/{assignmentID}/questions/{questionID}/submit", queryHandler.HandleGradeSubmission)
	http.HandleFunc("POST /api/v1/playground/query", queryHandler.HandlePlayground)
	http.HandleFunc("GET /api/v1/playground/databases", queryHandler.HandleAvailableDatabases)

	http.HandleFunc("GET /api/v1/schemas", schemaHandler.HandleList)
	http.HandleFunc("POST /api/v1/schemas/{schemaID}/deploy", schemaHandler.HandleDeploy)
	http.HandleFunc("POST /api/v1/schemas/{schemaID}/teardown", schemaHandler.HandleTeardown)

	http.Handle("/metrics", promhttp.Handler())

	logger.Info.Printf("Starting sqlroom server on %s", service.Config.Server.Port)
	logger.Debug.Println("Requiring headers:")
	for _, h := range service.Config.API.RequiredHeaders {
		logger.Debug.Printf("  %s: %s", h.Name, h.Value)
	}
	if err := http.ListenAndServe(service.Config.Server.Port, nil); err != nil {
		logger.Error.Fatalf("sqlroom server failed: %v", err)
	}
}
