// Command generative-ai serves the fake generateContent API for local runs.
package main

import (
	"log/slog"
	"net/http"
	"os"
	"strconv"
	"time"

	"folio/internal/platform/logger"
	generativeai "folio/mocks/generative-ai"
)

func main() {
	log := logger.New(slog.LevelDebug, true)

	port := getEnv("PORT", "8082")
	latency, err := strconv.Atoi(getEnv("LATENCY_MS", "100"))
	if err != nil {
		log.Warn("invalid LATENCY_MS, using 100", "error", err)
		latency = 100
	}
	fake := generativeai.New(getEnv("API_KEY", generativeai.DefaultAPIKey), time.Duration(latency)*time.Millisecond, log)

	log.Info("fake generative AI API starting", "port", port, "latency_ms", latency)
	srv := &http.Server{Addr: ":" + port, Handler: fake.Handler(), ReadHeaderTimeout: 5 * time.Second}
	if err := srv.ListenAndServe(); err != nil {
		log.Error("server error", "error", err)
		os.Exit(1)
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
