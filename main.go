package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"time"

	"github.com/google/uuid"
	gorilllaHandlers "github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"quizClashClient/handlers"
	"quizClashClient/internal/backend"
	"quizClashClient/internal/cache"
	"quizClashClient/internal/workers"
	"quizClashClient/middleware"
	"quizClashClient/services"

	_ "net/http/pprof"
)

var (
	backendClient   *backend.HTTPClient
	friendsService  *services.FriendsService
	quizService     *services.QuizService
	viewerID        uuid.UUID
	refreshInterval time.Duration
)

func init() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found")
	}

	apiURL := os.Getenv("QUIZCLASH_API_URL")
	if apiURL == "" {
		log.Fatal("QUIZCLASH_API_URL environment variable is not set")
	}

	apiToken := os.Getenv("QUIZCLASH_API_TOKEN")
	if apiToken == "" {
		log.Fatal("QUIZCLASH_API_TOKEN environment variable is not set")
	}

	rawUserID := os.Getenv("QUIZCLASH_USER_ID")
	if rawUserID == "" {
		log.Fatal("QUIZCLASH_USER_ID environment variable is not set")
	}
	var err error
	viewerID, err = uuid.Parse(rawUserID)
	if err != nil {
		log.Fatal("QUIZCLASH_USER_ID is not a valid UUID:", err)
	}

	refreshInterval = 60 * time.Second
	if raw := os.Getenv("REFRESH_INTERVAL_SECONDS"); raw != "" {
		seconds, err := strconv.Atoi(raw)
		if err != nil || seconds <= 0 {
			log.Fatal("REFRESH_INTERVAL_SECONDS must be a positive integer")
		}
		refreshInterval = time.Duration(seconds) * time.Second
	}

	backendClient = backend.NewHTTPClient(apiURL, apiToken)
	friendsService = services.NewFriendsService(viewerID, backendClient)
	quizService = services.NewQuizService(viewerID, backendClient)

	middleware.InitPrometheus()
	cache.InitMetrics()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := backendClient.Ping(ctx); err != nil {
		log.Fatal("Failed to reach QuizClash backend:", err)
	}
	log.Println("Connected to QuizClash backend")

	if err := friendsService.Refresh(ctx); err != nil {
		log.Printf("Warning: initial refresh failed, starting with an empty cache: %v", err)
	}
}

func main() {
	workerCtx, stopWorkers := context.WithCancel(context.Background())
	defer stopWorkers()

	workers.StartRefreshWorker(workerCtx, friendsService, refreshInterval)

	friendsHandler := handlers.NewFriendsHandler(friendsService)
	quizHandler := handlers.NewQuizHandler(quizService)

	r := mux.NewRouter()

	go middleware.CleanupVisitors()

	r.Use(middleware.RateLimitMiddleware)
	r.Use(middleware.MonitorMiddleware)

	r.Handle("/metrics", middleware.BasicAuthMiddleware(promhttp.Handler()))
	r.PathPrefix("/debug/pprof/").Handler(middleware.PprofSecurityMiddleware(http.DefaultServeMux))

	r.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		if err := backendClient.Ping(ctx); err != nil {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte(`{"status": "unhealthy", "error": "backend unreachable"}`))
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status": "healthy", "service": "quizclash-companion"}`))
	}).Methods("GET")

	api := r.PathPrefix("/api/v1").Subrouter()

	api.HandleFunc("/friends", friendsHandler.GetFriends).Methods("GET")
	api.HandleFunc("/friends/requests", friendsHandler.SendFriendRequest).Methods("POST")
	api.HandleFunc("/friends/requests/incoming", friendsHandler.GetPendingIncoming).Methods("GET")
	api.HandleFunc("/friends/requests/outgoing", friendsHandler.GetPendingOutgoing).Methods("GET")
	api.HandleFunc("/friends/requests/{requestID}", friendsHandler.RespondToFriendRequest).Methods("PUT")
	api.HandleFunc("/friends/requests/{requestID}", friendsHandler.CancelFriendRequest).Methods("DELETE")
	api.HandleFunc("/friends/stats", friendsHandler.GetFriendshipStats).Methods("GET")
	api.HandleFunc("/friends/status", friendsHandler.CheckFriendshipStatus).Methods("GET")
	api.HandleFunc("/friends/leaderboard", friendsHandler.GetFriendsLeaderboard).Methods("GET")
	api.HandleFunc("/friends/refresh", friendsHandler.Refresh).Methods("POST")
	api.HandleFunc("/friends/{userID}", friendsHandler.Unfriend).Methods("DELETE")

	api.HandleFunc("/users/search", friendsHandler.SearchUsers).Methods("GET")

	api.HandleFunc("/quiz-results", quizHandler.SubmitQuizResult).Methods("POST")
	api.HandleFunc("/score-profile", quizHandler.GetScoreProfile).Methods("GET")

	// CORS configuration
	corsHandler := gorilllaHandlers.CORS(
		gorilllaHandlers.AllowedOrigins([]string{"*"}),
		gorilllaHandlers.AllowedMethods([]string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}),
		gorilllaHandlers.AllowedHeaders([]string{"Content-Type", "Authorization", "X-Pprof-Secret"}),
		gorilllaHandlers.ExposedHeaders([]string{"Content-Length"}),
		gorilllaHandlers.AllowCredentials(),
	)

	port := os.Getenv("PORT")
	if port == "" {
		port = "4444"
	}
	port = ":" + port

	server := http.Server{
		Addr:         port,
		Handler:      corsHandler(r),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		log.Printf("Starting companion daemon for user %s on port %s", viewerID, port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("Error starting server:", err)
		}
	}()

	// Graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt)

	sig := <-sigChan
	log.Println("Got signal:", sig)

	stopWorkers()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server shutdown error: %v", err)
	}

	log.Println("Server shutdown complete")
}
