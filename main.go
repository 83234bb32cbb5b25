package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	clerk "github.com/clerk/clerk-sdk-go/v2"
	gorilllaHandlers "github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"dietChallengeAPI/handlers"
	"dietChallengeAPI/internal/config"
	"dietChallengeAPI/internal/database"
	"dietChallengeAPI/internal/notification"
	"dietChallengeAPI/internal/workers"
	"dietChallengeAPI/middleware"
	"dietChallengeAPI/services"

	_ "net/http/pprof"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal("Failed to load configuration: ", err)
	}

	clerk.SetKey(cfg.Clerk.SecretKey)
	log.Println("Clerk initialized successfully")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	dbPool, err := database.Connect(connectCtx, cfg.DatabaseURL)
	cancel()
	if err != nil {
		log.Fatal("Failed to connect to database: ", err)
	}
	defer func() {
		log.Println("Closing database connection pool...")
		dbPool.Close()
	}()
	log.Println("Successfully connected to database")

	migrateCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	err = database.Migrate(migrateCtx, dbPool)
	cancel()
	if err != nil {
		log.Fatal("Failed to migrate database: ", err)
	}

	middleware.InitPrometheus()

	notificationService := services.NewNotificationService(dbPool)
	dispatcher := services.NewNotificationDispatcher(notificationService, 5)
	defer dispatcher.Stop()

	fcmService, err := notification.NewFCMService(ctx, cfg.FCM.CredentialsJSON, cfg.FCM.CredentialsFile)
	if err != nil {
		log.Printf("Warning: Could not initialize FCM: %v", err)
	} else {
		dispatcher.SetPushProvider(fcmService)
		log.Println("FCM Push Provider initialized successfully")
	}

	profileService := services.NewProfileService(dbPool, services.NewClerkDirectory())
	paymentService := services.NewPaymentService(dbPool, services.NewStripeGateway(cfg.Stripe.SecretKey), cfg.Stripe.Currency)
	challengeService := services.NewChallengeService(dbPool, dispatcher).WithIntentVerifier(paymentService)
	contactService := services.NewContactService(dbPool)

	go middleware.CleanupVisitors(ctx)
	workers.StartSweepWorker(ctx, cfg.Workers.SweepInterval, challengeService, paymentService)
	workers.StartReminderWorker(ctx, cfg.Workers.ReminderInterval, notificationService, dispatcher)

	server := http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      newRouter(cfg, dbPool, profileService, challengeService, paymentService, notificationService, contactService),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		log.Printf("Starting server on port %s", cfg.Port)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("Error starting server:", err)
		}
	}()

	<-ctx.Done()
	log.Println("Shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server shutdown error: %v", err)
	}

	log.Println("Server shutdown complete")
}

func newRouter(
	cfg config.Config,
	dbPool *pgxpool.Pool,
	profileService *services.ProfileService,
	challengeService *services.ChallengeService,
	paymentService *services.PaymentService,
	notificationService *services.NotificationService,
	contactService *services.ContactService,
) http.Handler {
	profileHandler := handlers.NewProfileHandler(profileService)
	challengeHandler := handlers.NewChallengeHandler(challengeService, profileService)
	paymentHandler := handlers.NewPaymentHandler(paymentService)
	notificationHandler := handlers.NewNotificationHandler(notificationService)
	contactHandler := handlers.NewContactHandler(contactService)
	webhookHandler := handlers.NewWebhookHandler(profileService, paymentService, cfg.Clerk.WebhookSecret, cfg.Stripe.WebhookSecret)

	r := mux.NewRouter()
	r.Use(middleware.RateLimitMiddleware)
	r.Use(middleware.MonitorMiddleware)

	r.Handle("/metrics", middleware.BasicAuthMiddleware(cfg.Metrics.User, cfg.Metrics.Pass)(promhttp.Handler()))
	r.PathPrefix("/debug/pprof/").Handler(middleware.PprofSecurityMiddleware(cfg.Metrics.PprofSecret)(http.DefaultServeMux))

	r.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		w.Header().Set("Content-Type", "application/json")
		if err := dbPool.Ping(ctx); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte(`{"status": "unhealthy", "error": "database connection failed"}`))
			return
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status": "healthy", "service": "diet-challenge-api"}`))
	}).Methods("GET")

	r.HandleFunc("/webhooks/clerk", webhookHandler.HandleClerkWebhook).Methods("POST")
	r.HandleFunc("/webhooks/stripe", webhookHandler.HandleStripeWebhook).Methods("POST")

	// -------------------------------------------------------------------------
	// PROTECTED ROUTES (REQUIRE AUTH HEADER)
	// -------------------------------------------------------------------------
	protected := r.PathPrefix("/api/v1").Subrouter()
	protected.Use(middleware.ClerkAuthMiddleware)

	protected.HandleFunc("/profile", profileHandler.GetProfile).Methods("GET")
	protected.HandleFunc("/profile/settings", profileHandler.UpdateSettings).Methods("PUT")
	protected.HandleFunc("/profile/plans", profileHandler.GetPlans).Methods("GET")
	protected.HandleFunc("/profile/unlock-notification/ack", profileHandler.AckUnlockNotification).Methods("POST")

	protected.HandleFunc("/habits", challengeHandler.ListHabits).Methods("GET")
	protected.HandleFunc("/habits/custom", challengeHandler.CreateCustomHabit).Methods("POST")

	protected.HandleFunc("/challenges", challengeHandler.CreateChallenge).Methods("POST")
	protected.HandleFunc("/challenges/fee-suggestion", challengeHandler.FeeSuggestion).Methods("GET")
	protected.HandleFunc("/challenges/history", challengeHandler.GetHistory).Methods("GET")
	protected.HandleFunc("/challenges/active", challengeHandler.GetActiveChallenge).Methods("GET")
	protected.HandleFunc("/challenges/active/dashboard", challengeHandler.GetDashboard).Methods("GET")
	protected.HandleFunc("/challenges/active/calendar", challengeHandler.GetCalendar).Methods("GET")
	protected.HandleFunc("/challenges/active/records/{date}", challengeHandler.SaveDailyRecord).Methods("PUT")
	protected.HandleFunc("/challenges/active/finish", challengeHandler.FinishChallenge).Methods("POST")
	protected.HandleFunc("/challenges/{id}/refund", paymentHandler.ProcessRefund).Methods("POST")

	protected.HandleFunc("/payments/intent", paymentHandler.CreatePaymentIntent).Methods("POST")
	protected.HandleFunc("/payments/intent/save", paymentHandler.SavePaymentIntent).Methods("POST")

	protected.HandleFunc("/notifications/register-device", notificationHandler.RegisterDevice).Methods("POST")

	protected.HandleFunc("/contact", contactHandler.CreateMessage).Methods("POST")

	corsHandler := gorilllaHandlers.CORS(
		gorilllaHandlers.AllowedOrigins([]string{"*"}),
		gorilllaHandlers.AllowedMethods([]string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}),
		gorilllaHandlers.AllowedHeaders([]string{"Content-Type", "Authorization", "X-Pprof-Secret"}),
		gorilllaHandlers.ExposedHeaders([]string{"Content-Length"}),
		gorilllaHandlers.AllowCredentials(),
	)
	return corsHandler(r)
}
