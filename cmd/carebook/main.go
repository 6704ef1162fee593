package main

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/carebook/carebook/internal/booking"
	"github.com/carebook/carebook/internal/handlers"
	"github.com/carebook/carebook/internal/outbox"
	"github.com/carebook/carebook/internal/payments"
	"github.com/carebook/carebook/internal/storage"
	"github.com/carebook/carebook/libs/auth"
	"github.com/carebook/carebook/libs/config"
	"github.com/carebook/carebook/libs/db"
	"github.com/carebook/carebook/libs/httpx"
	"github.com/carebook/carebook/libs/kafkax"
	otelx "github.com/carebook/carebook/libs/otel"
	"github.com/carebook/carebook/libs/runtime"
)

func main() {
	service := config.String("SERVICE_NAME", "carebook")
	port, err := config.Port("PORT", "8080")
	if err != nil {
		panic(err)
	}
	logger := runtime.NewLogger(service)

	ctx, stop := runtime.SignalContext()
	defer stop()

	otelShutdown, err := otelx.Setup(ctx, otelx.ConfigFromEnv(service))
	if err != nil {
		logger.Error("otel setup failed", "err", err)
	} else {
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = otelShutdown(shutdownCtx)
		}()
	}

	dbURL, err := config.RequiredString("DATABASE_URL")
	if err != nil {
		panic(err)
	}
	jwtSecret, err := config.RequiredString("JWT_SECRET")
	if err != nil {
		panic(err)
	}

	pool, err := db.Open(ctx, dbURL, int32(config.Int("DB_MAX_CONNS", 10)))
	if err != nil {
		logger.Error("db connection failed", "err", err)
		panic(err)
	}
	defer pool.Close()

	if config.Bool("DB_AUTO_MIGRATE", true) {
		if err := storage.Migrate(ctx, pool); err != nil {
			logger.Error("schema migration failed", "err", err)
			panic(err)
		}
	}

	patientRepo := storage.NewPatientRepository(pool)
	doctorRepo := storage.NewDoctorRepository(pool)
	outboxRepo := outbox.NewRepository(pool)
	apptRepo := storage.NewAppointmentRepository(pool, outboxRepo, doctorRepo, patientRepo)
	svc := booking.NewService(apptRepo, logger)

	kafkaBrokers := config.String("KAFKA_BROKERS", "")
	outboxPublisher := outbox.NewPublisher(pool, outboxRepo, logger, outbox.PublisherConfig{
		Brokers:   kafkaBrokers,
		PollEvery: 2 * time.Second,
		BatchSize: 50,
	})
	go outboxPublisher.Run(ctx)

	var provider payments.Provider = payments.Disabled{}
	if key := config.String("STRIPE_SECRET_KEY", ""); strings.TrimSpace(key) != "" {
		provider = payments.NewStripeProvider(payments.StripeConfig{
			SecretKey:  key,
			SuccessURL: config.String("STRIPE_SUCCESS_URL", "http://localhost:3000/payment/success"),
			CancelURL:  config.String("STRIPE_CANCEL_URL", "http://localhost:3000/payment/cancel"),
			Currency:   config.String("STRIPE_CURRENCY", "usd"),
		})
	} else {
		logger.Warn("stripe checkout disabled (STRIPE_SECRET_KEY missing)")
	}

	admin := handlers.AdminCredentials{
		Email:    config.String("ADMIN_EMAIL", ""),
		Password: config.String("ADMIN_PASSWORD", ""),
	}
	tokenTTL := time.Duration(config.Int("TOKEN_TTL_HOURS", 24)) * time.Hour

	authHandler := handlers.NewAuthHandler(patientRepo, doctorRepo, admin, logger, jwtSecret, tokenTTL)
	patientHandler := handlers.NewPatientHandler(svc, apptRepo, patientRepo, provider, logger)
	doctorHandler := handlers.NewDoctorHandler(svc, apptRepo, doctorRepo, logger)
	adminHandler := handlers.NewAdminHandler(apptRepo, doctorRepo, logger)
	videoHandler := handlers.NewVideoHandler(svc)
	stripeWebhook := handlers.NewStripeWebhookHandler(svc, logger,
		config.String("STRIPE_WEBHOOK_SECRET", ""),
		time.Duration(config.Int("STRIPE_WEBHOOK_TOLERANCE_SECONDS", 300))*time.Second,
	)

	readyChecks := []runtime.ReadyCheck{
		{Name: "db", Check: db.ReadyCheck(pool)},
	}
	if strings.TrimSpace(kafkaBrokers) != "" {
		readyChecks = append(readyChecks, runtime.ReadyCheck{Name: "kafka", Check: kafkax.ReadyCheck(kafkaBrokers)})
	}
	mux := runtime.NewBaseMuxWithReady(readyChecks...)

	asPatient := func(h http.HandlerFunc) http.Handler { return handlers.RequireRole(h, jwtSecret, auth.RolePatient) }
	asDoctor := func(h http.HandlerFunc) http.Handler { return handlers.RequireRole(h, jwtSecret, auth.RoleDoctor) }
	asAdmin := func(h http.HandlerFunc) http.Handler { return handlers.RequireRole(h, jwtSecret, auth.RoleAdmin) }
	cancel := handlers.CancelAppointment(svc)

	mux.HandleFunc("/api/patient/register", authHandler.PatientRegister)
	mux.HandleFunc("/api/patient/login", authHandler.PatientLogin)
	mux.HandleFunc("/api/patient/slots", patientHandler.Slots)
	mux.Handle("/api/patient/profile", asPatient(patientHandler.Profile))
	mux.Handle("/api/patient/update-profile", asPatient(patientHandler.UpdateProfile))
	mux.Handle("/api/patient/book-appointment", asPatient(patientHandler.Book))
	mux.Handle("/api/patient/appointments", asPatient(patientHandler.Appointments))
	mux.Handle("/api/patient/cancel-appointment", asPatient(cancel))
	mux.Handle("/api/patient/pay", asPatient(patientHandler.Pay))
	mux.Handle("/api/patient/video/status", asPatient(videoHandler.Status))
	mux.Handle("/api/patient/video/generate-room", asPatient(videoHandler.GenerateRoom))
	mux.Handle("/api/patient/video/start-call", asPatient(videoHandler.StartCall))
	mux.Handle("/api/patient/video/end-call", asPatient(videoHandler.EndCall))

	mux.HandleFunc("/api/doctor/login", authHandler.DoctorLogin)
	mux.HandleFunc("/api/doctor/list", doctorHandler.List)
	mux.Handle("/api/doctor/profile", asDoctor(doctorHandler.Profile))
	mux.Handle("/api/doctor/update-profile", asDoctor(doctorHandler.UpdateProfile))
	mux.Handle("/api/doctor/change-availability", asDoctor(doctorHandler.ChangeAvailability))
	mux.Handle("/api/doctor/appointments", asDoctor(doctorHandler.Appointments))
	mux.Handle("/api/doctor/dashboard", asDoctor(doctorHandler.Dashboard))
	mux.Handle("/api/doctor/complete-appointment", asDoctor(doctorHandler.CompleteAppointment))
	mux.Handle("/api/doctor/cancel-appointment", asDoctor(cancel))
	mux.Handle("/api/doctor/video/status", asDoctor(videoHandler.Status))
	mux.Handle("/api/doctor/video/generate-room", asDoctor(videoHandler.GenerateRoom))
	mux.Handle("/api/doctor/video/start-call", asDoctor(videoHandler.StartCall))
	mux.Handle("/api/doctor/video/end-call", asDoctor(videoHandler.EndCall))

	mux.HandleFunc("/api/admin/login", authHandler.AdminLogin)
	mux.Handle("/api/admin/add-doctor", asAdmin(adminHandler.AddDoctor))
	mux.Handle("/api/admin/all-doctors", asAdmin(adminHandler.AllDoctors))
	mux.Handle("/api/admin/change-availability", asAdmin(adminHandler.ChangeAvailability))
	mux.Handle("/api/admin/appointments", asAdmin(adminHandler.Appointments))
	mux.Handle("/api/admin/cancel-appointment", asAdmin(cancel))
	mux.Handle("/api/admin/dashboard", asAdmin(adminHandler.Dashboard))

	mux.Handle("/api/payments/webhooks/stripe", stripeWebhook)

	rateLimit := rateLimitMiddleware(ctx, logger)
	httpHandler := httpx.Chain(mux,
		httpx.WithRequestID,
		httpx.WithAccessLog(logger),
		httpx.WithCORS(httpx.CORSPolicy{
			AllowedOrigins: strings.Split(config.String("CORS_ALLOWED_ORIGINS", "*"), ","),
			AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
			AllowedHeaders: []string{"Authorization", "Content-Type"},
		}),
		httpx.WithBodyLimit(1<<20),
		httpx.WithTimeout(30*time.Second),
		rateLimit,
	)
	httpHandler = otelhttp.NewHandler(httpHandler, service)

	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           httpHandler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("http server starting", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server error", "err", err)
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelShutdown()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "err", err)
	}
	logger.Info("http server stopped")
}

// rateLimitMiddleware prefers the shared Redis fixed-window limiter and
// falls back to the in-process one when no Redis is configured.
func rateLimitMiddleware(ctx context.Context, logger *slog.Logger) httpx.Middleware {
	limit := config.Int("RATE_LIMIT_REQUESTS", 120)
	window := time.Duration(config.Int("RATE_LIMIT_WINDOW_SECONDS", 60)) * time.Second

	redisURL := strings.TrimSpace(config.String("REDIS_URL", ""))
	if redisURL == "" {
		return httpx.NewRateLimiter(limit, window).Middleware()
	}

	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		logger.Error("invalid REDIS_URL; using in-process rate limiter", "err", err)
		return httpx.NewRateLimiter(limit, window).Middleware()
	}
	rdb := redis.NewClient(opts)
	if err := rdb.Ping(ctx).Err(); err != nil {
		logger.Warn("redis unreachable at startup; limiter will fail open", "err", err)
	}
	return httpx.NewRedisRateLimiter(rdb, limit, window, "carebook:ratelimit").Middleware(logger, true)
}
