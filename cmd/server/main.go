package main // Entry point package

import (
	"log" // Logging library
	"os"
	"time"

	"github.com/joho/godotenv"    // .env loader for local development
	"github.com/labstack/echo/v4" // Echo web framework
	em "github.com/labstack/echo/v4/middleware"

	"github.com/acermak/user-management-api/internal/config"
	"github.com/acermak/user-management-api/internal/database"
	"github.com/acermak/user-management-api/internal/handler"
	"github.com/acermak/user-management-api/internal/mail"
	"github.com/acermak/user-management-api/internal/repository"
	"github.com/acermak/user-management-api/internal/router"
	"github.com/acermak/user-management-api/internal/security"
	"github.com/acermak/user-management-api/internal/store"
)

func main() {
	// Load .env when present; in production the environment is real.
	if err := godotenv.Load(); err != nil {
		log.Printf("no .env file loaded: %v", err)
	}

	cfg := config.Load()
	policies := config.LoadRateLimitPolicies()

	db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		log.Fatalf("database: %v", err)
	}
	defer db.Close()

	// CSRF entries and rate-limit counters live in Redis when one is
	// configured and reachable, so they are shared across instances and
	// survive restarts.  Otherwise each concern gets its own in-process
	// store with a sweep interval tuned to its entry lifetime.
	var csrfStore, rateStore store.Store
	if rdb := config.NewRedisClient(); rdb != nil {
		log.Printf("using redis-backed security stores")
		csrfStore = store.NewRedis(rdb, "csrf:")
		rateStore = store.NewRedis(rdb, "rl:")
	} else {
		log.Printf("using in-memory security stores")
		csrfMem := store.NewMemory(30 * time.Minute)
		rateMem := store.NewMemory(5 * time.Minute)
		defer csrfMem.Stop()
		defer rateMem.Stop()
		csrfStore, rateStore = csrfMem, rateMem
	}

	csrfGuard := security.NewCSRFGuard(csrfStore, cfg.CSRFTTL)
	limiter := security.NewLimiter(rateStore)

	users := repository.NewUserRepo(db)
	activity := repository.NewActivityRepo(db)

	// Email goes through the broker when one is configured; the
	// consumer drains the queue in-process.  Without a broker the
	// log mailer records what would have been sent.
	var mailer mail.Mailer
	if os.Getenv("RABBITMQ_URL") != "" || os.Getenv("AMQP_URL") != "" {
		mailer = mail.NewQueueMailer()
		go func() {
			if err := mail.StartEmailConsumer(cfg.FrontendURL); err != nil {
				log.Printf("email consumer stopped: %v", err)
			}
		}()
	} else {
		log.Printf("no message broker configured, using log mailer")
		mailer = mail.NewLogMailer()
	}

	e := echo.New()
	e.HideBanner = true
	e.HTTPErrorHandler = router.NewHTTPErrorHandler(cfg.IsProd())
	e.Use(em.Logger())
	e.Use(em.Recover())
	e.Use(em.CORSWithConfig(em.CORSConfig{
		AllowOrigins:     []string{cfg.FrontendURL},
		AllowHeaders:     []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAuthorization, "X-CSRF-Token"},
		AllowCredentials: true,
	}))

	router.Register(e, router.Deps{
		Cfg:      cfg,
		Policies: policies,
		Limiter:  limiter,
		CSRF:     csrfGuard,
		Users:    users,
		Health:   handler.NewHealthHandler(db, cfg.Env),
		Auth:     handler.NewAuthHandler(cfg, users, activity, mailer, csrfGuard),
		User:     handler.NewUserHandler(cfg, users, activity),
		Activity: handler.NewActivityHandler(activity),
		Admin:    handler.NewAdminHandler(users, activity, limiter, policies, csrfGuard),
	})

	addr := ":" + cfg.Port
	log.Printf("listening on %s (env=%s)", addr, cfg.Env)

	if err := e.Start(addr); err != nil {
		log.Fatal(err)
	}
}
