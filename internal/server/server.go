package server

import (
	"log/slog"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/netlinkisp/ispadmin/internal/config"
	"github.com/netlinkisp/ispadmin/internal/domain"
	"github.com/netlinkisp/ispadmin/internal/handler"
	"github.com/netlinkisp/ispadmin/internal/middleware"
	"github.com/netlinkisp/ispadmin/internal/repository"
	"github.com/netlinkisp/ispadmin/internal/service"
	"github.com/netlinkisp/ispadmin/internal/telemetry"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"
)

// AppDependencies holds the dependencies required to start the application
type AppDependencies struct {
	Config      *config.Config
	MongoDB     *mongo.Database
	RedisClient *redis.Client
	// Files stores customer documents; nil disables uploads.
	Files   domain.FileRepository
	Clock   domain.Clock
	Logger  *slog.Logger
	Metrics *telemetry.ReconcilerMetrics
}

// Services is the wired service layer shared by the HTTP app, the scheduler and the CLI
type Services struct {
	Auth          *service.AuthService
	Tokens        *service.TokenService
	Branches      *service.BranchService
	Customers     *service.CustomerService
	Tickets       *service.TicketService
	Subscriptions *service.SubscriptionService
	Dashboard     *service.DashboardService
	Reconciler    *service.Reconciler

	Packages *repository.MongoPackageRepository
}

// NewServices builds repositories and services from deps
func NewServices(deps AppDependencies) (*Services, error) {
	cfg := deps.Config
	clock := deps.Clock
	if clock == nil {
		clock = domain.RealClock{}
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	loc, err := cfg.Reconciler.Location()
	if err != nil {
		return nil, err
	}

	cache := repository.NewRedisCacheRepository(deps.RedisClient)
	userRepo := repository.NewMongoUserRepository(deps.MongoDB)
	branchRepo := repository.NewMongoBranchRepository(deps.MongoDB)
	customerRepo := repository.NewMongoCustomerRepository(deps.MongoDB)
	ticketRepo := repository.NewMongoTicketRepository(deps.MongoDB)
	subRepo := repository.NewMongoSubscriptionRepository(deps.MongoDB)
	refreshRepo := repository.NewMongoRefreshTokenRepository(deps.MongoDB)
	mongoPackages := repository.NewMongoPackageRepository(deps.MongoDB)
	packageRepo := repository.NewCachedPackageRepository(mongoPackages, cache)
	reports := repository.NewRedisReportStore(cache)

	tokens := service.NewTokenService(cfg.JWT, refreshRepo, userRepo, clock)

	reconciler := service.NewReconciler(service.ReconcilerDeps{
		Repo:     subRepo,
		Notifier: repository.NewRedisExpiryPublisher(deps.RedisClient),
		Lock:     repository.NewRedisRunLock(deps.RedisClient),
		Reports:  reports,
		Cache:    cache,
		Metrics:  deps.Metrics,
		Logger:   logger,
	}, service.ReconcilerOptions{
		Location:       loc,
		HorizonDays:    cfg.Reconciler.HorizonDays,
		Workers:        cfg.Reconciler.Workers,
		RunTimeout:     cfg.Reconciler.RunTimeout,
		CatchUpOverdue: cfg.Reconciler.CatchUpOverdue,
		CompareAndSwap: cfg.Reconciler.CompareAndSwap,
		LockTTL:        cfg.Reconciler.LockTTL,
	})

	return &Services{
		Auth:          service.NewAuthService(userRepo, branchRepo, tokens, clock, cfg.JWT.BcryptCost),
		Tokens:        tokens,
		Branches:      service.NewBranchService(branchRepo, cache),
		Customers:     service.NewCustomerService(customerRepo, branchRepo, deps.Files, cache, clock, cfg.JWT.BcryptCost),
		Tickets:       service.NewTicketService(ticketRepo, cache, clock),
		Subscriptions: service.NewSubscriptionService(subRepo, customerRepo, packageRepo, reports, cache, clock),
		Dashboard:     service.NewDashboardService(branchRepo, userRepo, customerRepo, subRepo, ticketRepo, cache),
		Reconciler:    reconciler,
		Packages:      mongoPackages,
	}, nil
}

// NewApp creates and configures the Fiber application with the given dependencies
func NewApp(deps AppDependencies, svc *Services) *fiber.App {
	cfg := deps.Config
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	authHandler := handler.NewAuthHandler(svc.Auth, svc.Tokens, cfg.JWT.RefreshTokenExpiry, cfg.OTEL.Environment == "production")
	superAdminHandler := handler.NewSuperAdminHandler(svc.Branches, svc.Dashboard, svc.Auth)
	customerHandler := handler.NewCustomerHandler(svc.Customers, svc.Dashboard)
	ticketHandler := handler.NewTicketHandler(svc.Tickets)
	subscriptionHandler := handler.NewSubscriptionHandler(svc.Subscriptions, svc.Reconciler, deps.Clock)

	app := fiber.New(fiber.Config{
		AppName:      "ISP Admin API",
		BodyLimit:    int(cfg.Server.MaxUploadSizeMB * 1024 * 1024),
		ErrorHandler: handler.ErrorHandler(logger),
	})

	// Global middleware
	app.Use(recover.New())
	app.Use(fiberlogger.New())
	app.Use(telemetry.FiberMiddleware("/health"))
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowHeaders: "Origin, Content-Type, Accept, Authorization, X-Correlation-ID",
		AllowMethods: "GET, POST, PUT, PATCH, DELETE, OPTIONS",
	}))

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":  "healthy",
			"service": "isp-admin",
		})
	})

	v1 := app.Group("/v1")

	// Auth endpoints (public)
	auth := v1.Group("/auth")
	auth.Post("/login", authHandler.Login)
	auth.Post("/refresh", authHandler.RefreshToken)
	auth.Post("/logout", authHandler.Logout)

	verify := middleware.VerifyAccessToken(cfg.JWT.Secret)
	idempotent := middleware.IdempotencyMiddleware(deps.RedisClient, cfg.Server.IdempotencyTTL, logger)

	// ===========================================
	// SUPERADMIN API - /v1/superadmin/*
	// ===========================================
	sa := v1.Group("/superadmin", verify, middleware.AuthorizeRole(domain.RoleSuperAdmin), idempotent)

	sa.Get("/dashboard", superAdminHandler.Dashboard)
	sa.Get("/analytics", superAdminHandler.Analytics)

	saBranches := sa.Group("/branches")
	saBranches.Get("/", superAdminHandler.ListBranches)
	saBranches.Post("/", superAdminHandler.CreateBranch)
	saBranches.Get("/:id", superAdminHandler.GetBranch)
	saBranches.Patch("/:id", superAdminHandler.UpdateBranch)
	saBranches.Delete("/:id", superAdminHandler.DeleteBranch)

	sa.Post("/admins", superAdminHandler.CreateBranchAdmin)

	saTickets := sa.Group("/tickets")
	saTickets.Get("/", ticketHandler.List)
	saTickets.Get("/stats", ticketHandler.Stats)
	saTickets.Get("/:id", ticketHandler.Get)
	saTickets.Patch("/:id/status", ticketHandler.UpdateStatus)

	sa.Get("/subscriptions/analytics", subscriptionHandler.Stats)
	sa.Post("/reconciliations", subscriptionHandler.Reconcile)
	sa.Get("/reconciliations/last", subscriptionHandler.LastReconciliation)

	// ===========================================
	// BRANCH ADMIN API - /v1/admin/* (scoped to the admin's branch)
	// ===========================================
	admin := v1.Group("/admin", verify, middleware.AuthorizeRole(domain.RoleAdmin), middleware.BranchScope(), idempotent)

	admin.Get("/dashboard", customerHandler.Dashboard)
	admin.Get("/packages", subscriptionHandler.Packages)

	customers := admin.Group("/customers")
	customers.Get("/", customerHandler.List)
	customers.Post("/", customerHandler.Create)
	customers.Get("/:id", customerHandler.Get)
	customers.Put("/:id", customerHandler.Update)
	customers.Post("/:id/documents", customerHandler.UploadDocuments)
	customers.Get("/:id/subscriptions", subscriptionHandler.ListByCustomer)

	adminTickets := admin.Group("/tickets")
	adminTickets.Get("/", ticketHandler.List)
	adminTickets.Post("/", ticketHandler.Create)
	adminTickets.Get("/stats", ticketHandler.Stats)
	adminTickets.Get("/:id", ticketHandler.Get)

	subs := admin.Group("/subscriptions")
	subs.Post("/", subscriptionHandler.Create)
	subs.Get("/analytics", subscriptionHandler.Stats)
	subs.Get("/:id", subscriptionHandler.Get)
	subs.Post("/:id/suspend", subscriptionHandler.Suspend)
	subs.Post("/:id/activate", subscriptionHandler.Activate)
	subs.Post("/:id/renew", subscriptionHandler.Renew)

	return app
}
