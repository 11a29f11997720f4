package main

import (
	"context"
	"fmt"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "github.com/moshiurrahman101/ccit-sub003/api/swagger"
	"github.com/moshiurrahman101/ccit-sub003/internal/handler"
	"github.com/moshiurrahman101/ccit-sub003/internal/middleware"
	"github.com/moshiurrahman101/ccit-sub003/internal/models"
	"github.com/moshiurrahman101/ccit-sub003/internal/repository"
	"github.com/moshiurrahman101/ccit-sub003/internal/service"
	"github.com/moshiurrahman101/ccit-sub003/pkg/cache"
	"github.com/moshiurrahman101/ccit-sub003/pkg/config"
	"github.com/moshiurrahman101/ccit-sub003/pkg/database"
	"github.com/moshiurrahman101/ccit-sub003/pkg/jobs"
	"github.com/moshiurrahman101/ccit-sub003/pkg/logger"
	corsmiddleware "github.com/moshiurrahman101/ccit-sub003/pkg/middleware/cors"
	reqidmiddleware "github.com/moshiurrahman101/ccit-sub003/pkg/middleware/requestid"
)

// @title CCIT Back Office API
// @version 1.0.0
// @description Billing and enrollment reconciliation for course batches
// @BasePath /api/v1
// @schemes http

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect to postgres", "error", err)
	}
	defer db.Close() //nolint:errcheck

	metricsSvc := service.NewMetricsService()

	var cacheRepo service.CacheRepository
	cacheEnabled := false
	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Sugar().Warnw("redis unavailable, caching disabled", "error", err)
	} else {
		cacheRepo = repository.NewCacheRepository(redisClient, logr)
		cacheEnabled = true
	}
	cacheSvc := service.NewCacheService(cacheRepo, metricsSvc, cfg.Billing.StatsCacheTTL, logr, cacheEnabled)

	userRepo := repository.NewUserRepository(db)
	courseRepo := repository.NewCourseRepository(db)
	batchRepo := repository.NewBatchRepository(db)
	couponRepo := repository.NewCouponRepository(db)
	invoiceRepo := repository.NewInvoiceRepository(db)
	paymentRepo := repository.NewPaymentRepository(db)
	enrollmentRepo := repository.NewEnrollmentRepository(db)
	scheduleRepo := repository.NewScheduleRepository(db)
	attendanceRepo := repository.NewAttendanceRepository(db)

	auditSvc := service.NewAuditService(userRepo, jobs.QueueConfig{
		Workers:    cfg.Audit.Workers,
		BufferSize: cfg.Audit.BufferSize,
		MaxRetries: cfg.Audit.MaxRetries,
		RetryDelay: cfg.Audit.RetryDelay,
		Logger:     logr,
	}, logr)
	auditSvc.Start(context.Background())
	defer auditSvc.Stop()

	validate := validator.New()

	authSvc := service.NewAuthService(userRepo, validate, logr, service.AuthConfig{
		AccessTokenSecret:  cfg.JWT.Secret,
		AccessTokenExpiry:  cfg.JWT.Expiration,
		RefreshTokenExpiry: cfg.JWT.RefreshExpiration,
		Issuer:             "ccit-backoffice",
	})
	couponSvc := service.NewCouponService(couponRepo, validate, logr, auditSvc)
	pricingSvc := service.NewPricingService(batchRepo, courseRepo, couponSvc, cacheSvc, cfg.Pricing.QuoteCacheTTL, logr)
	courseSvc := service.NewCourseService(courseRepo, validate, logr, auditSvc)
	batchSvc := service.NewBatchService(batchRepo, courseRepo, pricingSvc, validate, logr, auditSvc)
	invoiceSvc := service.NewInvoiceService(invoiceRepo, paymentRepo, pricingSvc, validate, logr, auditSvc, cfg.Billing.DefaultDueDays)
	paymentSvc := service.NewPaymentService(paymentRepo, invoiceRepo, batchRepo, validate, logr, auditSvc, metricsSvc)
	enrollmentSvc := service.NewEnrollmentService(enrollmentRepo, invoiceRepo, batchRepo, logr, auditSvc, metricsSvc)
	scheduleSvc := service.NewScheduleService(scheduleRepo, batchRepo, validate, logr)
	attendanceSvc := service.NewAttendanceService(attendanceRepo, scheduleRepo, enrollmentSvc, batchRepo, cacheSvc, cfg.Billing.StatsCacheTTL, validate, logr, auditSvc)

	authHandler := handler.NewAuthHandler(authSvc)
	courseHandler := handler.NewCourseHandler(courseSvc)
	batchHandler := handler.NewBatchHandler(batchSvc)
	couponHandler := handler.NewCouponHandler(couponSvc)
	pricingHandler := handler.NewPricingHandler(pricingSvc)
	invoiceHandler := handler.NewInvoiceHandler(invoiceSvc)
	paymentHandler := handler.NewPaymentHandler(paymentSvc)
	enrollmentHandler := handler.NewEnrollmentHandler(enrollmentSvc)
	scheduleHandler := handler.NewScheduleHandler(scheduleSvc)
	attendanceHandler := handler.NewAttendanceHandler(attendanceSvc)
	metricsHandler := handler.NewMetricsHandler(metricsSvc)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metricsSvc))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	r.GET("/ready", func(c *gin.Context) {
		if err := db.PingContext(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})

	r.GET("/metrics", gin.WrapH(metricsSvc.Handler()))

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)

	auth := api.Group("/auth")
	{
		auth.POST("/login", authHandler.Login)
		auth.POST("/refresh", authHandler.Refresh)
		auth.POST("/logout", middleware.JWT(authSvc), authHandler.Logout)
		auth.POST("/change-password", middleware.JWT(authSvc), authHandler.ChangePassword)
	}

	// Catalog reads, quotes and coupon validation are public so prospective
	// students can browse and price before signing up.
	api.GET("/courses", courseHandler.List)
	api.GET("/courses/:id", courseHandler.Get)
	api.GET("/batches", batchHandler.List)
	api.GET("/batches/:id", batchHandler.Get)
	api.GET("/batches/:id/quote", pricingHandler.Quote)
	api.GET("/batches/:id/schedules", scheduleHandler.ListByBatch)
	api.POST("/coupons/validate", couponHandler.Validate)

	authed := api.Group("", middleware.JWT(authSvc))
	{
		authed.POST("/invoices", invoiceHandler.Create)
		authed.GET("/invoices", invoiceHandler.List)
		authed.GET("/invoices/:id", invoiceHandler.Get)

		authed.POST("/payments", paymentHandler.SubmitClaim)

		authed.GET("/enrollments", enrollmentHandler.List)
		authed.GET("/batches/:id/access", enrollmentHandler.Access)
		authed.GET("/batches/:id/attendance/:student_id", attendanceHandler.ListForStudent)
		authed.GET("/batches/:id/attendance/:student_id/statistics", attendanceHandler.Statistics)
	}

	// Batch-scoped decisions are open to admins and mentors at the route
	// level; the services check batch ownership for mentors.
	staff := api.Group("", middleware.JWT(authSvc), middleware.RequireRoles(models.RoleAdmin, models.RoleMentor))
	{
		staff.POST("/attendance", middleware.Audit(auditSvc, models.AuditActionAttendanceMark, "attendance"), attendanceHandler.Mark)
		staff.GET("/batches/:id/attendance/export", attendanceHandler.Export)

		staff.POST("/payments/:id/decision", middleware.Audit(auditSvc, models.AuditActionClaimDecide, "payment"), paymentHandler.Decide)

		staff.POST("/enrollments/:id/decision", middleware.Audit(auditSvc, models.AuditActionEnrollmentDecide, "enrollment"), enrollmentHandler.Decide)
		staff.POST("/enrollments/:id/complete", middleware.Audit(auditSvc, models.AuditActionEnrollmentDecide, "enrollment"), enrollmentHandler.Complete)
		staff.POST("/enrollments/:id/drop", middleware.Audit(auditSvc, models.AuditActionEnrollmentDecide, "enrollment"), enrollmentHandler.Drop)
	}

	admin := api.Group("", middleware.JWT(authSvc), middleware.RequireRoles(models.RoleAdmin))
	{
		admin.POST("/courses", middleware.Audit(auditSvc, models.AuditActionCatalogMutate, "course"), courseHandler.Create)
		admin.PUT("/courses/:id", middleware.Audit(auditSvc, models.AuditActionCatalogMutate, "course"), courseHandler.Update)
		admin.POST("/batches", middleware.Audit(auditSvc, models.AuditActionCatalogMutate, "batch"), batchHandler.Create)
		admin.PUT("/batches/:id", middleware.Audit(auditSvc, models.AuditActionCatalogMutate, "batch"), batchHandler.Update)
		admin.PATCH("/batches/:id/status", middleware.Audit(auditSvc, models.AuditActionCatalogMutate, "batch"), batchHandler.UpdateStatus)

		admin.GET("/coupons", couponHandler.List)
		admin.POST("/coupons", middleware.Audit(auditSvc, models.AuditActionCouponMutate, "coupon"), couponHandler.Create)
		admin.PUT("/coupons/:code", middleware.Audit(auditSvc, models.AuditActionCouponMutate, "coupon"), couponHandler.Update)
		admin.DELETE("/coupons/:code", middleware.Audit(auditSvc, models.AuditActionCouponMutate, "coupon"), couponHandler.Deactivate)

		admin.GET("/payments", paymentHandler.List)

		admin.POST("/schedules", scheduleHandler.Create)
		admin.PUT("/schedules/:id", scheduleHandler.Update)
		admin.DELETE("/schedules/:id", scheduleHandler.Delete)

		admin.GET("/admin/metrics", metricsHandler.Snapshot)
	}

	addr := fmt.Sprintf(":%d", cfg.Port)
	logr.Sugar().Infow("server starting", "addr", addr, "env", cfg.Env)
	if err := r.Run(addr); err != nil {
		logr.Sugar().Fatalw("server failed", "error", err)
	}
}
