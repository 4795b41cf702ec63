package main

import (
	"fmt"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "github.com/noah-isme/campus-api/api/swagger"
	"github.com/noah-isme/campus-api/internal/handler"
	"github.com/noah-isme/campus-api/internal/middleware"
	"github.com/noah-isme/campus-api/internal/models"
	"github.com/noah-isme/campus-api/internal/repository"
	"github.com/noah-isme/campus-api/internal/service"
	"github.com/noah-isme/campus-api/pkg/cache"
	"github.com/noah-isme/campus-api/pkg/config"
	"github.com/noah-isme/campus-api/pkg/database"
	"github.com/noah-isme/campus-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/campus-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/campus-api/pkg/middleware/requestid"
)

// @title Campus Enrollment API
// @version 0.1.0
// @description Enrollment transaction core: catalog, cart, enrollment, waitlist, approvals
// @BasePath /
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
	defer db.Close()

	metrics := service.NewMetricsService()

	var cacheRepo *repository.CacheRepository
	if cfg.Catalog.CacheEnabled {
		redisClient, err := cache.NewRedis(cfg.Redis)
		if err != nil {
			logr.Sugar().Warnw("redis unavailable, catalog cache disabled", "error", err)
		} else {
			cacheRepo = repository.NewCacheRepository(redisClient, logr)
		}
	}
	cacheSvc := service.NewCacheService(cacheRepo, metrics, cfg.Catalog.CacheTTL, logr, cacheRepo != nil)

	courseRepo := repository.NewCourseRepository(db)
	periodRepo := repository.NewPeriodRepository(db)
	enrollmentRepo := repository.NewEnrollmentRepository(db)
	cartRepo := repository.NewCartRepository(db)
	approvalRepo := repository.NewApprovalRepository(db)
	auditRepo := repository.NewAuditRepository(db)
	studentRepo := repository.NewStudentRepository(db)

	validate := validator.New()

	authSvc := service.NewAuthService(cfg.JWT)
	catalogSvc := service.NewCatalogService(courseRepo, periodRepo, auditRepo, cacheSvc, cfg.Enrollment, logr)
	cartSvc := service.NewCartService(db, service.NewCartTxStores(cartRepo, enrollmentRepo, auditRepo),
		cartRepo, courseRepo, auditRepo, logr)
	enrollSvc := service.NewEnrollmentService(db, service.NewEnrollmentTxStores(enrollmentRepo, cartRepo, auditRepo),
		courseRepo, periodRepo, approvalRepo, studentRepo, enrollmentRepo, enrollmentRepo, auditRepo,
		metrics, cfg.Enrollment, logr)
	approvalSvc := service.NewApprovalService(db, service.NewApprovalTxStores(approvalRepo, auditRepo),
		approvalRepo, validate, cfg.Enrollment, logr)
	rosterSvc := service.NewRosterExportService(enrollmentRepo, courseRepo, nil, nil, logr)
	auditSvc := service.NewAuditService(auditRepo, cfg.Enrollment)

	catalogHandler := handler.NewCatalogHandler(catalogSvc, rosterSvc)
	cartHandler := handler.NewCartHandler(cartSvc, enrollSvc)
	enrollmentHandler := handler.NewEnrollmentHandler(enrollSvc)
	approvalHandler := handler.NewApprovalHandler(approvalSvc)
	metricsHandler := handler.NewMetricsHandler(metrics)
	auditHandler := handler.NewAuditHandler(auditSvc)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metrics))

	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", func(c *gin.Context) {
		if err := db.PingContext(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})
	r.GET("/metrics", metricsHandler.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)
	api.Use(middleware.JWT(authSvc))

	api.GET("/courses", catalogHandler.List)
	api.POST("/courses",
		middleware.RequirePermission(models.PermissionCourseEdit), catalogHandler.Create)
	api.GET("/courses/:id", catalogHandler.Get)
	api.GET("/courses/:id/sections", catalogHandler.Sections)
	api.GET("/enrollment-periods/active", catalogHandler.Periods)

	if cfg.Exports.Enabled {
		api.GET("/courses/:id/roster/export",
			middleware.RequirePermission(models.PermissionRosterExport), catalogHandler.ExportRoster)
	}

	students := middleware.RequireRoles(models.RoleStudent)
	staff := middleware.RequireRoles(models.RoleFaculty, models.RoleAdmin, models.RoleSuperAdmin)

	api.GET("/cart", students, cartHandler.List)
	api.POST("/cart", students, cartHandler.Add)
	api.DELETE("/cart", students, cartHandler.Clear)
	api.DELETE("/cart/:courseId", students, cartHandler.Remove)
	api.POST("/cart/commit", students, cartHandler.Commit)

	api.POST("/enrollments", students, enrollmentHandler.Enroll)
	api.POST("/enrollments/evaluate", students, enrollmentHandler.Evaluate)
	api.DELETE("/enrollments/:courseId", students, enrollmentHandler.Drop)
	api.GET("/enrollments", staff, enrollmentHandler.List)

	api.GET("/courses/:id/waitlist", staff, enrollmentHandler.Waitlist)
	api.POST("/courses/:id/waitlist",
		middleware.RequirePermission(models.PermissionCourseEdit), enrollmentHandler.WaitlistManage)
	api.POST("/courses/:id/students",
		middleware.RequirePermission(models.PermissionCourseEdit), enrollmentHandler.AdminAdd)
	api.DELETE("/courses/:id/students/:studentId",
		middleware.RequirePermission(models.PermissionCourseEdit), enrollmentHandler.AdminRemove)
	api.POST("/courses/:id/complete", staff, enrollmentHandler.Complete)

	api.GET("/audit-logs",
		middleware.RequireRoles(models.RoleAdmin, models.RoleSuperAdmin), auditHandler.List)

	api.POST("/approvals", students, approvalHandler.Submit)
	api.GET("/approvals", approvalHandler.List)
	api.GET("/approvals/:id", approvalHandler.Get)
	api.POST("/approvals/:id/review",
		middleware.RequireRoles(models.RoleFaculty), approvalHandler.Review)
	api.POST("/approvals/:id/resubmit", students, approvalHandler.Resubmit)

	addr := fmt.Sprintf(":%d", cfg.Port)
	logr.Sugar().Infow("server starting", "addr", addr, "env", cfg.Env)
	if err := r.Run(addr); err != nil {
		logr.Sugar().Fatalw("server failed", "error", err)
	}
}
