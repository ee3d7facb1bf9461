package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ignatev/fitclub-api/internal/clock"
	"github.com/ignatev/fitclub-api/internal/handler"
	"github.com/ignatev/fitclub-api/internal/middleware"
	"github.com/ignatev/fitclub-api/internal/models"
	"github.com/ignatev/fitclub-api/internal/repository"
	"github.com/ignatev/fitclub-api/internal/service"
	"github.com/ignatev/fitclub-api/pkg/cache"
	"github.com/ignatev/fitclub-api/pkg/config"
	"github.com/ignatev/fitclub-api/pkg/database"
	"github.com/ignatev/fitclub-api/pkg/logger"
	corsmiddleware "github.com/ignatev/fitclub-api/pkg/middleware/cors"
	reqidmiddleware "github.com/ignatev/fitclub-api/pkg/middleware/requestid"
)

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

	clk, err := clock.New(cfg.Club.Timezone)
	if err != nil {
		logr.Sugar().Fatalw("invalid club timezone", "error", err)
	}

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect to postgres", "error", err)
	}
	defer db.Close()

	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Sugar().Warnw("redis unavailable, timetable cache disabled", "error", err)
		redisClient = nil
	}

	validate := validator.New()
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector())
	registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := service.NewMetrics(registry)

	schemaRepo := repository.NewSchemaRepository(db)
	recordRepo := repository.NewRecordRepository(db)
	bookingRepo := repository.NewBookingRepository(db)
	categoryRepo := repository.NewCategoryRepository(db)
	placementRepo := repository.NewPlacementRepository(db)
	instructorRepo := repository.NewInstructorRepository(db)
	programRepo := repository.NewProgramRepository(db)
	clientRepo := repository.NewClientRepository(db)
	staffRepo := repository.NewStaffRepository(db)
	cacheRepo := repository.NewCacheRepository(redisClient, logr)

	timetableSvc := service.NewTimetableService(schemaRepo, recordRepo, programRepo, bookingRepo,
		cacheRepo, clk, cfg.Club.TimetableCacheTTL, metrics, logr)
	schemaSvc := service.NewSchemaService(schemaRepo, recordRepo, bookingRepo, clk, timetableSvc, metrics, validate, logr)
	recordSvc := service.NewRecordService(recordRepo, programRepo, validate, logr)
	bookingSvc := service.NewBookingService(bookingRepo, schemaRepo, recordRepo, programRepo, clientRepo,
		clk, timetableSvc, validate, logr)
	authSvc := service.NewAuthService(staffRepo, cfg.JWT, validate, logr)
	categorySvc := service.NewCategoryService(categoryRepo, validate, logr)
	placementSvc := service.NewPlacementService(placementRepo, validate, logr)
	instructorSvc := service.NewInstructorService(instructorRepo, validate, logr)
	programSvc := service.NewProgramService(programRepo, recordRepo, validate, logr)
	clientSvc := service.NewClientService(clientRepo, validate, logr)
	reportSvc := service.NewReportService(bookingRepo, logr)

	seedCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	if err := authSvc.SeedAdmin(seedCtx, cfg.Admin); err != nil {
		logr.Sugar().Fatalw("failed to seed administrator", "error", err)
	}
	cancel()

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(metrics.GinMiddleware())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/ready", func(c *gin.Context) {
		if err := db.PingContext(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "database unavailable"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(registry, promhttp.HandlerOpts{})))

	authHandler := handler.NewAuthHandler(authSvc)
	schemaHandler := handler.NewSchemaHandler(schemaSvc)
	recordHandler := handler.NewRecordHandler(recordSvc)
	categoryHandler := handler.NewCategoryHandler(categorySvc)
	placementHandler := handler.NewPlacementHandler(placementSvc)
	instructorHandler := handler.NewInstructorHandler(instructorSvc)
	programHandler := handler.NewProgramHandler(programSvc)
	clientHandler := handler.NewClientHandler(clientSvc, bookingSvc)
	timetableHandler := handler.NewTimetableHandler(timetableSvc)
	reportHandler := handler.NewReportHandler(reportSvc)

	api := r.Group(cfg.APIPrefix)

	api.POST("/auth/login", authHandler.Login)
	api.GET("/timetable", timetableHandler.Get)

	auth := api.Group("", middleware.JWT(authSvc))
	admin := middleware.RequireRoles(models.RoleAdmin)
	anyStaff := middleware.RequireRoles(models.RoleAdmin, models.RoleOperator)

	auth.POST("/auth/register", admin, authHandler.Register)

	auth.GET("/schemas", anyStaff, schemaHandler.List)
	auth.POST("/schemas", admin, schemaHandler.Create)
	auth.GET("/schemas/:id", anyStaff, schemaHandler.Get)
	auth.PATCH("/schemas/:id", admin, schemaHandler.Update)
	auth.DELETE("/schemas/:id", admin, schemaHandler.Delete)
	auth.GET("/schemas/:id/records", anyStaff, schemaHandler.Records)
	auth.POST("/schemas/:id/records", admin, schemaHandler.IncludeRecords)
	auth.DELETE("/schemas/:id/records", admin, schemaHandler.ExcludeRecords)
	auth.POST("/records", admin, recordHandler.Create)
	auth.GET("/records/:id", anyStaff, recordHandler.Get)

	registerCRUD(auth, "/categories", admin, anyStaff,
		categoryHandler.List, categoryHandler.Get, categoryHandler.Create, categoryHandler.Update, categoryHandler.Delete)
	registerCRUD(auth, "/placements", admin, anyStaff,
		placementHandler.List, placementHandler.Get, placementHandler.Create, placementHandler.Update, placementHandler.Delete)
	registerCRUD(auth, "/instructors", admin, anyStaff,
		instructorHandler.List, instructorHandler.Get, instructorHandler.Create, instructorHandler.Update, instructorHandler.Delete)
	registerCRUD(auth, "/programs", admin, anyStaff,
		programHandler.List, programHandler.Get, programHandler.Create, programHandler.Update, programHandler.Delete)

	auth.GET("/clients", anyStaff, clientHandler.List)
	auth.GET("/clients/:id", anyStaff, clientHandler.Get)
	auth.POST("/clients", anyStaff, clientHandler.Create)
	auth.PUT("/clients/:id", anyStaff, clientHandler.Update)
	auth.DELETE("/clients/:id", admin, clientHandler.Delete)
	auth.POST("/clients/:id/book", anyStaff, clientHandler.Book)
	auth.DELETE("/clients/:id/book", anyStaff, clientHandler.Unbook)
	auth.GET("/clients/:id/bookings", anyStaff, clientHandler.Bookings)

	auth.GET("/reports/attendance", anyStaff, reportHandler.Attendance)

	addr := fmt.Sprintf(":%d", cfg.Port)
	logr.Sugar().Infow("server starting", "addr", addr, "env", cfg.Env, "timezone", cfg.Club.Timezone)
	if err := r.Run(addr); err != nil {
		logr.Sugar().Fatalw("server failed", "error", err)
	}
}

func registerCRUD(group *gin.RouterGroup, path string, write, read gin.HandlerFunc, list, get, create, update, remove gin.HandlerFunc) {
	group.GET(path, read, list)
	group.GET(path+"/:id", read, get)
	group.POST(path, write, create)
	group.PUT(path+"/:id", write, update)
	group.DELETE(path+"/:id", write, remove)
}
