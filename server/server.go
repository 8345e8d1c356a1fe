package server

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	migrate "github.com/Sh4yy/FeedStream/db"
	"github.com/Sh4yy/FeedStream/env"
	"github.com/Sh4yy/FeedStream/feed"
	"github.com/Sh4yy/FeedStream/middleware"
	"github.com/Sh4yy/FeedStream/queue"
	"github.com/Sh4yy/FeedStream/service/logger"
	"github.com/Sh4yy/FeedStream/service/memstore"
	"github.com/Sh4yy/FeedStream/service/memstore/redis"
	"github.com/Sh4yy/FeedStream/service/persist"
	"github.com/Sh4yy/FeedStream/service/persist/postgres"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"
)

const queueBuffer = 1024

// Init boots the full service: migrations, stores, cache, queue, preload
// and the HTTP surface. It blocks until the process is signalled to stop,
// then drains the queue before returning.
func Init() {
	SetDefaults()

	pq := postgres.MustCreateClient()
	if err := migrate.RunCoreDBMigration(pq); err != nil {
		panic(err)
	}

	cache := redis.NewCache(redis.TimelinesDB)
	taskQueue := queue.New(env.GetInt("FEED_WORKER_COUNT"), queueBuffer)

	router := CoreInit(pq, cache, taskQueue)

	srv := &http.Server{
		Addr:    fmt.Sprintf("%s:%d", env.GetString("HOST"), env.GetInt("PORT")),
		Handler: router,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.For(nil).WithError(err).Fatal("server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.For(nil).Info("shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.For(nil).WithError(err).Error("server shutdown failed")
	}

	// in-flight jobs complete and the queue drains before we exit
	taskQueue.StopWait()
}

// CoreInit initializes core server functionality. This is abstracted
// so the test server can also utilize it.
func CoreInit(pq *sql.DB, cache memstore.TimelineCache, taskQueue *queue.Queue) *gin.Engine {
	logger.For(nil).Info("initializing server...")

	if env.GetString("ENV") != "production" {
		gin.SetMode(gin.DebugMode)
		logger.SetLoggerOptions(func(l *logrus.Logger) {
			l.SetLevel(logrus.DebugLevel)
		})
	}

	router := gin.Default()
	router.Use(middleware.HandleCORS(), middleware.ErrLogger())

	repos := postgres.NewRepositories(pq)
	processor := feed.NewProcessor(taskQueue)
	registerFeeds(processor, repos, cache)

	workers := taskQueue.Start()
	logger.For(nil).Infof("started %d feed workers", workers)

	processor.Preload(context.Background(), workers)

	return handlersInit(router, processor)
}

// registerFeeds binds the feeds this deployment serves. Registrations are
// created here at boot and never destroyed.
func registerFeeds(processor *feed.Processor, repos *postgres.Repositories, cache memstore.TimelineCache) {
	processor.Register(feed.NewFlat(feed.Registration{
		Name:         "feed",
		Verbs:        []persist.Verb{"podcast"},
		IncludeActor: true,
		MaxCache:     500,
	}, repos.FlatEventRepository, repos.RelationRepository, cache))

	processor.Register(feed.NewActivity(feed.Registration{
		Name:     "notification",
		Verbs:    []persist.Verb{"like", "follow", "comment", "mention"},
		MaxCache: 200,
	}, repos.ActivityEventRepository, repos.RelationRepository, cache))
}

// SetDefaults registers the default configuration and enables env overrides
func SetDefaults() {
	viper.SetDefault("ENV", "local")
	viper.SetDefault("HOST", "0.0.0.0")
	viper.SetDefault("PORT", 1234)
	viper.SetDefault("FEED_WORKER_COUNT", 1)
	viper.SetDefault("REDIS_URL", "localhost:6379")
	viper.SetDefault("REDIS_PASS", "")
	viper.SetDefault("POSTGRES_HOST", "0.0.0.0")
	viper.SetDefault("POSTGRES_PORT", 5432)
	viper.SetDefault("POSTGRES_DB", "postgres")
	viper.SetDefault("POSTGRES_USER", "postgres")
	viper.SetDefault("POSTGRES_PASSWORD", "")
	viper.AutomaticEnv()

	env.RegisterValidation("HOST", "required")
	env.RegisterValidation("PORT", "required")
	env.RegisterValidation("FEED_WORKER_COUNT", "required")
	env.RegisterValidation("REDIS_URL", "required")
	env.RegisterValidation("POSTGRES_HOST", "required")
	env.RegisterValidation("POSTGRES_DB", "required")
	env.RegisterValidation("POSTGRES_USER", "required")
}
