package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	handlers "github.com/MAOQIZHANG/orders/internal/controllers/http"
	mmysql "github.com/MAOQIZHANG/orders/internal/infra/mysql"
	"github.com/MAOQIZHANG/orders/internal/infra/rabbitmq"
	"github.com/MAOQIZHANG/orders/internal/repository"
	"github.com/MAOQIZHANG/orders/internal/repository/memory"
	mysqlrepo "github.com/MAOQIZHANG/orders/internal/repository/mysql"
	"github.com/MAOQIZHANG/orders/internal/services"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

func main() {
	if os.Getenv("LOG_FORMAT") == "json" {
		log.SetFormatter(&log.JSONFormatter{})
	}

	var repo repository.OrderRepository
	if os.Getenv("STORAGE") == "memory" {
		log.Info("using in-memory storage")
		repo = memory.NewOrderRepository()
	} else {
		db, err := mmysql.NewMySQLFromEnv()
		if err != nil {
			log.Fatalf("db: connect: %v", err)
		}
		sqlDB, _ := db.DB()
		sqlDB.SetMaxOpenConns(1000)
		sqlDB.SetMaxIdleConns(200)
		sqlDB.SetConnMaxLifetime(5 * time.Minute)
		sqlDB.SetConnMaxIdleTime(1 * time.Minute)
		repo = mysqlrepo.NewOrderRepository(db)
	}

	var publisher rabbitmq.PublisherInterface
	if url := os.Getenv("RABBITMQ_URL"); url != "" {
		p, err := rabbitmq.NewPublisher(url, "order.exchange")
		if err != nil {
			log.Fatalf("failed to init publisher: %v", err)
		}
		defer p.Close()
		publisher = p
	} else {
		log.Warn("RABBITMQ_URL not set, order events will not be published")
	}

	s := services.NewOrderService(repo, publisher)

	if host := os.Getenv("REDIS_HOST"); host != "" {
		s.SetRedisClient(redis.NewClient(&redis.Options{
			Addr:         host + ":6379",
			DB:           0,
			PoolSize:     200,
			MinIdleConns: 20,
			DialTimeout:  2 * time.Second,
			ReadTimeout:  500 * time.Millisecond,
			WriteTimeout: 500 * time.Millisecond,
		}))
	}

	handler := handlers.NewHandler(s)

	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())
	handler.RegisterRoutes(r)

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}
	srv := &http.Server{
		Addr:    ":" + port,
		Handler: r,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Infof("starting order service on port %s", port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		log.Fatalf("server run: %v", err)
	}
}
