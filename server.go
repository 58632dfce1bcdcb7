package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/Verba-Org/mini-erp-experienceservice/config"
	"github.com/Verba-Org/mini-erp-experienceservice/models"
	"github.com/Verba-Org/mini-erp-experienceservice/workflow"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

const defaultPort = "8080"

func main() {
	seed := flag.Bool("seed", false, "seed demo data on startup")
	flag.Parse()

	logger := config.GetLogger()

	port := os.Getenv("PORT")
	if port == "" {
		port = defaultPort
	}

	engine := workflow.NewEngine(config.LoadDefaults(), logger)

	router := gin.Default()
	router.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"*"},
		AllowMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept"},
		AllowCredentials: false,
		MaxAge:           12 * time.Hour,
	}))

	router.GET("/healthz", func(c *gin.Context) {
		if config.GetDB() == nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "starting"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	router.POST("/webhook", webhookHandler(engine))
	router.GET("/view/:orderNumber", invoiceViewHandler())

	srv := &http.Server{
		Addr:    ":" + port,
		Handler: router,
	}

	// Start listening first; connect to backing services afterwards so the
	// container becomes reachable quickly.
	go func() {
		logger.Infof("listening on :%s", port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatalf("http server: %v", err)
		}
	}()

	config.ConnectDatabaseWithRetry()
	config.ConnectRedisWithRetry()
	models.MigrateTable()

	if *seed || strings.TrimSpace(os.Getenv("SEED_ON_START")) != "" {
		if err := models.SeedDemoData(context.Background()); err != nil {
			logger.Fatalf("seed: %v", err)
		}
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Errorf("shutdown: %v", err)
	}
}

// webhookHandler receives one classified-intent command per request and
// returns the engine's response. The upstream interpreter and messaging
// channel live outside this service.
func webhookHandler(engine *workflow.Engine) gin.HandlerFunc {
	return func(c *gin.Context) {
		if config.GetDB() == nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"message": "service is starting, please retry"})
			return
		}

		var payload workflow.IntentPayload
		if err := c.ShouldBindJSON(&payload); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"message": "The request could not be parsed."})
			return
		}

		result := engine.Process(c.Request.Context(), &payload)
		c.JSON(http.StatusOK, result)
	}
}

// invoiceViewHandler signs a fresh URL for the stored invoice document and
// redirects the caller's browser to it.
func invoiceViewHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		orderNumber := strings.TrimSpace(c.Param("orderNumber"))
		if orderNumber == "" {
			c.JSON(http.StatusBadRequest, gin.H{"message": "order number is required"})
			return
		}

		signedURL, err := workflow.SignedInvoiceURL(orderNumber)
		if err != nil {
			config.LogError(config.GetLogger(), "server.go", "invoiceViewHandler", "SignedInvoiceURL", orderNumber, err)
			c.JSON(http.StatusNotFound, gin.H{"message": "invoice document is not available"})
			return
		}
		c.Redirect(http.StatusFound, signedURL)
	}
}
