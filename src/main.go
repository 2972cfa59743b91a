package main

import (
	"io"
	"log"
	"net/http"
	"os"
	"path"
	"tcs/src/boot"
	"tcs/src/common"
	"tcs/src/lib"
	"tcs/src/middlewares"
	"tcs/src/types"

	"github.com/covalenthq/lumberjack"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	_ "github.com/joho/godotenv/autoload"
)

const (
	apiPrefix string = "/api/v1"
)

// positivecart passes when at least one cart line carries a positive
// quantity. A cart that fails here never reaches the network.
var positiveCartValidatorFunc validator.Func = func(fl validator.FieldLevel) bool {
	items, ok := fl.Field().Interface().([]types.CartSelection)
	if !ok {
		return false
	}
	for _, item := range items {
		if item.Qty > 0 {
			return true
		}
	}
	return false
}

func setupRouter() *gin.Engine {
	router := gin.Default()
	router.Use(middlewares.SecureHeaders)
	router.Use(middlewares.RequestID)
	router.GET("/", func(ctx *gin.Context) {
		ctx.JSON(http.StatusOK, "ok")
	})
	router.GET("/healthz", func(ctx *gin.Context) {
		ctx.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	return router
}

func apiv1Group(g *gin.Engine) *gin.RouterGroup {
	apiv1 := g.Group(apiPrefix)
	return apiv1
}

func initLogger() {
	cwd, _ := os.Getwd()
	serverLogs := path.Join(cwd, "logs", "server.log")
	apiLogs := path.Join(cwd, "logs", "api.log")
	gin.ForceConsoleColor()

	f, _ := os.Create(apiLogs)
	gin.DefaultWriter = io.MultiWriter(f, os.Stdout)
	log.SetOutput(&lumberjack.Logger{
		Filename:   serverLogs,
		MaxSize:    500,
		MaxBackups: 3,
		MaxAge:     30,
		Compress:   true,
	})
}

func main() {
	apiEnv := os.Getenv("API_ENV")
	if apiEnv == "local" {
		cwd, _ := os.Getwd()
		if err := godotenv.Load(path.Join(cwd, ".env")); err != nil {
			panic(err)
		}
	}
	initLogger()

	boot.InitScheduler()

	router := setupRouter()

	appHost := os.Getenv("APP_HOST")
	if apiEnv == "local" {
		router.Use(cors.Default())
	} else {
		cc := cors.DefaultConfig()
		cc.AllowMethods = append(cc.AllowMethods, "GET", "POST", "PUT", "DELETE", "HEAD")
		cc.AllowHeaders = append(cc.AllowHeaders, "Origin", "Authorization", "X-Request-Id")
		cc.AllowOrigins = []string{appHost}
		cc.AllowCredentials = true
		router.Use(cors.New(cc))
	}

	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		v.RegisterValidation("positivecart", positiveCartValidatorFunc)
	}

	inventory := lib.GetInventoryClient()
	ledger := lib.GetLedgerClient()
	gateway := lib.GetGatewayClient()
	catalog := common.NewCatalogRepository(inventory, lib.GetRedisClient())
	holds := common.NewHoldManager(inventory)
	registry := common.NewAttemptRegistry(holds)
	refunds := common.NewRefundService(ledger)

	boot.StartAttemptSweeper(registry)

	apiv1 := apiv1Group(router)
	checkoutHandlers(apiv1, catalog, holds, registry)
	paymentHandlers(apiv1, registry, gateway)
	refundHandlers(apiv1, refunds, ledger, catalog)

	port := os.Getenv("PORT")
	if port == "" {
		port = "9090"
	}
	if err := router.Run(":" + port); err != nil {
		log.Fatalf("server exited: %s", err.Error())
	}
}
