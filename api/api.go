package api

import (
	"fmt"

	"symphonybacktest/internal/app"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type ApiHandler struct {
	BacktestHandler app.BacktestHandler
	Logger          *zap.SugaredLogger
}

func (m ApiHandler) StartApi(port int) error {
	router := gin.Default()
	router.Use(cors.Default())

	router.GET("/", func(ctx *gin.Context) {
		ctx.JSON(200, map[string]string{"message": "welcome to symphonybacktest"})
	})
	router.POST("/backtest", m.backtest)

	return router.Run(fmt.Sprintf(":%d", port))
}

func (m ApiHandler) returnErrorJson(err error, c *gin.Context) {
	m.Logger.Error(err.Error())
	c.AbortWithStatusJSON(500, gin.H{
		"error": err.Error(),
	})
}

func (m ApiHandler) returnErrorJsonCode(err error, c *gin.Context, code int) {
	m.Logger.Error(err.Error())
	c.AbortWithStatusJSON(code, gin.H{
		"error": err.Error(),
	})
}
