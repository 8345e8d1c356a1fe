package server

import (
	"github.com/Sh4yy/FeedStream/feed"
	"github.com/Sh4yy/FeedStream/util"
	"github.com/gin-gonic/gin"
)

func handlersInit(router *gin.Engine, processor *feed.Processor) *gin.Engine {

	apiGroupV1 := router.Group("/v1")

	apiGroupV1.POST("/publish", publishEvent(processor))
	apiGroupV1.POST("/retract", retractEvent(processor))
	apiGroupV1.POST("/subscribe", subscribeFeed(processor))
	apiGroupV1.POST("/unsubscribe", unsubscribeFeed(processor))
	apiGroupV1.GET("/consume", consumeFeed(processor))

	apiGroupV1.GET("/health", util.HealthCheckHandler())

	return router
}
