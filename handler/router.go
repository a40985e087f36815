package handler

import (
	"github.com/TIANLI0/MaskKit/middleware"
	"github.com/gin-gonic/gin"
)

// NewRouter 注册中间件和全部路由
func NewRouter(predict *PredictHandler, health *HealthHandler) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger())
	r.Use(middleware.CORS())

	r.GET("/health", health.Health)
	r.GET("/version", health.Version)

	r.POST("/predict", predict.Predict)
	r.POST("/segment", predict.Segment)

	api := r.Group("/api/v1")
	{
		api.POST("/predict", predict.Predict)
		api.GET("/results/:id", predict.GetResult)
	}

	return r
}
