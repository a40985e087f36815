package handler

import (
	"net/http"

	"github.com/TIANLI0/MaskKit/model"
	"github.com/TIANLI0/MaskKit/service"
	"github.com/gin-gonic/gin"
)

// BuildInfo 编译时注入的版本信息
type BuildInfo struct {
	Version   string `json:"version"`
	BuildTime string `json:"build_time"`
	BuildID   string `json:"build_id"`
	GitCommit string `json:"git_commit"`
	GitBranch string `json:"git_branch"`
}

type HealthHandler struct {
	predictor *service.Predictor
	build     BuildInfo
}

func NewHealthHandler(predictor *service.Predictor, build BuildInfo) *HealthHandler {
	return &HealthHandler{predictor: predictor, build: build}
}

// Health 模型未加载时返回 unhealthy，状态码仍为 200
func (h *HealthHandler) Health(c *gin.Context) {
	status := "healthy"
	if !h.predictor.Ready() {
		status = "unhealthy"
	}
	c.JSON(http.StatusOK, model.HealthResponse{
		Status:  status,
		Model:   h.predictor.ModelName(),
		Version: h.build.Version,
	})
}

func (h *HealthHandler) Version(c *gin.Context) {
	c.JSON(http.StatusOK, h.build)
}
