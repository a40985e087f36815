package handler

import (
	"errors"
	"net/http"
	"time"

	"github.com/TIANLI0/MaskKit/config"
	"github.com/TIANLI0/MaskKit/middleware"
	"github.com/TIANLI0/MaskKit/model"
	"github.com/TIANLI0/MaskKit/service"
	"github.com/TIANLI0/MaskKit/utils"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type PredictHandler struct {
	cfg       *config.Config
	predictor *service.Predictor
	gate      *service.Gate
	store     service.ResultStore
}

func NewPredictHandler(cfg *config.Config, predictor *service.Predictor, gate *service.Gate, store service.ResultStore) *PredictHandler {
	return &PredictHandler{
		cfg:       cfg,
		predictor: predictor,
		gate:      gate,
		store:     store,
	}
}

// apiError 处理失败时的状态码和提示
type apiError struct {
	status  int
	message string
	err     error
}

// Predict 对图片执行全部提示词
func (h *PredictHandler) Predict(c *gin.Context) {
	req, apiErr := h.bind(c)
	if apiErr == nil {
		var resp *model.PredictResponse
		resp, apiErr = h.run(c, req)
		if apiErr == nil {
			c.JSON(http.StatusOK, resp)
			return
		}
	}

	body := model.ErrorResponse{Success: false, Message: apiErr.message}
	if apiErr.err != nil {
		body.Error = apiErr.err.Error()
	}
	c.JSON(apiErr.status, body)
}

// Segment 兼容 Modal 部署的接口，结果包在 predictions 中
func (h *PredictHandler) Segment(c *gin.Context) {
	req, apiErr := h.bind(c)
	if apiErr == nil {
		var resp *model.PredictResponse
		resp, apiErr = h.run(c, req)
		if apiErr == nil {
			c.JSON(http.StatusOK, model.SegmentResponse{Predictions: []model.PredictResponse{*resp}})
			return
		}
	}

	msg := apiErr.message
	if apiErr.status == http.StatusBadRequest && apiErr.err == nil {
		msg = "Missing image or prompts"
	} else if apiErr.err != nil {
		msg = apiErr.err.Error()
	}
	c.JSON(apiErr.status, gin.H{"error": msg})
}

// GetResult 按请求 ID 查询保存的结果
func (h *PredictHandler) GetResult(c *gin.Context) {
	id := c.Param("id")
	if !utils.IsValidID(id) {
		c.JSON(http.StatusBadRequest, model.ErrorResponse{
			Success: false,
			Message: "请求 ID 格式错误",
		})
		return
	}

	rec, err := h.store.Get(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, service.ErrNotFound) {
			c.JSON(http.StatusNotFound, model.ErrorResponse{
				Success: false,
				Message: "未找到该请求的结果",
			})
			return
		}
		utils.Logger.Error("failed to get result", zap.String("id", id), zap.Error(err))
		c.JSON(http.StatusInternalServerError, model.ErrorResponse{
			Success: false,
			Message: "查询失败",
			Error:   err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, rec)
}

func (h *PredictHandler) bind(c *gin.Context) (*model.PredictRequest, *apiError) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.cfg.Upload.MaxSize)

	var req model.PredictRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, &apiError{
				status:  http.StatusRequestEntityTooLarge,
				message: "请求体超过大小限制",
				err:     err,
			}
		}
		return nil, &apiError{status: http.StatusBadRequest, message: "请求格式错误", err: err}
	}

	if req.Image == "" || len(req.Prompts) == 0 {
		return nil, &apiError{status: http.StatusBadRequest, message: "缺少图片或提示词"}
	}
	return &req, nil
}

func (h *PredictHandler) run(c *gin.Context, req *model.PredictRequest) (*model.PredictResponse, *apiError) {
	ctx := c.Request.Context()
	requestID := middleware.GetRequestID(c)

	if !h.predictor.Ready() {
		return nil, &apiError{status: http.StatusServiceUnavailable, message: "模型未加载", err: service.ErrModelUnavailable}
	}

	data, err := service.DecodeBase64(req.Image)
	if err != nil {
		return nil, &apiError{status: http.StatusBadRequest, message: "图片解码失败", err: err}
	}

	// 并发控制
	release, err := h.gate.Acquire(ctx)
	if err != nil {
		utils.Logger.Warn("request rejected by admission gate",
			zap.String("request_id", requestID), zap.Error(err))
		return nil, &apiError{status: http.StatusServiceUnavailable, message: "处理队列已满，请稍后重试", err: err}
	}
	defer release()

	box, text := req.ResolveThresholds(h.cfg.Predict.BoxThreshold, h.cfg.Predict.TextThreshold)
	result, err := h.predictor.Predict(ctx, service.PredictInput{
		Image:      data,
		Prompts:    req.Prompts,
		Thresholds: service.Thresholds{Box: box, Text: text},
	})
	if err != nil {
		var decErr *service.DecodeError
		switch {
		case errors.As(err, &decErr):
			return nil, &apiError{status: http.StatusBadRequest, message: "图片解码失败", err: err}
		case errors.Is(err, service.ErrModelUnavailable):
			return nil, &apiError{status: http.StatusServiceUnavailable, message: "模型未加载", err: err}
		default:
			utils.Logger.Error("failed to predict", zap.String("request_id", requestID), zap.Error(err))
			return nil, &apiError{status: http.StatusInternalServerError, message: "图片处理失败", err: err}
		}
	}

	for _, f := range result.Failures {
		utils.Logger.Warn("prompt returned placeholder",
			zap.String("request_id", requestID),
			zap.Int("index", f.Index),
			zap.String("prompt", f.Prompt),
			zap.Error(f.Err))
	}

	// 请求 ID 可能来自客户端，只用于日志关联，结果以服务端生成的 ID 保存
	resp := result.Response()
	resp.RequestID = requestID
	resp.ResultID = utils.GenerateID()

	rec := &model.PredictionRecord{
		ID:        resp.ResultID,
		ImageMD5:  utils.BytesMD5(data),
		Prompts:   req.Prompts,
		Response:  resp,
		CreatedAt: time.Now(),
	}
	if err := h.store.Save(ctx, rec); err != nil {
		utils.Logger.Warn("failed to save result",
			zap.String("request_id", requestID), zap.String("result_id", rec.ID), zap.Error(err))
	}

	return &resp, nil
}
