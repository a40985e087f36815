package handler

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"image"
	"image/color"
	"image/png"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/TIANLI0/MaskKit/config"
	"github.com/TIANLI0/MaskKit/mask"
	"github.com/TIANLI0/MaskKit/model"
	"github.com/TIANLI0/MaskKit/segmenter"
	"github.com/TIANLI0/MaskKit/service"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testServer struct {
	router *gin.Engine
	gate   *service.Gate
}

func newTestServer(t *testing.T, withModel bool, mutate func(*config.Config)) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	cfg := &config.Config{
		Server:   config.ServerConfig{MaxConcurrent: 1, QueueTimeout: 20 * time.Millisecond},
		Upload:   config.UploadConfig{MaxSize: 1 << 20},
		Limits:   config.LimitsConfig{MaxPixels: 1_000_000},
		Predict:  config.PredictConfig{BoxThreshold: 0.35, TextThreshold: 0.25},
		Dispatch: config.DispatchConfig{EverythingIoU: 0.9, TargetedIoU: 0.7, MaxCandidates: 64},
		Segmenter: config.SegmenterConfig{
			Backend: "palette",
			Palette: config.PaletteConfig{MaxSide: 512, MergeTolerance: 0.06, MinAreaRatio: 0.005},
		},
	}
	if mutate != nil {
		mutate(cfg)
	}

	var seg segmenter.Segmenter
	if withModel {
		var err error
		seg, err = segmenter.New(cfg.Segmenter)
		require.NoError(t, err)
	}

	predictor := service.NewPredictor(seg, cfg)
	gate := service.NewGate(cfg.Server.MaxConcurrent, cfg.Server.QueueTimeout)
	store := service.NewMemoryStore(time.Hour)

	router := NewRouter(
		NewPredictHandler(cfg, predictor, gate, store),
		NewHealthHandler(predictor, BuildInfo{Version: "test"}),
	)
	return &testServer{router: router, gate: gate}
}

func (s *testServer) do(method, path string, body any) *httptest.ResponseRecorder {
	var reader *bytes.Reader
	switch b := body.(type) {
	case nil:
		reader = bytes.NewReader(nil)
	case string:
		reader = bytes.NewReader([]byte(b))
	default:
		data, _ := json.Marshal(b)
		reader = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func encodeImage(t *testing.T, w, h int, fill func(x, y int) color.Color) string {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, fill(x, y))
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return base64.StdEncoding.EncodeToString(buf.Bytes())
}

func redImage(t *testing.T) string {
	return encodeImage(t, 20, 20, func(int, int) color.Color { return color.NRGBA{R: 255, A: 255} })
}

func TestPredict_Targeted(t *testing.T) {
	s := newTestServer(t, true, nil)

	w := s.do(http.MethodPost, "/predict", gin.H{
		"image":   redImage(t),
		"prompts": []string{"red square", "blue car"},
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp model.PredictResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, []string{"red square", "blue car"}, resp.Labels)
	require.Len(t, resp.Masks, 2)
	require.Len(t, resp.Scores, 2)
	require.NotNil(t, resp.Masks[0])
	assert.Nil(t, resp.Masks[1])
	assert.Equal(t, 0.0, resp.Scores[1])
	assert.NotEmpty(t, resp.RequestID)
	assert.Equal(t, resp.RequestID, w.Header().Get("X-Request-ID"))

	m, err := mask.Decode(resp.Masks[0])
	require.NoError(t, err)
	assert.Equal(t, 400, m.Area())

	require.NotEmpty(t, resp.ResultID)
	assert.NotEqual(t, resp.RequestID, resp.ResultID)

	w = s.do(http.MethodGet, "/api/v1/results/"+resp.ResultID, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var rec model.PredictionRecord
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &rec))
	assert.Equal(t, resp.Labels, rec.Response.Labels)
	assert.Equal(t, []string{"red square", "blue car"}, rec.Prompts)
}

func TestPredict_ReusedRequestIDKeepsEarlierResult(t *testing.T) {
	s := newTestServer(t, true, nil)
	const sharedID = "5f0c1b7e-2d4a-4c8e-9b3f-6a1d2e7c8b90"

	post := func(prompt string) model.PredictResponse {
		data, err := json.Marshal(gin.H{"image": redImage(t), "prompts": []string{prompt}})
		require.NoError(t, err)
		req := httptest.NewRequest(http.MethodPost, "/api/v1/predict", bytes.NewReader(data))
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("X-Request-ID", sharedID)
		w := httptest.NewRecorder()
		s.router.ServeHTTP(w, req)
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())

		var resp model.PredictResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Equal(t, sharedID, resp.RequestID)
		return resp
	}

	first := post("red square")
	second := post("blue car")
	require.NotEqual(t, first.ResultID, second.ResultID)

	w := s.do(http.MethodGet, "/api/v1/results/"+first.ResultID, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var rec model.PredictionRecord
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &rec))
	assert.Equal(t, []string{"red square"}, rec.Prompts)

	w = s.do(http.MethodGet, "/api/v1/results/"+sharedID, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestPredict_EverythingPrompt(t *testing.T) {
	s := newTestServer(t, true, nil)
	img := encodeImage(t, 20, 10, func(x, _ int) color.Color {
		if x < 10 {
			return color.NRGBA{R: 255, A: 255}
		}
		return color.NRGBA{B: 255, A: 255}
	})

	w := s.do(http.MethodPost, "/api/v1/predict", gin.H{
		"image":      img,
		"prompts":    []string{"everything_prompt"},
		"thresholds": gin.H{"box": 0.9, "text": 0.5},
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp model.PredictResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, []string{"object_0", "object_1"}, resp.Labels)
	assert.Equal(t, []float64{1.0, 1.0}, resp.Scores)
}

func TestPredict_BadRequests(t *testing.T) {
	s := newTestServer(t, true, nil)

	tests := []struct {
		name string
		body any
	}{
		{"malformed json", "{"},
		{"empty body", nil},
		{"missing image", gin.H{"prompts": []string{"cat"}}},
		{"empty prompts", gin.H{"image": redImage(t), "prompts": []string{}}},
		{"bad base64", gin.H{"image": "***", "prompts": []string{"cat"}}},
		{"not an image", gin.H{"image": base64.StdEncoding.EncodeToString([]byte("hello")), "prompts": []string{"cat"}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := s.do(http.MethodPost, "/predict", tt.body)
			assert.Equal(t, http.StatusBadRequest, w.Code)

			var body model.ErrorResponse
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
			assert.False(t, body.Success)
			assert.NotEmpty(t, body.Message)
		})
	}
}

func TestPredict_BodyTooLarge(t *testing.T) {
	s := newTestServer(t, true, func(cfg *config.Config) { cfg.Upload.MaxSize = 64 })

	w := s.do(http.MethodPost, "/predict", gin.H{
		"image":   strings.Repeat("A", 256),
		"prompts": []string{"cat"},
	})
	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
}

func TestPredict_ModelUnavailable(t *testing.T) {
	s := newTestServer(t, false, nil)

	w := s.do(http.MethodPost, "/predict", gin.H{"image": redImage(t), "prompts": []string{"cat"}})
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	w = s.do(http.MethodGet, "/health", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var health model.HealthResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &health))
	assert.Equal(t, "unhealthy", health.Status)
}

func TestPredict_QueueFull(t *testing.T) {
	s := newTestServer(t, true, nil)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	release, err := s.gate.Acquire(ctx)
	require.NoError(t, err)
	defer release()

	w := s.do(http.MethodPost, "/predict", gin.H{"image": redImage(t), "prompts": []string{"cat"}})
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestSegment(t *testing.T) {
	s := newTestServer(t, true, nil)

	w := s.do(http.MethodPost, "/segment", gin.H{"image": redImage(t)})
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.JSONEq(t, `{"error":"Missing image or prompts"}`, w.Body.String())

	w = s.do(http.MethodPost, "/segment", gin.H{"image": redImage(t), "prompts": []string{"red"}})
	require.Equal(t, http.StatusOK, w.Code)
	var resp model.SegmentResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp.Predictions, 1)
	assert.Equal(t, []string{"red"}, resp.Predictions[0].Labels)
}

func TestGetResult_Errors(t *testing.T) {
	s := newTestServer(t, true, nil)

	w := s.do(http.MethodGet, "/api/v1/results/not-a-uuid", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(http.MethodGet, "/api/v1/results/0b8e4f2a-6c1d-4f6e-9a51-3d2c7b9e1f00", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestHealthAndVersion(t *testing.T) {
	s := newTestServer(t, true, nil)

	w := s.do(http.MethodGet, "/health", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"healthy","model":"palette","version":"test"}`, w.Body.String())

	w = s.do(http.MethodGet, "/version", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"version":"test"`)
}
