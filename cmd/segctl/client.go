package main

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"

	"github.com/TIANLI0/MaskKit/mask"
	"github.com/TIANLI0/MaskKit/model"
	"github.com/TIANLI0/MaskKit/utils"
)

// Client 调用 /api/v1/predict
type Client struct {
	BaseURL    string
	HTTPClient *http.Client
}

type RequestOptions struct {
	Box  *float64
	Text *float64
}

// PredictFile 读取图片文件并提交
func (c *Client) PredictFile(ctx context.Context, path string, prompts []string, opts RequestOptions) (*Report, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	digest := utils.BytesMD5(data)

	resp, err := c.Predict(ctx, data, prompts, opts)
	if err != nil {
		return nil, err
	}
	return NewReport(path, digest, resp)
}

func (c *Client) Predict(ctx context.Context, image []byte, prompts []string, opts RequestOptions) (*model.PredictResponse, error) {
	req := model.PredictRequest{
		Image:   base64.StdEncoding.EncodeToString(image),
		Prompts: prompts,
	}
	if opts.Box != nil || opts.Text != nil {
		req.Thresholds = &model.Thresholds{Box: opts.Box, Text: opts.Text}
	}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/api/v1/predict", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")

	hc := c.HTTPClient
	if hc == nil {
		hc = http.DefaultClient
	}
	httpResp, err := hc.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer httpResp.Body.Close()

	raw, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, err
	}

	if httpResp.StatusCode != http.StatusOK {
		var apiErr model.ErrorResponse
		if json.Unmarshal(raw, &apiErr) == nil && apiErr.Message != "" {
			return nil, fmt.Errorf("server returned %d: %s %s", httpResp.StatusCode, apiErr.Message, apiErr.Error)
		}
		return nil, fmt.Errorf("server returned %d", httpResp.StatusCode)
	}

	var resp model.PredictResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, fmt.Errorf("invalid response: %w", err)
	}
	if len(resp.Masks) != len(resp.Scores) || len(resp.Masks) != len(resp.Labels) {
		return nil, fmt.Errorf("invalid response: %d masks, %d scores, %d labels",
			len(resp.Masks), len(resp.Scores), len(resp.Labels))
	}
	return &resp, nil
}

// decodeMasks nil 掩码保持为 nil
func decodeMasks(resp *model.PredictResponse) ([]*mask.Mask, error) {
	out := make([]*mask.Mask, len(resp.Masks))
	for i, enc := range resp.Masks {
		if enc == nil {
			continue
		}
		m, err := mask.Decode(enc)
		if err != nil {
			return nil, fmt.Errorf("mask %d (%s): %w", i, resp.Labels[i], err)
		}
		out[i] = m
	}
	return out, nil
}
