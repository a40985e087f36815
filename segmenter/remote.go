package segmenter

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/TIANLI0/MaskKit/config"
	"github.com/TIANLI0/MaskKit/mask"
	"github.com/TIANLI0/MaskKit/model"
	"github.com/disintegration/imaging"
)

// RemoteSegmenter 将推理转发给外部模型服务
type RemoteSegmenter struct {
	url    string
	token  string
	client *http.Client
}

func NewRemoteSegmenter(cfg config.RemoteConfig) (*RemoteSegmenter, error) {
	if cfg.URL == "" {
		return nil, errors.New("remote segmenter: url is empty")
	}
	return &RemoteSegmenter{
		url:    cfg.URL,
		token:  cfg.Token,
		client: &http.Client{Timeout: cfg.Timeout},
	}, nil
}

func (s *RemoteSegmenter) Name() string { return "remote" }

type remoteRequest struct {
	Image         string  `json:"image"`
	Prompt        string  `json:"prompt,omitempty"`
	Everything    bool    `json:"everything"`
	BoxThreshold  float64 `json:"box_threshold"`
	TextThreshold float64 `json:"text_threshold"`
	IoUThreshold  float64 `json:"iou_threshold"`
}

type remoteResponse struct {
	Masks  []*mask.Encoded `json:"masks"`
	Scores []float64       `json:"scores"`
}

// Segment 图像以 PNG base64 发送，返回的 RLE 掩码在本地解码
func (s *RemoteSegmenter) Segment(ctx context.Context, buf *model.PixelBuffer, opts Options) ([]model.Candidate, error) {
	var png bytes.Buffer
	if err := imaging.Encode(&png, buf.Image(), imaging.PNG); err != nil {
		return nil, fmt.Errorf("remote: encode image: %w", err)
	}

	body, err := json.Marshal(remoteRequest{
		Image:         base64.StdEncoding.EncodeToString(png.Bytes()),
		Prompt:        opts.Text,
		Everything:    !opts.WithText,
		BoxThreshold:  opts.ConfThreshold,
		TextThreshold: opts.TextThreshold,
		IoUThreshold:  opts.IoUThreshold,
	})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if s.token != "" {
		req.Header.Set("Authorization", "Bearer "+s.token)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("remote: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("remote: status %d: %s", resp.StatusCode, bytes.TrimSpace(snippet))
	}

	var out remoteResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("remote: decode response: %w", err)
	}
	if len(out.Masks) != len(out.Scores) {
		return nil, fmt.Errorf("remote: %d masks but %d scores", len(out.Masks), len(out.Scores))
	}

	cands := make([]model.Candidate, 0, len(out.Masks))
	for i, enc := range out.Masks {
		if enc == nil {
			continue
		}
		// 先核对尺寸再展开，避免按对端声明的尺寸分配内存
		if enc.Height != buf.Height() || enc.Width != buf.Width() {
			return nil, fmt.Errorf("remote: mask %d: %w", i, &mask.DecodeError{
				Reason: fmt.Sprintf("size %dx%d does not match image %dx%d", enc.Height, enc.Width, buf.Height(), buf.Width()),
			})
		}
		m, err := mask.Decode(enc)
		if err != nil {
			return nil, fmt.Errorf("remote: mask %d: %w", i, err)
		}
		cands = append(cands, model.Candidate{Mask: m, Score: out.Scores[i]})
	}
	return Postprocess(cands, opts), nil
}
