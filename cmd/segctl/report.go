package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"

	"github.com/TIANLI0/MaskKit/mask"
	"github.com/TIANLI0/MaskKit/model"
	"github.com/disintegration/imaging"
	"github.com/fatih/color"
	"gopkg.in/yaml.v3"
)

// Entry 单个掩码的摘要
type Entry struct {
	Label string  `json:"label" yaml:"label"`
	Score float64 `json:"score" yaml:"score"`
	Found bool    `json:"found" yaml:"found"`
	Area  int     `json:"area" yaml:"area"`
	BBox  []int   `json:"bbox,omitempty" yaml:"bbox,omitempty,flow"`

	mask *mask.Mask
}

// Report 一次请求的输出
type Report struct {
	Image     string  `json:"image" yaml:"image"`
	ImageMD5  string  `json:"image_md5" yaml:"image_md5"`
	RequestID string  `json:"request_id,omitempty" yaml:"request_id,omitempty"`
	ResultID  string  `json:"result_id,omitempty" yaml:"result_id,omitempty"`
	Entries   []Entry `json:"entries" yaml:"entries"`
}

func NewReport(image, digest string, resp *model.PredictResponse) (*Report, error) {
	masks, err := decodeMasks(resp)
	if err != nil {
		return nil, err
	}

	r := &Report{Image: image, ImageMD5: digest, RequestID: resp.RequestID, ResultID: resp.ResultID}
	for i, m := range masks {
		e := Entry{Label: resp.Labels[i], Score: resp.Scores[i], mask: m}
		if m != nil {
			b := m.Bounds()
			e.Found = true
			e.Area = m.Area()
			e.BBox = []int{b.Min.X, b.Min.Y, b.Dx(), b.Dy()}
		}
		r.Entries = append(r.Entries, e)
	}
	return r, nil
}

func (r *Report) Write(w io.Writer, format string) error {
	switch format {
	case "", "table":
		r.writeTable(w)
		return nil
	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		defer enc.Close()
		return enc.Encode(r)
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(r)
	default:
		return fmt.Errorf("unknown output format %q", format)
	}
}

func (r *Report) writeTable(w io.Writer) {
	header := color.New(color.FgCyan, color.Bold)
	dim := color.New(color.FgHiBlack)

	header.Fprintf(w, "%-4s %-28s %-7s %-9s %s\n", "#", "LABEL", "SCORE", "AREA", "BBOX")
	for i, e := range r.Entries {
		if !e.Found {
			dim.Fprintf(w, "%-4d %-28s %-7.3f %-9s %s\n", i, truncate(e.Label, 28), e.Score, "-", "no detection")
			continue
		}

		clr := color.New(color.FgGreen)
		if e.Score < 0.5 {
			clr = color.New(color.FgYellow)
		}
		clr.Fprintf(w, "%-4d %-28s %-7.3f %-9d %v\n", i, truncate(e.Label, 28), e.Score, e.Area, e.BBox)
	}

	if r.RequestID != "" {
		dim.Fprintf(w, "request %s, image md5 %s\n", r.RequestID, r.ImageMD5)
	}
	if r.ResultID != "" {
		dim.Fprintf(w, "result %s\n", r.ResultID)
	}
}

var unsafeName = regexp.MustCompile(`[^A-Za-z0-9_-]+`)

// SaveMasks 每个检测到的掩码保存为 <序号>_<标签>.png
func (r *Report) SaveMasks(dir string) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}
	for i, e := range r.Entries {
		if e.mask == nil {
			continue
		}
		name := fmt.Sprintf("%02d_%s.png", i, unsafeName.ReplaceAllString(e.Label, "_"))
		if err := imaging.Save(e.mask.Gray(), filepath.Join(dir, name)); err != nil {
			return fmt.Errorf("save %s: %w", name, err)
		}
	}
	return nil
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
