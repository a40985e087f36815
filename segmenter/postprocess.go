package segmenter

import (
	"sort"

	"github.com/TIANLI0/MaskKit/model"
)

// Postprocess 置信度过滤、按分数排序、重叠抑制、数量截断
func Postprocess(cands []model.Candidate, opts Options) []model.Candidate {
	kept := make([]model.Candidate, 0, len(cands))
	for _, c := range cands {
		if c.Mask == nil || c.Score < opts.ConfThreshold {
			continue
		}
		kept = append(kept, c)
	}

	sort.SliceStable(kept, func(i, j int) bool {
		return kept[i].Score > kept[j].Score
	})

	out := kept[:0]
	for _, c := range kept {
		suppressed := false
		if opts.IoUThreshold > 0 {
			for _, o := range out {
				if c.Mask.IoU(o.Mask) > opts.IoUThreshold {
					suppressed = true
					break
				}
			}
		}
		if suppressed {
			continue
		}
		out = append(out, c)
		if opts.MaxCandidates > 0 && len(out) >= opts.MaxCandidates {
			break
		}
	}
	return out
}
