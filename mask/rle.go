package mask

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
)

// Encoded 掩码的传输形式
//
// Counts 从背景开始交替记录背景/前景的游程长度（按列遍历），总和等于 Height*Width。
// Text 是 Counts 的 COCO 压缩字符串再经 base64 编码后的结果，JSON 中作为 counts 字段。
type Encoded struct {
	Height int
	Width  int
	Counts []uint32
	Text   string
}

type encodedJSON struct {
	Size   [2]int `json:"size"`
	Counts string `json:"counts"`
}

// MarshalJSON 输出 {"size": [h, w], "counts": "<base64>"}
func (e *Encoded) MarshalJSON() ([]byte, error) {
	return json.Marshal(encodedJSON{
		Size:   [2]int{e.Height, e.Width},
		Counts: e.Text,
	})
}

// UnmarshalJSON 只解析尺寸和文本，游程在 Decode 时展开
func (e *Encoded) UnmarshalJSON(data []byte) error {
	var raw encodedJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	e.Height = raw.Size[0]
	e.Width = raw.Size[1]
	e.Text = raw.Counts
	e.Counts = nil
	return nil
}

// Encode 按列遍历掩码生成游程并压缩
func Encode(m *Mask) (*Encoded, error) {
	if m == nil {
		return nil, &EncodeError{Reason: "mask is nil"}
	}
	if m.Height < 0 || m.Width < 0 || len(m.Data) != m.Height*m.Width {
		return nil, &EncodeError{Reason: fmt.Sprintf("grid is not rectangular (%dx%d with %d cells)", m.Height, m.Width, len(m.Data))}
	}

	counts := make([]uint32, 0, 16)
	var prev uint8
	var run uint32
	for x := 0; x < m.Width; x++ {
		for y := 0; y < m.Height; y++ {
			v := m.Data[y*m.Width+x]
			if v > 1 {
				return nil, &EncodeError{Reason: "value is not binary", Row: y, Col: x, Value: v}
			}
			if v != prev {
				counts = append(counts, run)
				run = 0
				prev = v
			}
			run++
		}
	}
	counts = append(counts, run)

	return &Encoded{
		Height: m.Height,
		Width:  m.Width,
		Counts: counts,
		Text:   base64.StdEncoding.EncodeToString([]byte(compress(counts))),
	}, nil
}

// Decode 还原掩码，Text 非空时以 Text 为准
func Decode(e *Encoded) (*Mask, error) {
	if e == nil {
		return nil, &DecodeError{Reason: "encoded mask is nil"}
	}
	if e.Height < 0 || e.Width < 0 {
		return nil, &DecodeError{Reason: fmt.Sprintf("invalid size %dx%d", e.Height, e.Width)}
	}

	var counts []int64
	if e.Text != "" {
		raw, err := base64.StdEncoding.DecodeString(e.Text)
		if err != nil {
			return nil, &DecodeError{Reason: "counts are not valid base64", Err: err}
		}
		counts, err = decompress(string(raw))
		if err != nil {
			return nil, err
		}
	} else {
		counts = make([]int64, len(e.Counts))
		for i, c := range e.Counts {
			counts[i] = int64(c)
		}
	}

	total := int64(e.Height) * int64(e.Width)
	var sum int64
	for i, c := range counts {
		if c < 0 {
			return nil, &DecodeError{Reason: fmt.Sprintf("negative run %d at index %d", c, i)}
		}
		sum += c
	}
	if sum != total {
		return nil, &DecodeError{Reason: fmt.Sprintf("runs cover %d pixels, mask has %d", sum, total)}
	}

	m := New(e.Height, e.Width)
	var k int64
	var val uint8
	for _, c := range counts {
		for j := int64(0); j < c; j++ {
			x := int(k / int64(e.Height))
			y := int(k % int64(e.Height))
			m.Data[y*e.Width+x] = val
			k++
		}
		val ^= 1
	}
	return m, nil
}

// DecodeString 解码 base64 counts 文本
func DecodeString(text string, height, width int) (*Mask, error) {
	return Decode(&Encoded{Height: height, Width: width, Text: text})
}

// compress 生成 COCO 压缩字符串：每字符 5 位数据，0x20 为续位，0x10 为符号位，偏移 48；
// 第 3 个之后的游程记录与前两个位置游程的差值
func compress(counts []uint32) string {
	buf := make([]byte, 0, len(counts)*2)
	for i := range counts {
		x := int64(counts[i])
		if i > 2 {
			x -= int64(counts[i-2])
		}
		more := true
		for more {
			c := byte(x & 0x1f)
			x >>= 5
			if c&0x10 != 0 {
				more = x != -1
			} else {
				more = x != 0
			}
			if more {
				c |= 0x20
			}
			buf = append(buf, c+48)
		}
	}
	return string(buf)
}

func decompress(s string) ([]int64, error) {
	counts := make([]int64, 0, len(s))
	p := 0
	for p < len(s) {
		var x int64
		k := uint(0)
		more := true
		for more {
			if p >= len(s) {
				return nil, &DecodeError{Reason: "truncated counts string"}
			}
			if s[p] < 48 || s[p] > 48+0x3f {
				return nil, &DecodeError{Reason: fmt.Sprintf("invalid counts character %q at %d", s[p], p)}
			}
			c := int64(s[p] - 48)
			x |= (c & 0x1f) << (5 * k)
			more = c&0x20 != 0
			p++
			k++
			if !more && c&0x10 != 0 {
				x |= -1 << (5 * k)
			}
		}
		if m := len(counts); m > 2 {
			x += counts[m-2]
		}
		counts = append(counts, x)
	}
	return counts, nil
}
