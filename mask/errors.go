package mask

import "fmt"

// EncodeError 掩码不是二值或不是矩形
type EncodeError struct {
	Reason string
	Row    int
	Col    int
	Value  uint8
}

func (e *EncodeError) Error() string {
	if e.Value != 0 {
		return fmt.Sprintf("encode mask: %s (row=%d col=%d value=%d)", e.Reason, e.Row, e.Col, e.Value)
	}
	return fmt.Sprintf("encode mask: %s", e.Reason)
}

// DecodeError RLE 数据损坏
type DecodeError struct {
	Reason string
	Err    error
}

func (e *DecodeError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("decode mask: %s: %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("decode mask: %s", e.Reason)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}
