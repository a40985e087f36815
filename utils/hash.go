package utils

import (
	"crypto/md5"
	"encoding/hex"
)

// BytesMD5 图像内容摘要，随预测结果一起保存
func BytesMD5(data []byte) string {
	sum := md5.Sum(data)
	return hex.EncodeToString(sum[:])
}
