package utils

import (
	"github.com/google/uuid"
)

// GenerateID 生成请求 ID
func GenerateID() string {
	return uuid.NewString()
}

// IsValidID 校验外部传入的请求 ID
func IsValidID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}
