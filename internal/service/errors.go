package service

import (
	"errors"

	"japan-tracker/internal/domain"
)

var (
	// ErrStorageUnavailable 持久化失败。非致命：内存中的状态仍然有效，调用方只需提示。
	ErrStorageUnavailable = errors.New("storage unavailable")
	ErrReadOnly           = errors.New("tracker is read-only")
	ErrUnknownRegion      = errors.New("unknown region")
	ErrInvalidBaseURL     = errors.New("invalid share base url")
	ErrInternalServer     = errors.New("internal server error")
)

// 该函数用于将下层（domain、仓库层）的错误映射到服务层定义的错误。
func mapRepoError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, domain.ErrUnknownRegion) {
		return ErrUnknownRegion
	}
	// 默认返回内部服务器错误
	return ErrInternalServer
}
