package domain

import "errors"

var (
	// ErrUnknownRegion 引用了 47 个都道府县之外的编号
	ErrUnknownRegion = errors.New("unknown region")
	// ErrInvalidStatus 状态值不在 not-marked / to-visit / visited 之内
	ErrInvalidStatus = errors.New("invalid visit status")
)
