// Package codec 将 TrackerState 编码为可放入 URL 查询参数的紧凑令牌，并支持反向解码。
//
// 令牌格式：base64url(无填充) 编码的二进制帧
//
//	[1 字节版本号][brotli 压缩的规范 JSON][4 字节 CRC-32 (IEEE, 大端)]
//
// CRC 覆盖压缩负载，保证翻转字符、截断等损坏在解压之前即被发现。
package codec

import (
	"bytes"
	"encoding/base64"
	"encoding/binary"
	"errors"
	"fmt"
	"hash/crc32"
	"io"
	"net/url"

	"github.com/andybalholm/brotli"

	"japan-tracker/internal/domain"
)

// ShareParam 分享链接中携带令牌的查询参数名
const ShareParam = "state"

const (
	formatVersion byte = 0x01
	// 47 项状态的 JSON 约 1.3KB，超出上限的解压结果视为损坏
	maxPayloadSize = 64 << 10
	crcSize        = 4
	minFrameSize   = 1 + 1 + crcSize
)

// strict 模式拒绝末尾非零填充位，避免两个不同令牌解码为同一字节序列
var tokenEncoding = base64.RawURLEncoding.Strict()

// ErrDecode 令牌无法解码；调用方应回退到初始状态并进入交互模式
var ErrDecode = errors.New("invalid share token")

// DecodeError 记录解码失败所在的阶段
type DecodeError struct {
	Stage string // "alphabet", "frame", "checksum", "decompress", "json"
	Err   error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("%s: %s stage: %v", ErrDecode, e.Stage, e.Err)
}

func (e *DecodeError) Unwrap() []error {
	return []error{ErrDecode, e.Err}
}

func decodeErr(stage string, err error) error {
	return &DecodeError{Stage: stage, Err: err}
}

// Encode 生成分享令牌。相同状态总是得到相同令牌。
func Encode(state domain.TrackerState) (string, error) {
	text, err := state.MarshalCanonical()
	if err != nil {
		return "", fmt.Errorf("codec: failed to serialize state: %w", err)
	}

	var frame bytes.Buffer
	frame.WriteByte(formatVersion)
	w := brotli.NewWriterLevel(&frame, brotli.BestCompression)
	if _, err := w.Write(text); err != nil {
		return "", fmt.Errorf("codec: failed to compress state: %w", err)
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("codec: failed to flush compressor: %w", err)
	}

	var sum [crcSize]byte
	binary.BigEndian.PutUint32(sum[:], crc32.ChecksumIEEE(frame.Bytes()[1:]))
	frame.Write(sum[:])

	return tokenEncoding.EncodeToString(frame.Bytes()), nil
}

// Decode 解析分享令牌。任何阶段失败都返回 *DecodeError（errors.Is(err, ErrDecode) 为真），
// 且不会返回部分填充的状态。成功时结果已按补全规则处理。
func Decode(token string) (domain.TrackerState, error) {
	frame, err := tokenEncoding.DecodeString(token)
	if err != nil {
		return nil, decodeErr("alphabet", err)
	}
	if len(frame) < minFrameSize {
		return nil, decodeErr("frame", fmt.Errorf("token too short (%d bytes)", len(frame)))
	}
	if frame[0] != formatVersion {
		return nil, decodeErr("frame", fmt.Errorf("unsupported format version %d", frame[0]))
	}

	payload := frame[1 : len(frame)-crcSize]
	want := binary.BigEndian.Uint32(frame[len(frame)-crcSize:])
	if got := crc32.ChecksumIEEE(payload); got != want {
		return nil, decodeErr("checksum", fmt.Errorf("crc mismatch: got %08x, want %08x", got, want))
	}

	r := brotli.NewReader(bytes.NewReader(payload))
	text, err := io.ReadAll(io.LimitReader(r, maxPayloadSize+1))
	if err != nil {
		return nil, decodeErr("decompress", err)
	}
	if len(text) > maxPayloadSize {
		return nil, decodeErr("decompress", fmt.Errorf("payload exceeds %d bytes", maxPayloadSize))
	}

	state, err := domain.ParseTrackerState(text)
	if err != nil {
		return nil, decodeErr("json", err)
	}
	return state, nil
}

// BuildShareURL 去掉 baseURL 原有的查询串和片段，只附加一个 state 参数。
func BuildShareURL(baseURL, token string) (string, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return "", fmt.Errorf("codec: invalid base url %q: %w", baseURL, err)
	}
	if u.Scheme == "" || u.Host == "" {
		return "", fmt.Errorf("codec: base url %q must be absolute", baseURL)
	}
	u.RawQuery = ""
	u.ForceQuery = false
	u.Fragment = ""
	u.RawFragment = ""
	// 令牌字母表本身无需百分号编码
	return u.String() + "?" + ShareParam + "=" + token, nil
}
