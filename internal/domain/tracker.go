package domain

import (
	"encoding/json"
	"errors"
	"fmt"
)

// ErrMalformedState 持久化文本或解码结果不是 "区域代码 -> 状态文本" 形式的 JSON 对象
var ErrMalformedState = errors.New("malformed tracker state")

// TrackerState 完整的 "都道府县 -> 访问状态" 映射。
// 不变量：恰好包含 47 个已知区域各一项，所有值均为合法 VisitStatus。
// 序列化为 JSON 时键按区域代码升序输出，例如 {"JP-01":"visited","JP-02":"not-marked",...}。
type TrackerState map[RegionID]VisitStatus

// Progress 供展示层使用的汇总数据
type Progress struct {
	Visited    int `json:"visited"`
	ToVisit    int `json:"to_visit"`
	NotMarked  int `json:"not_marked"`
	Total      int `json:"total"`
	Percentage int `json:"percentage"`
}

// NewTrackerState 创建所有区域均为 NotMarked 的初始状态。
// 解码或加载失败时统一回退到这里。
func NewTrackerState() TrackerState {
	state := make(TrackerState, TotalRegions)
	for id := RegionID(1); id <= TotalRegions; id++ {
		state[id] = NotMarked
	}
	return state
}

// Normalize 对外部来源（持久化记录、分享令牌）的原始映射应用补全规则：
// 忽略未知区域代码，缺失的区域默认为 NotMarked，无法识别的状态文本按 NotMarked 处理。
// 旧版本客户端可能只保存了部分键，因此部分记录按尽力而为的方式接受。
func Normalize(raw map[string]string) TrackerState {
	state := NewTrackerState()
	for key, value := range raw {
		id, err := ParseRegionID(key)
		if err != nil {
			continue
		}
		status, err := ParseVisitStatus(value)
		if err != nil {
			continue
		}
		state[id] = status
	}
	return state
}

// ParseTrackerState 解析 JSON 文本并补全。只有结构非法（不是字符串到字符串的对象）时返回错误。
func ParseTrackerState(data []byte) (TrackerState, error) {
	var raw map[string]string
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedState, err)
	}
	if raw == nil {
		return nil, fmt.Errorf("%w: expected a JSON object", ErrMalformedState)
	}
	return Normalize(raw), nil
}

// MarshalCanonical 输出补全后的规范 JSON 文本（键按区域代码升序）。
// 相同状态总是得到相同的字节序列。
func (s TrackerState) MarshalCanonical() ([]byte, error) {
	full := NewTrackerState()
	for id, status := range s {
		if !id.Valid() {
			continue
		}
		if !status.Valid() {
			status = NotMarked
		}
		full[id] = status
	}
	return json.Marshal(full)
}

// Cycle 将指定区域推进到下一个状态。未知区域不做任何修改并返回 false。
func (s TrackerState) Cycle(id RegionID) bool {
	if !id.Valid() || s == nil {
		return false
	}
	s[id] = s[id].Next()
	return true
}

// Get 返回区域当前状态，缺失或未知区域视为 NotMarked。
func (s TrackerState) Get(id RegionID) VisitStatus {
	status, ok := s[id]
	if !ok || !status.Valid() {
		return NotMarked
	}
	return status
}

// CountByStatus 统计处于指定状态的区域数
func (s TrackerState) CountByStatus(status VisitStatus) int {
	count := 0
	for id := RegionID(1); id <= TotalRegions; id++ {
		if s.Get(id) == status {
			count++
		}
	}
	return count
}

// VisitedPercentage 计算 round(100 * visited / 47)，四舍五入（0.5 进位），用整数运算避免浮点误差。
func VisitedPercentage(visited int) int {
	if visited <= 0 {
		return 0
	}
	if visited >= TotalRegions {
		return 100
	}
	return (200*visited + TotalRegions) / (2 * TotalRegions)
}

func (s TrackerState) Progress() Progress {
	visited := s.CountByStatus(Visited)
	toVisit := s.CountByStatus(ToVisit)
	return Progress{
		Visited:    visited,
		ToVisit:    toVisit,
		NotMarked:  TotalRegions - visited - toVisit,
		Total:      TotalRegions,
		Percentage: VisitedPercentage(visited),
	}
}

// Complete 判断是否满足不变量：恰好 47 项且值全部合法。
func (s TrackerState) Complete() bool {
	if len(s) != TotalRegions {
		return false
	}
	for id, status := range s {
		if !id.Valid() || !status.Valid() {
			return false
		}
	}
	return true
}

func (s TrackerState) Clone() TrackerState {
	out := make(TrackerState, len(s))
	for id, status := range s {
		out[id] = status
	}
	return out
}

// Equal 按补全后的语义比较两个状态
func (s TrackerState) Equal(other TrackerState) bool {
	for id := RegionID(1); id <= TotalRegions; id++ {
		if s.Get(id) != other.Get(id) {
			return false
		}
	}
	return true
}
