package domain

import "fmt"

// VisitStatus 都道府县的访问状态，零值为 NotMarked。
type VisitStatus uint8

const (
	NotMarked VisitStatus = iota
	ToVisit
	Visited
)

// 与浏览器端保持一致的文本表示
const (
	statusNotMarkedText = "not-marked"
	statusToVisitText   = "to-visit"
	statusVisitedText   = "visited"
)

// Next 按固定循环推进一步：NotMarked -> ToVisit -> Visited -> NotMarked。
// 非法值回到 NotMarked。
func (s VisitStatus) Next() VisitStatus {
	switch s {
	case NotMarked:
		return ToVisit
	case ToVisit:
		return Visited
	default:
		return NotMarked
	}
}

func (s VisitStatus) Valid() bool {
	return s <= Visited
}

func (s VisitStatus) String() string {
	switch s {
	case NotMarked:
		return statusNotMarkedText
	case ToVisit:
		return statusToVisitText
	case Visited:
		return statusVisitedText
	default:
		return fmt.Sprintf("VisitStatus(%d)", uint8(s))
	}
}

// ParseVisitStatus 解析文本形式的状态，未知文本返回 ErrInvalidStatus。
func ParseVisitStatus(s string) (VisitStatus, error) {
	switch s {
	case statusNotMarkedText:
		return NotMarked, nil
	case statusToVisitText:
		return ToVisit, nil
	case statusVisitedText:
		return Visited, nil
	default:
		return NotMarked, fmt.Errorf("%w: %q", ErrInvalidStatus, s)
	}
}

func (s VisitStatus) MarshalText() ([]byte, error) {
	if !s.Valid() {
		return nil, fmt.Errorf("%w: %d", ErrInvalidStatus, uint8(s))
	}
	return []byte(s.String()), nil
}

func (s *VisitStatus) UnmarshalText(text []byte) error {
	parsed, err := ParseVisitStatus(string(text))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}
