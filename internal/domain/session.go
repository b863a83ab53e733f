package domain

// Mode 会话模式，在会话打开时确定一次，之后不再改变。
type Mode uint8

const (
	Interactive Mode = iota
	ReadOnly
)

func (m Mode) String() string {
	if m == ReadOnly {
		return "read-only"
	}
	return "interactive"
}

func (m Mode) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

// Session 一次请求内的会话上下文，显式传递给每个核心操作。
// ReadOnly 会话的状态来自分享令牌，不允许修改，也不读写持久化存储。
type Session struct {
	ClientID string
	Mode     Mode
	State    TrackerState
}

// NewInteractiveSession 创建可交互会话；state 为 nil 时使用初始状态。
func NewInteractiveSession(clientID string, state TrackerState) *Session {
	if state == nil {
		state = NewTrackerState()
	}
	return &Session{ClientID: clientID, Mode: Interactive, State: state}
}

// NewReadOnlySession 创建只读回放会话
func NewReadOnlySession(state TrackerState) *Session {
	return &Session{Mode: ReadOnly, State: state}
}

func (s *Session) ReadOnly() bool {
	return s.Mode == ReadOnly
}
