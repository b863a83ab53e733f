package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"

	"japan-tracker/internal/codec"
	"japan-tracker/internal/domain"
)

// EventPublisher 发布客户端状态变更，供同一客户端的其他标签页同步
type EventPublisher interface {
	PublishStateEvent(ctx context.Context, clientID string, payload []byte) error
}

// StateEventType Hub 转发给标签页的消息类型
const StateEventType = "state"

// StateEvent 状态变更事件
type StateEvent struct {
	Type     string              `json:"type"`
	State    domain.TrackerState `json:"state"`
	Progress domain.Progress     `json:"progress"`
}

// CycleResult 一次状态切换的结果
type CycleResult struct {
	Region    domain.Region      `json:"region"`
	Status    domain.VisitStatus `json:"status"`
	Progress  domain.Progress    `json:"progress"`
	Persisted bool               `json:"persisted"` // false 表示存储不可用，仅内存状态已更新
}

// ShareResult 分享令牌与完整链接
type ShareResult struct {
	Token string `json:"token"`
	URL   string `json:"url"`
}

// TrackerService 负责会话模式的判定和所有状态操作。
type TrackerService struct {
	persister      *StatePersister
	publisher      EventPublisher // 可为 nil
	defaultBaseURL string
}

// NewTrackerService 创建 TrackerService 实例。
// defaultBaseURL 在分享请求未提供 base_url 时使用。
func NewTrackerService(persister *StatePersister, publisher EventPublisher, defaultBaseURL string) *TrackerService {
	if persister == nil {
		panic("StatePersister cannot be nil for TrackerService")
	}
	return &TrackerService{
		persister:      persister,
		publisher:      publisher,
		defaultBaseURL: defaultBaseURL,
	}
}

// OpenSession 在会话开始时确定一次模式。
// 存在可解码的令牌时进入只读模式，完全绕过持久化；解码失败按没有令牌处理。
func (s *TrackerService) OpenSession(ctx context.Context, clientID, token string) *domain.Session {
	logCtx := logrus.WithFields(logrus.Fields{"client_id": clientID, "operation": "OpenSession"})

	if token != "" {
		state, err := codec.Decode(token)
		if err == nil {
			logCtx.WithField("mode", domain.ReadOnly).Info("Opened read-only session from share token")
			return domain.NewReadOnlySession(state)
		}
		logCtx.WithError(err).Warn("Failed to decode share token, falling back to interactive mode")
	}

	state, ok := s.persister.Load(ctx, clientID)
	if !ok {
		state = domain.NewTrackerState()
	}
	logCtx.WithFields(logrus.Fields{"mode": domain.Interactive, "restored": ok}).Debug("Opened interactive session")
	return domain.NewInteractiveSession(clientID, state)
}

// Cycle 将区域推进到下一个状态，然后保存并发布事件。
func (s *TrackerService) Cycle(ctx context.Context, session *domain.Session, regionID string) (CycleResult, error) {
	if session.ReadOnly() {
		return CycleResult{}, ErrReadOnly
	}
	logCtx := logrus.WithFields(logrus.Fields{
		"client_id": session.ClientID,
		"region_id": regionID,
		"operation": "Cycle",
	})

	id, err := domain.ParseRegionID(regionID)
	if err != nil {
		logCtx.WithError(err).Debug("Ignoring cycle for unknown region")
		return CycleResult{}, fmt.Errorf("%w: %q", mapRepoError(err), regionID)
	}
	region, _ := domain.LookupRegion(id)

	session.State.Cycle(id)
	result := CycleResult{
		Region:    region,
		Status:    session.State.Get(id),
		Progress:  session.State.Progress(),
		Persisted: true,
	}

	if err := s.persister.Save(ctx, session.ClientID, session.State); err != nil {
		// 非致命，内存状态仍然有效
		result.Persisted = false
	}
	s.publish(ctx, session)

	logCtx.WithFields(logrus.Fields{"status": result.Status, "persisted": result.Persisted}).Info("Region cycled")
	return result, nil
}

// Reset 将所有区域恢复为 NotMarked 并清除持久化记录。
// 清除失败时内存状态仍已重置，返回包装了 ErrStorageUnavailable 的错误。
func (s *TrackerService) Reset(ctx context.Context, session *domain.Session) error {
	if session.ReadOnly() {
		return ErrReadOnly
	}
	session.State = domain.NewTrackerState()

	err := s.persister.Clear(ctx, session.ClientID)
	s.publish(ctx, session)

	logrus.WithFields(logrus.Fields{
		"client_id": session.ClientID,
		"operation": "Reset",
		"persisted": err == nil,
	}).Info("Tracker reset")
	return err
}

// Share 生成当前状态的分享令牌和链接。baseURL 为空时使用默认地址。
func (s *TrackerService) Share(ctx context.Context, session *domain.Session, baseURL string) (ShareResult, error) {
	if baseURL == "" {
		baseURL = s.defaultBaseURL
	}
	logCtx := logrus.WithFields(logrus.Fields{"client_id": session.ClientID, "mode": session.Mode, "operation": "Share"})

	token, err := codec.Encode(session.State)
	if err != nil {
		logCtx.WithError(err).Error("Failed to encode share token")
		return ShareResult{}, ErrInternalServer
	}
	shareURL, err := codec.BuildShareURL(baseURL, token)
	if err != nil {
		logCtx.WithError(err).Warn("Invalid share base url")
		return ShareResult{}, fmt.Errorf("%w: %w", ErrInvalidBaseURL, err)
	}
	logCtx.WithField("token_length", len(token)).Info("Share link generated")
	return ShareResult{Token: token, URL: shareURL}, nil
}

// Reload 重新读取持久化状态（标签页重新可见时），后写者胜出。只读模式下不做任何事。
func (s *TrackerService) Reload(ctx context.Context, session *domain.Session) bool {
	if session.ReadOnly() {
		return false
	}
	state, ok := s.persister.Load(ctx, session.ClientID)
	if !ok {
		return false
	}
	session.State = state
	return true
}

// Progress 返回已访问数量和百分比等汇总
func (s *TrackerService) Progress(session *domain.Session) domain.Progress {
	return session.State.Progress()
}

// publish 发布失败只记录日志，其他标签页仍会在重新可见时重新加载
func (s *TrackerService) publish(ctx context.Context, session *domain.Session) {
	if s.publisher == nil || session.ClientID == "" {
		return
	}
	payload, err := json.Marshal(NewStateEvent(session.State))
	if err != nil {
		logrus.WithError(err).WithField("client_id", session.ClientID).Error("Failed to marshal state event")
		return
	}
	if err := s.publisher.PublishStateEvent(ctx, session.ClientID, payload); err != nil {
		logrus.WithError(err).WithField("client_id", session.ClientID).Warn("Failed to publish state event")
	}
}

// NewStateEvent 构造状态变更事件
func NewStateEvent(state domain.TrackerState) StateEvent {
	return StateEvent{Type: StateEventType, State: state, Progress: state.Progress()}
}

// IsNonFatal 判断错误是否只影响持久化，调用方可以继续使用内存状态
func IsNonFatal(err error) bool {
	return errors.Is(err, ErrStorageUnavailable)
}
