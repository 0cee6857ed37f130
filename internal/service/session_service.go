package service

import (
	"context"
	"strings"

	"classdoc-go/internal/apperr"
	"classdoc-go/internal/model"
	"classdoc-go/internal/repository"
	"classdoc-go/pkg/log"
)

// SessionService 接口定义了会话状态相关的业务操作。
// 选择文档前会经过处理闸门，处理失败时清空选择。
type SessionService interface {
	Get(ctx context.Context, sessionID string) (*model.Session, error)
	Select(ctx context.Context, sessionID string, doc model.Document) (*model.Session, model.IndexState, error)
	ClearSelection(ctx context.Context, sessionID string) (*model.Session, error)
	RecordAnswer(ctx context.Context, sessionID, question, answer string) error
	RecordComparison(ctx context.Context, sessionID, comparison string) error
}

type sessionService struct {
	sessions   repository.SessionRepository
	processing ProcessingService
}

// NewSessionService 创建一个新的 SessionService 实例。
func NewSessionService(sessions repository.SessionRepository, processing ProcessingService) SessionService {
	return &sessionService{sessions: sessions, processing: processing}
}

// Get 读取会话，不存在时返回空会话。
func (s *sessionService) Get(ctx context.Context, sessionID string) (*model.Session, error) {
	if strings.TrimSpace(sessionID) == "" {
		return nil, apperr.Validation("GetSession", "会话 ID 不能为空")
	}
	session, err := s.sessions.Get(ctx, sessionID)
	if err != nil {
		log.Errorf("[SessionService] 读取会话失败, session: %s, error: %v", sessionID, err)
		return nil, apperr.Wrap(apperr.KindCatalog, "GetSession", err, "读取会话失败")
	}
	return session, nil
}

// Select 先确保文档已处理，再把它记为当前选择。
func (s *sessionService) Select(ctx context.Context, sessionID string, doc model.Document) (*model.Session, model.IndexState, error) {
	session, err := s.Get(ctx, sessionID)
	if err != nil {
		return nil, "", err
	}

	state, gateErr := s.processing.EnsureIndexed(ctx, doc)
	if gateErr != nil {
		session.ClearSelection()
		if err := s.save(ctx, session); err != nil {
			log.Warnf("[SessionService] 清空选择失败, session: %s, error: %v", sessionID, err)
		}
		return session, state, gateErr
	}

	session.Select(doc)
	if err := s.save(ctx, session); err != nil {
		return nil, state, err
	}
	return session, state, nil
}

// ClearSelection 清空当前选择及派生状态。
func (s *sessionService) ClearSelection(ctx context.Context, sessionID string) (*model.Session, error) {
	session, err := s.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	session.ClearSelection()
	if err := s.save(ctx, session); err != nil {
		return nil, err
	}
	return session, nil
}

// RecordAnswer 保存最近一次问答。
func (s *sessionService) RecordAnswer(ctx context.Context, sessionID, question, answer string) error {
	session, err := s.Get(ctx, sessionID)
	if err != nil {
		return err
	}
	session.Question = question
	session.Answer = answer
	return s.save(ctx, session)
}

// RecordComparison 保存最近一次对比结果。
func (s *sessionService) RecordComparison(ctx context.Context, sessionID, comparison string) error {
	session, err := s.Get(ctx, sessionID)
	if err != nil {
		return err
	}
	session.Comparison = comparison
	return s.save(ctx, session)
}

func (s *sessionService) save(ctx context.Context, session *model.Session) error {
	if err := s.sessions.Save(ctx, session); err != nil {
		log.Errorf("[SessionService] 保存会话失败, session: %s, error: %v", session.ID, err)
		return apperr.Wrap(apperr.KindCatalog, "SaveSession", err, "保存会话失败")
	}
	return nil
}
