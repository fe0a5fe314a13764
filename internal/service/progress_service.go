package service

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"studyflow/backend/internal/dto"
	"studyflow/backend/internal/model"
	"studyflow/backend/internal/repository"
	"studyflow/backend/internal/scheduler"
)

// ── 进度模块业务错误 ──

var (
	ErrInvalidLoggedAt = errors.New("记录时间格式错误，应为 RFC3339")
)

// ProgressService 进度跟踪业务接口
type ProgressService interface {
	// 记录一次学习时间（追加日志 + 派生字段更新，进度满格自动完成）
	LogSession(ctx context.Context, req *dto.LogSessionRequest) (*dto.LogSessionResponse, error)
	// 查询子任务的学习记录
	ListLogs(ctx context.Context, subtaskID string, offset, limit int) ([]dto.SessionLogResponse, int64, error)
	// 校验并修复任务下所有子任务的时长漂移
	ValidateDurations(ctx context.Context, taskID string) (*dto.ValidateDurationsResponse, error)
}

type progressService struct {
	repo    *repository.Repository
	tracker *scheduler.ProgressTracker
	logger  *zap.Logger
}

// NewProgressService 创建 ProgressService 实例
func NewProgressService(repo *repository.Repository, logger *zap.Logger) ProgressService {
	return &progressService{
		repo:    repo,
		tracker: scheduler.NewProgressTracker(logger),
		logger:  logger,
	}
}

func (s *progressService) LogSession(ctx context.Context, req *dto.LogSessionRequest) (*dto.LogSessionResponse, error) {
	subtask, err := s.repo.Subtask.GetByID(ctx, req.SubtaskID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrSubtaskNotFound
		}
		s.logger.Error("查询子任务失败", zap.Error(err))
		return nil, err
	}

	at := time.Time{}
	if req.LoggedAt != "" {
		at, err = time.Parse(time.RFC3339, req.LoggedAt)
		if err != nil {
			return nil, ErrInvalidLoggedAt
		}
	}

	wasCompleted := subtask.Completed
	updated, entry, err := s.tracker.LogSession(*subtask, req.Minutes, req.Notes, at)
	if err != nil {
		return nil, err
	}

	if err := s.repo.SessionLog.Create(ctx, &entry); err != nil {
		s.logger.Error("写入学习记录失败", zap.Error(err))
		return nil, err
	}
	if err := s.repo.Subtask.Update(ctx, &updated); err != nil {
		s.logger.Error("更新子任务进度失败", zap.Error(err))
		return nil, err
	}

	return &dto.LogSessionResponse{
		Subtask:       toSubtaskBrief(&updated),
		LogID:         entry.LogID,
		AutoCompleted: updated.Completed && !wasCompleted,
	}, nil
}

func (s *progressService) ListLogs(ctx context.Context, subtaskID string, offset, limit int) ([]dto.SessionLogResponse, int64, error) {
	if limit <= 0 {
		limit = 20
	}
	logs, total, err := s.repo.SessionLog.ListBySubtask(ctx, subtaskID, offset, limit)
	if err != nil {
		s.logger.Error("查询学习记录失败", zap.Error(err))
		return nil, 0, err
	}

	result := make([]dto.SessionLogResponse, 0, len(logs))
	for _, log := range logs {
		result = append(result, dto.SessionLogResponse{
			ID:        log.LogID,
			SubtaskID: log.SubtaskID,
			Minutes:   log.Minutes,
			Notes:     log.Notes,
			LoggedAt:  log.LoggedAt.Format(time.RFC3339),
		})
	}
	return result, total, nil
}

// ValidateDurations 对任务下所有子任务执行时长漂移修复。
// 每个被修复的子任务留一条 duration_repair 变更记录（有活跃计划时）。
func (s *progressService) ValidateDurations(ctx context.Context, taskID string) (*dto.ValidateDurationsResponse, error) {
	subtasks, err := s.repo.Subtask.ListByTask(ctx, taskID)
	if err != nil {
		s.logger.Error("查询子任务失败", zap.Error(err))
		return nil, err
	}

	var planID string
	if plan, err := s.repo.StudyPlan.GetActiveByTask(ctx, taskID); err == nil {
		planID = plan.PlanID
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		s.logger.Error("查询学习计划失败", zap.Error(err))
		return nil, err
	}

	repairedIDs := []string{}
	for i := range subtasks {
		updated, repaired := s.tracker.ValidateDurations(subtasks[i])
		if !repaired {
			continue
		}
		if err := s.repo.Subtask.Update(ctx, &updated); err != nil {
			s.logger.Error("写回修复后的子任务失败", zap.Error(err))
			return nil, err
		}
		if planID != "" {
			if err := s.repo.PlanChangeLog.Create(ctx, &model.PlanChangeLog{
				PlanID:     planID,
				SubtaskID:  updated.SubtaskID,
				ChangeType: "duration_repair",
				Reason:     "时长字段漂移已自动修复",
			}); err != nil {
				s.logger.Error("写入变更记录失败", zap.Error(err))
				return nil, err
			}
		}
		repairedIDs = append(repairedIDs, updated.SubtaskID)
	}

	return &dto.ValidateDurationsResponse{
		RepairedSubtaskIDs: repairedIDs,
		CheckedCount:       len(subtasks),
	}, nil
}

func toSubtaskBrief(st *model.Subtask) *dto.SubtaskBrief {
	return &dto.SubtaskBrief{
		ID:                 st.SubtaskID,
		Title:              st.Title,
		Phase:              string(st.Phase),
		Difficulty:         string(st.Difficulty),
		EffectiveDuration:  st.EffectiveDuration(),
		TimeSpent:          st.TimeSpent,
		RemainingTime:      st.RemainingTime(),
		ProgressPercentage: st.ProgressPercentage(),
		Completed:          st.Completed,
	}
}
