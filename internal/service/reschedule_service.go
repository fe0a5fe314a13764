package service

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"studyflow/backend/config"
	"studyflow/backend/internal/dto"
	"studyflow/backend/internal/model"
	"studyflow/backend/internal/repository"
	"studyflow/backend/internal/scheduler"
)

// ── 重排模块业务错误 ──

var (
	ErrSubtaskNotFound = errors.New("子任务不存在")
	ErrSubtaskDone     = errors.New("子任务已完成，无需重排")
)

// RescheduleService 冲突消解与重排业务接口
type RescheduleService interface {
	// 批量冲突消解：新日历事件顶掉的会话整体作废并补排
	ResolveConflicts(ctx context.Context, req *dto.ResolveConflictsRequest) (*dto.ResolveConflictsResponse, error)
	// 单子任务智能重排：推荐并落库下一个最佳窗口
	RescheduleSubtask(ctx context.Context, req *dto.RescheduleSubtaskRequest) (*dto.RescheduleSubtaskResponse, error)
}

type rescheduleService struct {
	cfg         *config.SchedulerConfig
	repo        *repository.Repository
	rescheduler *scheduler.Rescheduler
	logger      *zap.Logger
}

// NewRescheduleService 创建 RescheduleService 实例
func NewRescheduleService(cfg *config.Config, repo *repository.Repository, logger *zap.Logger) RescheduleService {
	return &rescheduleService{
		cfg:         &cfg.Scheduler,
		repo:        repo,
		rescheduler: scheduler.NewRescheduler(logger),
		logger:      logger,
	}
}

// ════════════════════════════════════════════════════════════
// ResolveConflicts — 批量冲突消解
// ════════════════════════════════════════════════════════════
//
// 被新事件顶掉的会话删除重建；干净会话一行不动。
// 每个被作废的会话都留一条 conflict_reschedule 变更记录。

func (s *rescheduleService) ResolveConflicts(ctx context.Context, req *dto.ResolveConflictsRequest) (*dto.ResolveConflictsResponse, error) {
	task, err := s.repo.Task.GetWithSubtasks(ctx, req.TaskID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrTaskNotFound
		}
		s.logger.Error("查询任务失败", zap.Error(err))
		return nil, err
	}

	plan, err := s.repo.StudyPlan.GetActiveByTask(ctx, task.TaskID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrPlanNotFound
		}
		s.logger.Error("查询学习计划失败", zap.Error(err))
		return nil, err
	}

	startDate := time.Now()
	if req.StartDate != "" {
		d, err := scheduler.ParseDate(req.StartDate)
		if err != nil {
			return nil, ErrInvalidStartDate
		}
		startDate = d
	}

	existing, err := s.repo.ScheduledSession.ListByPlan(ctx, plan.PlanID)
	if err != nil {
		s.logger.Error("查询已排会话失败", zap.Error(err))
		return nil, err
	}
	slots, err := s.repo.AvailabilitySlot.ListActive(ctx)
	if err != nil {
		s.logger.Error("查询可用时段失败", zap.Error(err))
		return nil, err
	}
	events, err := s.repo.CalendarEvent.ListBetween(ctx, startDate, startDate.AddDate(0, 0, s.cfg.HorizonDays))
	if err != nil {
		s.logger.Error("查询日历事件失败", zap.Error(err))
		return nil, err
	}

	opts := scheduler.Options{
		StartDate:                 startDate,
		HorizonDays:               s.cfg.HorizonDays,
		InterSessionBufferMinutes: s.cfg.InterSessionBufferMinutes,
		DailyCapMinutes:           s.cfg.DailyCapMinutes,
		Mode:                      scheduler.Mode(s.cfg.Mode),
		FlexibilityFactor:         s.cfg.FlexibilityFactor,
	}
	if req.Mode != "" {
		if req.Mode != string(scheduler.ModeStrict) && req.Mode != string(scheduler.ModeFlexible) {
			return nil, ErrInvalidMode
		}
		opts.Mode = scheduler.Mode(req.Mode)
	}

	result := s.rescheduler.ResolveConflicts(task.Subtasks, slots, existing, events, opts)

	resp := &dto.ResolveConflictsResponse{
		Success:            result.Success,
		RemovedSessionIDs:  result.RemovedSessionIDs,
		AffectedSubtaskIDs: result.AffectedSubtaskIDs,
		Message:            result.Message,
	}
	if len(result.RemovedSessionIDs) == 0 {
		return resp, nil
	}

	// 被作废会话的原日期，用于变更记录
	originalDate := make(map[string]string)
	removedSet := make(map[string]bool, len(result.RemovedSessionIDs))
	for _, id := range result.RemovedSessionIDs {
		removedSet[id] = true
	}
	for i := range existing {
		if removedSet[existing[i].SessionID] {
			d := scheduler.FormatDate(existing[i].Date)
			if prev, ok := originalDate[existing[i].SubtaskID]; !ok || d < prev {
				originalDate[existing[i].SubtaskID] = d
			}
		}
	}

	if err := s.repo.ScheduledSession.DeleteByIDs(ctx, result.RemovedSessionIDs); err != nil {
		s.logger.Error("删除冲突会话失败", zap.Error(err))
		return nil, err
	}

	rows := make([]model.ScheduledSession, 0, len(result.Result.Sessions))
	newDate := make(map[string]string)
	for _, sess := range result.Result.Sessions {
		d, err := scheduler.ParseDate(sess.Date)
		if err != nil {
			continue
		}
		if prev, ok := newDate[sess.SubtaskID]; !ok || sess.Date < prev {
			newDate[sess.SubtaskID] = sess.Date
		}
		rows = append(rows, model.ScheduledSession{
			SessionID:     uuid.NewString(),
			PlanID:        plan.PlanID,
			TaskID:        task.TaskID,
			SubtaskID:     sess.SubtaskID,
			Date:          d,
			StartTime:     sess.StartTime,
			EndTime:       sess.EndTime,
			Duration:      sess.Duration,
			SegmentIndex:  sess.SegmentIndex,
			TotalSegments: sess.TotalSegments,
			IsSegmented:   sess.IsSegmented,
			Status:        "planned",
		})
	}
	if err := s.repo.ScheduledSession.BatchCreate(ctx, rows); err != nil {
		s.logger.Error("写入补排会话失败", zap.Error(err))
		return nil, err
	}

	for _, subtaskID := range result.AffectedSubtaskIDs {
		entry := &model.PlanChangeLog{
			PlanID:     plan.PlanID,
			SubtaskID:  subtaskID,
			ChangeType: "conflict_reschedule",
			Reason:     "会话与新日历事件冲突，已自动补排",
		}
		if d, ok := originalDate[subtaskID]; ok {
			entry.OriginalDate = &d
		}
		if d, ok := newDate[subtaskID]; ok {
			entry.NewDate = &d
		}
		if err := s.repo.PlanChangeLog.Create(ctx, entry); err != nil {
			s.logger.Error("写入变更记录失败", zap.Error(err))
			return nil, err
		}
	}

	// 计划状态与总量同步
	plan.TotalScheduledMinutes += result.Result.TotalScheduledMinutes - removedMinutes(existing, removedSet)
	if result.Success {
		plan.Status = "active"
	} else {
		plan.Status = "needs_reschedule"
	}
	if err := s.repo.StudyPlan.Update(ctx, plan); err != nil {
		s.logger.Error("更新计划状态失败", zap.Error(err))
		return nil, err
	}

	for i := range rows {
		resp.NewSessions = append(resp.NewSessions, toSessionResponse(&rows[i], indexSubtasks(task.Subtasks)))
	}
	return resp, nil
}

func removedMinutes(sessions []model.ScheduledSession, removed map[string]bool) int {
	total := 0
	for _, s := range sessions {
		if removed[s.SessionID] {
			total += s.Duration
		}
	}
	return total
}

// ════════════════════════════════════════════════════════════
// RescheduleSubtask — 单子任务智能重排
// ════════════════════════════════════════════════════════════

func (s *rescheduleService) RescheduleSubtask(ctx context.Context, req *dto.RescheduleSubtaskRequest) (*dto.RescheduleSubtaskResponse, error) {
	subtask, err := s.repo.Subtask.GetByID(ctx, req.SubtaskID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrSubtaskNotFound
		}
		s.logger.Error("查询子任务失败", zap.Error(err))
		return nil, err
	}
	if subtask.Completed || subtask.RemainingTime() <= 0 {
		return nil, ErrSubtaskDone
	}

	task, err := s.repo.Task.GetByID(ctx, subtask.TaskID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrTaskNotFound
		}
		s.logger.Error("查询任务失败", zap.Error(err))
		return nil, err
	}

	startDate := time.Now()
	if req.StartDate != "" {
		d, err := scheduler.ParseDate(req.StartDate)
		if err != nil {
			return nil, ErrInvalidStartDate
		}
		startDate = d
	}

	slots, err := s.repo.AvailabilitySlot.ListActive(ctx)
	if err != nil {
		s.logger.Error("查询可用时段失败", zap.Error(err))
		return nil, err
	}
	sessions, err := s.repo.ScheduledSession.ListPlannedFrom(ctx, startDate)
	if err != nil {
		s.logger.Error("查询既有会话失败", zap.Error(err))
		return nil, err
	}
	events, err := s.repo.CalendarEvent.ListBetween(ctx, startDate, startDate.AddDate(0, 0, s.cfg.HorizonDays))
	if err != nil {
		s.logger.Error("查询日历事件失败", zap.Error(err))
		return nil, err
	}

	// 该子任务自己的未来会话即将整体被替换，不计入占用
	var displaced []model.ScheduledSession
	occupancy := make([]model.ScheduledSession, 0, len(sessions))
	for i := range sessions {
		if sessions[i].SubtaskID == subtask.SubtaskID {
			displaced = append(displaced, sessions[i])
			continue
		}
		occupancy = append(occupancy, sessions[i])
	}

	rec := s.rescheduler.RescheduleSubtask(*subtask, slots, occupancy, events, scheduler.SingleRescheduleOptions{
		StartDate:   startDate,
		HorizonDays: s.cfg.HorizonDays,
		DueDate:     task.DueDate,
		Priority:    task.Priority,
	})

	resp := &dto.RescheduleSubtaskResponse{
		Found:       rec.Found,
		Date:        rec.Date,
		StartTime:   rec.StartTime,
		EndTime:     rec.EndTime,
		Duration:    rec.Duration,
		Urgency:     string(rec.Urgency),
		Rationale:   rec.Rationale,
		Suggestions: rec.Suggestions,
	}
	if !rec.Found {
		return resp, nil
	}

	plan, err := s.repo.StudyPlan.GetActiveByTask(ctx, subtask.TaskID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrPlanNotFound
		}
		s.logger.Error("查询学习计划失败", zap.Error(err))
		return nil, err
	}

	// 旧会话先整体作废，避免同一子任务新旧并存、时长超过剩余
	displacedMinutes := 0
	if len(displaced) > 0 {
		ids := make([]string, 0, len(displaced))
		for i := range displaced {
			ids = append(ids, displaced[i].SessionID)
			displacedMinutes += displaced[i].Duration
		}
		if err := s.repo.ScheduledSession.DeleteByIDs(ctx, ids); err != nil {
			s.logger.Error("删除被替换会话失败", zap.Error(err))
			return nil, err
		}
	}

	date, err := scheduler.ParseDate(rec.Date)
	if err != nil {
		return nil, err
	}
	row := model.ScheduledSession{
		SessionID: uuid.NewString(),
		PlanID:    plan.PlanID,
		TaskID:    subtask.TaskID,
		SubtaskID: subtask.SubtaskID,
		Date:      date,
		StartTime: rec.StartTime,
		EndTime:   rec.EndTime,
		Duration:  rec.Duration,
		Status:    "planned",
	}
	if err := s.repo.ScheduledSession.BatchCreate(ctx, []model.ScheduledSession{row}); err != nil {
		s.logger.Error("写入重排会话失败", zap.Error(err))
		return nil, err
	}

	newDate := rec.Date
	entry := &model.PlanChangeLog{
		PlanID:     plan.PlanID,
		SubtaskID:  subtask.SubtaskID,
		ChangeType: "manual_reschedule",
		NewDate:    &newDate,
		Reason:     rec.Rationale,
	}
	if len(displaced) > 0 {
		orig := scheduler.FormatDate(displaced[0].Date)
		for i := 1; i < len(displaced); i++ {
			if d := scheduler.FormatDate(displaced[i].Date); d < orig {
				orig = d
			}
		}
		entry.OriginalDate = &orig
	}
	if err := s.repo.PlanChangeLog.Create(ctx, entry); err != nil {
		s.logger.Error("写入变更记录失败", zap.Error(err))
		return nil, err
	}

	plan.TotalScheduledMinutes += rec.Duration - displacedMinutes
	if err := s.repo.StudyPlan.Update(ctx, plan); err != nil {
		s.logger.Error("更新计划总量失败", zap.Error(err))
		return nil, err
	}

	s.logger.Info("单子任务重排完成",
		zap.String("subtask_id", subtask.SubtaskID),
		zap.String("date", rec.Date),
		zap.String("urgency", string(rec.Urgency)))

	sessResp := toSessionResponse(&row, nil)
	sessResp.SubtaskTitle = subtask.Title
	sessResp.Phase = string(subtask.Phase)
	resp.Session = &sessResp
	return resp, nil
}
