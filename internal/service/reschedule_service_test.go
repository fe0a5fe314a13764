package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"

	"studyflow/backend/internal/dto"
	"studyflow/backend/internal/model"
)

// ── 测试辅助 ──

func setupTestRescheduleService() (RescheduleService, *testRepos) {
	repos := newTestRepos()
	svc := NewRescheduleService(testSchedulerConfig(), repos.toRepository(), zap.NewNop())
	return svc, repos
}

// ════════════════════════════════════════════════════════════
// ResolveConflicts 测试
// ════════════════════════════════════════════════════════════

func TestRescheduleService_ResolveConflicts_NoConflicts(t *testing.T) {
	svc, repos := setupTestRescheduleService()
	seedTask(repos, "task-1")
	seedSubtask(repos, "st-1", "task-1", 60)
	seedSlot(repos, 1, "09:00", "12:00")

	plan := &model.StudyPlan{PlanID: "plan-1", TaskID: "task-1", Status: "active", TotalScheduledMinutes: 60}
	repos.plan.plans["plan-1"] = plan
	repos.session.sessions["sess-1"] = &model.ScheduledSession{
		SessionID: "sess-1", PlanID: "plan-1", TaskID: "task-1", SubtaskID: "st-1",
		Date: mustDate(t, testStartDate), StartTime: "09:00", EndTime: "10:00", Duration: 60, Status: "planned",
	}

	resp, err := svc.ResolveConflicts(context.Background(), &dto.ResolveConflictsRequest{
		TaskID:    "task-1",
		StartDate: testStartDate,
	})
	if err != nil {
		t.Fatalf("ResolveConflicts 应成功: %v", err)
	}
	if !resp.Success {
		t.Error("期望 Success=true")
	}
	if len(resp.RemovedSessionIDs) != 0 {
		t.Errorf("无冲突时不应作废会话：%v", resp.RemovedSessionIDs)
	}
	if _, ok := repos.session.sessions["sess-1"]; !ok {
		t.Error("干净会话不应被删除")
	}
}

// 被事件顶掉的会话删除重建，干净会话一行不动
func TestRescheduleService_ResolveConflicts_ReplacesAndLogs(t *testing.T) {
	svc, repos := setupTestRescheduleService()
	seedTask(repos, "task-1")
	seedSubtask(repos, "st-1", "task-1", 120)
	seedSlot(repos, 1, "09:00", "12:00")
	seedSlot(repos, 2, "09:00", "12:00")

	plan := &model.StudyPlan{PlanID: "plan-1", TaskID: "task-1", Status: "active", TotalScheduledMinutes: 120}
	repos.plan.plans["plan-1"] = plan
	repos.session.sessions["sess-hit"] = &model.ScheduledSession{
		SessionID: "sess-hit", PlanID: "plan-1", TaskID: "task-1", SubtaskID: "st-1",
		Date: mustDate(t, "2026-01-05"), StartTime: "09:00", EndTime: "10:00", Duration: 60, Status: "planned",
	}
	repos.session.sessions["sess-clean"] = &model.ScheduledSession{
		SessionID: "sess-clean", PlanID: "plan-1", TaskID: "task-1", SubtaskID: "st-1",
		Date: mustDate(t, "2026-01-06"), StartTime: "09:00", EndTime: "10:00", Duration: 60, Status: "planned",
	}
	// 新日历事件顶掉周一的会话
	_ = repos.event.Create(context.Background(), &model.CalendarEvent{
		Title:   "临时会议",
		StartAt: mustDate(t, "2026-01-05").Add(9*time.Hour + 30*time.Minute),
		EndAt:   mustDate(t, "2026-01-05").Add(10*time.Hour + 30*time.Minute),
		Source:  "ics",
	})

	resp, err := svc.ResolveConflicts(context.Background(), &dto.ResolveConflictsRequest{
		TaskID:    "task-1",
		StartDate: testStartDate,
	})
	if err != nil {
		t.Fatalf("ResolveConflicts 应成功: %v", err)
	}

	if len(resp.RemovedSessionIDs) != 1 || resp.RemovedSessionIDs[0] != "sess-hit" {
		t.Fatalf("期望仅作废 sess-hit，实际 %v", resp.RemovedSessionIDs)
	}
	if len(resp.AffectedSubtaskIDs) != 1 || resp.AffectedSubtaskIDs[0] != "st-1" {
		t.Errorf("期望受影响子任务 st-1，实际 %v", resp.AffectedSubtaskIDs)
	}
	if _, ok := repos.session.sessions["sess-hit"]; ok {
		t.Error("冲突会话应已删除")
	}
	if _, ok := repos.session.sessions["sess-clean"]; !ok {
		t.Error("干净会话不应被删除")
	}
	if len(resp.NewSessions) == 0 {
		t.Fatal("应补排新会话")
	}
	// 只补被作废的 60 分钟
	total := 0
	for _, sess := range resp.NewSessions {
		total += sess.Duration
	}
	if total != 60 {
		t.Errorf("期望补排 60 分钟，实际 %d", total)
	}

	// 变更记录
	if len(repos.changeLog.logs) != 1 {
		t.Fatalf("期望 1 条变更记录，实际 %d", len(repos.changeLog.logs))
	}
	entry := repos.changeLog.logs[0]
	if entry.ChangeType != "conflict_reschedule" || entry.SubtaskID != "st-1" {
		t.Errorf("变更记录不符：%+v", entry)
	}
	if entry.OriginalDate == nil || *entry.OriginalDate != "2026-01-05" {
		t.Errorf("变更记录应携带原日期，实际 %+v", entry.OriginalDate)
	}

	// 计划总量守恒：作废 60 + 补排 60
	if repos.plan.plans["plan-1"].TotalScheduledMinutes != 120 {
		t.Errorf("计划总量应保持 120，实际 %d", repos.plan.plans["plan-1"].TotalScheduledMinutes)
	}
}

func TestRescheduleService_ResolveConflicts_PlanNotFound(t *testing.T) {
	svc, repos := setupTestRescheduleService()
	seedTask(repos, "task-1")
	seedSubtask(repos, "st-1", "task-1", 60)

	_, err := svc.ResolveConflicts(context.Background(), &dto.ResolveConflictsRequest{TaskID: "task-1"})
	if !errors.Is(err, ErrPlanNotFound) {
		t.Errorf("期望 ErrPlanNotFound，实际: %v", err)
	}
}

// ════════════════════════════════════════════════════════════
// RescheduleSubtask 测试
// ════════════════════════════════════════════════════════════

func TestRescheduleService_RescheduleSubtask_PersistsSession(t *testing.T) {
	svc, repos := setupTestRescheduleService()
	seedTask(repos, "task-1")
	seedSubtask(repos, "st-1", "task-1", 60)
	seedSlot(repos, 1, "09:00", "11:00")
	plan := &model.StudyPlan{PlanID: "plan-1", TaskID: "task-1", Status: "active", TotalScheduledMinutes: 0}
	repos.plan.plans["plan-1"] = plan

	resp, err := svc.RescheduleSubtask(context.Background(), &dto.RescheduleSubtaskRequest{
		SubtaskID: "st-1",
		StartDate: testStartDate,
	})
	if err != nil {
		t.Fatalf("RescheduleSubtask 应成功: %v", err)
	}
	if !resp.Found {
		t.Fatalf("期望找到推荐窗口：%+v", resp)
	}
	if resp.Date != testStartDate || resp.StartTime != "09:00" {
		t.Errorf("期望推荐周一 09:00，实际 %s %s", resp.Date, resp.StartTime)
	}
	if resp.Duration != 60 {
		t.Errorf("期望时长 60，实际 %d", resp.Duration)
	}
	if resp.Session == nil {
		t.Fatal("应返回已落库的会话")
	}
	if resp.Rationale == "" {
		t.Error("应返回推荐理由")
	}

	// 落库校验
	if len(repos.session.sessions) != 1 {
		t.Errorf("期望落库 1 个会话，实际 %d", len(repos.session.sessions))
	}
	if len(repos.changeLog.logs) != 1 || repos.changeLog.logs[0].ChangeType != "manual_reschedule" {
		t.Errorf("期望 1 条 manual_reschedule 变更记录，实际 %+v", repos.changeLog.logs)
	}
	if repos.plan.plans["plan-1"].TotalScheduledMinutes != 60 {
		t.Errorf("计划总量应累加 60，实际 %d", repos.plan.plans["plan-1"].TotalScheduledMinutes)
	}
}

// 重排后同一子任务的旧会话必须整体作废，不得新旧并存
func TestRescheduleService_RescheduleSubtask_ReplacesDisplacedSession(t *testing.T) {
	svc, repos := setupTestRescheduleService()
	seedTask(repos, "task-1")
	seedSubtask(repos, "st-1", "task-1", 60)
	seedSlot(repos, 1, "09:00", "11:00")
	plan := &model.StudyPlan{PlanID: "plan-1", TaskID: "task-1", Status: "active", TotalScheduledMinutes: 60}
	repos.plan.plans["plan-1"] = plan
	repos.session.sessions["sess-old"] = &model.ScheduledSession{
		SessionID: "sess-old", PlanID: "plan-1", TaskID: "task-1", SubtaskID: "st-1",
		Date: mustDate(t, testStartDate), StartTime: "09:00", EndTime: "10:00", Duration: 60, Status: "planned",
	}

	resp, err := svc.RescheduleSubtask(context.Background(), &dto.RescheduleSubtaskRequest{
		SubtaskID: "st-1",
		StartDate: testStartDate,
	})
	if err != nil {
		t.Fatalf("RescheduleSubtask 应成功: %v", err)
	}
	if !resp.Found {
		t.Fatalf("期望找到推荐窗口：%+v", resp)
	}

	// 旧会话已删除，仅剩新落库的那一条
	if _, ok := repos.session.sessions["sess-old"]; ok {
		t.Error("被替换的旧会话应已删除")
	}
	if len(repos.session.sessions) != 1 {
		t.Fatalf("期望仅剩 1 个会话，实际 %d", len(repos.session.sessions))
	}
	total := 0
	for _, sess := range repos.session.sessions {
		if sess.SubtaskID != "st-1" {
			t.Errorf("会话归属不符：%+v", sess)
		}
		total += sess.Duration
	}
	if total != 60 {
		t.Errorf("子任务会话合计不应超过剩余 60，实际 %d", total)
	}

	// 计划总量按差额调整：作废 60 + 补排 60
	if repos.plan.plans["plan-1"].TotalScheduledMinutes != 60 {
		t.Errorf("计划总量应保持 60，实际 %d", repos.plan.plans["plan-1"].TotalScheduledMinutes)
	}

	// 变更记录带原日期
	if len(repos.changeLog.logs) != 1 {
		t.Fatalf("期望 1 条变更记录，实际 %d", len(repos.changeLog.logs))
	}
	entry := repos.changeLog.logs[0]
	if entry.OriginalDate == nil || *entry.OriginalDate != testStartDate {
		t.Errorf("变更记录应携带原日期，实际 %+v", entry.OriginalDate)
	}
}

func TestRescheduleService_RescheduleSubtask_NoWindow(t *testing.T) {
	svc, repos := setupTestRescheduleService()
	seedTask(repos, "task-1")
	seedSubtask(repos, "st-1", "task-1", 60)
	// 不种任何可用时段

	resp, err := svc.RescheduleSubtask(context.Background(), &dto.RescheduleSubtaskRequest{
		SubtaskID: "st-1",
		StartDate: testStartDate,
	})
	if err != nil {
		t.Fatalf("无窗口不是错误: %v", err)
	}
	if resp.Found {
		t.Error("期望 Found=false")
	}
	if len(resp.Suggestions) == 0 {
		t.Error("应返回调整建议")
	}
	if resp.Session != nil {
		t.Error("无推荐时不应落库会话")
	}
	if len(repos.session.sessions) != 0 {
		t.Errorf("不应落库会话，实际 %d 个", len(repos.session.sessions))
	}
}

func TestRescheduleService_RescheduleSubtask_SubtaskDone(t *testing.T) {
	svc, repos := setupTestRescheduleService()
	seedTask(repos, "task-1")
	st := seedSubtask(repos, "st-1", "task-1", 60)
	st.Completed = true

	_, err := svc.RescheduleSubtask(context.Background(), &dto.RescheduleSubtaskRequest{SubtaskID: "st-1"})
	if !errors.Is(err, ErrSubtaskDone) {
		t.Errorf("期望 ErrSubtaskDone，实际: %v", err)
	}
}

func TestRescheduleService_RescheduleSubtask_NotFound(t *testing.T) {
	svc, _ := setupTestRescheduleService()

	_, err := svc.RescheduleSubtask(context.Background(), &dto.RescheduleSubtaskRequest{SubtaskID: "nope"})
	if !errors.Is(err, ErrSubtaskNotFound) {
		t.Errorf("期望 ErrSubtaskNotFound，实际: %v", err)
	}
}
