package service

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"studyflow/backend/internal/model"
)

// ── Mock TaskRepository ──

type mockTaskRepo struct {
	tasks    map[string]*model.Task
	subtasks *mockSubtaskRepo // GetWithSubtasks 需要联动
}

func newMockTaskRepo(subtasks *mockSubtaskRepo) *mockTaskRepo {
	return &mockTaskRepo{tasks: make(map[string]*model.Task), subtasks: subtasks}
}

func (m *mockTaskRepo) Create(_ context.Context, task *model.Task) error {
	if task.TaskID == "" {
		task.TaskID = "task-" + task.Title
	}
	m.tasks[task.TaskID] = task
	return nil
}

func (m *mockTaskRepo) GetByID(_ context.Context, id string) (*model.Task, error) {
	if t, ok := m.tasks[id]; ok {
		return t, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockTaskRepo) GetWithSubtasks(_ context.Context, id string) (*model.Task, error) {
	t, ok := m.tasks[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	cp := *t
	if m.subtasks != nil {
		cp.Subtasks, _ = m.subtasks.ListByTask(context.Background(), id)
	}
	return &cp, nil
}

func (m *mockTaskRepo) List(_ context.Context, status string, offset, limit int) ([]model.Task, int64, error) {
	var result []model.Task
	for _, t := range m.tasks {
		if status != "" && t.Status != status {
			continue
		}
		result = append(result, *t)
	}
	return result, int64(len(result)), nil
}

func (m *mockTaskRepo) Update(_ context.Context, task *model.Task) error {
	if _, ok := m.tasks[task.TaskID]; !ok {
		return gorm.ErrRecordNotFound
	}
	task.Version++
	m.tasks[task.TaskID] = task
	return nil
}

func (m *mockTaskRepo) Delete(_ context.Context, id string, _ string) error {
	delete(m.tasks, id)
	return nil
}

// ── Mock SubtaskRepository ──

type mockSubtaskRepo struct {
	subtasks map[string]*model.Subtask
	order    []string // 保持插入顺序，模拟 sort_order 排序
}

func newMockSubtaskRepo() *mockSubtaskRepo {
	return &mockSubtaskRepo{subtasks: make(map[string]*model.Subtask)}
}

func (m *mockSubtaskRepo) BatchCreate(_ context.Context, subtasks []model.Subtask) error {
	for i := range subtasks {
		if subtasks[i].SubtaskID == "" {
			subtasks[i].SubtaskID = fmt.Sprintf("st-%d", len(m.order)+1)
		}
		cp := subtasks[i]
		m.subtasks[cp.SubtaskID] = &cp
		m.order = append(m.order, cp.SubtaskID)
	}
	return nil
}

func (m *mockSubtaskRepo) GetByID(_ context.Context, id string) (*model.Subtask, error) {
	if s, ok := m.subtasks[id]; ok {
		return s, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockSubtaskRepo) ListByTask(_ context.Context, taskID string) ([]model.Subtask, error) {
	var result []model.Subtask
	for _, id := range m.order {
		if s, ok := m.subtasks[id]; ok && s.TaskID == taskID {
			result = append(result, *s)
		}
	}
	return result, nil
}

func (m *mockSubtaskRepo) Update(_ context.Context, subtask *model.Subtask) error {
	if _, ok := m.subtasks[subtask.SubtaskID]; !ok {
		return gorm.ErrRecordNotFound
	}
	subtask.Version++
	cp := *subtask
	m.subtasks[subtask.SubtaskID] = &cp
	return nil
}

func (m *mockSubtaskRepo) Delete(_ context.Context, id string, _ string) error {
	delete(m.subtasks, id)
	return nil
}

// ── Mock AvailabilitySlotRepository ──

type mockAvailabilitySlotRepo struct {
	slots map[string]*model.AvailabilitySlot
}

func newMockAvailabilitySlotRepo() *mockAvailabilitySlotRepo {
	return &mockAvailabilitySlotRepo{slots: make(map[string]*model.AvailabilitySlot)}
}

func (m *mockAvailabilitySlotRepo) Create(_ context.Context, slot *model.AvailabilitySlot) error {
	if slot.SlotID == "" {
		slot.SlotID = fmt.Sprintf("slot-%d", len(m.slots)+1)
	}
	m.slots[slot.SlotID] = slot
	return nil
}

func (m *mockAvailabilitySlotRepo) GetByID(_ context.Context, id string) (*model.AvailabilitySlot, error) {
	if s, ok := m.slots[id]; ok {
		return s, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockAvailabilitySlotRepo) ListActive(_ context.Context) ([]model.AvailabilitySlot, error) {
	var result []model.AvailabilitySlot
	for _, s := range m.slots {
		if s.IsActive {
			result = append(result, *s)
		}
	}
	return result, nil
}

func (m *mockAvailabilitySlotRepo) Update(_ context.Context, slot *model.AvailabilitySlot) error {
	m.slots[slot.SlotID] = slot
	return nil
}

func (m *mockAvailabilitySlotRepo) Delete(_ context.Context, id string, _ string) error {
	delete(m.slots, id)
	return nil
}

// ── Mock StudyPlanRepository ──

type mockStudyPlanRepo struct {
	plans     map[string]*model.StudyPlan
	idCounter int
}

func newMockStudyPlanRepo() *mockStudyPlanRepo {
	return &mockStudyPlanRepo{plans: make(map[string]*model.StudyPlan)}
}

func (m *mockStudyPlanRepo) Create(_ context.Context, plan *model.StudyPlan) error {
	if plan.PlanID == "" {
		m.idCounter++
		plan.PlanID = fmt.Sprintf("plan-%d", m.idCounter)
	}
	plan.CreatedAt = time.Now()
	plan.UpdatedAt = time.Now()
	m.plans[plan.PlanID] = plan
	return nil
}

func (m *mockStudyPlanRepo) GetByID(_ context.Context, id string) (*model.StudyPlan, error) {
	if p, ok := m.plans[id]; ok {
		return p, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockStudyPlanRepo) GetActiveByTask(_ context.Context, taskID string) (*model.StudyPlan, error) {
	var latest *model.StudyPlan
	for _, p := range m.plans {
		if p.TaskID != taskID || p.Status == "archived" {
			continue
		}
		if latest == nil || p.CreatedAt.After(latest.CreatedAt) {
			latest = p
		}
	}
	if latest == nil {
		return nil, gorm.ErrRecordNotFound
	}
	return latest, nil
}

func (m *mockStudyPlanRepo) Update(_ context.Context, plan *model.StudyPlan) error {
	if _, ok := m.plans[plan.PlanID]; !ok {
		return gorm.ErrRecordNotFound
	}
	plan.Version++
	plan.UpdatedAt = time.Now()
	m.plans[plan.PlanID] = plan
	return nil
}

func (m *mockStudyPlanRepo) Delete(_ context.Context, id string) error {
	delete(m.plans, id)
	return nil
}

// ── Mock ScheduledSessionRepository ──

type mockScheduledSessionRepo struct {
	sessions  map[string]*model.ScheduledSession
	idCounter int
	subtasks  *mockSubtaskRepo // Preload Subtask 联动
}

func newMockScheduledSessionRepo(subtasks *mockSubtaskRepo) *mockScheduledSessionRepo {
	return &mockScheduledSessionRepo{sessions: make(map[string]*model.ScheduledSession), subtasks: subtasks}
}

func (m *mockScheduledSessionRepo) attachSubtask(sess *model.ScheduledSession) model.ScheduledSession {
	cp := *sess
	if m.subtasks != nil {
		if st, ok := m.subtasks.subtasks[cp.SubtaskID]; ok {
			stCp := *st
			cp.Subtask = &stCp
		}
	}
	return cp
}

func (m *mockScheduledSessionRepo) BatchCreate(_ context.Context, sessions []model.ScheduledSession) error {
	for i := range sessions {
		if sessions[i].SessionID == "" {
			m.idCounter++
			sessions[i].SessionID = fmt.Sprintf("sess-%d", m.idCounter)
		}
		cp := sessions[i]
		m.sessions[cp.SessionID] = &cp
	}
	return nil
}

func (m *mockScheduledSessionRepo) GetByID(_ context.Context, id string) (*model.ScheduledSession, error) {
	if s, ok := m.sessions[id]; ok {
		cp := m.attachSubtask(s)
		return &cp, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockScheduledSessionRepo) ListByPlan(_ context.Context, planID string) ([]model.ScheduledSession, error) {
	var result []model.ScheduledSession
	for _, s := range m.sessions {
		if s.PlanID == planID {
			result = append(result, m.attachSubtask(s))
		}
	}
	sortSessions(result)
	return result, nil
}

func (m *mockScheduledSessionRepo) ListByTask(_ context.Context, taskID string) ([]model.ScheduledSession, error) {
	var result []model.ScheduledSession
	for _, s := range m.sessions {
		if s.TaskID == taskID {
			result = append(result, m.attachSubtask(s))
		}
	}
	sortSessions(result)
	return result, nil
}

func (m *mockScheduledSessionRepo) ListPlannedFrom(_ context.Context, from time.Time) ([]model.ScheduledSession, error) {
	var result []model.ScheduledSession
	for _, s := range m.sessions {
		if s.Status == "planned" && !s.Date.Before(from) {
			result = append(result, *s)
		}
	}
	sortSessions(result)
	return result, nil
}

func (m *mockScheduledSessionRepo) UpdateStatus(_ context.Context, id string, status string) error {
	if s, ok := m.sessions[id]; ok {
		s.Status = status
		return nil
	}
	return gorm.ErrRecordNotFound
}

func (m *mockScheduledSessionRepo) DeleteByPlan(_ context.Context, planID string) error {
	for id, s := range m.sessions {
		if s.PlanID == planID {
			delete(m.sessions, id)
		}
	}
	return nil
}

func (m *mockScheduledSessionRepo) DeleteByIDs(_ context.Context, ids []string) error {
	for _, id := range ids {
		delete(m.sessions, id)
	}
	return nil
}

func sortSessions(sessions []model.ScheduledSession) {
	for i := 1; i < len(sessions); i++ {
		for j := i; j > 0; j-- {
			a, b := &sessions[j-1], &sessions[j]
			if a.Date.Before(b.Date) || (a.Date.Equal(b.Date) && a.StartTime <= b.StartTime) {
				break
			}
			sessions[j-1], sessions[j] = sessions[j], sessions[j-1]
		}
	}
}

// ── Mock CalendarEventRepository ──

type mockCalendarEventRepo struct {
	events    []model.CalendarEvent
	idCounter int
}

func newMockCalendarEventRepo() *mockCalendarEventRepo {
	return &mockCalendarEventRepo{}
}

func (m *mockCalendarEventRepo) Create(_ context.Context, event *model.CalendarEvent) error {
	m.idCounter++
	if event.EventID == "" {
		event.EventID = fmt.Sprintf("ev-%d", m.idCounter)
	}
	m.events = append(m.events, *event)
	return nil
}

func (m *mockCalendarEventRepo) BatchCreate(_ context.Context, events []model.CalendarEvent) error {
	for i := range events {
		m.idCounter++
		if events[i].EventID == "" {
			events[i].EventID = fmt.Sprintf("ev-%d", m.idCounter)
		}
	}
	m.events = append(m.events, events...)
	return nil
}

func (m *mockCalendarEventRepo) ListBetween(_ context.Context, from, to time.Time) ([]model.CalendarEvent, error) {
	var result []model.CalendarEvent
	for _, e := range m.events {
		if e.StartAt.Before(to) && e.EndAt.After(from) {
			result = append(result, e)
		}
	}
	return result, nil
}

func (m *mockCalendarEventRepo) DeleteBySource(_ context.Context, source string) error {
	var remaining []model.CalendarEvent
	for _, e := range m.events {
		if e.Source != source {
			remaining = append(remaining, e)
		}
	}
	m.events = remaining
	return nil
}

func (m *mockCalendarEventRepo) Delete(_ context.Context, id string, _ string) error {
	for i, e := range m.events {
		if e.EventID == id {
			m.events = append(m.events[:i], m.events[i+1:]...)
			return nil
		}
	}
	return gorm.ErrRecordNotFound
}

// ── Mock SessionLogRepository ──

type mockSessionLogRepo struct {
	logs      []model.SessionLog
	idCounter int
}

func newMockSessionLogRepo() *mockSessionLogRepo {
	return &mockSessionLogRepo{}
}

func (m *mockSessionLogRepo) Create(_ context.Context, log *model.SessionLog) error {
	m.idCounter++
	if log.LogID == "" {
		log.LogID = fmt.Sprintf("log-%d", m.idCounter)
	}
	m.logs = append(m.logs, *log)
	return nil
}

func (m *mockSessionLogRepo) ListBySubtask(_ context.Context, subtaskID string, offset, limit int) ([]model.SessionLog, int64, error) {
	var filtered []model.SessionLog
	for _, l := range m.logs {
		if l.SubtaskID == subtaskID {
			filtered = append(filtered, l)
		}
	}
	total := int64(len(filtered))
	if offset >= len(filtered) {
		return nil, total, nil
	}
	end := offset + limit
	if end > len(filtered) {
		end = len(filtered)
	}
	return filtered[offset:end], total, nil
}

// ── Mock PlanChangeLogRepository ──

type mockPlanChangeLogRepo struct {
	logs []model.PlanChangeLog
}

func newMockPlanChangeLogRepo() *mockPlanChangeLogRepo {
	return &mockPlanChangeLogRepo{}
}

func (m *mockPlanChangeLogRepo) Create(_ context.Context, log *model.PlanChangeLog) error {
	if log.ChangeLogID == "" {
		log.ChangeLogID = fmt.Sprintf("cl-%d", len(m.logs)+1)
	}
	m.logs = append(m.logs, *log)
	return nil
}

func (m *mockPlanChangeLogRepo) ListByPlan(_ context.Context, planID string, offset, limit int) ([]model.PlanChangeLog, int64, error) {
	var filtered []model.PlanChangeLog
	for _, l := range m.logs {
		if l.PlanID == planID {
			filtered = append(filtered, l)
		}
	}
	total := int64(len(filtered))
	if offset >= len(filtered) {
		return nil, total, nil
	}
	end := offset + limit
	if end > len(filtered) {
		end = len(filtered)
	}
	return filtered[offset:end], total, nil
}
