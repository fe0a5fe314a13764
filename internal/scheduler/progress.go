package scheduler

import (
	"errors"
	"time"

	"go.uber.org/zap"

	"studyflow/backend/internal/model"
)

// ── 进度跟踪 ──
//
// 时长不可变约束的唯一守门人：
//   - EffectiveDuration 每次读取都从 估时/覆盖值 重新计算，绝不缓存
//   - TimeSpent 只经 LogSession 增长
//   - ValidateDurations 发现历史脏写时纠正并告警，而不是把漂移继续传下去
// 所有更新都返回新副本，不原地修改调用方数据。

var (
	// ErrInvalidMinutes 记录的分钟数必须为正
	ErrInvalidMinutes = errors.New("记录的学习时长必须大于 0 分钟")
)

// ProgressTracker 进度跟踪器
type ProgressTracker struct {
	logger *zap.Logger
}

// NewProgressTracker 创建进度跟踪器实例
func NewProgressTracker(logger *zap.Logger) *ProgressTracker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ProgressTracker{logger: logger}
}

// LogSession 记录一次学习时间，返回更新后的子任务副本与追加的日志条目。
// 进度达到 100% 时自动置完成标记。
func (t *ProgressTracker) LogSession(subtask model.Subtask, minutes int, notes string, at time.Time) (model.Subtask, model.SessionLog, error) {
	if minutes <= 0 {
		return subtask, model.SessionLog{}, ErrInvalidMinutes
	}
	if at.IsZero() {
		at = time.Now()
	}

	updated := subtask
	updated.TimeSpent += minutes
	if updated.ProgressPercentage() >= 100 && !updated.Completed {
		updated.Completed = true
		completedAt := at
		updated.CompletedAt = &completedAt
		t.logger.Info("子任务进度已达 100%，自动标记完成",
			zap.String("subtask_id", subtask.SubtaskID),
			zap.Int("time_spent", updated.TimeSpent))
	}

	entry := model.SessionLog{
		SubtaskID: subtask.SubtaskID,
		Minutes:   minutes,
		Notes:     notes,
		LoggedAt:  at,
	}
	return updated, entry, nil
}

// ValidateDurations 校验并纠正漂移的时长字段。
// 返回纠正后的副本与是否发生过纠正。
//
// 纠正项：
//   - TimeSpent < 0 → 归零
//   - UserDurationOverride ≤ 0 → 清除（无效覆盖）
//   - 进度 ≥100% 但未标完成 → 补完成标记
//   - 已标完成但进度 <100% 且有覆盖值漂移 → 维持完成标记不动（用户可手动完成）
func (t *ProgressTracker) ValidateDurations(subtask model.Subtask) (model.Subtask, bool) {
	updated := subtask
	repaired := false

	if updated.TimeSpent < 0 {
		t.logger.Warn("检测到负的已用时长，已归零",
			zap.String("subtask_id", subtask.SubtaskID),
			zap.Int("time_spent", subtask.TimeSpent))
		updated.TimeSpent = 0
		repaired = true
	}

	if updated.UserDurationOverride != nil && *updated.UserDurationOverride <= 0 {
		t.logger.Warn("检测到非法的用户时长覆盖值，已清除",
			zap.String("subtask_id", subtask.SubtaskID),
			zap.Int("override", *subtask.UserDurationOverride))
		updated.UserDurationOverride = nil
		repaired = true
	}

	if updated.ProgressPercentage() >= 100 && !updated.Completed {
		t.logger.Warn("进度已达 100% 但完成标记缺失，已补齐",
			zap.String("subtask_id", subtask.SubtaskID))
		updated.Completed = true
		now := time.Now()
		updated.CompletedAt = &now
		repaired = true
	}

	return updated, repaired
}
