package scheduler

import (
	"go.uber.org/zap"

	"studyflow/backend/internal/model"
)

// ── 依赖解析 ──

// ResolveDependencyOrder 按 depends_on 边集对子任务做拓扑排序。
//
// 深度优先遍历，visiting 集合检测回边；检测到环时记警告并丢弃
// 该条依赖边（保留子任务本身），不让坏数据拖垮整次排程。
// 无依赖关系的子任务维持输入相对顺序。
func ResolveDependencyOrder(subtasks []model.Subtask, logger *zap.Logger) []model.Subtask {
	if logger == nil {
		logger = zap.NewNop()
	}
	if len(subtasks) <= 1 {
		return append([]model.Subtask(nil), subtasks...)
	}

	byID := make(map[string]int, len(subtasks))
	for i, st := range subtasks {
		byID[st.SubtaskID] = i
	}

	const (
		unvisited = 0
		visiting  = 1
		done      = 2
	)
	state := make([]int, len(subtasks))
	ordered := make([]model.Subtask, 0, len(subtasks))

	var visit func(i int)
	visit = func(i int) {
		state[i] = visiting
		for _, depID := range subtasks[i].DependsOn {
			j, ok := byID[depID]
			if !ok {
				// 指向不存在的子任务，视为无效依赖
				logger.Warn("依赖指向未知子任务，已忽略",
					zap.String("subtask_id", subtasks[i].SubtaskID),
					zap.String("depends_on", depID))
				continue
			}
			switch state[j] {
			case visiting:
				logger.Warn("检测到循环依赖，已丢弃该条依赖边",
					zap.String("subtask_id", subtasks[i].SubtaskID),
					zap.String("depends_on", depID))
			case unvisited:
				visit(j)
			}
		}
		state[i] = done
		ordered = append(ordered, subtasks[i])
	}

	for i := range subtasks {
		if state[i] == unvisited {
			visit(i)
		}
	}
	return ordered
}
