package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"studyflow/backend/internal/model"
	"studyflow/backend/internal/repository"
)

// ── 导出模块业务错误 ──

var (
	ErrExportNoPlan       = errors.New("该任务暂无学习计划")
	ErrExportNoSessions   = errors.New("计划中没有可导出的学习会话")
	ErrExportGenerateFail = errors.New("生成 Excel 文件失败")
)

// ExportService 导出业务接口
//
// 设计说明：
//   - 导出当前活跃计划的周课表视图为 Excel (.xlsx)
//   - 导出以 bytes.Buffer 返回，由调用方设置 HTTP 响应头后写入 Response
//   - Excel 格式：行为 (星期, 时间段)，列为计划内的各周，单元格为「子任务 (阶段)」
type ExportService interface {
	// ExportPlan 导出任务的活跃学习计划为 Excel
	ExportPlan(ctx context.Context, taskID string) (*bytes.Buffer, string, error)
}

type exportService struct {
	repo   *repository.Repository
	logger *zap.Logger
}

// NewExportService 创建 ExportService 实例
func NewExportService(repo *repository.Repository, logger *zap.Logger) ExportService {
	return &exportService{repo: repo, logger: logger}
}

// ═══════════════════════════════════════════════════════════
// ExportPlan — 导出学习计划为 Excel
// ═══════════════════════════════════════════════════════════
//
// 输出格式：
//   - 行头：星期 + 时间段（按 day_of_week + start_time 排序）
//   - 列头：第1周 ~ 第N周（以计划首个会话所在周的周一为第1周）
//   - 单元格：子任务标题 (阶段)
//
// 返回值：buf（Excel 内容）, filename（建议文件名）, error

func (s *exportService) ExportPlan(ctx context.Context, taskID string) (*bytes.Buffer, string, error) {
	// 1. 查询任务与活跃计划
	task, err := s.repo.Task.GetByID(ctx, taskID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, "", ErrTaskNotFound
		}
		s.logger.Error("查询任务失败", zap.Error(err))
		return nil, "", err
	}

	plan, err := s.repo.StudyPlan.GetActiveByTask(ctx, taskID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, "", ErrExportNoPlan
		}
		s.logger.Error("查询学习计划失败", zap.Error(err))
		return nil, "", err
	}

	// 2. 查询计划下的会话
	sessions, err := s.repo.ScheduledSession.ListByPlan(ctx, plan.PlanID)
	if err != nil {
		s.logger.Error("查询学习会话失败", zap.Error(err))
		return nil, "", err
	}
	if len(sessions) == 0 {
		return nil, "", ErrExportNoSessions
	}

	// 3. 以首个会话所在周的周一为基准，计算每条会话的周次
	base := mondayOf(sessions[0].Date)
	for i := range sessions {
		if m := mondayOf(sessions[i].Date); m.Before(base) {
			base = m
		}
	}

	weekOf := func(d time.Time) int {
		return int(mondayOf(d).Sub(base).Hours()/(24*7)) + 1
	}

	// 4. 构建数据索引: "weekNumber:dayOfWeek:startTime" → cellText
	//    以及收集唯一的 (星期, 时间段) 行
	type rowDef struct {
		dayOfWeek int // 1=周一
		startTime string
		endTime   string
	}

	cellIndex := make(map[string]string)
	rowSeen := make(map[string]rowDef)
	weekSet := make(map[int]bool)

	for i := range sessions {
		sess := &sessions[i]
		dow := isoWeekday(sess.Date)
		wn := weekOf(sess.Date)
		weekSet[wn] = true

		key := fmt.Sprintf("%d:%d:%s", wn, dow, sess.StartTime)
		cellIndex[key] = sessionCellText(sess)

		rowKey := fmt.Sprintf("%d:%s", dow, sess.StartTime)
		if _, ok := rowSeen[rowKey]; !ok {
			rowSeen[rowKey] = rowDef{dayOfWeek: dow, startTime: sess.StartTime, endTime: sess.EndTime}
		}
	}

	var rows []rowDef
	for _, rd := range rowSeen {
		rows = append(rows, rd)
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].dayOfWeek != rows[j].dayOfWeek {
			return rows[i].dayOfWeek < rows[j].dayOfWeek
		}
		return rows[i].startTime < rows[j].startTime
	})

	var weekNumbers []int
	for wn := range weekSet {
		weekNumbers = append(weekNumbers, wn)
	}
	sort.Ints(weekNumbers)

	// 5. 生成 Excel
	f := excelize.NewFile()
	defer f.Close()

	sheetName := "学习计划"
	idx, _ := f.NewSheet(sheetName)
	f.SetActiveSheet(idx)
	// 删除默认 Sheet1
	f.DeleteSheet("Sheet1")

	// 设置列宽
	f.SetColWidth(sheetName, "A", "A", 8)
	f.SetColWidth(sheetName, "B", "B", 14)
	for i := range weekNumbers {
		col, _ := excelize.ColumnNumberToName(3 + i)
		f.SetColWidth(sheetName, col, col, 26)
	}

	// 样式
	headerStyle, _ := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Size: 11},
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"#4472C4"}, Pattern: 1},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
	})

	// 标题行
	f.SetCellValue(sheetName, "A1", fmt.Sprintf("%s — 学习计划", task.Title))
	f.MergeCell(sheetName, "A1", fmt.Sprintf("%s1", colName(1+len(weekNumbers))))
	titleCell, _ := excelize.CoordinatesToCellName(1, 1)
	f.SetCellStyle(sheetName, titleCell, titleCell, headerStyle)

	// 表头
	row := 2
	f.SetCellValue(sheetName, cell("A", row), "星期")
	f.SetCellValue(sheetName, cell("B", row), "时间")
	for i, wn := range weekNumbers {
		f.SetCellValue(sheetName, cell(colName(2+i), row), fmt.Sprintf("第%d周", wn))
	}

	// 数据行
	dayNames := map[int]string{1: "周一", 2: "周二", 3: "周三", 4: "周四", 5: "周五", 6: "周六", 7: "周日"}
	row = 3
	for _, rd := range rows {
		f.SetCellValue(sheetName, cell("A", row), dayNames[rd.dayOfWeek])
		f.SetCellValue(sheetName, cell("B", row), fmt.Sprintf("%s-%s", rd.startTime, rd.endTime))

		for i, wn := range weekNumbers {
			key := fmt.Sprintf("%d:%d:%s", wn, rd.dayOfWeek, rd.startTime)
			if text, ok := cellIndex[key]; ok {
				f.SetCellValue(sheetName, cell(colName(2+i), row), text)
			} else {
				f.SetCellValue(sheetName, cell(colName(2+i), row), "-")
			}
		}
		row++
	}

	// 写入 buffer
	buf := new(bytes.Buffer)
	if err := f.Write(buf); err != nil {
		s.logger.Error("写入 Excel 失败", zap.Error(err))
		return nil, "", ErrExportGenerateFail
	}

	filename := fmt.Sprintf("学习计划_%s.xlsx", task.Title)
	return buf, filename, nil
}

// ── 辅助函数 ──

func sessionCellText(sess *model.ScheduledSession) string {
	if sess.Subtask == nil {
		return "学习会话"
	}
	text := sess.Subtask.Title
	if sess.Subtask.Phase != "" {
		text += " (" + sess.Subtask.Phase.Label() + ")"
	}
	if sess.IsSegmented {
		text += fmt.Sprintf(" %d/%d", sess.SegmentIndex, sess.TotalSegments)
	}
	return text
}

// mondayOf 返回日期所在周的周一（零点，保留原时区）
func mondayOf(d time.Time) time.Time {
	day := time.Date(d.Year(), d.Month(), d.Day(), 0, 0, 0, 0, d.Location())
	offset := isoWeekday(day) - 1
	return day.AddDate(0, 0, -offset)
}

// isoWeekday 1=周一 … 7=周日
func isoWeekday(d time.Time) int {
	wd := int(d.Weekday())
	if wd == 0 {
		return 7
	}
	return wd
}

func colName(idx int) string {
	name, _ := excelize.ColumnNumberToName(idx + 1)
	return name
}

func cell(col string, row int) string {
	return fmt.Sprintf("%s%d", col, row)
}
