package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"studyflow/backend/config"
	"studyflow/backend/internal/repository"
	"studyflow/backend/internal/service"
	"studyflow/backend/pkg/database"
	applogger "studyflow/backend/pkg/logger"
)

func main() {
	// 1. 加载配置
	cfg, err := config.Load("")
	if err != nil {
		fmt.Fprintf(os.Stderr, "加载配置失败: %v\n", err)
		os.Exit(1)
	}

	// 2. 初始化日志
	logger, err := applogger.NewLogger(&cfg.Log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "初始化日志失败: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("应用启动中...",
		zap.String("log_level", cfg.Log.Level),
		zap.String("scheduler_mode", cfg.Scheduler.Mode),
		zap.Int("horizon_days", cfg.Scheduler.HorizonDays),
	)

	// 3. 连接数据库
	db, err := database.NewDB(&cfg.Database, logger)
	if err != nil {
		logger.Fatal("数据库连接失败", zap.Error(err))
	}

	// 3.1 执行数据库迁移
	sqlDB, err := db.DB()
	if err != nil {
		logger.Fatal("获取底层 sql.DB 失败", zap.Error(err))
	}
	if err := database.RunMigrations(sqlDB, logger); err != nil {
		logger.Fatal("数据库迁移失败", zap.Error(err))
	}

	// 4. 依赖注入: Repository → Service
	repo := repository.NewRepository(db)
	svc := service.NewService(cfg, repo, logger)

	// 4.1 启动时跑一遍时长漂移修复，把历史脏数据挡在引擎之外
	if err := repairDurations(repo, svc, logger); err != nil {
		logger.Warn("启动时长校验未完成", zap.Error(err))
	}

	logger.Info("排程服务已就绪")

	// 5. 监听系统信号，优雅关闭
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit

	logger.Info("收到关闭信号，开始关闭...", zap.String("signal", sig.String()))

	if closeDB, _ := db.DB(); closeDB != nil {
		closeDB.Close()
	}

	logger.Info("已关闭")
}

// repairDurations 对所有未归档任务执行时长漂移修复
func repairDurations(repo *repository.Repository, svc *service.Service, logger *zap.Logger) error {
	ctx := context.Background()
	tasks, _, err := repo.Task.List(ctx, "", 0, 1000)
	if err != nil {
		return err
	}
	for _, task := range tasks {
		if task.Status == "archived" {
			continue
		}
		result, err := svc.Progress.ValidateDurations(ctx, task.TaskID)
		if err != nil {
			return err
		}
		if len(result.RepairedSubtaskIDs) > 0 {
			logger.Warn("启动时修复了漂移的子任务时长",
				zap.String("task_id", task.TaskID),
				zap.Strings("subtask_ids", result.RepairedSubtaskIDs))
		}
	}
	return nil
}
