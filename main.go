package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/TIANLI0/MaskKit/config"
	"github.com/TIANLI0/MaskKit/handler"
	"github.com/TIANLI0/MaskKit/segmenter"
	"github.com/TIANLI0/MaskKit/service"
	"github.com/TIANLI0/MaskKit/utils"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

var (
	Version   = "dev"
	BuildTime = "unknown"
	BuildID   = "unknown"
	GitCommit = "unknown"
	GitBranch = "unknown"
)

func main() {
	configPath := flag.String("config", "config.yaml", "配置文件路径")
	svcAction := flag.String("service", "", "系统服务操作: install|uninstall|start|stop|restart|run")
	flag.Parse()

	if *svcAction != "" {
		if err := controlService(*svcAction, *configPath); err != nil {
			fmt.Printf("Service %s failed: %v\n", *svcAction, err)
			os.Exit(1)
		}
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, *configPath); err != nil {
		fmt.Printf("Server exited with error: %v\n", err)
		os.Exit(1)
	}
}

func loadConfig(path string) *config.Config {
	cfg, err := config.Load(path)
	if err != nil {
		fmt.Printf("Failed to load %s, using defaults: %v\n", path, err)
		return config.New()
	}
	return cfg
}

// run 启动 HTTP 服务，ctx 结束后优雅退出
func run(ctx context.Context, configPath string) error {
	// 加载配置
	cfg := loadConfig(configPath)

	// 初始化日志
	if err := utils.InitLogger(cfg.Server.Mode, cfg.Log); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer utils.Sync()

	utils.Logger.Info("starting MaskKit server",
		zap.String("version", Version),
		zap.String("build_time", BuildTime),
		zap.String("git_commit", GitCommit),
		zap.String("git_branch", GitBranch))

	// 结果存储，不可用时退回内存
	store, err := service.NewResultStore(ctx, cfg)
	if err != nil {
		utils.Logger.Warn("result store unavailable, falling back to memory",
			zap.String("backend", cfg.Store.Backend), zap.Error(err))
		store = service.NewMemoryStore(cfg.Store.TTL)
	} else {
		utils.Logger.Info("result store ready", zap.String("backend", cfg.Store.Backend))
	}
	defer store.Close()

	// 加载分割模型，失败时服务照常启动但预测返回 503
	var seg segmenter.Segmenter
	if s, err := segmenter.New(cfg.Segmenter); err != nil {
		utils.Logger.Error("failed to load segmenter, predictions disabled",
			zap.String("backend", cfg.Segmenter.Backend), zap.Error(err))
	} else {
		seg = s
		utils.Logger.Info("segmenter loaded", zap.String("backend", s.Name()))
	}

	predictor := service.NewPredictor(seg, cfg)
	gate := service.NewGate(cfg.Server.MaxConcurrent, cfg.Server.QueueTimeout)

	// 设置Gin模式
	gin.SetMode(cfg.Server.Mode)

	router := handler.NewRouter(
		handler.NewPredictHandler(cfg, predictor, gate, store),
		handler.NewHealthHandler(predictor, handler.BuildInfo{
			Version:   Version,
			BuildTime: BuildTime,
			BuildID:   BuildID,
			GitCommit: GitCommit,
			GitBranch: GitBranch,
		}),
	)

	srv := &http.Server{
		Addr:         cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		utils.Logger.Info("server starting", zap.String("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("failed to start server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	utils.Logger.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}
	utils.Logger.Info("server stopped")
	return nil
}
