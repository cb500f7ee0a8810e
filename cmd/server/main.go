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
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/sshcollectorpro/arubatrace/api/router"
	"github.com/sshcollectorpro/arubatrace/internal/config"
	"github.com/sshcollectorpro/arubatrace/internal/service"
	"github.com/sshcollectorpro/arubatrace/pkg/logger"
	"github.com/sshcollectorpro/arubatrace/simulate"
)

func main() {
	configPath := flag.String("config", "configs/config.yaml", "config file path")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	err := run(ctx, *configPath)
	stop()
	if err != nil {
		fmt.Fprintf(os.Stderr, "arubatrace server: %v\n", err)
		os.Exit(1)
	}
}

// run 启动服务并阻塞到 ctx 结束；返回前执行所有清理
func run(ctx context.Context, configPath string) error {
	// 加载配置
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	// 初始化日志
	if err := logger.Init(cfg.LoggerConfig()); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	logger.Infof("Starting Aruba Trace Server, version 1.0.0")

	traceService, err := service.NewTraceService(cfg)
	if err != nil {
		return fmt.Errorf("failed to create trace service: %w", err)
	}

	if err := traceService.Start(ctx); err != nil {
		return fmt.Errorf("failed to start trace service: %w", err)
	}
	defer traceService.Stop()

	// 配置文件热更新：日志级别立即生效，设备凭据作用于之后的请求
	config.Watch(traceService.SetConfig)

	// 启动模拟交换机（可选）
	if cfg.Server.SimulateEnable {
		if sim := startSimulator(cfg.Server.SimulateConfig); sim != nil {
			defer sim.Stop()
		}
	}

	server := &http.Server{
		Addr:           cfg.GetServerAddr(),
		Handler:        router.SetupRouter(traceService, cfg.Server.Mode),
		ReadTimeout:    cfg.Server.ReadTimeout,
		WriteTimeout:   cfg.Server.WriteTimeout,
		MaxHeaderBytes: 1 << 20, // 1MB
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Infof("Server listening on %s (mode %s)", server.Addr, cfg.Server.Mode)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("Shutting down server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logger.Errorf("Server exited with error: %v", err)
		return err
	}
	logger.Info("Server exited")
	return nil
}

func startSimulator(path string) *simulate.Server {
	sc, err := simulate.LoadConfig(path)
	if err != nil {
		logger.Warnf("Simulate: failed to load %s: %v", path, err)
		return nil
	}
	srv, err := simulate.Start(sc)
	if err != nil {
		logger.Warnf("Simulate: failed to start: %v", err)
		return nil
	}
	logger.Infof("Simulate: switch %s listening on %s", sc.Hostname, srv.Addr())
	return srv
}
