package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"trade-engine/internal/ai"
	"trade-engine/internal/config"
	"trade-engine/internal/exchange"
	"trade-engine/internal/monitor"
	"trade-engine/internal/store"
	"trade-engine/internal/strategy"
)

// App 聚合核心依赖并驱动系统生命周期。
type App struct {
	cfg    *config.Config
	logger *zap.Logger
	store  *store.Store
}

// New 创建 App 实例。
func New(cfg *config.Config, logger *zap.Logger, store *store.Store) *App {
	return &App{
		cfg:    cfg,
		logger: logger,
		store:  store,
	}
}

// Run 完成依赖装配并驱动HTTP服务直至收到退出信号。
// 元数据缓存在启动阶段预热：拉取失败视为致命错误，进程直接退出，
// 绝不带着空缓存接受下单请求。
func (a *App) Run(ctx context.Context) error {
	monitorSvc, err := monitor.NewService(a.store, a.logger)
	if err != nil {
		return fmt.Errorf("初始化监控服务失败: %w", err)
	}

	client, err := exchange.NewClient(a.cfg.Exchange, a.logger)
	if err != nil {
		monitorSvc.RecordError(ctx, "exchange_init", err)
		return fmt.Errorf("初始化交易所客户端失败: %w", err)
	}

	cache := exchange.NewMetadataCache(client, a.logger)
	if err := cache.Warm(ctx); err != nil {
		monitorSvc.RecordError(ctx, "metadata_warmup", err)
		return fmt.Errorf("预热交易所元数据失败: %w", err)
	}

	executor := strategy.NewExecutor(client, cache,
		strategy.Options{TimeInForce: a.cfg.Execution.TimeInForce}, a.logger)

	var rationale *ai.Client
	if a.cfg.OpenAI.APIKey != "" {
		rationale, err = ai.NewClient(a.cfg.OpenAI, a.logger)
		if err != nil {
			return fmt.Errorf("初始化AI客户端失败: %w", err)
		}
	} else {
		a.logger.Info("未配置 openai.api_key，说明生成接口不可用")
	}

	srv := newServer(serverDeps{
		engine:    executor,
		symbols:   cache,
		prices:    client,
		monitor:   monitorSvc,
		rationale: rationale,
		logger:    a.logger,
	}, a.cfg.Server.Port)

	a.logger.Info("交易系统已初始化",
		zap.String("environment", a.cfg.App.Environment),
		zap.String("exchange", a.cfg.Exchange.Name),
		zap.Bool("sandbox", a.cfg.Exchange.UseSandbox),
		zap.String("addr", srv.Addr),
	)

	group, groupCtx := errgroup.WithContext(ctx)

	group.Go(func() error {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			monitorSvc.RecordError(context.Background(), "http_server", err)
			return fmt.Errorf("HTTP服务异常: %w", err)
		}
		return nil
	})

	group.Go(func() error {
		<-groupCtx.Done()
		a.logger.Info("系统收到退出信号，正在停止")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("关闭HTTP服务失败: %w", err)
		}
		return nil
	})

	if err := group.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
