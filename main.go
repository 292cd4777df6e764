package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"voiceagent/config"
	"voiceagent/core"
	"voiceagent/factories"
	"voiceagent/pipeline"
	"voiceagent/server"
	"voiceagent/session"
)

func main() {
	logger := core.GetLogger()
	cfg := config.Load()

	if missing := cfg.MissingKeys(); len(missing) > 0 {
		logger.Warn("provider credentials missing, affected services will be unhealthy", "keys", missing)
	}

	pipelineCfg, err := cfg.PipelineConfig()
	if err != nil {
		logger.Fatal("invalid configuration: %v", err)
	}

	policy := pipeline.DefaultPolicy()
	policy.STTTimeout = cfg.STTTimeout
	policy.LLMTimeout = cfg.LLMTimeout
	policy.TTSTimeout = cfg.TTSTimeout

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rt, err := factories.BuildRuntime(ctx, pipelineCfg, policy, logger)
	if err != nil {
		logger.Fatal("runtime build failed: %v", err)
	}
	defer rt.Store.Close()

	go session.RunSweeper(ctx, rt.Store, cfg.SweepInterval, cfg.SessionMaxAge, logger)

	srv := server.New(cfg, rt, logger)
	go func() {
		if err := srv.Start(":" + cfg.Port); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("http server failed: %v", err)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", "error", err.Error())
	}
}
