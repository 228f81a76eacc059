package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"chag-go/internal/config"
	"chag-go/internal/handler"
	"chag-go/internal/middleware"
	"chag-go/internal/scheduler"
	"chag-go/pkg/log"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(&cobra.Command{
		Use:   "serve",
		Short: "Bootstrap the learner and serve /learn and /generate",
		RunE:  runServe,
	})
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg := config.Conf
	ctx := context.Background()

	app, err := newLearnerApp(ctx)
	if err != nil {
		return err
	}
	defer app.Close()

	// 启动时加载模型、回放训练日志并导入数据集
	if err := app.svc.Bootstrap(ctx); err != nil {
		return fmt.Errorf("bootstrap learner: %w", err)
	}

	sched := scheduler.New(app.svc, "")
	if err := sched.Start(); err != nil {
		return fmt.Errorf("start scheduler: %w", err)
	}
	defer sched.Stop()

	gin.SetMode(cfg.Server.Mode)
	r := gin.New()
	r.Use(middleware.RequestLogger(), gin.Recovery())

	h := handler.NewLearnerHandler(app.svc)
	r.POST("/learn", h.Learn)
	r.POST("/generate", h.Generate)
	r.GET("/stats", h.Stats)
	r.GET("/healthz", handler.Healthz)

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%s", cfg.Server.Port),
		Handler: r,
	}
	go func() {
		log.Infof("learner 服务启动于 %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("HTTP 服务监听失败: %s\n", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("接收到停机信号，正在关闭服务...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Errorf("HTTP 服务器关闭失败: %v", err)
	}

	// 退出前保存尚未落盘的训练结果
	if err := app.svc.Save(ctx); err != nil {
		log.Warnf("退出前保存模型失败: %v", err)
	}
	log.Info("服务已优雅关闭")
	return nil
}
