// Package main 是 GPT-2 聊天应答服务 chag 的入口。
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"chag-go/internal/config"
	"chag-go/internal/handler"
	"chag-go/internal/middleware"
	"chag-go/internal/repository"
	"chag-go/internal/service"
	"chag-go/pkg/database"
	"chag-go/pkg/llm"
	"chag-go/pkg/log"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
)

func main() {
	configPath := flag.String("config", "./configs/chag.yaml", "YAML config path")
	flag.Parse()

	// 1. 初始化配置
	config.Init(*configPath)
	cfg := config.Conf

	// 2. 初始化日志记录器
	log.Init(cfg.Log.Level, cfg.Log.Format, cfg.Log.OutputPath)
	defer log.Sync()
	log.Info("日志记录器初始化成功")

	// 3. 聊天历史：Redis 可用时持久化，否则保存在进程内
	maxMessages := cfg.Chag.HistoryTurns * 2
	var rdb *redis.Client
	if cfg.Database.Redis.Addr != "" {
		var err error
		if rdb, err = database.InitRedis(cfg.Database.Redis); err != nil {
			log.Warnf("Redis 不可用，聊天历史改为保存在内存中: %v", err)
		}
	} else {
		log.Warnf("未配置 Redis，聊天历史仅保存在内存中")
	}
	var historyRepo repository.HistoryRepository
	if rdb != nil {
		historyRepo = repository.NewRedisHistoryRepository(rdb, maxMessages)
	} else {
		historyRepo = repository.NewMemoryHistoryRepository(maxMessages)
	}

	// 4. 系统提示
	systemPrompt := ""
	if raw, err := os.ReadFile(cfg.Chag.SystemPromptPath); err != nil {
		log.Warnf("读取系统提示失败，将不使用系统提示: %v", err)
	} else {
		systemPrompt = string(raw)
	}

	// 5. 初始化 Service
	llmClient := llm.NewClient(cfg.LLM)
	chagService := service.NewChagService(cfg.Chag, systemPrompt, llmClient, historyRepo, nil)

	// 6. 路由
	gin.SetMode(cfg.Server.Mode)
	r := gin.New()
	r.Use(middleware.RequestLogger(), gin.Recovery())

	limiter := middleware.NewRateLimiter(cfg.Chag.RateLimit, cfg.Chag.RateBurst)
	r.POST("/chag", limiter.PerClientIP(), handler.NewChagHandler(chagService).Chag)
	r.GET("/healthz", handler.Healthz)

	// 启动 HTTP 服务器并实现优雅停机
	srv := &http.Server{
		Addr:    fmt.Sprintf(":%s", cfg.Server.Port),
		Handler: r,
	}
	go func() {
		log.Infof("chag 服务启动于 %s, 模型: %s", srv.Addr, cfg.LLM.Model)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("HTTP 服务监听失败: %s\n", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("接收到停机信号，正在关闭服务...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Fatalf("HTTP 服务器关闭失败: %v", err)
	}
	if rdb != nil {
		_ = rdb.Close()
	}
	log.Info("服务已优雅关闭")
}
