// Package main 是在线学习续写服务 learner 的入口。
package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"chag-go/internal/config"
	"chag-go/internal/repository"
	"chag-go/internal/service"
	"chag-go/pkg/database"
	"chag-go/pkg/kafka"
	"chag-go/pkg/log"
	"chag-go/pkg/storage"

	"github.com/spf13/cobra"
	"gorm.io/gorm"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "learner",
	Short: "Online next-word learner",
	Long:  "Learns from incoming messages with a small recurrent network and continues seed text.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := config.Load(configPath, &config.Conf); err != nil {
			return err
		}
		log.Init(config.Conf.Log.Level, config.Conf.Log.Format, config.Conf.Log.OutputPath)
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		log.Sync()
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "./configs/learner.yaml", "YAML config path (empty: defaults and CHAG_* env only)")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// learnerApp 持有 learner 及其可选的外部依赖，便于统一关闭。
type learnerApp struct {
	svc      service.LearnerService
	db       *gorm.DB
	producer *kafka.PairProducer
}

func (a *learnerApp) Close() {
	if a.producer != nil {
		if err := a.producer.Close(); err != nil {
			log.Errorf("关闭 Kafka producer 失败: %v", err)
		}
	}
	if a.db != nil {
		if err := database.CloseSQLite(a.db); err != nil {
			log.Errorf("关闭 SQLite 失败: %v", err)
		}
	}
}

// newLearnerApp 按配置装配 learner：SQLite 事件库、Kafka 与 MinIO 都是可选的。
func newLearnerApp(ctx context.Context) (*learnerApp, error) {
	cfg := config.Conf
	app := &learnerApp{}
	deps := service.LearnerDeps{
		Corpus: repository.NewFileCorpusRepository(cfg.Learner.TrainingDataPath),
	}

	if cfg.Database.SQLite.Path != "" {
		db, err := database.OpenSQLite(cfg.Database.SQLite.Path)
		if err != nil {
			return nil, err
		}
		events, err := repository.NewEventRepository(db)
		if err != nil {
			_ = database.CloseSQLite(db)
			return nil, err
		}
		app.db = db
		deps.Events = events
		log.Infof("事件库已启用: %s", cfg.Database.SQLite.Path)
	}

	if strings.TrimSpace(cfg.Kafka.Brokers) != "" {
		app.producer = kafka.NewPairProducer(cfg.Kafka)
		deps.Publisher = app.producer
		log.Infof("训练样本将发布到 Kafka topic: %s", cfg.Kafka.Topic)
	}

	if cfg.MinIO.Endpoint != "" {
		store, err := storage.NewSnapshotStore(ctx, cfg.MinIO)
		if err != nil {
			app.Close()
			return nil, err
		}
		deps.Snapshots = store
		log.Infof("模型快照将上传到 MinIO bucket: %s", cfg.MinIO.BucketName)
	}

	app.svc = service.NewLearnerService(cfg.Learner, deps)
	return app, nil
}
