// Package config 负责加载和管理应用程序的配置。
package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// 全局配置变量，存储从配置文件加载的所有设置。
var Conf Config

// Config 是整个应用程序的配置结构体，与 configs/*.yaml 文件结构对应。
// learner 与 chag 两个服务共用这一结构，各自只读取与自己相关的部分。
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Log      LogConfig      `mapstructure:"log"`
	Learner  LearnerConfig  `mapstructure:"learner"`
	Chag     ChagConfig     `mapstructure:"chag"`
	LLM      LLMConfig      `mapstructure:"llm"`
	Database DatabaseConfig `mapstructure:"database"`
	Kafka    KafkaConfig    `mapstructure:"kafka"`
	MinIO    MinIOConfig    `mapstructure:"minio"`
}

// ServerConfig 存储服务器相关的配置。
type ServerConfig struct {
	Port string `mapstructure:"port"`
	Mode string `mapstructure:"mode"`
}

// LogConfig 存储日志相关的配置。
type LogConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	OutputPath string `mapstructure:"output_path"`
}

// LearnerConfig 存储消息续写模型（RNN）的训练、保存与生成参数。
type LearnerConfig struct {
	MaxWords               int     `mapstructure:"max_words"`
	MaxSequenceLength      int     `mapstructure:"max_sequence_length"`
	MinMessagesForTraining int     `mapstructure:"min_messages_for_training"`
	SaveIntervalSeconds    int     `mapstructure:"save_interval_seconds"`
	SaveEveryMessages      int     `mapstructure:"save_every_messages"`
	Epochs                 int     `mapstructure:"epochs"`
	BatchSize              int     `mapstructure:"batch_size"`
	LearningRate           float64 `mapstructure:"learning_rate"`
	EmbeddingDim           int     `mapstructure:"embedding_dim"`
	HiddenDim              int     `mapstructure:"hidden_dim"`
	NextWords              int     `mapstructure:"next_words"`
	Seed                   int64   `mapstructure:"seed"`
	ModelPath              string  `mapstructure:"model_path"`
	TokenizerPath          string  `mapstructure:"tokenizer_path"`
	TrainingDataPath       string  `mapstructure:"training_data_path"`
	DatasetPath            string  `mapstructure:"dataset_path"`
}

// ChagConfig 存储 GPT-2 聊天应答服务的配置。
type ChagConfig struct {
	SystemPromptPath string   `mapstructure:"system_prompt_path"`
	BotLabel         string   `mapstructure:"bot_label"`
	DefaultUserLabel string   `mapstructure:"default_user_label"`
	EmptyMessage     string   `mapstructure:"empty_message"`
	FallbackText     string   `mapstructure:"fallback_text"`
	MaxAttempts      int      `mapstructure:"max_attempts"`
	HistoryTurns     int      `mapstructure:"history_turns"`
	TriggerWords     []string `mapstructure:"trigger_words"`
	RateLimit        float64  `mapstructure:"rate_limit"`
	RateBurst        int      `mapstructure:"rate_burst"`
}

// LLMConfig 存储 OpenAI 兼容 completions 接口（托管 gpt2）的配置。
type LLMConfig struct {
	APIKey     string              `mapstructure:"api_key"`
	BaseURL    string              `mapstructure:"base_url"`
	Model      string              `mapstructure:"model"`
	Generation LLMGenerationConfig `mapstructure:"generation"`
}

// LLMGenerationConfig 配置生成相关参数（可选）。
type LLMGenerationConfig struct {
	Temperature float64 `mapstructure:"temperature"`
	TopP        float64 `mapstructure:"top_p"`
	MaxTokens   int     `mapstructure:"max_tokens"`
}

// DatabaseConfig 存储所有数据库连接的配置。
type DatabaseConfig struct {
	Redis  RedisConfig  `mapstructure:"redis"`
	SQLite SQLiteConfig `mapstructure:"sqlite"`
}

// RedisConfig 存储 Redis 的配置。Addr 为空时使用进程内历史记录。
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// SQLiteConfig 存储 learner 事件库的配置。Path 为空时不记录事件。
type SQLiteConfig struct {
	Path string `mapstructure:"path"`
}

// KafkaConfig 存储 Kafka 相关的配置。Brokers 为空时不发布训练样本。
type KafkaConfig struct {
	Brokers string `mapstructure:"brokers"`
	Topic   string `mapstructure:"topic"`
}

// MinIOConfig 存储 MinIO 对象存储的配置。Endpoint 为空时不上传模型快照。
type MinIOConfig struct {
	Endpoint        string `mapstructure:"endpoint"`
	AccessKeyID     string `mapstructure:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key"`
	UseSSL          bool   `mapstructure:"use_ssl"`
	BucketName      string `mapstructure:"bucket_name"`
}

// Init 初始化配置加载，从指定的路径读取 YAML 文件并解析到 Conf 变量中。
func Init(configPath string) {
	if err := Load(configPath, &Conf); err != nil {
		panic(err)
	}
}

// Load 读取配置文件（可为空，仅使用默认值与环境变量）并解析到 out。
func Load(configPath string, out *Config) error {
	v := viper.New()
	SetDefaults(v)

	// 环境变量覆盖，例如 CHAG_LLM_API_KEY -> llm.api_key
	v.SetEnvPrefix("CHAG")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return fmt.Errorf("读取配置文件失败: %w", err)
		}
	}

	if err := v.Unmarshal(out); err != nil {
		return fmt.Errorf("无法将配置解析到结构体中: %w", err)
	}
	return nil
}

// SetDefaults 注册所有配置项的默认值。
// AutomaticEnv 只对 viper 已知的键生效，因此没有实际默认值的键也要以零值注册，
// 否则 CHAG_KAFKA_BROKERS 这类环境变量在 Unmarshal 时会被忽略。
func SetDefaults(v *viper.Viper) {
	v.SetDefault("server.port", "5000")
	v.SetDefault("server.mode", "release")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("log.output_path", "")

	v.SetDefault("learner.max_words", 10000)
	v.SetDefault("learner.max_sequence_length", 30)
	v.SetDefault("learner.min_messages_for_training", 2)
	v.SetDefault("learner.save_interval_seconds", 60)
	v.SetDefault("learner.save_every_messages", 10)
	v.SetDefault("learner.epochs", 20)
	v.SetDefault("learner.batch_size", 64)
	v.SetDefault("learner.learning_rate", 0.01)
	v.SetDefault("learner.embedding_dim", 100)
	v.SetDefault("learner.hidden_dim", 150)
	v.SetDefault("learner.next_words", 20)
	v.SetDefault("learner.seed", 0)
	v.SetDefault("learner.model_path", "message_learner_model.json")
	v.SetDefault("learner.tokenizer_path", "tokenizer.json")
	v.SetDefault("learner.training_data_path", "training_data.txt")
	v.SetDefault("learner.dataset_path", "dataset.txt")

	v.SetDefault("chag.system_prompt_path", "prompts/system_prompt.txt")
	v.SetDefault("chag.bot_label", "Chag")
	v.SetDefault("chag.default_user_label", "User")
	v.SetDefault("chag.empty_message", "Hello.")
	v.SetDefault("chag.fallback_text", "Guhh?")
	v.SetDefault("chag.max_attempts", 5)
	v.SetDefault("chag.history_turns", 10)
	v.SetDefault("chag.trigger_words", []string{"_chag", "_chat"})
	v.SetDefault("chag.rate_limit", 1.0)
	v.SetDefault("chag.rate_burst", 5)

	v.SetDefault("llm.api_key", "")
	v.SetDefault("llm.base_url", "http://localhost:8000/v1")
	v.SetDefault("llm.model", "gpt2")
	v.SetDefault("llm.generation.temperature", 0.9)
	v.SetDefault("llm.generation.top_p", 0.95)
	v.SetDefault("llm.generation.max_tokens", 60)

	v.SetDefault("database.redis.addr", "")
	v.SetDefault("database.redis.password", "")
	v.SetDefault("database.redis.db", 0)
	v.SetDefault("database.sqlite.path", "")

	v.SetDefault("kafka.brokers", "")
	v.SetDefault("kafka.topic", "training-pairs")

	v.SetDefault("minio.endpoint", "")
	v.SetDefault("minio.access_key_id", "")
	v.SetDefault("minio.secret_access_key", "")
	v.SetDefault("minio.use_ssl", false)
	v.SetDefault("minio.bucket_name", "learner-snapshots")
}
