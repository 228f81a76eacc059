package service

import (
	"context"
	"fmt"
	"math/rand"
	"strings"
	"sync"
	"time"

	"chag-go/internal/config"
	"chag-go/internal/model"
	"chag-go/internal/repository"
	"chag-go/internal/textproc"
	"chag-go/pkg/llm"
	"chag-go/pkg/log"
)

// ChagService 定义了 GPT-2 聊天应答的接口。
type ChagService interface {
	Respond(ctx context.Context, userLabel, message string) (string, error)
}

type chagService struct {
	cfg          config.ChagConfig
	llmClient    llm.Client
	historyRepo  repository.HistoryRepository
	systemPrompt string

	rngMu sync.Mutex
	rng   *rand.Rand
}

// NewChagService 创建一个新的 ChagService 实例。rng 为 nil 时使用时间种子。
func NewChagService(cfg config.ChagConfig, systemPrompt string, llmClient llm.Client, historyRepo repository.HistoryRepository, rng *rand.Rand) ChagService {
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	if cfg.MaxAttempts < 1 {
		cfg.MaxAttempts = 5
	}
	return &chagService{
		cfg:          cfg,
		llmClient:    llmClient,
		historyRepo:  historyRepo,
		systemPrompt: strings.TrimSpace(systemPrompt),
		rng:          rng,
	}
}

// Respond 生成回复：调用模型、清洗输出，清洗后为空则重试，多次失败后回退。
func (s *chagService) Respond(ctx context.Context, userLabel, message string) (string, error) {
	label := strings.TrimSpace(userLabel)
	if label == "" {
		label = s.cfg.DefaultUserLabel
	}
	message = textproc.StripTriggers(message, s.cfg.TriggerWords)
	if message == "" {
		message = s.cfg.EmptyMessage
	}

	history, err := s.historyRepo.GetHistory(ctx, label)
	if err != nil {
		log.Errorf("[Chag] 加载聊天历史失败: %v", err)
		history = nil
	}
	prompt := s.buildPrompt(history, label, message)
	stop := []string{"\n" + label + ":"}

	var lastRaw string
	for attempt := 1; attempt <= s.cfg.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		raw, err := s.llmClient.Complete(ctx, prompt, stop)
		if err != nil {
			log.Warnf("[Chag] 第 %d 次生成失败: %v", attempt, err)
			continue
		}
		if strings.TrimSpace(raw) != "" {
			lastRaw = raw
		}
		cleaned := s.clean(raw, prompt, message)
		if cleaned == "" {
			log.Infof("[Chag] 第 %d 次生成经过滤后为空，重试", attempt)
			continue
		}
		s.remember(ctx, label, message, cleaned)
		return cleaned, nil
	}

	response := s.fallback(lastRaw)
	log.Warnf("[Chag] %d 次生成均失败，使用回退回复: %q", s.cfg.MaxAttempts, response)
	return response, nil
}

// buildPrompt 拼接系统提示、历史对话与本轮消息，末尾留出机器人标签等待续写。
func (s *chagService) buildPrompt(history []model.ChatMessage, label, message string) string {
	var b strings.Builder
	if s.systemPrompt != "" {
		b.WriteString(s.systemPrompt)
		b.WriteString("\n\n")
	}
	for _, m := range history {
		b.WriteString(fmt.Sprintf("%s: %s\n", m.Label, m.Content))
	}
	b.WriteString(fmt.Sprintf("%s: %s\n%s:", label, message, s.cfg.BotLabel))
	return b.String()
}

// clean 依次执行：去除回显的完整 prompt、去除回显的用户消息、防冒充截断、限制重复。
func (s *chagService) clean(raw, prompt, message string) string {
	text := strings.TrimPrefix(raw, prompt)
	text = textproc.StripPromptEcho(text, message)
	text = textproc.GuardImpersonation(text)

	s.rngMu.Lock()
	limit := textproc.RepeatLimit(s.rng)
	s.rngMu.Unlock()
	text = textproc.CapRepetitions(text, limit)

	text = strings.TrimSpace(text)
	text = strings.TrimSpace(strings.TrimPrefix(text, s.cfg.BotLabel+":"))
	return text
}

// fallback 公平抛硬币：固定回退文案，或最后一次过滤前非空的原始输出。
func (s *chagService) fallback(lastRaw string) string {
	lastRaw = strings.TrimSpace(lastRaw)
	if lastRaw == "" {
		return s.cfg.FallbackText
	}
	s.rngMu.Lock()
	heads := s.rng.Intn(2) == 0
	s.rngMu.Unlock()
	if heads {
		return s.cfg.FallbackText
	}
	return lastRaw
}

func (s *chagService) remember(ctx context.Context, label, message, response string) {
	now := time.Now()
	err := s.historyRepo.AppendHistory(ctx, label,
		model.ChatMessage{Role: "user", Label: label, Content: message, Timestamp: now},
		model.ChatMessage{Role: "assistant", Label: s.cfg.BotLabel, Content: response, Timestamp: now},
	)
	if err != nil {
		// 只记录错误，回复已经生成成功
		log.Errorf("[Chag] 保存聊天历史失败: %v", err)
	}
}
