// Package service 包含了应用的业务逻辑层。
package service

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"chag-go/internal/config"
	"chag-go/internal/model"
	"chag-go/internal/repository"
	"chag-go/internal/rnn"
	"chag-go/internal/textproc"
	"chag-go/pkg/log"
	"chag-go/pkg/tasks"
)

// 返回给调用方的固定文案。
const (
	MsgAdded       = "Message added successfully"
	MsgNotEnough   = "Not enough messages to train on."
	MsgNoSequences = "No valid sequences to train on."
	MsgTrained     = "Training completed successfully"
	MsgUntrained   = "Model not trained or no data available. Please provide some training data."

	unknownWord = "<UNKNOWN>"
	oovToken    = "<OOV>"
)

// ErrNothingToSave 表示模型或分词器尚未初始化，无法保存。
var ErrNothingToSave = errors.New("model or tokenizer not initialized")

// PairPublisher 发布被接受的训练样本（Kafka）。
type PairPublisher interface {
	PublishPair(ctx context.Context, ev tasks.TrainingPairEvent) error
}

// SnapshotStore 备份与恢复模型文件（MinIO）。
type SnapshotStore interface {
	UploadFile(ctx context.Context, objectName, filePath string) error
	DownloadFile(ctx context.Context, objectName, filePath string) error
}

// LearnerService 定义了消息续写模型的操作接口。
type LearnerService interface {
	AddMessage(ctx context.Context, message string) (string, error)
	Train(ctx context.Context) (string, error)
	Generate(ctx context.Context, seedText string) (string, error)
	Save(ctx context.Context) error
	SaveIfDue(ctx context.Context)
	Load(ctx context.Context) bool
	Bootstrap(ctx context.Context) error
	Stats(ctx context.Context) model.LearnerStats
}

// LearnerDeps 汇总 learner 的外部依赖。除 Corpus 外均可为 nil。
type LearnerDeps struct {
	Corpus    repository.CorpusRepository
	Events    repository.EventRepository
	Publisher PairPublisher
	Snapshots SnapshotStore
	Now       func() time.Time
}

type learnerService struct {
	cfg  config.LearnerConfig
	deps LearnerDeps

	// 所有状态由 mu 串行化，训练在持锁期间同步完成。
	mu          sync.Mutex
	rng         *rand.Rand
	tokenizer   *rnn.Tokenizer
	model       *rnn.Model
	maxSeqLen   int
	messages    []string
	previous    string
	hasPrevious bool

	sinceTraining int
	sinceSave     int
	lastSave      time.Time
}

// NewLearnerService 创建一个新的 LearnerService 实例。
func NewLearnerService(cfg config.LearnerConfig, deps LearnerDeps) LearnerService {
	if deps.Now == nil {
		deps.Now = time.Now
	}
	seed := cfg.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &learnerService{
		cfg:       cfg,
		deps:      deps,
		rng:       rand.New(rand.NewSource(seed)),
		tokenizer: rnn.NewTokenizer(cfg.MaxWords, oovToken),
		maxSeqLen: cfg.MaxSequenceLength,
		lastSave:  deps.Now(),
	}
}

// AddMessage 预处理消息并与上一条消息组成训练样本，必要时同步重新训练。
func (s *learnerService) AddMessage(ctx context.Context, message string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.addLocked(ctx, message, true); err != nil {
		return "", err
	}
	return MsgAdded, nil
}

// addLocked 在 live=false 时（引导数据集）不写日志、不发布、不触发训练。
func (s *learnerService) addLocked(ctx context.Context, message string, live bool) error {
	preprocessed := textproc.Preprocess(message)
	if live {
		s.recordEvent(ctx, model.EventMessage, preprocessed)
	}
	if !s.hasPrevious {
		s.previous = preprocessed
		s.hasPrevious = true
		return nil
	}

	pair := s.previous + " " + preprocessed
	prev := s.previous
	s.messages = append(s.messages, pair)
	s.previous = preprocessed
	if !live {
		return nil
	}

	if err := s.deps.Corpus.Append(pair); err != nil {
		return fmt.Errorf("failed to append training pair: %w", err)
	}
	ev := s.recordEvent(ctx, model.EventPair, pair)
	s.publish(ctx, ev, prev, preprocessed, pair)

	s.sinceTraining++
	s.sinceSave++
	if s.sinceTraining >= s.cfg.MinMessagesForTraining {
		if _, err := s.trainLocked(ctx); err != nil {
			log.Errorf("[Learner] 自动训练失败: %v", err)
		}
		s.sinceTraining = 0
	} else {
		s.checkSaveLocked(ctx)
	}
	return nil
}

func (s *learnerService) recordEvent(ctx context.Context, kind, content string) *model.LearnEvent {
	if s.deps.Events == nil {
		return nil
	}
	ev, err := s.deps.Events.Record(ctx, kind, content)
	if err != nil {
		log.Warnf("[Learner] 记录 %s 事件失败: %v", kind, err)
		return nil
	}
	return ev
}

func (s *learnerService) publish(ctx context.Context, ev *model.LearnEvent, prev, cur, pair string) {
	if s.deps.Publisher == nil {
		return
	}
	msg := tasks.TrainingPairEvent{Previous: prev, Current: cur, Pair: pair, CreatedAt: s.deps.Now().UTC()}
	if ev != nil {
		msg.ID = ev.ID
	}
	if err := s.deps.Publisher.PublishPair(ctx, msg); err != nil {
		log.Warnf("[Learner] 发布训练样本失败: %v", err)
	}
}

// Train 基于当前所有训练样本从头训练一个新模型。
func (s *learnerService) Train(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.trainLocked(ctx)
}

func (s *learnerService) trainLocked(ctx context.Context) (string, error) {
	if len(s.messages) < 2 {
		log.Info("[Learner] " + MsgNotEnough)
		return MsgNotEnough, nil
	}

	tok := rnn.NewTokenizer(s.cfg.MaxWords, oovToken)
	tok.FitOnTexts(s.messages)
	log.Infof("[Learner] Total unique words: %d", tok.VocabSize())

	seqs := make([][]int, 0, len(s.messages))
	longest := 0
	for _, m := range s.messages {
		seq := tok.TextToSequence(m)
		if len(seq) > longest {
			longest = len(seq)
		}
		seqs = append(seqs, seq)
	}
	maxSeqLen := s.cfg.MaxSequenceLength
	if longest < maxSeqLen {
		maxSeqLen = longest
	}
	windows := rnn.Windows(seqs, maxSeqLen)
	if len(windows) == 0 {
		log.Info("[Learner] " + MsgNoSequences)
		return MsgNoSequences, nil
	}

	start := time.Now()
	m := rnn.NewModel(rnn.Options{
		Vocab:        tok.VocabSize(),
		EmbeddingDim: s.cfg.EmbeddingDim,
		HiddenDim:    s.cfg.HiddenDim,
		LearningRate: s.cfg.LearningRate,
	}, s.rng)
	losses, err := m.Fit(windows, s.cfg.Epochs, s.cfg.BatchSize)
	if err != nil {
		return "", fmt.Errorf("failed to fit model: %w", err)
	}
	finalLoss := 0.0
	if len(losses) > 0 {
		finalLoss = losses[len(losses)-1]
	}
	log.Infow("[Learner] 训练完成",
		"pairs", len(s.messages),
		"windows", len(windows),
		"vocab", tok.VocabSize(),
		"epochs", s.cfg.Epochs,
		"loss", finalLoss,
		"elapsed", time.Since(start).String(),
	)

	m.ContextSize = maxSeqLen
	s.tokenizer = tok
	s.model = m
	s.maxSeqLen = maxSeqLen
	s.recordEvent(ctx, model.EventTrain, fmt.Sprintf("pairs=%d vocab=%d loss=%.4f", len(s.messages), tok.VocabSize(), finalLoss))

	if err := s.saveLocked(ctx); err != nil {
		log.Errorf("[Learner] 训练后保存失败: %v", err)
	}
	return MsgTrained, nil
}

// Generate 以 seedText 为开头贪心地续写至多 NextWords 个词，遇到句末标点停止。
func (s *learnerService) Generate(ctx context.Context, seedText string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.model == nil || s.tokenizer.Empty() {
		return MsgUntrained, nil
	}

	seed := textproc.Preprocess(seedText)
	var out strings.Builder
	out.WriteString(seed)
	window := s.maxSeqLen - 1
	if window < 1 {
		window = 1
	}
	for i := 0; i < s.cfg.NextWords; i++ {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		seq := s.tokenizer.TextToSequence(out.String())
		if len(seq) > window {
			seq = seq[len(seq)-window:]
		}
		word, ok := s.tokenizer.Word(rnn.Argmax(s.model.Predict(seq)))
		if !ok {
			word = unknownWord
		}
		if rnn.IsTerminal(word) {
			out.WriteString(word)
			break
		}
		out.WriteString(" " + word)
	}

	response := strings.TrimSpace(out.String()[len(seed):])
	s.recordEvent(ctx, model.EventGenerate, seed+" => "+response)
	return response, nil
}

// Save 保存模型与分词器；成功后重置保存计数。
func (s *learnerService) Save(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saveLocked(ctx)
}

func (s *learnerService) saveLocked(ctx context.Context) error {
	if s.model == nil || s.tokenizer.Empty() {
		log.Warnf("[Learner] Model or tokenizer not initialized. Cannot save.")
		return ErrNothingToSave
	}
	if err := s.model.Save(s.cfg.ModelPath); err != nil {
		return fmt.Errorf("failed to save model: %w", err)
	}
	if err := s.tokenizer.Save(s.cfg.TokenizerPath); err != nil {
		return fmt.Errorf("failed to save tokenizer: %w", err)
	}
	s.lastSave = s.deps.Now()
	s.sinceSave = 0
	log.Info("[Learner] Model and tokenizer saved.")

	if s.deps.Snapshots != nil {
		for _, p := range []string{s.cfg.ModelPath, s.cfg.TokenizerPath} {
			if err := s.deps.Snapshots.UploadFile(ctx, filepath.Base(p), p); err != nil {
				log.Warnf("[Learner] 上传快照失败: %v", err)
			}
		}
	}
	return nil
}

// SaveIfDue 供定时任务调用。
func (s *learnerService) SaveIfDue(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.checkSaveLocked(ctx)
}

// checkSaveLocked：距上次保存超过间隔且有未保存样本，或未保存样本达到阈值时保存。
func (s *learnerService) checkSaveLocked(ctx context.Context) {
	interval := time.Duration(s.cfg.SaveIntervalSeconds) * time.Second
	due := s.deps.Now().Sub(s.lastSave) >= interval && s.sinceSave > 0
	if !due && s.sinceSave < s.cfg.SaveEveryMessages {
		return
	}
	if err := s.saveLocked(ctx); err != nil && !errors.Is(err, ErrNothingToSave) {
		log.Errorf("[Learner] 定期保存失败: %v", err)
	}
}

// Load 加载已保存的模型；失败时保持全新状态并返回 false。
func (s *learnerService) Load(ctx context.Context) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loadLocked(ctx)
}

func (s *learnerService) loadLocked(ctx context.Context) bool {
	s.restoreSnapshots(ctx)

	m, err := rnn.LoadModel(s.cfg.ModelPath, s.rng)
	if err != nil {
		log.Warnf("[Learner] No saved model found or error loading (%v). A new model will be created when training.", err)
		return false
	}
	tok, err := rnn.LoadTokenizer(s.cfg.TokenizerPath)
	if err != nil {
		log.Warnf("[Learner] No saved tokenizer found or error loading (%v). A new model will be created when training.", err)
		return false
	}
	if m.Vocab != tok.VocabSize() {
		log.Warnf("[Learner] 模型词表大小 %d 与分词器 %d 不一致，忽略已保存的模型", m.Vocab, tok.VocabSize())
		return false
	}
	s.model = m
	s.tokenizer = tok
	s.maxSeqLen = m.ContextSize
	if s.maxSeqLen < 2 {
		s.maxSeqLen = s.cfg.MaxSequenceLength
	}
	log.Info("[Learner] Model and tokenizer loaded.")
	return true
}

// restoreSnapshots 在本地模型文件缺失时尝试从对象存储恢复。
func (s *learnerService) restoreSnapshots(ctx context.Context) {
	if s.deps.Snapshots == nil {
		return
	}
	for _, p := range []string{s.cfg.ModelPath, s.cfg.TokenizerPath} {
		if _, err := os.Stat(p); err == nil {
			continue
		}
		if err := s.deps.Snapshots.DownloadFile(ctx, filepath.Base(p), p); err != nil {
			log.Warnf("[Learner] 从快照恢复 %s 失败: %v", p, err)
		} else {
			log.Infof("[Learner] 已从快照恢复 %s", p)
		}
	}
}

// Bootstrap 启动流程：加载模型、回放训练日志、导入初始数据集并按需训练一次。
func (s *learnerService) Bootstrap(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	loaded := s.loadLocked(ctx)

	pairs, err := s.deps.Corpus.LoadAll()
	if err != nil {
		return fmt.Errorf("failed to load training data: %w", err)
	}
	s.messages = append(s.messages, pairs...)
	log.Infof("[Learner] 从训练日志恢复 %d 条样本", len(pairs))

	datasetPairs := 0
	if s.cfg.DatasetPath != "" {
		lines, err := repository.ReadDatasetLines(s.cfg.DatasetPath)
		if err != nil {
			return fmt.Errorf("failed to read dataset: %w", err)
		}
		if lines == nil {
			log.Info("[Learner] No dataset found. Starting with the existing model or an empty dataset.")
		}
		before := len(s.messages)
		for _, line := range lines {
			if err := s.addLocked(ctx, line, false); err != nil {
				return err
			}
		}
		datasetPairs = len(s.messages) - before
		if lines != nil {
			log.Infof("[Learner] Loaded and processed %d messages from %s", len(lines), s.cfg.DatasetPath)
		}
	}

	if len(s.messages) == 0 && !loaded {
		log.Warnf("[Learner] No initial data or saved model. The system needs some data to function properly.")
		return nil
	}
	if len(s.messages) > 0 && (!loaded || datasetPairs > 0) {
		if _, err := s.trainLocked(ctx); err != nil {
			return err
		}
	}
	return nil
}

// Stats 返回当前学习状态。
func (s *learnerService) Stats(ctx context.Context) model.LearnerStats {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := model.LearnerStats{
		Pairs:        len(s.messages),
		Trained:      s.model != nil,
		PendingPairs: s.sinceTraining,
		UnsavedPairs: s.sinceSave,
		LastSavedAt:  s.lastSave,
	}
	if s.model != nil {
		st.VocabSize = s.tokenizer.VocabSize()
	}
	if s.deps.Events != nil {
		counts, err := s.deps.Events.CountByKind(ctx)
		if err != nil {
			log.Warnf("[Learner] 统计事件失败: %v", err)
		} else {
			st.EventCounts = counts
		}
	}
	return st
}
