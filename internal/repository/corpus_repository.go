package repository

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
)

// CorpusRepository 是只追加的训练样本日志，每行一个配对消息。
type CorpusRepository interface {
	Append(pair string) error
	LoadAll() ([]string, error)
}

type fileCorpusRepository struct {
	mu   sync.Mutex
	path string
}

// NewFileCorpusRepository 创建一个基于纯文本文件的 CorpusRepository。
func NewFileCorpusRepository(path string) CorpusRepository {
	return &fileCorpusRepository{path: path}
}

// Append 在文件末尾追加一行。
func (r *fileCorpusRepository) Append(pair string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	f, err := os.OpenFile(r.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open training data: %w", err)
	}
	defer f.Close()
	if _, err := f.WriteString(strings.ReplaceAll(pair, "\n", " ") + "\n"); err != nil {
		return fmt.Errorf("append training data: %w", err)
	}
	return nil
}

// LoadAll 读取所有非空行；文件不存在时返回空。
func (r *fileCorpusRepository) LoadAll() ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return ReadLines(r.path)
}

// ReadLines 读取文本文件中所有去除首尾空白后的非空行。
func ReadLines(path string) ([]string, error) {
	return readLines(path, false)
}

// ReadDatasetLines 读取数据集文件的每一行（去除首尾空白），空行保留为空字符串。
// 空行经预处理后成为消息 "."，同样参与配对。
func ReadDatasetLines(path string) ([]string, error) {
	return readLines(path, true)
}

// readLines 在文件不存在时返回 nil, nil。
func readLines(path string, keepBlank bool) ([]string, error) {
	f, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	lines := []string{}
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" && !keepBlank {
			continue
		}
		lines = append(lines, line)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return lines, nil
}
