// Package textproc 提供消息预处理以及生成结果的清洗过滤器。
package textproc

import (
	"strings"
	"unicode"
)

// IsTerminal 判断 r 是否为句末标点。
func IsTerminal(r rune) bool {
	return r == '.' || r == '?' || r == '!'
}

// AddPeriod 在不以句末标点结尾的句子后补一个句号。
func AddPeriod(sentence string) string {
	if sentence == "" || !IsTerminal(rune(sentence[len(sentence)-1])) {
		return sentence + "."
	}
	return sentence
}

// Preprocess 将原始消息规范化为训练/生成所用的形式：
// 小写、仅保留 [a-z0-9]、空白与 .?!，按句末标点分句并保证每句以标点结尾。
func Preprocess(message string) string {
	message = strings.ToLower(strings.TrimSpace(message))

	var b strings.Builder
	b.Grow(len(message))
	for _, r := range message {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', IsTerminal(r):
			b.WriteRune(r)
		case unicode.IsSpace(r):
			b.WriteRune(r)
		}
	}

	sentences := splitSentences(b.String())
	for i, s := range sentences {
		sentences[i] = AddPeriod(s)
	}
	return strings.Join(sentences, " ")
}

// splitSentences 在“句末标点 + 空白”处切分，空白本身被丢弃。
func splitSentences(text string) []string {
	var out []string
	runes := []rune(text)
	start := 0
	for i := 0; i < len(runes); i++ {
		if !IsTerminal(runes[i]) || i+1 >= len(runes) || !unicode.IsSpace(runes[i+1]) {
			continue
		}
		out = append(out, string(runes[start:i+1]))
		j := i + 1
		for j < len(runes) && unicode.IsSpace(runes[j]) {
			j++
		}
		start = j
		i = j - 1
	}
	return append(out, string(runes[start:]))
}
