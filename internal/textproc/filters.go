package textproc

import (
	"math/rand"
	"regexp"
	"strings"
	"unicode"
)

var (
	wordPattern  = regexp.MustCompile(`\S+`)
	labelPattern = regexp.MustCompile(`^[A-Za-z0-9_\-]{1,32}:$`)
)

// repeatLimits 与 repeatWeights 一一对应，偏向 1~3 次。
var (
	repeatLimits  = []int{1, 2, 3, 4, 5}
	repeatWeights = []int{40, 30, 20, 7, 3}
)

// RepeatLimit 按权重随机抽取本次调用允许的单词最大重复次数。
func RepeatLimit(rng *rand.Rand) int {
	total := 0
	for _, w := range repeatWeights {
		total += w
	}
	n := rng.Intn(total)
	for i, w := range repeatWeights {
		if n < w {
			return repeatLimits[i]
		}
		n -= w
	}
	return repeatLimits[len(repeatLimits)-1]
}

// wordKey 返回单词用于计数比较的形式：去掉首尾标点后小写。
func wordKey(word string) string {
	return strings.ToLower(strings.TrimFunc(word, func(r rune) bool {
		return unicode.IsPunct(r) || unicode.IsSymbol(r)
	}))
}

// CapRepetitions 丢弃超出 limit 次的单词出现。纯标点的 token 不计数。
func CapRepetitions(text string, limit int) string {
	if limit < 1 {
		limit = 1
	}
	counts := make(map[string]int)
	words := strings.Fields(text)
	kept := words[:0]
	for _, w := range words {
		key := wordKey(w)
		if key == "" {
			kept = append(kept, w)
			continue
		}
		counts[key]++
		if counts[key] <= limit {
			kept = append(kept, w)
		}
	}
	return strings.Join(kept, " ")
}

// IsSpeakerLabel 判断 token 是否形如 "Name:" 的说话人标签。
func IsSpeakerLabel(token string) bool {
	return labelPattern.MatchString(token)
}

// GuardImpersonation 防止模型替其他说话人续写：
// 允许出现 1 个标签（若文本本身以标签开头则为 2 个），
// 在第一个超出数量的标签处截断。截断点之前的格式保持不变。
func GuardImpersonation(text string) string {
	spans := wordPattern.FindAllStringIndex(text, -1)
	if len(spans) == 0 {
		return text
	}
	allowed := 1
	if IsSpeakerLabel(text[spans[0][0]:spans[0][1]]) {
		allowed = 2
	}
	seen := 0
	for _, sp := range spans {
		if !IsSpeakerLabel(text[sp[0]:sp[1]]) {
			continue
		}
		seen++
		if seen > allowed {
			return strings.TrimRightFunc(text[:sp[0]], unicode.IsSpace)
		}
	}
	return text
}

// StripPromptEcho 在 text 中查找以 reference 前两个词开头、后两个词结尾的片段，
// 找到且长度为正时将其删除。找不到时原样返回 text。
func StripPromptEcho(text, reference string) string {
	ref := strings.Fields(reference)
	if len(ref) == 0 {
		return text
	}
	n := 2
	if len(ref) < n {
		n = len(ref)
	}
	head, tail := ref[:n], ref[len(ref)-n:]

	spans := wordPattern.FindAllStringIndex(text, -1)
	words := make([]string, len(spans))
	for i, sp := range spans {
		words[i] = text[sp[0]:sp[1]]
	}

	start := indexWords(words, head, 0)
	if start < 0 {
		return text
	}
	end := indexWords(words, tail, start)
	if end < 0 {
		return text
	}
	from, to := spans[start][0], spans[end+n-1][1]
	if to <= from {
		return text
	}
	before := strings.TrimRightFunc(text[:from], unicode.IsSpace)
	after := strings.TrimLeftFunc(text[to:], unicode.IsSpace)
	if before == "" || after == "" {
		return before + after
	}
	return before + " " + after
}

// indexWords 返回 needle 在 words 中从 from 开始的第一次出现位置（大小写不敏感）。
func indexWords(words, needle []string, from int) int {
outer:
	for i := from; i+len(needle) <= len(words); i++ {
		for j, w := range needle {
			if !strings.EqualFold(words[i+j], w) {
				continue outer
			}
		}
		return i
	}
	return -1
}

// StripTriggers 去掉转发消息里用来唤起机器人的触发词，例如 "_chag"。
func StripTriggers(message string, triggers []string) string {
	for _, t := range triggers {
		if t == "" {
			continue
		}
		message = strings.ReplaceAll(message, t, "")
	}
	return strings.Join(strings.Fields(message), " ")
}
