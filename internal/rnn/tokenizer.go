// Package rnn implements the word-level recurrent language model used by the
// message learner: a frequency-ranked tokenizer and a small Elman network
// trained with backpropagation through time.
package rnn

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"unicode"
)

// PadIndex is reserved for padding and never assigned to a word.
const PadIndex = 0

// Tokenizer maps words to integer ids ranked by frequency.
// Index 1 is the OOV token when OOVToken is set.
type Tokenizer struct {
	NumWords   int            `json:"num_words"`
	OOVToken   string         `json:"oov_token"`
	WordCounts map[string]int `json:"word_counts"`
	WordOrder  []string       `json:"word_order"`
	WordIndex  map[string]int `json:"word_index"`

	indexWord map[int]string
}

// NewTokenizer creates an empty tokenizer. numWords <= 0 means unbounded.
func NewTokenizer(numWords int, oovToken string) *Tokenizer {
	return &Tokenizer{
		NumWords:   numWords,
		OOVToken:   oovToken,
		WordCounts: make(map[string]int),
		WordIndex:  make(map[string]int),
		indexWord:  make(map[int]string),
	}
}

// Split breaks preprocessed text into word tokens. Sentence punctuation
// (.?!) becomes a token of its own; other non-alphanumeric runes separate words.
func Split(text string) []string {
	var tokens []string
	var cur []rune
	flush := func() {
		if len(cur) > 0 {
			tokens = append(tokens, string(cur))
			cur = cur[:0]
		}
	}
	for _, r := range text {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			cur = append(cur, unicode.ToLower(r))
		case r == '.' || r == '?' || r == '!':
			flush()
			tokens = append(tokens, string(r))
		default:
			flush()
		}
	}
	flush()
	return tokens
}

// IsTerminal reports whether word ends a sentence.
func IsTerminal(word string) bool {
	return word == "." || word == "?" || word == "!"
}

// FitOnTexts updates word counts and rebuilds the index.
func (t *Tokenizer) FitOnTexts(texts []string) {
	for _, text := range texts {
		for _, w := range Split(text) {
			if _, ok := t.WordCounts[w]; !ok {
				t.WordOrder = append(t.WordOrder, w)
			}
			t.WordCounts[w]++
		}
	}
	t.rebuild()
}

func (t *Tokenizer) rebuild() {
	words := make([]string, len(t.WordOrder))
	copy(words, t.WordOrder)
	sort.SliceStable(words, func(i, j int) bool {
		return t.WordCounts[words[i]] > t.WordCounts[words[j]]
	})

	t.WordIndex = make(map[string]int, len(words)+1)
	t.indexWord = make(map[int]string, len(words)+1)
	next := 1
	if t.OOVToken != "" {
		t.WordIndex[t.OOVToken] = next
		t.indexWord[next] = t.OOVToken
		next++
	}
	for _, w := range words {
		if w == t.OOVToken {
			continue
		}
		t.WordIndex[w] = next
		t.indexWord[next] = w
		next++
	}
}

// Empty reports whether the tokenizer has seen any text.
func (t *Tokenizer) Empty() bool {
	return len(t.WordCounts) == 0
}

// VocabSize is the output dimension a model needs for this tokenizer.
func (t *Tokenizer) VocabSize() int {
	n := len(t.WordIndex) + 1
	if t.NumWords > 0 && n > t.NumWords {
		n = t.NumWords
	}
	return n
}

// TextToSequence converts text to ids. Words outside the index or past
// NumWords map to the OOV id, or are skipped when there is no OOV token.
func (t *Tokenizer) TextToSequence(text string) []int {
	words := Split(text)
	seq := make([]int, 0, len(words))
	oov, hasOOV := t.WordIndex[t.OOVToken]
	for _, w := range words {
		idx, ok := t.WordIndex[w]
		if ok && (t.NumWords <= 0 || idx < t.NumWords) {
			seq = append(seq, idx)
		} else if hasOOV {
			seq = append(seq, oov)
		}
	}
	return seq
}

// Word returns the word for idx.
func (t *Tokenizer) Word(idx int) (string, bool) {
	w, ok := t.indexWord[idx]
	return w, ok
}

// Save writes the tokenizer state as JSON.
func (t *Tokenizer) Save(path string) error {
	data, err := json.Marshal(t)
	if err != nil {
		return fmt.Errorf("marshal tokenizer: %w", err)
	}
	return writeFileAtomic(path, data)
}

// LoadTokenizer reads a tokenizer saved with Save.
func LoadTokenizer(path string) (*Tokenizer, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	t := NewTokenizer(0, "")
	if err := json.Unmarshal(data, t); err != nil {
		return nil, fmt.Errorf("unmarshal tokenizer: %w", err)
	}
	if t.WordCounts == nil {
		t.WordCounts = make(map[string]int)
	}
	t.rebuild()
	return t, nil
}

// writeFileAtomic writes to a sibling temp file and renames it over path.
func writeFileAtomic(path string, data []byte) error {
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("rename %s: %w", tmp, err)
	}
	return nil
}
