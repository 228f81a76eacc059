package service

import (
	"context"
	"errors"
	"math/rand"
	"strings"
	"testing"

	"chag-go/internal/config"
	"chag-go/internal/repository"
)

type scriptedLLM struct {
	outputs []string
	errs    []error
	prompts []string
	calls   int
}

func (f *scriptedLLM) Complete(_ context.Context, prompt string, _ []string) (string, error) {
	i := f.calls
	f.calls++
	f.prompts = append(f.prompts, prompt)
	if i < len(f.errs) && f.errs[i] != nil {
		return "", f.errs[i]
	}
	if i < len(f.outputs) {
		return f.outputs[i], nil
	}
	return "", nil
}

func testChagConfig() config.ChagConfig {
	return config.ChagConfig{
		BotLabel:         "Chag",
		DefaultUserLabel: "User",
		EmptyMessage:     "Hello.",
		FallbackText:     "Guhh?",
		MaxAttempts:      5,
		HistoryTurns:     10,
		TriggerWords:     []string{"_chag", "_chat"},
	}
}

func TestChag_RespondCleansAndRemembers(t *testing.T) {
	ctx := context.Background()
	fake := &scriptedLLM{outputs: []string{" I am fine, thanks! bob: what about you? Chag: me too"}}
	hist := repository.NewMemoryHistoryRepository(10)
	svc := NewChagService(testChagConfig(), "Be nice.", fake, hist, rand.New(rand.NewSource(1)))

	got, err := svc.Respond(ctx, "bob", "_chag how are you")
	if err != nil {
		t.Fatalf("respond: %v", err)
	}
	if got != "I am fine, thanks! bob: what about you?" {
		t.Fatalf("response = %q", got)
	}
	wantPrompt := "Be nice.\n\nbob: how are you\nChag:"
	if fake.prompts[0] != wantPrompt {
		t.Fatalf("prompt = %q, want %q", fake.prompts[0], wantPrompt)
	}

	h, _ := hist.GetHistory(ctx, "bob")
	if len(h) != 2 || h[0].Content != "how are you" || h[1].Label != "Chag" {
		t.Fatalf("unexpected history: %+v", h)
	}

	fake.outputs = append(fake.outputs, "again")
	_, _ = svc.Respond(ctx, "bob", "second")
	if !strings.Contains(fake.prompts[1], "bob: how are you\nChag: I am fine") {
		t.Fatalf("history missing from prompt: %q", fake.prompts[1])
	}
}

func TestChag_DefaultsLabelAndMessage(t *testing.T) {
	fake := &scriptedLLM{outputs: []string{"hey"}}
	svc := NewChagService(testChagConfig(), "", fake, repository.NewMemoryHistoryRepository(10), rand.New(rand.NewSource(1)))
	if _, err := svc.Respond(context.Background(), "  ", "_chat"); err != nil {
		t.Fatalf("respond: %v", err)
	}
	if fake.prompts[0] != "User: Hello.\nChag:" {
		t.Fatalf("prompt = %q", fake.prompts[0])
	}
}

func TestChag_RetriesWhenFilteredEmpty(t *testing.T) {
	fake := &scriptedLLM{
		outputs: []string{"how are you", "   ", "", "real answer"},
		errs:    []error{nil, nil, errors.New("timeout")},
	}
	svc := NewChagService(testChagConfig(), "", fake, repository.NewMemoryHistoryRepository(10), rand.New(rand.NewSource(1)))
	got, err := svc.Respond(context.Background(), "bob", "how are you")
	if err != nil {
		t.Fatalf("respond: %v", err)
	}
	if got != "real answer" || fake.calls != 4 {
		t.Fatalf("got %q after %d calls", got, fake.calls)
	}
}

func TestChag_FallbackAfterFiveFailures(t *testing.T) {
	seen := map[string]bool{}
	for seed := int64(0); seed < 40; seed++ {
		fake := &scriptedLLM{outputs: []string{"how are you", "how are you", "how are you", "how are you", "how are you"}}
		svc := NewChagService(testChagConfig(), "", fake, repository.NewMemoryHistoryRepository(10), rand.New(rand.NewSource(seed)))
		got, err := svc.Respond(context.Background(), "bob", "how are you")
		if err != nil {
			t.Fatalf("respond: %v", err)
		}
		if fake.calls != 5 {
			t.Fatalf("expected 5 attempts, got %d", fake.calls)
		}
		if got != "Guhh?" && got != "how are you" {
			t.Fatalf("unexpected fallback %q", got)
		}
		seen[got] = true
	}
	if !seen["Guhh?"] || !seen["how are you"] {
		t.Fatalf("coin flip never chose one side: %v", seen)
	}
}

func TestChag_FallbackWhenEveryAttemptErrors(t *testing.T) {
	boom := errors.New("down")
	fake := &scriptedLLM{errs: []error{boom, boom, boom, boom, boom}}
	svc := NewChagService(testChagConfig(), "", fake, repository.NewMemoryHistoryRepository(10), rand.New(rand.NewSource(1)))
	got, err := svc.Respond(context.Background(), "bob", "hi")
	if err != nil {
		t.Fatalf("respond: %v", err)
	}
	if got != "Guhh?" {
		t.Fatalf("got %q", got)
	}
}
