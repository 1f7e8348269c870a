// Package analyze summarizes an article URL and scores the sentiment of the summary.
package analyze

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
)

// ErrMissingURL is returned by Analyze for an empty URL.
var ErrMissingURL = errors.New("URL is required")

// TextFunc turns one text into another (url -> summary, summary -> sentiment).
type TextFunc func(ctx context.Context, input string) (string, error)

// Result is the JSON shape returned by the analyze endpoint and tool.
type Result struct {
	Summary   string `json:"summary"`
	Sentiment string `json:"sentiment"`
}

// Analyzer chains a summarizer and a sentiment scorer.
type Analyzer struct {
	Summarize TextFunc
	Sentiment TextFunc
}

// Analyze summarizes url and scores the summary.
func (a *Analyzer) Analyze(ctx context.Context, url string) (*Result, error) {
	url = strings.TrimSpace(url)
	if url == "" {
		return nil, ErrMissingURL
	}
	summary, err := a.Summarize(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("summarizing %s: %w", url, err)
	}
	sentiment, err := a.Sentiment(ctx, summary)
	if err != nil {
		return nil, fmt.Errorf("scoring sentiment: %w", err)
	}
	return &Result{Summary: summary, Sentiment: sentiment}, nil
}

// ScriptFunc runs "<command...> <action> <input>" and returns trimmed stdout.
// A non-zero exit is an error carrying stderr.
func ScriptFunc(command []string, action string) TextFunc {
	return func(ctx context.Context, input string) (string, error) {
		if len(command) == 0 {
			return "", errors.New("no analyze script configured")
		}
		args := append(append([]string{}, command[1:]...), action, input)
		cmd := exec.CommandContext(ctx, command[0], args...)

		var stdout, stderr bytes.Buffer
		cmd.Stdout = &stdout
		cmd.Stderr = &stderr
		if err := cmd.Run(); err != nil {
			return "", fmt.Errorf("script %s failed: %v: %s", action, err, strings.TrimSpace(stderr.String()))
		}
		return strings.TrimSpace(stdout.String()), nil
	}
}
