package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/mvamarnath1/interview/internal/cache"
	"github.com/mvamarnath1/interview/internal/history"
	"github.com/mvamarnath1/interview/internal/llm"
	"github.com/mvamarnath1/interview/internal/metrics"
	"github.com/mvamarnath1/interview/internal/models"
	"github.com/mvamarnath1/interview/internal/prompts"
)

// FallbackAnswer is returned whenever the completion cannot be used.
const FallbackAnswer = "Take a breath and answer from your own experience: describe the situation briefly, what you did, and what came out of it."

type Options struct {
	Timeout         time.Duration
	Temperature     float32
	MaxOutputTokens int32
}

// Pipeline turns a question into a scored answer, consulting the answer cache
// before the completion provider.
type Pipeline struct {
	provider llm.Provider
	prompts  *prompts.PromptManager
	answers  *cache.AnswerCache
	window   *history.Window
	opts     Options
	logger   *zap.Logger

	flights  singleflight.Group
	flightMu sync.Mutex
	active   map[string]*flight
	seq      uint64
}

// flight is one shared completion. Its ctx ends once every caller waiting on
// it has gone, which aborts the provider call and discards the result.
type flight struct {
	id      string
	ctx     context.Context
	cancel  context.CancelFunc
	waiters int
}

func New(provider llm.Provider, pm *prompts.PromptManager, answers *cache.AnswerCache, window *history.Window, opts Options, logger *zap.Logger) *Pipeline {
	return &Pipeline{
		provider: provider,
		prompts:  pm,
		answers:  answers,
		window:   window,
		opts:     opts,
		logger:   logger,
		active:   make(map[string]*flight),
	}
}

// Window exposes the context window the pipeline records turns into.
func (p *Pipeline) Window() *history.Window {
	return p.window
}

// Answer runs one question through the pipeline and records the resulting
// turn. Upstream failures never surface: they produce the fallback answer.
// The only errors returned are an empty question or ctx ending, in which case
// nothing is recorded.
//
// Callers must serialize Answer per session to keep turn order.
func (p *Pipeline) Answer(ctx context.Context, sessionID, userID, question string) (models.Answer, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return models.Answer{}, fmt.Errorf("%w: empty question", models.ErrProtocol)
	}

	fingerprint := cache.Normalize(question)
	if fingerprint == "" {
		return models.Answer{}, fmt.Errorf("%w: question has no words", models.ErrProtocol)
	}
	answer := models.Answer{Question: question}

	if entry, ok := p.answers.Lookup(ctx, fingerprint, userID); ok {
		answer.Text, answer.Score, answer.Category, answer.Cached = entry.Answer, entry.Score, entry.Category, true
		metrics.AnswersTotal.WithLabelValues(metrics.SourceCache).Inc()
	} else {
		entry, err := p.compute(ctx, sessionID, userID, fingerprint, question)
		if ctxErr := ctx.Err(); ctxErr != nil {
			return models.Answer{}, ctxErr
		}
		if err != nil {
			p.logger.Warn("completion failed, using fallback answer",
				zap.String("session_id", sessionID),
				zap.String("error_code", models.ErrorCode(err)),
				zap.Error(err))
			answer.Text, answer.Score, answer.Category, answer.Fallback = FallbackAnswer, 0, models.CategoryGeneral, true
			metrics.AnswersTotal.WithLabelValues(metrics.SourceFallback).Inc()
		} else {
			answer.Text, answer.Score, answer.Category = entry.Answer, entry.Score, entry.Category
			metrics.AnswersTotal.WithLabelValues(metrics.SourceComputed).Inc()
		}
	}

	err := p.window.Append(ctx, models.Turn{
		SessionID: sessionID,
		Question:  question,
		Answer:    answer.Text,
		Score:     answer.Score,
		Category:  answer.Category,
		CreatedAt: time.Now().UTC(),
	})
	if err != nil {
		return models.Answer{}, err
	}
	return answer, nil
}

// compute calls the provider once per (user, fingerprint) at a time; callers
// asking the same thing concurrently share the result. A successful result is
// stored in the cache before the flight ends, unless every caller has left.
func (p *Pipeline) compute(ctx context.Context, sessionID, userID, fingerprint, question string) (models.CacheEntry, error) {
	prompt, err := p.prompts.BuildAnswerPrompt(p.window.Recent(ctx, sessionID), question)
	if err != nil {
		return models.CacheEntry{}, fmt.Errorf("build prompt: %w", err)
	}

	key := userID + "\x00" + fingerprint
	f := p.join(ctx, key)
	defer p.leave(key, f)

	ch := p.flights.DoChan(f.id, func() (interface{}, error) {
		flightCtx, cancel := context.WithTimeout(f.ctx, p.opts.Timeout)
		defer cancel()

		entry, err := p.complete(flightCtx, prompt)
		if err != nil {
			return models.CacheEntry{}, err
		}
		if err := f.ctx.Err(); err != nil {
			return models.CacheEntry{}, err
		}
		p.answers.Store(f.ctx, fingerprint, userID, entry)
		return entry, nil
	})

	select {
	case <-ctx.Done():
		return models.CacheEntry{}, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return models.CacheEntry{}, res.Err
		}
		return res.Val.(models.CacheEntry), nil
	}
}

// join registers the caller on the live flight for key, starting one if none
// is running. A cancelled flight is never joined: the next caller gets a new
// one under a fresh singleflight key.
func (p *Pipeline) join(ctx context.Context, key string) *flight {
	p.flightMu.Lock()
	defer p.flightMu.Unlock()

	f, ok := p.active[key]
	if !ok {
		p.seq++
		fctx, cancel := context.WithCancel(context.WithoutCancel(ctx))
		f = &flight{id: key + "\x00" + strconv.FormatUint(p.seq, 10), ctx: fctx, cancel: cancel}
		p.active[key] = f
	}
	f.waiters++
	return f
}

func (p *Pipeline) leave(key string, f *flight) {
	p.flightMu.Lock()
	defer p.flightMu.Unlock()

	f.waiters--
	if f.waiters > 0 {
		return
	}
	f.cancel()
	if p.active[key] == f {
		delete(p.active, key)
	}
}

type completionResult struct {
	resp *models.GenerationResponse
	err  error
}

// complete bounds the provider call by ctx even if the provider itself does
// not honour cancellation.
func (p *Pipeline) complete(ctx context.Context, prompt string) (models.CacheEntry, error) {
	start := time.Now()
	done := make(chan completionResult, 1)
	go func() {
		resp, err := p.provider.GenerateContent(ctx, prompt, llm.GenerationOptions{
			Temperature:     p.opts.Temperature,
			MaxOutputTokens: p.opts.MaxOutputTokens,
		})
		done <- completionResult{resp: resp, err: err}
	}()

	var res completionResult
	select {
	case <-ctx.Done():
		res.err = &llm.ProviderError{
			Provider: p.provider.GetProviderName(),
			Code:     llm.ErrCodeTimeout,
			Message:  "completion timed out",
			Err:      ctx.Err(),
		}
	case res = <-done:
	}

	outcome := "ok"
	defer func() {
		metrics.CompletionDuration.WithLabelValues(p.provider.GetProviderName(), outcome).Observe(time.Since(start).Seconds())
	}()

	if res.err != nil {
		err := llm.Classify(res.err)
		outcome = "unavailable"
		if errors.Is(err, models.ErrUpstreamMalformed) {
			outcome = "malformed"
		}
		return models.CacheEntry{}, err
	}
	if res.resp == nil {
		outcome = "malformed"
		return models.CacheEntry{}, fmt.Errorf("%w: nil response", models.ErrUpstreamMalformed)
	}

	entry, err := ParseCompletion(res.resp.Content)
	if err != nil {
		outcome = "malformed"
		if !errors.Is(err, models.ErrUpstreamMalformed) {
			err = errors.Join(models.ErrUpstreamMalformed, err)
		}
		return models.CacheEntry{}, err
	}
	return entry, nil
}
