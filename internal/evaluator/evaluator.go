// Package evaluator grades free-text answers. A local keyword heuristic always
// runs; an optional remote grader may replace its verdict.
package evaluator

import (
	"context"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/pavelanni/icapexam/internal/model"
)

const (
	// DefaultRemoteTimeout bounds the single remote grading call.
	DefaultRemoteTimeout = 15 * time.Second
	// DefaultMinRemoteLength is the reply length a remote verdict must exceed.
	DefaultMinRemoteLength = 50
)

// Remote grades a submission and returns the raw line-tagged reply.
type Remote interface {
	Grade(ctx context.Context, sub model.Submission) (string, error)
}

type Option func(*Evaluator)

// WithRemote enables the remote stage. A nil remote disables it.
func WithRemote(r Remote) Option { return func(e *Evaluator) { e.remote = r } }

// WithTimeout sets the remote call timeout.
func WithTimeout(d time.Duration) Option { return func(e *Evaluator) { e.timeout = d } }

// WithMinRemoteLength sets how long a remote reply must be to be accepted.
func WithMinRemoteLength(n int) Option { return func(e *Evaluator) { e.minRemoteLen = n } }

// Evaluator runs the two-stage grading pipeline.
type Evaluator struct {
	rules        Rules
	remote       Remote
	timeout      time.Duration
	minRemoteLen int
}

func New(rules Rules, opts ...Option) *Evaluator {
	e := &Evaluator{
		rules:        rules,
		timeout:      DefaultRemoteTimeout,
		minRemoteLen: DefaultMinRemoteLength,
	}
	for _, o := range opts {
		o(e)
	}
	return e
}

// HasRemote reports whether a remote grader is configured.
func (e *Evaluator) HasRemote() bool {
	return e.remote != nil
}

// Evaluate grades a submission. It never fails: remote problems fall back to
// the local verdict.
func (e *Evaluator) Evaluate(ctx context.Context, sub model.Submission) model.Verdict {
	if sub.Hint == "" {
		sub.Hint = QuestionHint(sub.Answer, sub.Chapter)
	}
	local := e.rules.Evaluate(sub)
	remote := e.tryRemote(ctx, sub)
	v := Merge(local, remote)
	slog.Debug("answer evaluated", "chapter", sub.Chapter, "source", v.Source, "score", v.Score)
	return v
}

// tryRemote makes one bounded call to the remote grader. It returns nil when
// no remote is configured or the reply is unusable.
func (e *Evaluator) tryRemote(ctx context.Context, sub model.Submission) *model.Verdict {
	if e.remote == nil {
		return nil
	}
	if e.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}

	start := time.Now()
	raw, err := e.remote.Grade(ctx, sub)
	if err != nil {
		slog.Warn("remote grading failed, using heuristic", "error", err, "elapsed", time.Since(start))
		return nil
	}
	raw = strings.TrimSpace(raw)
	if n := utf8.RuneCountInString(raw); n <= e.minRemoteLen {
		slog.Warn("remote grading reply too short, using heuristic", "length", n)
		return nil
	}
	v := ParseVerdict(raw)
	v.Source = model.SourceRemote
	return &v
}

// Merge picks the final verdict: a usable remote verdict replaces the local
// one, otherwise the local verdict stands. A remote verdict without a model
// answer takes the chapter's study pointer from the local verdict.
func Merge(local model.Verdict, remote *model.Verdict) model.Verdict {
	if remote == nil {
		return local
	}
	v := *remote
	if strings.TrimSpace(v.ModelAnswer) == "" {
		v.ModelAnswer = local.ModelAnswer
	}
	return v
}
