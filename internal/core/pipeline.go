package core

import (
	"context"
	"strings"

	"go.uber.org/zap"
	"gwi.com/analyst-assistant/internal/auth"
	"gwi.com/analyst-assistant/internal/history"
	"gwi.com/analyst-assistant/internal/store"
)

const (
	GreetingNotice = "👋 Hello! Please ask something related to Excel, SQL, or data analysis."
	EmptyNotice    = "Please type a question."
)

var greetings = map[string]struct{}{
	"hi":        {},
	"hello":     {},
	"hey":       {},
	"yo":        {},
	"yoo":       {},
	"hola":      {},
	"hii":       {},
	"hiii":      {},
	"hey there": {},
}

// IsGreeting reports whether the question is only a greeting. Case and
// surrounding or repeated whitespace are ignored.
func IsGreeting(question string) bool {
	normalized := strings.ToLower(strings.Join(strings.Fields(question), " "))
	_, ok := greetings[normalized]
	return ok
}

type OutcomeKind int

const (
	OutcomeEmpty OutcomeKind = iota
	OutcomeGreeting
	OutcomeAnswered
)

func (k OutcomeKind) String() string {
	switch k {
	case OutcomeGreeting:
		return "greeting"
	case OutcomeAnswered:
		return "answered"
	default:
		return "empty"
	}
}

// Outcome is the result of a successful Submit. Refresh is set when the
// history changed and the view has to be re-rendered.
type Outcome struct {
	Kind     OutcomeKind
	Notice   string
	Exchange history.Exchange
	Refresh  bool
}

// FeedbackRecorder receives helpful/not helpful verdicts.
type FeedbackRecorder interface {
	Feedback(identity, question string, verdict store.Verdict)
}

// Pipeline turns a submitted question into a sanitized, recorded answer.
type Pipeline struct {
	gateway  Gateway
	feedback FeedbackRecorder
	logger   *zap.Logger
}

func NewPipeline(gateway Gateway, feedback FeedbackRecorder, logger *zap.Logger) *Pipeline {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Pipeline{
		gateway:  gateway,
		feedback: feedback,
		logger:   logger,
	}
}

// Submit answers one question for an authenticated member. A member whose
// session has since logged out gets auth.ErrSessionEnded, even for a
// greeting. Empty input and greetings never reach the provider. Any other question makes exactly one
// provider call and, on success, appends exactly one exchange.
func (p *Pipeline) Submit(ctx context.Context, member *auth.Member, question string) (Outcome, error) {
	if !member.Valid() {
		return Outcome{}, auth.ErrSessionEnded
	}
	if strings.TrimSpace(question) == "" {
		return Outcome{Kind: OutcomeEmpty, Notice: EmptyNotice}, nil
	}
	if IsGreeting(question) {
		return Outcome{Kind: OutcomeGreeting, Notice: GreetingNotice}, nil
	}

	release, err := member.Exclusive()
	if err != nil {
		return Outcome{}, err
	}
	defer release()

	logger := p.logger.With(zap.String("email", member.Identity()))

	raw, err := p.gateway.Complete(ctx, question)
	if err != nil {
		logger.Warn("completion failed", zap.Error(err))
		return Outcome{}, err
	}

	exchange := history.Exchange{
		Question: history.NormalizeNewlines(question),
		Answer:   history.NormalizeNewlines(Sanitize(raw)),
	}
	member.History().Append(exchange)

	logger.Info("question answered",
		zap.Int("question_len", len(question)),
		zap.Int("answer_len", len(exchange.Answer)),
	)
	return Outcome{Kind: OutcomeAnswered, Exchange: exchange, Refresh: true}, nil
}

func (p *Pipeline) MarkHelpful(member *auth.Member) error {
	return p.mark(member, store.VerdictHelpful)
}

func (p *Pipeline) MarkNotHelpful(member *auth.Member) error {
	return p.mark(member, store.VerdictNotHelpful)
}

// mark rates the latest exchange. It does not wait for an in-flight Submit.
func (p *Pipeline) mark(member *auth.Member, verdict store.Verdict) error {
	latest, ok := member.History().Latest()
	if !ok {
		return ErrNoExchange
	}
	if p.feedback != nil {
		p.feedback.Feedback(member.Identity(), latest.Question, verdict)
	}
	return nil
}

// ClearHistory empties the in-memory history. The durable log is untouched.
func (p *Pipeline) ClearHistory(member *auth.Member) {
	member.History().Clear()
	p.logger.Info("history cleared", zap.String("email", member.Identity()))
}

// ExportHistory renders the in-memory history as CSV, oldest first.
func (p *Pipeline) ExportHistory(member *auth.Member) ([]byte, error) {
	return member.History().ExportCSV()
}
