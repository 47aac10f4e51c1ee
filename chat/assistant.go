package chat

import (
	"context"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

const (
	// DefaultHistoryTurns sends the last ten messages: five questions and
	// their replies.
	DefaultHistoryTurns = 5
	DefaultTimeout      = 30 * time.Second
)

// ReplyKind records which path produced a reply.
type ReplyKind int

const (
	Refused ReplyKind = iota
	Ruled
	Remote
	Fallback
)

func (k ReplyKind) String() string {
	switch k {
	case Refused:
		return "refused"
	case Ruled:
		return "rule"
	case Remote:
		return "remote"
	}
	return "fallback"
}

type Reply struct {
	Kind    ReplyKind
	Text    string
	Failure Failure
}

// Assistant routes a question to the refusal text, the local rules or the
// remote backend, in that order.
type Assistant struct {
	Backend      Backend
	HistoryTurns int
	Timeout      time.Duration
	Log          logrus.FieldLogger
}

func (a *Assistant) log() logrus.FieldLogger {
	if a.Log == nil {
		return logrus.StandardLogger()
	}
	return a.Log
}

// Answer never returns an empty reply and never exposes a backend error.
func (a *Assistant) Answer(ctx context.Context, question string, actx *AnalysisContext, history []Turn) Reply {
	if !IsMedical(question) {
		return Reply{Kind: Refused, Text: Refusal}
	}

	if IsSimple(question) {
		if text, ok := RuleAnswer(question, actx); ok {
			return Reply{Kind: Ruled, Text: text}
		}
	}

	if a.Backend == nil {
		return a.fallback(question, actx, FailureNotConfigured)
	}

	n := a.HistoryTurns
	if n <= 0 {
		n = DefaultHistoryTurns
	}
	if len(history) > n {
		history = history[len(history)-n:]
	}

	timeout := a.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	text, err := a.Backend.Complete(callCtx, Request{
		System:   SystemPrompt(actx),
		History:  history,
		Question: question,
	})
	if err != nil {
		failure := Classify(err)
		a.log().WithError(err).WithField("failure", failure.String()).Warnln("Chat backend failed")
		return a.fallback(question, actx, failure)
	}

	text = strings.TrimSpace(strings.ReplaceAll(text, "**", ""))
	if text == "" {
		return a.fallback(question, actx, FailureUnavailable)
	}

	return Reply{Kind: Remote, Text: text}
}

func (a *Assistant) fallback(question string, actx *AnalysisContext, failure Failure) Reply {
	return Reply{
		Kind:    Fallback,
		Text:    failure.Message() + "\n\n" + LocalAnswer(question, actx),
		Failure: failure,
	}
}

// LocalAnswer is the context-derived text used when no remote answer is
// available.
func LocalAnswer(question string, actx *AnalysisContext) string {
	if text, ok := RuleAnswer(question, actx); ok {
		return text
	}
	if actx.hasPatient() {
		return PatientSummary(actx)
	}
	return selectFirst
}
