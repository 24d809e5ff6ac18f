// Package query answers free-text questions about the cleaned bookings table.
package query

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/KaramelBytes/flightinsights/internal/ai"
	"github.com/KaramelBytes/flightinsights/internal/script"
	"github.com/KaramelBytes/flightinsights/internal/table"
)

// ResultBinding is the global the query code must assign.
const ResultBinding = "result"

var (
	ErrEmptyQuestion = errors.New("empty question")
	ErrEmptyAnswer   = errors.New("model returned an empty answer")
)

// TrainingDocs are the standing instructions given to every agent.
var TrainingDocs = []string{
	"Try to find out the code for each user query and then try to execute it on the dataframe. Then answer the questions respectively.",
	"Some questions can't be answered directly from the current columns. For those questions, generate the column according to the question given and then answer the question.",
}

// Agent answers questions by generating code, running it against the table
// and phrasing the computed result. It is read-only after construction.
type Agent struct {
	chat   *ai.ChatModel
	table  *table.Table
	engine *script.Engine
	system string
	log    *slog.Logger
}

// NewAgent builds the system prompt once from the table profile and docs.
func NewAgent(chat *ai.ChatModel, t *table.Table, engine *script.Engine, docs ...string) *Agent {
	var b strings.Builder
	b.WriteString("You are a data analyst answering questions about a flight bookings table.\n\n")
	b.WriteString(t.Profile("bookings", 5).Markdown())
	if len(docs) > 0 {
		b.WriteString("\n[INSTRUCTIONS]\n")
		for _, d := range docs {
			b.WriteString("- " + strings.TrimSpace(d) + "\n")
		}
	}
	return &Agent{chat: chat, table: t, engine: engine, system: b.String(), log: slog.Default()}
}

// Answer never fails: errors are reported inside the returned text.
func (a *Agent) Answer(ctx context.Context, question string) (answer string) {
	defer func() {
		if r := recover(); r != nil {
			a.log.Error("answer panicked", "panic", r)
			answer = fmt.Sprintf("An error occurred while fetching the answer. Error: internal error: %v", r)
		}
	}()
	ans, err := a.answer(ctx, question)
	if err != nil {
		a.log.Error("answer failed", "error", err)
		return fmt.Sprintf("An error occurred while fetching the answer. Error: %v", err)
	}
	return ans
}

func (a *Agent) answer(ctx context.Context, question string) (string, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return "", ErrEmptyQuestion
	}
	rephrased, err := a.Rephrase(ctx, question)
	if err != nil {
		return "", fmt.Errorf("rephrase: %w", err)
	}
	a.log.Debug("question rephrased", "question", question, "rephrased", rephrased)

	completion, err := a.chat.CompleteText(ctx, a.system, codePrompt(rephrased))
	if err != nil {
		return "", fmt.Errorf("generate code: %w", err)
	}
	code, err := script.Validate(completion)
	if err != nil {
		return "", err
	}
	value, err := a.engine.Evaluate(ctx, code, a.table, ResultBinding)
	if err != nil {
		return "", err
	}
	a.log.Debug("query code evaluated", "result", value)

	out, err := a.chat.CompleteText(ctx, a.system, answerPrompt(question, value))
	if err != nil {
		return "", fmt.Errorf("phrase answer: %w", err)
	}
	out = strings.TrimSpace(out)
	if out == "" {
		return "", ErrEmptyAnswer
	}
	return out, nil
}

// Rephrase turns a user question into an unambiguous analysis request.
func (a *Agent) Rephrase(ctx context.Context, question string) (string, error) {
	prompt := "Rephrase the following question so it can be answered from the table described above. " +
		"Keep its meaning, name the relevant columns, and return only the rephrased question.\n\nQuestion: " + question
	out, err := a.chat.CompleteText(ctx, a.system, prompt)
	if err != nil {
		return "", err
	}
	out = strings.TrimSpace(out)
	if out == "" {
		return question, nil
	}
	return out, nil
}

func codePrompt(question string) string {
	return "Write code that answers this question about the table bound to `df`:\n" + question + "\n\n" +
		script.Reference + "\n\n" +
		"Define a function `answer(df)` that returns the answer value (a number, string, list, dict or table), " +
		"then assign it with `result = answer(df)` at the end. " +
		"Return only the code inside a single ```python fenced block."
}

func answerPrompt(question, value string) string {
	return "Question: " + question + "\n\nComputed result:\n" + value + "\n\n" +
		"Answer the question in plain language using only the computed result. Be concise."
}
