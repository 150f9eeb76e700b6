package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/querysmith/querysmith/internal/core/domain"
)

const defaultMaxIterations = 10

// promptTemplate is the REACT scaffold sent on the first turn. The model's
// raw output is appended verbatim each iteration, followed by the
// observation, so the model always sees the complete ordered history.
const promptTemplate = `Answer the following questions as best you can. You have access to the following tools:

%s

Use the following format:

Question: the input question you must answer
Thought: you should always think about what to do
Action: the action to take, should be one of [%s]
Action Input: the input to the action
Observation: the result of the action
... (this Thought/Action/Action Input/Observation can repeat N times)
Thought: I now know the final answer
Final Answer: the final answer to the original question

Begin!

Question: %s
Thought:`

// parseRetryFeedback is fed back as an observation when the model's output
// matches neither a tool call nor a final answer.
const parseRetryFeedback = "Could not parse your response. Reply with either 'Action: <tool name>' followed by 'Action Input: <input>', or 'Final Answer: <answer>'."

// TurnSink receives transcript turns as they occur. Used for streaming;
// may be nil.
type TurnSink func(domain.Turn)

// ReActAgent drives the REASON, ACT, OBSERVE loop for one question at a
// time. The struct itself is stateless across runs; every call to Run owns
// its transcript exclusively, so one agent serves concurrent runs.
type ReActAgent struct {
	logger     *slog.Logger
	llm        domain.LLMProvider
	tools      *domain.ToolRegistry
	maxIters   int
	llmTimeout time.Duration
}

// NewReActAgent creates the loop controller. maxIters below 1 falls back to
// the default cap.
func NewReActAgent(logger *slog.Logger, llm domain.LLMProvider, tools *domain.ToolRegistry, maxIters int, llmTimeout time.Duration) *ReActAgent {
	if maxIters < 1 {
		maxIters = defaultMaxIterations
	}
	return &ReActAgent{
		logger:     logger,
		llm:        llm,
		tools:      tools,
		maxIters:   maxIters,
		llmTimeout: llmTimeout,
	}
}

// Run executes the loop for one question. It returns a completed Run for
// both converged and iteration-capped outcomes; a non-nil error means the
// run itself could not proceed (model backend failure or cancellation) and
// carries no partial result.
func (a *ReActAgent) Run(ctx context.Context, id domain.RunID, question string, sink TurnSink) (*domain.Run, error) {
	started := time.Now()
	run := &domain.Run{
		ID:        id,
		Question:  question,
		StartedAt: started,
	}

	emit := func(t domain.Turn) {
		run.Transcript = append(run.Transcript, t)
		if sink != nil {
			sink(t)
		}
	}

	history := []string{a.buildPrompt(question)}

	for i := 0; i < a.maxIters; i++ {
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("run cancelled: %w", ctx.Err())
		default:
		}

		run.Iterations = i + 1
		a.logger.Info("react iteration", "run_id", string(id), "iteration", i+1)

		response, err := a.generate(ctx, strings.Join(history, "\n"))
		if err != nil {
			return nil, &domain.ModelCommunicationError{Err: err}
		}

		decision := parseDecision(response)
		if decision.Thought != "" {
			emit(domain.Turn{Kind: domain.TurnThought, Text: decision.Thought})
		}

		if decision.Final {
			emit(domain.Turn{Kind: domain.TurnFinalAnswer, Text: decision.Answer})
			run.Answer = decision.Answer
			run.Status = domain.StatusSuccess
			run.DurationMs = time.Since(started).Milliseconds()
			a.logger.Info("final answer reached", "run_id", string(id), "iterations", run.Iterations)
			return run, nil
		}

		var observation string
		if decision.Tool == "" {
			observation = parseRetryFeedback
			a.logger.Warn("unparseable model output", "run_id", string(id), "response", response[:min(200, len(response))])
		} else {
			emit(domain.Turn{Kind: domain.TurnAction, Tool: decision.Tool, Input: decision.Input})
			a.logger.Info("executing tool", "run_id", string(id), "tool", decision.Tool)

			out, err := a.tools.Invoke(ctx, decision.Tool, decision.Input)
			if err != nil {
				// Unknown tools and tool failures are feedback, not fatal.
				observation = fmt.Sprintf("Error: %v", err)
			} else {
				observation = out
			}
		}

		emit(domain.Turn{Kind: domain.TurnObservation, Text: observation})
		history = append(history, response, fmt.Sprintf("Observation: %s", observation))
	}

	run.Status = domain.StatusError
	run.Answer = fmt.Sprintf("could not produce a final answer within %d iterations", a.maxIters)
	run.DurationMs = time.Since(started).Milliseconds()
	a.logger.Warn("iteration limit reached", "run_id", string(id), "max_iterations", a.maxIters)
	return run, nil
}

func (a *ReActAgent) generate(ctx context.Context, prompt string) (string, error) {
	if a.llmTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.llmTimeout)
		defer cancel()
	}
	return a.llm.GenerateText(ctx, prompt)
}

func (a *ReActAgent) buildPrompt(question string) string {
	return fmt.Sprintf(promptTemplate, a.tools.FormatForPrompt(), strings.Join(a.tools.Names(), ", "), question)
}

var (
	finalAnswerRe = regexp.MustCompile(`(?is)Final\s*Answer:\s*(.*)`)
	thoughtRe     = regexp.MustCompile(`(?i)Thought:\s*([^\n]+)`)
	actionRe      = regexp.MustCompile(`(?i)Action:\s*([a-z][a-z0-9_]*)`)
	actionInputRe = regexp.MustCompile(`(?i)Action\s*Input:\s*`)
	sectionRe     = regexp.MustCompile(`(?im)^\s*(Observation|Thought|Action|Final\s*Answer)\s*:`)
)

// parseDecision extracts the model's next move from its raw output. A final
// answer wins over a tool call when both appear. Output matching neither
// yields a zero tool name, which the loop treats as a recoverable parse
// failure.
func parseDecision(response string) domain.Decision {
	var d domain.Decision

	if m := thoughtRe.FindStringSubmatch(response); len(m) > 1 {
		d.Thought = strings.TrimSpace(m[1])
	}

	if m := finalAnswerRe.FindStringSubmatch(response); len(m) > 1 {
		d.Final = true
		d.Answer = strings.TrimSpace(m[1])
		return d
	}

	if m := actionRe.FindStringSubmatch(response); len(m) > 1 {
		d.Tool = strings.TrimSpace(m[1])
		d.Input = extractActionInput(response)
	}

	return d
}

// extractActionInput pulls the raw tool input following "Action Input:".
// Models emit either bare text (possibly fenced) or a JSON object; a
// one-field JSON object is unwrapped to its string value, anything else is
// passed through as written.
func extractActionInput(response string) string {
	loc := actionInputRe.FindStringIndex(response)
	if loc == nil {
		return ""
	}

	rest := response[loc[1]:]

	if trimmed := strings.TrimSpace(rest); strings.HasPrefix(trimmed, "{") {
		if obj, raw := extractJSONObject(trimmed); raw != "" {
			if len(obj) == 1 {
				for _, v := range obj {
					if s, ok := v.(string); ok {
						return s
					}
				}
			}
			return raw
		}
	}

	// Bare text: take everything up to the next format marker.
	if m := sectionRe.FindStringIndex(rest); m != nil {
		rest = rest[:m[0]]
	}
	return cleanToolInput(rest)
}

// extractJSONObject scans a complete top-level JSON object using brace-depth
// counting with in-string and escape handling, so nested objects survive.
func extractJSONObject(s string) (map[string]any, string) {
	depth := 0
	inStr := false
	escaped := false
	for i := 0; i < len(s); i++ {
		ch := s[i]
		if escaped {
			escaped = false
			continue
		}
		if ch == '\\' && inStr {
			escaped = true
			continue
		}
		if ch == '"' {
			inStr = !inStr
			continue
		}
		if inStr {
			continue
		}
		switch ch {
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				raw := s[:i+1]
				var obj map[string]any
				if err := json.Unmarshal([]byte(raw), &obj); err != nil {
					return nil, ""
				}
				return obj, raw
			}
		}
	}
	return nil, ""
}

// cleanToolInput strips markdown fences and wrapping quotes around a bare
// text input.
func cleanToolInput(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```")
		// drop a language tag like "sql" on the fence line
		if idx := strings.Index(s, "\n"); idx >= 0 && !strings.ContainsAny(s[:idx], " ;(") {
			s = s[idx+1:]
		}
		s = strings.TrimSuffix(strings.TrimSpace(s), "```")
		s = strings.TrimSpace(s)
	}
	if len(s) >= 2 {
		if (s[0] == '"' && s[len(s)-1] == '"') || (s[0] == '\'' && s[len(s)-1] == '\'') || (s[0] == '`' && s[len(s)-1] == '`') {
			s = s[1 : len(s)-1]
		}
	}
	return strings.TrimSpace(s)
}
