package domain

import (
	"context"
	"fmt"
	"strings"
)

// ToolFunc executes a tool against its raw text input and returns the
// observation text shown to the model.
type ToolFunc func(ctx context.Context, input string) (string, error)

// Tool is an executable capability available to the agent.
type Tool struct {
	Name        string
	Description string
	Invoke      ToolFunc
}

// ToolRegistry holds the tool set for an agent. Tools are registered once
// at construction and the registry is read-only afterwards, so concurrent
// runs may share it without locking.
type ToolRegistry struct {
	tools map[string]*Tool
	order []string
}

// NewToolRegistry creates a new empty registry.
func NewToolRegistry() *ToolRegistry {
	return &ToolRegistry{
		tools: make(map[string]*Tool),
	}
}

// Register adds a tool to the registry. Names must be unique and non-empty.
func (r *ToolRegistry) Register(tool *Tool) error {
	if tool == nil || tool.Name == "" {
		return fmt.Errorf("tool name cannot be empty")
	}
	if tool.Invoke == nil {
		return fmt.Errorf("tool %q has no invoke function", tool.Name)
	}
	if _, exists := r.tools[tool.Name]; exists {
		return fmt.Errorf("tool %q already registered", tool.Name)
	}
	r.tools[tool.Name] = tool
	r.order = append(r.order, tool.Name)
	return nil
}

// Resolve returns the tool for an exact name. Hallucinated names fail with
// UnknownToolError; the agent feeds that back to the model as an observation
// instead of guessing at a correction.
func (r *ToolRegistry) Resolve(name string) (*Tool, error) {
	tool, ok := r.tools[name]
	if !ok {
		return nil, &UnknownToolError{Name: name}
	}
	return tool, nil
}

// Invoke resolves and runs a tool. Failures from the tool body are wrapped
// in ToolExecutionError so callers never see the underlying error type raw.
func (r *ToolRegistry) Invoke(ctx context.Context, name, input string) (string, error) {
	tool, err := r.Resolve(name)
	if err != nil {
		return "", err
	}
	out, err := tool.Invoke(ctx, input)
	if err != nil {
		return "", &ToolExecutionError{Tool: name, Err: err}
	}
	return out, nil
}

// Names returns tool names in registration order.
func (r *ToolRegistry) Names() []string {
	names := make([]string, len(r.order))
	copy(names, r.order)
	return names
}

// Len returns the number of registered tools.
func (r *ToolRegistry) Len() int {
	return len(r.tools)
}

// FormatForPrompt renders the tool list for the model prompt, one
// "name: description" line per tool, in registration order.
func (r *ToolRegistry) FormatForPrompt() string {
	var b strings.Builder
	for _, name := range r.order {
		fmt.Fprintf(&b, "%s: %s\n", name, r.tools[name].Description)
	}
	return strings.TrimRight(b.String(), "\n")
}
