// Package tool provides the catalog of grounding tools, the rule-based
// selector deciding which tool a turn needs, and the executors themselves.
package tool

import (
	"context"
	"time"
)

// Result carries the outcome of a single tool invocation. Executors never
// return errors for remote faults; the fault is folded into the result so
// the turn can proceed without grounding.
type Result struct {
	ToolName string        `json:"toolName"`
	Success  bool          `json:"success"`
	Content  string        `json:"content,omitempty"`
	Error    string        `json:"error,omitempty"`
	Elapsed  time.Duration `json:"elapsed"`
}

// Executor is the uniform contract implemented by every tool.
type Executor interface {
	Execute(ctx context.Context, params map[string]string) Result
}

// failure builds a failed result for the named tool.
func failure(name string, started time.Time, reason string) Result {
	return Result{
		ToolName: name,
		Success:  false,
		Error:    reason,
		Elapsed:  time.Since(started),
	}
}

// truncate cuts s to at most limit bytes on a rune boundary, appending an
// ellipsis when content was dropped.
func truncate(s string, limit int) string {
	if limit <= 0 || len(s) <= limit {
		return s
	}
	runes := []rune(s)
	for len(string(runes)) > limit && len(runes) > 0 {
		runes = runes[:len(runes)-1]
	}
	return string(runes) + "..."
}
