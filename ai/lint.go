package ai

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	apperrors "github.com/HyxiaoGe/prompthub/errors"
	"github.com/HyxiaoGe/prompthub/logger"
	"github.com/HyxiaoGe/prompthub/types"
)

const lintSystem = `You are a prompt linting expert. Analyze the prompt for anti-patterns and quality issues.
Return a JSON object with this exact structure:
{
  "issues": [
    {
      "severity": "warning",
      "rule": "redundant",
      "message": "description of the issue",
      "suggestion": "how to fix it"
    }
  ]
}
Only return issues you actually find. Possible rules: redundant, contradictory, vague, ambiguous.`

// maxLintLength is the content length above which the too_long rule fires.
const maxLintLength = 2000

// placeholderPattern matches simple template placeholders like {{ name }}.
var placeholderPattern = regexp.MustCompile(`\{\{\s*(\w+)\s*\}\}`)

// LintRequest checks template content against the lint rules. Variables nil
// skips the variable cross-checks.
type LintRequest struct {
	Content   string
	Variables []types.VariableDef
}

// LintIssue is one finding. Severity is error, warning or info.
type LintIssue struct {
	Severity   string `json:"severity"`
	Rule       string `json:"rule"`
	Message    string `json:"message"`
	Suggestion string `json:"suggestion,omitempty"`
}

// LintResult is the full set of findings plus the derived score.
type LintResult struct {
	Issues []LintIssue `json:"issues"`
	Score  float64     `json:"score"`
}

// Lint runs the local rules and, when the LLM is reachable, appends its
// findings. An LLM failure degrades to the local results instead of failing
// the call.
func (s *Service) Lint(ctx context.Context, req LintRequest) (*LintResult, error) {
	if strings.TrimSpace(req.Content) == "" {
		return nil, apperrors.Validation("content is required")
	}

	issues := lintLocal(req.Content, req.Variables)

	llmIssues, err := s.lintLLM(ctx, req.Content)
	if err != nil {
		logger.WarnContext(ctx, "lint LLM pass unavailable, returning local results", "error", err)
	} else {
		issues = append(issues, llmIssues...)
		s.logCall(ctx, &types.CallLog{CallerSystem: "ai_lint"})
	}

	return &LintResult{Issues: issues, Score: lintScore(issues)}, nil
}

func (s *Service) lintLLM(ctx context.Context, content string) ([]LintIssue, error) {
	reply, err := processClient().Complete(ctx, CompletionRequest{
		Operation: opLint,
		System:    lintSystem,
		User:      "Lint this prompt:\n" + content,
		JSONReply: true,
	})
	if err != nil {
		return nil, err
	}

	var parsed struct {
		Issues []LintIssue `json:"issues"`
	}
	if err := parseReply(reply.Content, &parsed); err != nil {
		return nil, err
	}
	return parsed.Issues, nil
}

// lintLocal runs the rules that need no LLM: length, unused declarations and
// undeclared placeholders.
func lintLocal(content string, defs []types.VariableDef) []LintIssue {
	issues := make([]LintIssue, 0, 4)

	if len(content) > maxLintLength {
		issues = append(issues, LintIssue{
			Severity:   "warning",
			Rule:       "too_long",
			Message:    fmt.Sprintf("Prompt is %d characters, exceeding the %d character guideline", len(content), maxLintLength),
			Suggestion: "Consider breaking the prompt into smaller, composable parts",
		})
	}

	if defs == nil {
		return issues
	}

	used := make(map[string]bool)
	for _, m := range placeholderPattern.FindAllStringSubmatch(content, -1) {
		used[m[1]] = true
	}
	declared := make(map[string]bool, len(defs))
	for _, d := range defs {
		if d.Name != "" {
			declared[d.Name] = true
		}
	}

	for _, d := range defs {
		if d.Name == "" || used[d.Name] {
			continue
		}
		issues = append(issues, LintIssue{
			Severity:   "warning",
			Rule:       "unused_variable",
			Message:    fmt.Sprintf("Variable %q is declared but never referenced in the content", d.Name),
			Suggestion: fmt.Sprintf("Remove %q or reference it with {{ %s }}", d.Name, d.Name),
		})
	}

	reported := make(map[string]bool)
	for _, m := range placeholderPattern.FindAllStringSubmatch(content, -1) {
		name := m[1]
		if declared[name] || reported[name] {
			continue
		}
		reported[name] = true
		issues = append(issues, LintIssue{
			Severity:   "error",
			Rule:       "undefined_variable",
			Message:    fmt.Sprintf("Variable %q is referenced but not declared", name),
			Suggestion: fmt.Sprintf("Add %q to the variable definitions", name),
		})
	}

	return issues
}

// lintScore derives a 0..100 score from the findings: 20 off per error, 10
// per warning, 5 per anything else.
func lintScore(issues []LintIssue) float64 {
	score := 100.0
	for _, issue := range issues {
		switch issue.Severity {
		case "error":
			score -= 20
		case "warning":
			score -= 10
		default:
			score -= 5
		}
	}
	if score < 0 {
		return 0
	}
	return score
}
