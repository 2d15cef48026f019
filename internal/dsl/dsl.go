// Package dsl defines the parsed-rule contract the Policy Engine (C4)
// consumes (C2). The core treats the parser as an external
// collaborator and only depends on the AST shape; Parser is supplied
// externally in production but a concrete implementation is provided
// here so the engine is testable end to end, grounded in
// original_source's dsl_parser.parse usage and the `WHEN ... DO`
// regex-strip seen in views.py's deploy_policy.
package dsl

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/sdslabs/policyctl/internal/apperrors"
	"github.com/sdslabs/policyctl/internal/domain"
)

// ActionVerb is SET or DELETE of a pipeline entry.
type ActionVerb string

const (
	ActionSet    ActionVerb = "SET"
	ActionDelete ActionVerb = "DELETE"
)

// Target identifies a tenant, optionally scoped to a container.
type Target struct {
	TenantID  string
	Container string
}

// Action is one SET/DELETE clause, with its static-deployment fields
// and the TRANSIENT marker when present.
type Action struct {
	Verb            ActionVerb
	FilterName      string
	ObjectType      string
	ObjectSize      *domain.ObjectSizePredicate
	ExecutionServer domain.ExecutionSite
	Params          string
	Callable        bool
	Transient       bool
}

// Rule is the parsed form of one DSL line.
type Rule struct {
	Targets      []Target
	ConditionRaw string // text between WHEN and DO, empty for static rules
	Actions      []Action
}

// IsDynamic reports whether the rule carries a non-empty condition
// list, the classifier spec.md §4.3 uses to split static from dynamic.
func (r Rule) IsDynamic() bool {
	return strings.TrimSpace(r.ConditionRaw) != ""
}

// Parser consumes one DSL rule line and returns its parsed form.
// Implementations may be swapped out entirely; the Policy Engine only
// depends on this interface and the Rule/Action/Target shapes.
type Parser interface {
	Parse(line string) (Rule, error)
}

var (
	conditionRe = regexp.MustCompile(`(?i).*(WHEN\s+.*?)\s+DO\s.*`)
	forTenantRe = regexp.MustCompile(`(?i)FOR\s+TENANT:(\S+)`)
	actionRe    = regexp.MustCompile(`(?i)DO\s+(SET|DELETE)\s+(\S+)`)
)

// SimpleParser implements the grammar named in spec.md's concrete
// scenarios: `FOR TENANT:<id>[:container] [WHEN <cond>] DO SET|DELETE
// <filter> [TRANSIENT]`.
type SimpleParser struct{}

// Parse implements Parser.
func (SimpleParser) Parse(line string) (Rule, error) {
	trimmed := strings.TrimSpace(line)
	if trimmed == "" {
		return Rule{}, fmt.Errorf("%w: empty rule line", apperrors.ErrInvalidRule)
	}

	targetMatch := forTenantRe.FindStringSubmatch(trimmed)
	if targetMatch == nil {
		return Rule{}, fmt.Errorf("%w: missing FOR TENANT clause: %q", apperrors.ErrInvalidRule, line)
	}
	target := parseTarget(targetMatch[1])

	actionMatch := actionRe.FindStringSubmatch(trimmed)
	if actionMatch == nil {
		return Rule{}, fmt.Errorf("%w: missing DO SET|DELETE clause: %q", apperrors.ErrInvalidRule, line)
	}

	action := Action{
		Verb:       ActionVerb(strings.ToUpper(actionMatch[1])),
		FilterName: actionMatch[2],
		Transient:  strings.Contains(strings.ToUpper(trimmed), "TRANSIENT"),
	}

	var condition string
	if cm := conditionRe.FindStringSubmatch(trimmed); cm != nil {
		condition = strings.TrimSpace(cm[1])
	}

	return Rule{
		Targets:      []Target{target},
		ConditionRaw: condition,
		Actions:      []Action{action},
	}, nil
}

func parseTarget(raw string) Target {
	parts := strings.SplitN(raw, ":", 2)
	t := Target{TenantID: parts[0]}
	if len(parts) == 2 {
		t.Container = parts[1]
	}
	return t
}

// StripConditionAndTransient derives the persisted static rule text:
// the original line with the `WHEN ... DO` condition clause and the
// literal TRANSIENT token removed and whitespace collapsed (§4.3,
// property 8), matching deploy_policy's
// `rule_string.replace(condition_str, '').replace('TRANSIENT', '')`.
func StripConditionAndTransient(original string) string {
	out := original
	if cm := conditionRe.FindStringSubmatch(original); cm != nil {
		out = strings.Replace(out, cm[1], "", 1)
	}
	out = strings.ReplaceAll(out, "TRANSIENT", "")
	return collapseWhitespace(out)
}

func collapseWhitespace(s string) string {
	fields := strings.Fields(s)
	return strings.Join(fields, " ")
}
