// Package posture evaluates a CEL policy over the current security
// snapshot. The result is presentation only; snapshots are never altered.
package posture

import (
	"fmt"
	"log/slog"

	"github.com/daimoniac/securevision/internal/errors"
	"github.com/daimoniac/securevision/internal/metrics"
	"github.com/daimoniac/securevision/internal/observability"
	"github.com/google/cel-go/cel"
)

// DefaultExpression passes when there are no incidents and compliance is at least 80%.
const DefaultExpression = `incidents == 0 && compliance >= 80.0`

// Evaluator decides whether a snapshot meets the posture policy
type Evaluator interface {
	Evaluate(m metrics.SecurityMetrics) (*Decision, error)
}

// Config defines a CEL-based posture policy
type Config struct {
	// Expression must evaluate to a bool. Available variables:
	//   - threats, vulnerabilities, incidents: int
	//   - compliance: double (0-100)
	Expression string `yaml:"expression" json:"expression"`

	// FailureMessage replaces the generated reason when the policy fails (optional)
	FailureMessage string `yaml:"failureMessage" json:"failureMessage"`
}

// Decision represents the result of posture evaluation
type Decision struct {
	Passed     bool   `json:"passed"`
	Reason     string `json:"reason"`
	Expression string `json:"expression"`
}

// Engine implements Evaluator using a compiled CEL program
type Engine struct {
	logger  *slog.Logger
	config  Config
	program cel.Program
}

// NewEngine compiles the policy expression. Compile errors and non-boolean
// expressions are permanent errors.
func NewEngine(logger *slog.Logger, config Config) (*Engine, error) {
	if logger == nil {
		logger = slog.Default()
	}

	if config.Expression == "" {
		config.Expression = DefaultExpression
	}

	env, err := cel.NewEnv(
		cel.Variable("threats", cel.IntType),
		cel.Variable("vulnerabilities", cel.IntType),
		cel.Variable("incidents", cel.IntType),
		cel.Variable("compliance", cel.DoubleType),
		cel.CrossTypeNumericComparisons(true),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL environment: %w", err)
	}

	ast, issues := env.Compile(config.Expression)
	if issues != nil && issues.Err() != nil {
		return nil, errors.NewPermanentf("failed to compile posture expression: %w", issues.Err())
	}

	if !ast.OutputType().IsExactType(cel.BoolType) {
		return nil, errors.NewPermanentf("posture expression must return a boolean, got %v", ast.OutputType())
	}

	program, err := env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL program: %w", err)
	}

	return &Engine{
		logger:  logger,
		config:  config,
		program: program,
	}, nil
}

// Expression returns the compiled expression
func (e *Engine) Expression() string {
	return e.config.Expression
}

// Evaluate runs the policy against a snapshot
func (e *Engine) Evaluate(m metrics.SecurityMetrics) (*Decision, error) {
	counter := observability.GetMetrics().PostureEvaluations

	out, _, err := e.program.Eval(map[string]any{
		"threats":         int64(m.Threats),
		"vulnerabilities": int64(m.Vulnerabilities),
		"incidents":       int64(m.Incidents),
		"compliance":      m.Compliance,
	})
	if err != nil {
		counter.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("failed to evaluate posture: %w", err)
	}

	passed, ok := out.Value().(bool)
	if !ok {
		counter.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("posture expression did not return a boolean: %v", out.Value())
	}

	decision := &Decision{
		Passed:     passed,
		Expression: e.config.Expression,
	}

	summary := fmt.Sprintf("threats=%d, vulnerabilities=%d, incidents=%d, compliance=%.1f",
		m.Threats, m.Vulnerabilities, m.Incidents, m.Compliance)

	if passed {
		counter.WithLabelValues("passed").Inc()
		decision.Reason = "posture passed: " + summary
	} else {
		counter.WithLabelValues("failed").Inc()
		if e.config.FailureMessage != "" {
			decision.Reason = e.config.FailureMessage
		} else {
			decision.Reason = "posture failed: " + summary
		}
	}

	e.logger.Debug("posture evaluated",
		"passed", passed,
		"threats", m.Threats,
		"vulnerabilities", m.Vulnerabilities,
		"incidents", m.Incidents,
		"compliance", m.Compliance)

	return decision, nil
}
