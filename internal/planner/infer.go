package planner

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/colplan/colplan/internal/observability"
	"github.com/colplan/colplan/internal/textgen"
)

// Inference drives the generation backend and turns its free-form output
// into a validated Plan. Malformed output earns exactly one retry with the
// failure reason appended to the prompt; a second failure is ErrPlanInference.
type Inference struct {
	generator textgen.Generator
	logger    *slog.Logger
}

func NewInference(generator textgen.Generator, logger *slog.Logger) *Inference {
	return &Inference{generator: generator, logger: logger}
}

func (i *Inference) Infer(ctx context.Context, prompt string) (Plan, error) {
	raw, err := i.generate(ctx, prompt)
	if err != nil {
		return Plan{}, err
	}

	plan, parseErr := parsePlan(raw)
	if parseErr == nil {
		return plan, nil
	}

	i.logger.Warn("plan output unparseable, retrying", slog.String("reason", parseErr.Error()))
	observability.ObserveInferenceRetry()

	retryPrompt := prompt + "\n\nYour previous response could not be used: " + parseErr.Error() +
		"\nRespond with only the JSON object, without surrounding prose or code fences."
	raw, err = i.generate(ctx, retryPrompt)
	if err != nil {
		return Plan{}, err
	}

	plan, parseErr = parsePlan(raw)
	if parseErr != nil {
		return Plan{}, fmt.Errorf("%w: %s", ErrPlanInference, parseErr)
	}
	return plan, nil
}

func (i *Inference) generate(ctx context.Context, prompt string) (string, error) {
	start := time.Now()
	raw, err := i.generator.Generate(ctx, prompt)
	observability.ObserveGeneratorLatency(time.Since(start))
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return "", err
		}
		return "", fmt.Errorf("%w: generate: %s", ErrPlanInference, err)
	}
	return raw, nil
}

type planPayload struct {
	TechnicalSummary string         `json:"technical_summary"`
	RequiredColumns  *[]string      `json:"required_columns"`
	OptionalColumns  []string       `json:"optional_columns"`
	SQLFilters       map[string]any `json:"sql_filters"`
	Assumptions      string         `json:"assumptions"`
}

func parsePlan(raw string) (Plan, error) {
	doc, ok := extractJSON(raw)
	if !ok {
		return Plan{}, errors.New("no JSON object found in output")
	}

	var payload planPayload
	if err := json.Unmarshal([]byte(doc), &payload); err != nil {
		return Plan{}, fmt.Errorf("invalid JSON: %s", err)
	}
	if strings.TrimSpace(payload.TechnicalSummary) == "" {
		return Plan{}, errors.New("technical_summary is missing or empty")
	}
	if payload.RequiredColumns == nil {
		return Plan{}, errors.New("required_columns is missing")
	}

	filters, err := normalizeFilters(payload.SQLFilters)
	if err != nil {
		return Plan{}, err
	}

	return normalizePlan(Plan{
		TechnicalSummary: strings.TrimSpace(payload.TechnicalSummary),
		RequiredColumns:  *payload.RequiredColumns,
		OptionalColumns:  payload.OptionalColumns,
		Filters:          filters,
		Assumptions:      strings.TrimSpace(payload.Assumptions),
	}), nil
}

// extractJSON pulls the first balanced JSON object out of model output that
// may wrap it in prose or markdown code fences. It tracks string and escape
// state so braces inside string values do not end the scan early.
func extractJSON(raw string) (string, bool) {
	start := strings.IndexByte(raw, '{')
	if start < 0 {
		return "", false
	}

	depth := 0
	inString := false
	escaped := false
	for pos := start; pos < len(raw); pos++ {
		ch := raw[pos]
		if escaped {
			escaped = false
			continue
		}
		switch ch {
		case '\\':
			if inString {
				escaped = true
			}
		case '"':
			inString = !inString
		case '{':
			if !inString {
				depth++
			}
		case '}':
			if !inString {
				depth--
				if depth == 0 {
					return raw[start : pos+1], true
				}
			}
		}
	}
	return "", false
}

var comparisonOps = map[string]struct{}{
	">": {}, "<": {}, ">=": {}, "<=": {}, "!=": {}, "=": {},
}

// normalizeFilters validates filter shape and converts currency-style string
// literals to numbers. Plain strings that are not numeric ("Healthcare")
// pass through untouched.
func normalizeFilters(filters map[string]any) (map[string]any, error) {
	if len(filters) == 0 {
		return nil, nil
	}
	normalized := make(map[string]any, len(filters))
	for column, condition := range filters {
		column = strings.TrimSpace(column)
		if column == "" {
			return nil, errors.New("sql_filters has an empty column name")
		}
		switch value := condition.(type) {
		case map[string]any:
			if len(value) != 1 {
				return nil, fmt.Errorf("filter on %q must have exactly one operator", column)
			}
			for op, literal := range value {
				if _, ok := comparisonOps[op]; !ok {
					return nil, fmt.Errorf("filter on %q uses unsupported operator %q", column, op)
				}
				normalized[column] = map[string]any{op: normalizeLiteral(literal)}
			}
		default:
			normalized[column] = normalizeLiteral(condition)
		}
	}
	return normalized, nil
}

// numericLiteral matches currency and shorthand amounts: an optional currency
// symbol, digits with optional separators and decimals, an optional k/m/b
// magnitude suffix, and an optional percent sign.
var numericLiteral = regexp.MustCompile(`^[$€£]?\s?-?\d{1,3}(?:,\d{3})*(?:\.\d+)?\s?[kKmMbB]?%?$|^[$€£]?\s?-?\d+(?:\.\d+)?\s?[kKmMbB]?%?$`)

func normalizeLiteral(literal any) any {
	text, ok := literal.(string)
	if !ok {
		return literal
	}
	trimmed := strings.TrimSpace(text)
	if !numericLiteral.MatchString(trimmed) {
		return literal
	}

	trimmed = strings.TrimLeft(trimmed, "$€£")
	trimmed = strings.TrimSuffix(trimmed, "%")
	trimmed = strings.ReplaceAll(trimmed, ",", "")
	trimmed = strings.TrimSpace(trimmed)

	multiplier := 1.0
	switch {
	case strings.HasSuffix(trimmed, "k"), strings.HasSuffix(trimmed, "K"):
		multiplier = 1_000
		trimmed = strings.TrimSpace(trimmed[:len(trimmed)-1])
	case strings.HasSuffix(trimmed, "m"), strings.HasSuffix(trimmed, "M"):
		multiplier = 1_000_000
		trimmed = strings.TrimSpace(trimmed[:len(trimmed)-1])
	case strings.HasSuffix(trimmed, "b"), strings.HasSuffix(trimmed, "B"):
		multiplier = 1_000_000_000
		trimmed = strings.TrimSpace(trimmed[:len(trimmed)-1])
	}

	parsed, err := strconv.ParseFloat(trimmed, 64)
	if err != nil {
		return literal
	}
	return parsed * multiplier
}
