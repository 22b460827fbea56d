// Package textgen abstracts the text-generation backend behind a single
// capability: given a prompt, return text. The planner depends only on
// this interface, never on a concrete vendor.
package textgen

import "context"

type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)

	// Model reports the configured model name for response metadata.
	Model() string
}
