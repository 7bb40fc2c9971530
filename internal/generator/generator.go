// Package generator produces email body copy for a campaign stage via an
// external text-generation API.
package generator

import (
	"context"
	"strings"
)

// Request carries the campaign and stage metadata a prompt is built from.
type Request struct {
	ProductName    string
	TargetAudience string
	Theme          string
	Objective      string
	Features       []string
}

// Generator is the external content collaborator.
// Implementations must honor ctx cancellation; a hung upstream call is
// bounded by the caller's deadline and treated as a generation failure.
type Generator interface {
	Generate(ctx context.Context, req Request) (string, error)
}

// Prompt renders the marketing-copywriter prompt for a stage.
func (r Request) Prompt() string {
	var b strings.Builder
	b.WriteString("You are a marketing copywriter.\n")
	b.WriteString("Write an engaging email for the product '" + r.ProductName + "' aimed at '" + r.TargetAudience + "'.\n")
	b.WriteString("Theme: " + r.Theme + "\n")
	b.WriteString("Objective: " + r.Objective + "\n")
	b.WriteString("Features: " + strings.Join(r.Features, ", ") + "\n")
	b.WriteString("The email should be informative, persuasive, and concise.\n")
	return b.String()
}
