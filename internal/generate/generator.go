// Package generate produces artifact content for generation jobs.
package generate

import (
	"context"
	"fmt"
	"sort"
	"strings"
)

// Generator is the content-generation collaborator invoked by the job runner.
// Implementations own which artifact types they can render.
type Generator interface {
	// ArtifactTypes returns the supported artifact types, sorted.
	ArtifactTypes() []string
	// Supports reports whether artifactType can be generated.
	Supports(artifactType string) bool
	// Generate renders one artifact from the request text and options.
	Generate(ctx context.Context, artifactType, requestText string, options map[string]any) (string, error)
}

// DefaultTemplates maps artifact types to the system prompt driving their
// generation pipeline.
var DefaultTemplates = map[string]string{
	"meeting_summary": "You are a technical writer. Produce a concise, well-structured " +
		"summary document from the meeting notes below. Use headings and bullet points.",
	"action_items": "Extract every action item from the meeting notes below. For each, " +
		"state the owner (if named), the task, and any deadline. Output a Markdown checklist.",
	"decision_log": "Extract the decisions made in the meeting notes below. For each " +
		"decision record what was decided, the rationale, and open follow-ups.",
	"flow_diagram": "Produce a Mermaid flowchart describing the process discussed in the " +
		"notes below. Output only the Mermaid code block.",
}

func sortedTypes(templates map[string]string) []string {
	types := make([]string, 0, len(templates))
	for t := range templates {
		types = append(types, t)
	}
	sort.Strings(types)
	return types
}

// buildPrompt renders the user-facing part of a generation request.
func buildPrompt(requestText string, options map[string]any) string {
	var b strings.Builder
	b.WriteString(requestText)
	if len(options) > 0 {
		keys := make([]string, 0, len(options))
		for k := range options {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		b.WriteString("\n\nOptions:\n")
		for _, k := range keys {
			fmt.Fprintf(&b, "- %s: %v\n", k, options[k])
		}
	}
	return b.String()
}

// StaticGenerator renders templates deterministically without calling an
// LLM. Used for local development and tests.
type StaticGenerator struct {
	templates map[string]string
}

// NewStaticGenerator creates a static generator over the given templates,
// falling back to DefaultTemplates when nil.
func NewStaticGenerator(templates map[string]string) *StaticGenerator {
	if templates == nil {
		templates = DefaultTemplates
	}
	return &StaticGenerator{templates: templates}
}

// ArtifactTypes returns the supported artifact types, sorted.
func (g *StaticGenerator) ArtifactTypes() []string {
	return sortedTypes(g.templates)
}

// Supports reports whether artifactType can be generated.
func (g *StaticGenerator) Supports(artifactType string) bool {
	_, ok := g.templates[artifactType]
	return ok
}

// Generate renders the template header followed by the request content.
func (g *StaticGenerator) Generate(_ context.Context, artifactType, requestText string, options map[string]any) (string, error) {
	template, ok := g.templates[artifactType]
	if !ok {
		return "", fmt.Errorf("unsupported artifact type: %s", artifactType)
	}
	return fmt.Sprintf("# %s\n\n<!-- %s -->\n\n%s\n", artifactType, template, buildPrompt(requestText, options)), nil
}
