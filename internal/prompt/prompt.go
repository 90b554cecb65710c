package prompt

import (
	"fmt"
	"strings"
	"text/template"

	"github.com/seanblong/loanassist/pkg/models"
)

const DefaultInstruction = "You are an expert assistant for L&T Finance. Answer the user's question based only on the following context:"

const layout = `{{.Instruction}}
{{range $i, $c := .Context}}{{if $i}}

{{end}}{{$c}}{{end}}

Question: {{.Question}}`

var tmpl = template.Must(template.New("prompt").Parse(layout))

type Assembler struct {
	Instruction string
}

// New returns an Assembler using instruction, or DefaultInstruction when empty.
func New(instruction string) *Assembler {
	if strings.TrimSpace(instruction) == "" {
		instruction = DefaultInstruction
	}
	return &Assembler{Instruction: instruction}
}

// Assemble renders the instruction, the verbatim text of each retrieved
// chunk separated by blank lines, and the question.
func (a *Assembler) Assemble(question string, results []models.SearchResult) (string, error) {
	ctx := make([]string, 0, len(results))
	for _, r := range results {
		ctx = append(ctx, r.Chunk.Content)
	}

	var sb strings.Builder
	err := tmpl.Execute(&sb, struct {
		Instruction string
		Context     []string
		Question    string
	}{a.Instruction, ctx, question})
	if err != nil {
		return "", fmt.Errorf("render prompt: %w", err)
	}
	return sb.String(), nil
}
