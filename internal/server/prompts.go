package server

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/keepsake-ai/keepsake/internal/model"
)

// Prompt templates nudge clients toward the intended store/recall workflow.
// Substitution is plain {{name}} replacement over declared arguments.

type promptArgument struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Required    bool   `json:"required"`
}

type promptTemplate struct {
	Name        string           `json:"name"`
	Description string           `json:"description"`
	Arguments   []promptArgument `json:"arguments"`

	template string
}

var promptTemplates = []promptTemplate{
	{
		Name:        "memory_capture",
		Description: "Summarize a piece of information and store it as a memory.",
		Arguments: []promptArgument{
			{Name: "content", Description: "The information to remember", Required: true},
		},
		template: "Store the following as a memory. Write a one-or-two sentence summary that " +
			"future searches would match, pick up to 10 keywords, then call memory_insert " +
			"with the original text as content.\n\n{{content}}",
	},
	{
		Name:        "memory_recall",
		Description: "Search stored memories relevant to a topic and report what was found.",
		Arguments: []promptArgument{
			{Name: "topic", Description: "What to look for", Required: true},
		},
		template: "Call memory_search for memories about: {{topic}}\n\nIf the summaries look " +
			"relevant, fetch the most promising ones with memory_get and answer using their " +
			"content. Say so plainly if nothing relevant is stored.",
	},
}

// render substitutes declared arguments into the template. Missing required
// arguments are validation errors; extras are ignored.
func (p *promptTemplate) render(args map[string]string) (string, error) {
	out := p.template
	for _, arg := range p.Arguments {
		val, ok := args[arg.Name]
		if !ok || val == "" {
			if arg.Required {
				return "", fmt.Errorf("prompt %s: missing required argument %q: %w", p.Name, arg.Name, model.ErrValidation)
			}
			continue
		}
		out = strings.ReplaceAll(out, "{{"+arg.Name+"}}", val)
	}
	return out, nil
}

type promptsListResult struct {
	Prompts []promptTemplate `json:"prompts"`
}

func listPrompts() promptsListResult {
	return promptsListResult{Prompts: promptTemplates}
}

type getPromptParams struct {
	Name      string            `json:"name"`
	Arguments map[string]string `json:"arguments"`
}

type promptMessage struct {
	Role    string       `json:"role"`
	Content contentBlock `json:"content"`
}

type promptResult struct {
	Description string          `json:"description"`
	Messages    []promptMessage `json:"messages"`
}

func getPrompt(raw json.RawMessage) (any, error) {
	var p getPromptParams
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, &RPCError{Code: codeInvalidParams, Message: "prompts/get params: " + err.Error()}
	}
	for i := range promptTemplates {
		tpl := &promptTemplates[i]
		if tpl.Name != p.Name {
			continue
		}
		text, err := tpl.render(p.Arguments)
		if err != nil {
			return nil, err
		}
		return promptResult{
			Description: tpl.Description,
			Messages: []promptMessage{
				{Role: "user", Content: contentBlock{Type: "text", Text: text}},
			},
		}, nil
	}
	return nil, &RPCError{Code: codeInvalidParams, Message: fmt.Sprintf("unknown prompt %q", p.Name)}
}
