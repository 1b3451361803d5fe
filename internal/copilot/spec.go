package copilot

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// PromptSpec drives the fixed instruction sent to the text-generation
// service: the system prompt, the action schema the model must pick from,
// and generation style knobs.
type PromptSpec struct {
	System  string `yaml:"system"`
	Actions []struct {
		Name        string         `yaml:"name"`
		Description string         `yaml:"description"`
		ArgsSchema  map[string]any `yaml:"args_schema"`
	} `yaml:"actions"`
	Style struct {
		Temperature float32 `yaml:"temperature"`
		MaxTokens   int     `yaml:"max_tokens"`
	} `yaml:"style"`
}

// LoadPromptSpec reads the yaml prompt spec from disk. A missing file falls
// back to the built-in default so the server runs without a prompts dir.
func LoadPromptSpec(path string) (PromptSpec, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return DefaultPromptSpec(), nil
		}
		return PromptSpec{}, fmt.Errorf("failed to read prompt spec: %w", err)
	}
	var spec PromptSpec
	if err := yaml.Unmarshal(b, &spec); err != nil {
		return PromptSpec{}, fmt.Errorf("failed to parse prompt spec: %w", err)
	}
	if spec.System == "" {
		return PromptSpec{}, fmt.Errorf("prompt spec %s has no system instruction", path)
	}
	return spec, nil
}

// DefaultPromptSpec mirrors prompts/copilot.yaml.
func DefaultPromptSpec() PromptSpec {
	var spec PromptSpec
	if err := yaml.Unmarshal([]byte(defaultSpecYAML), &spec); err != nil {
		// The embedded yaml is fixed at build time; a parse failure here is a
		// programming error.
		panic(fmt.Sprintf("invalid built-in prompt spec: %v", err))
	}
	return spec
}

const defaultSpecYAML = `
system: |
  You are the AgentFlow Co-Pilot, an assistant inside a real-estate CRM.
  Translate the user's command into exactly one action. Respond with ONLY a
  JSON object of the form:
  {"action": "<name>", "parameters": {...}, "confidence": <0..1>}
  If the command does not match any action, use "unknown" and set
  parameters.query to a short paraphrase of the command.
actions:
  - name: show_contacts
    description: List the user's contacts, optionally filtered.
    args_schema:
      name: optional substring of the contact name
      property_address: optional substring of the property address
  - name: add_note
    description: Attach a note to a contact.
    args_schema:
      contact_name: name of the contact
      note: the note text
  - name: get_contact_details
    description: Show full details for one contact.
    args_schema:
      name: name of the contact
  - name: unknown
    description: Fallback when no other action applies.
    args_schema:
      query: paraphrase of the user's command
style:
  temperature: 0.1
  max_tokens: 300
`
