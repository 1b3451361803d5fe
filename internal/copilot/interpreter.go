package copilot

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"agentflow-backend/internal/types"
)

// Known action names the generator may produce.
const (
	ActionShowContacts      = "show_contacts"
	ActionAddNote           = "add_note"
	ActionGetContactDetails = "get_contact_details"
	ActionUnknown           = "unknown"
)

// ActionDescriptor is the structured intent extracted from generated text.
type ActionDescriptor struct {
	Action     string       `json:"action"`
	Parameters ActionParams `json:"parameters"`
	Confidence float64      `json:"confidence"`
}

// ActionParams is the variant parameter bag; which fields matter depends on
// the action.
type ActionParams struct {
	Name            string `json:"name,omitempty"`
	PropertyAddress string `json:"property_address,omitempty"`
	ContactName     string `json:"contact_name,omitempty"`
	Note            string `json:"note,omitempty"`
	Query           string `json:"query,omitempty"`
}

// CommandClient executes one natural-language command for a user and returns
// the normalized reply envelope. Satisfied by Interpreter and WorkflowClient.
type CommandClient interface {
	Execute(ctx context.Context, userID, command string) (types.Envelope, error)
}

// ContactFinder is the slice of the contact store the interpreter needs.
type ContactFinder interface {
	Search(ctx context.Context, userID, name, propertyAddress string) ([]types.ContactData, error)
}

// chatCompleter is the slice of the OpenAI client the interpreter needs;
// tests substitute a fake.
type chatCompleter interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// Interpreter translates one command into at most one contact query and a
// reply envelope.
type Interpreter struct {
	spec     PromptSpec
	client   chatCompleter
	model    string
	contacts ContactFinder

	retries   int
	baseDelay time.Duration
	sleep     func(time.Duration)
}

func NewInterpreter(spec PromptSpec, client *openai.Client, model string, contacts ContactFinder, retries int) *Interpreter {
	return newInterpreter(spec, client, model, contacts, retries)
}

func newInterpreter(spec PromptSpec, client chatCompleter, model string, contacts ContactFinder, retries int) *Interpreter {
	if retries < 0 {
		retries = 0
	}
	return &Interpreter{
		spec:      spec,
		client:    client,
		model:     model,
		contacts:  contacts,
		retries:   retries,
		baseDelay: 500 * time.Millisecond,
		sleep:     time.Sleep,
	}
}

// Execute runs the full pipeline: prompt the generator (with bounded backoff
// on transient failure), extract a JSON action from its output, and dispatch.
// A returned error means the generator was unreachable; every other failure
// mode degrades into an envelope.
func (i *Interpreter) Execute(ctx context.Context, userID, command string) (types.Envelope, error) {
	raw, err := i.generate(ctx, command)
	if err != nil {
		return types.Envelope{}, fmt.Errorf("text generation failed: %w", err)
	}

	block, found := ExtractJSONBlock(raw)
	if !found {
		// No structured action: the generated text is the reply itself.
		return types.Envelope{Text: strings.TrimSpace(raw)}, nil
	}

	var action ActionDescriptor
	if err := json.Unmarshal([]byte(block), &action); err != nil {
		// Same input would fail the same way, so no generator retry here.
		log.Printf("[copilot] unparsable action JSON for user %s: %v", userID, err)
		return types.Envelope{
			Text: "I had trouble interpreting that command. Could you rephrase it?",
			Type: types.TypeWarning,
		}, nil
	}

	return i.dispatch(ctx, userID, command, action), nil
}

// generate asks the text-generation service for an action, retrying
// transient failures with doubling delay.
func (i *Interpreter) generate(ctx context.Context, command string) (string, error) {
	req := openai.ChatCompletionRequest{
		Model:       i.model,
		Temperature: i.temperature(),
		MaxTokens:   i.maxTokens(),
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: i.systemPrompt()},
			{Role: openai.ChatMessageRoleUser, Content: command},
		},
	}

	var lastErr error
	delay := i.baseDelay
	for attempt := 0; attempt <= i.retries; attempt++ {
		if attempt > 0 {
			log.Printf("[copilot] generator retry %d after error: %v", attempt, lastErr)
			i.sleep(delay)
			delay *= 2
		}
		resp, err := i.client.CreateChatCompletion(ctx, req)
		if err != nil {
			lastErr = err
			if ctx.Err() != nil {
				return "", ctx.Err()
			}
			continue
		}
		if len(resp.Choices) == 0 {
			lastErr = fmt.Errorf("generator returned no choices")
			continue
		}
		return resp.Choices[0].Message.Content, nil
	}
	return "", lastErr
}

func (i *Interpreter) systemPrompt() string {
	var b strings.Builder
	b.WriteString(i.spec.System)
	if len(i.spec.Actions) > 0 {
		schema := make([]map[string]any, 0, len(i.spec.Actions))
		for _, a := range i.spec.Actions {
			schema = append(schema, map[string]any{
				"name":        a.Name,
				"description": a.Description,
				"args_schema": a.ArgsSchema,
			})
		}
		schemaJSON, _ := json.Marshal(schema)
		b.WriteString("\n\nActions:\n")
		b.Write(schemaJSON)
	}
	b.WriteString("\n\nOutput ONLY the JSON object.")
	return b.String()
}

func (i *Interpreter) temperature() float32 {
	if i.spec.Style.Temperature <= 0 {
		return 0.1
	}
	return i.spec.Style.Temperature
}

func (i *Interpreter) maxTokens() int {
	if i.spec.Style.MaxTokens <= 0 {
		return 300
	}
	return i.spec.Style.MaxTokens
}

// dispatch turns a descriptor into the reply envelope, executing the contact
// query when applicable. Unrecognized actions degrade to unknown with the
// original command as the query.
func (i *Interpreter) dispatch(ctx context.Context, userID, command string, action ActionDescriptor) types.Envelope {
	switch action.Action {
	case ActionShowContacts, ActionAddNote, ActionGetContactDetails, ActionUnknown:
	default:
		action = ActionDescriptor{Action: ActionUnknown, Parameters: ActionParams{Query: command}}
	}
	if action.Confidence > 0 && action.Confidence < 0.5 {
		log.Printf("[copilot] low-confidence action %q (%.2f) for user %s", action.Action, action.Confidence, userID)
	}

	switch action.Action {
	case ActionShowContacts:
		return i.showContacts(ctx, userID, action.Parameters)
	case ActionUnknown:
		query := strings.TrimSpace(action.Parameters.Query)
		if query == "" {
			query = command
		}
		return types.Envelope{
			Text: fmt.Sprintf("I'm not sure how to process %q. What would you like to do?", query),
		}
	default:
		// add_note and get_contact_details are declared future work.
		return types.Envelope{
			Text: "I understood what you asked, but I can't do that just yet. Support for it is on the way.",
		}
	}
}

func (i *Interpreter) showContacts(ctx context.Context, userID string, params ActionParams) types.Envelope {
	contacts, err := i.contacts.Search(ctx, userID, params.Name, params.PropertyAddress)
	if err != nil {
		// Infra failure, distinct from "no results": apology with no payload.
		log.Printf("[copilot] contact query failed for user %s: %v", userID, err)
		return types.Envelope{
			Text: "Sorry, I couldn't look up your contacts right now. Please try again in a moment.",
		}
	}
	if len(contacts) == 0 {
		// Empty list, not null, so the panel still renders.
		return types.Envelope{
			Text: "No contacts found matching your search.",
			Type: types.TypeContactsList,
			Data: []types.ContactData{},
		}
	}
	text := fmt.Sprintf("Found %d contacts.", len(contacts))
	if len(contacts) == 1 {
		text = "Found 1 contact."
	}
	return types.Envelope{
		Text: text,
		Type: types.TypeContactsList,
		Data: contacts,
	}
}
