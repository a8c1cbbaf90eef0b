package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"
	// IST rendering must work even in scratch containers without a tz database.
	_ "time/tzdata"

	"github.com/PredixionAI/collections-voice-service/internal/domain"
	"github.com/PredixionAI/collections-voice-service/internal/repository"
	"github.com/PredixionAI/collections-voice-service/pkg/logger"
	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"
)

// Tool name constants
const (
	ToolNameGetUserData     = "get_user_data"
	ToolNameCurrentDateTime = "current_date_time"
	ToolNameEndCall         = "end_call"
	ToolNamePolicyQuestion  = "policy_question"
)

// PolicyAnswerer answers loan-policy questions from the indexed document
// corpus. Best effort: it returns a canned fallback, never an error.
type PolicyAnswerer interface {
	AnswerPolicyQuestion(ctx context.Context, query string) string
}

// emptyObjectSchema is the parameter schema for tools that take no arguments.
var emptyObjectSchema = map[string]interface{}{
	"type":       "object",
	"properties": map[string]interface{}{},
}

// ToolExecutorFunc runs one tool call and returns the JSON or text payload
// handed back to the model.
type ToolExecutorFunc func(ctx context.Context, argumentsJSON string) (string, error)

// ToolDefinition defines a callable action exposed to the model.
type ToolDefinition struct {
	Name        string
	Description string
	Parameters  map[string]interface{}
	Executor    ToolExecutorFunc
}

// ToolRegistry holds the session's callable actions, keyed by name.
// Registration order is preserved so the model always sees a stable list.
type ToolRegistry struct {
	registry map[string]*ToolDefinition
	order    []string
}

func NewToolRegistry() *ToolRegistry {
	return &ToolRegistry{registry: make(map[string]*ToolDefinition)}
}

func (r *ToolRegistry) Register(def *ToolDefinition) {
	if _, exists := r.registry[def.Name]; !exists {
		r.order = append(r.order, def.Name)
	}
	r.registry[def.Name] = def
}

// Definitions renders the registry as OpenAI tool declarations.
func (r *ToolRegistry) Definitions() []openai.Tool {
	tools := make([]openai.Tool, 0, len(r.order))
	for _, name := range r.order {
		def := r.registry[name]
		tools = append(tools, openai.Tool{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        def.Name,
				Description: def.Description,
				Parameters:  def.Parameters,
			},
		})
	}
	return tools
}

// Execute routes one tool call to its executor.
func (r *ToolRegistry) Execute(ctx context.Context, name, argumentsJSON string) (string, error) {
	def, ok := r.registry[name]
	if !ok {
		return "", fmt.Errorf("unknown tool: %s", name)
	}
	return def.Executor(ctx, argumentsJSON)
}

// newSessionTools registers the callable actions available during a call.
// get_user_data, current_date_time and policy_question are pure reads;
// end_call is the sole exit from the active conversation. The policy tool is
// registered only when a retriever is configured.
func newSessionTools(borrowers repository.BorrowerStore, phone string, policies PolicyAnswerer, requestEnd func()) *ToolRegistry {
	r := NewToolRegistry()

	r.Register(&ToolDefinition{
		Name:        ToolNameGetUserData,
		Description: "Returns all information about the customer and their loan details in JSON format.",
		Parameters:  emptyObjectSchema,
		Executor: func(ctx context.Context, _ string) (string, error) {
			record, err := borrowers.FetchBorrower(ctx, phone)
			if err != nil {
				if errors.Is(err, domain.ErrBorrowerNotFound) {
					logger.Base().Warn("borrower record absent during call", zap.String("phone", phone))
					return "{}", nil
				}
				return "", err
			}
			payload, err := json.Marshal(record)
			if err != nil {
				return "", fmt.Errorf("failed to serialize borrower record: %w", err)
			}
			return string(payload), nil
		},
	})

	r.Register(&ToolDefinition{
		Name:        ToolNameCurrentDateTime,
		Description: "Returns the current day, date and time in JSON format.",
		Parameters:  emptyObjectSchema,
		Executor: func(ctx context.Context, _ string) (string, error) {
			return currentDateTimeJSON(time.Now())
		},
	})

	if policies != nil {
		r.Register(&ToolDefinition{
			Name:        ToolNamePolicyQuestion,
			Description: "Answers the customer's questions about loan policies, such as consequences of missing payments or closing the loan early.",
			Parameters: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"query": map[string]interface{}{
						"type":        "string",
						"description": "The customer's policy question in their own words.",
					},
				},
				"required": []string{"query"},
			},
			Executor: func(ctx context.Context, argumentsJSON string) (string, error) {
				var args struct {
					Query string `json:"query"`
				}
				if err := json.Unmarshal([]byte(argumentsJSON), &args); err != nil {
					return "", fmt.Errorf("failed to decode policy question arguments: %w", err)
				}
				answer := policies.AnswerPolicyQuestion(ctx, args.Query)
				payload, err := json.Marshal(map[string]string{"answer": answer})
				if err != nil {
					return "", err
				}
				return string(payload), nil
			},
		})
	}

	r.Register(&ToolDefinition{
		Name:        ToolNameEndCall,
		Description: "Called when the user wants to end the call or mentions that you have called the wrong person.",
		Parameters:  emptyObjectSchema,
		Executor: func(ctx context.Context, _ string) (string, error) {
			requestEnd()
			return `{"status":"ending call"}`, nil
		},
	})

	return r
}

// currentDateTimeJSON renders the current moment in IST the way the prompt
// expects it: day name, "2 January, 2006" date, 12-hour clock.
func currentDateTimeJSON(now time.Time) (string, error) {
	ist, err := time.LoadLocation("Asia/Kolkata")
	if err != nil {
		return "", fmt.Errorf("failed to load IST location: %w", err)
	}
	t := now.In(ist)

	payload, err := json.Marshal(map[string]string{
		"day":  t.Weekday().String(),
		"date": fmt.Sprintf("%d %s, %d", t.Day(), t.Month().String(), t.Year()),
		"time": t.Format("03:04 PM"),
	})
	if err != nil {
		return "", err
	}
	return string(payload), nil
}
