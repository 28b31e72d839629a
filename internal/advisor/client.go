package advisor

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"creditflow/internal/evaluation/models"
	"creditflow/internal/evaluation/ports"
	rulesmodels "creditflow/internal/rules/models"
)

const (
	decisionTool   = "credit_decision"
	sourceModel    = "model"
	defaultBackoff = 200 * time.Millisecond
)

const systemPrompt = `You are a credit analyst reviewing an application that did not pass the automatic rules cleanly.
Review the applicant data and the rule trail, then call the credit_decision function with your verdict.
Use MANUAL_REVIEW when the data is insufficient. Propose new rules only when a recurring pattern justifies one.
Supported rule types: INCOME_COMMITMENT {max_percentage, monthly_rate}, MAX_AMOUNT {max_amount, first_relationship_only},
CONDITIONAL_SCORE {condition: DELINQUENT|HIGH_INCOME, minimum_score, income_threshold}, MIN_TERM {minimum_term, amount_threshold}.`

// decisionSchema is the JSON schema of the credit_decision tool arguments.
var decisionSchema = json.RawMessage(`{
  "type": "object",
  "properties": {
    "decision": {"type": "string", "enum": ["APPROVE", "REJECT", "MANUAL_REVIEW"]},
    "confidence": {"type": "number", "minimum": 0, "maximum": 1},
    "justification": {"type": "string"},
    "proposed_rules": {
      "type": "array",
      "items": {
        "type": "object",
        "properties": {
          "name": {"type": "string"},
          "description": {"type": "string"},
          "type": {"type": "string", "enum": ["INCOME_COMMITMENT", "MAX_AMOUNT", "CONDITIONAL_SCORE", "MIN_TERM"]},
          "parameters": {"type": "object"}
        },
        "required": ["name", "type", "parameters"]
      }
    }
  },
  "required": ["decision", "confidence", "justification"]
}`)

// decisionArgs mirrors the credit_decision tool arguments.
type decisionArgs struct {
	Decision      string         `json:"decision"`
	Confidence    *float64       `json:"confidence"`
	Justification string         `json:"justification"`
	ProposedRules []proposedRule `json:"proposed_rules"`
}

type proposedRule struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Type        string          `json:"type"`
	Parameters  json.RawMessage `json:"parameters"`
}

// Client consults an OpenAI-compatible chat completion endpoint and forces
// a credit_decision function call.
type Client struct {
	client *openai.Client
	cfg    Config
	logger *slog.Logger
	tracer trace.Tracer
	sleep  func(ctx context.Context, d time.Duration) error
}

// NewClient builds a client from an explicit configuration.
func NewClient(cfg Config, logger *slog.Logger) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.RetryBackoff <= 0 {
		cfg.RetryBackoff = defaultBackoff
	}

	oaiCfg := openai.DefaultConfig(cfg.APIKey)
	oaiCfg.BaseURL = strings.TrimSuffix(cfg.Endpoint, "/")
	oaiCfg.HTTPClient = &http.Client{Timeout: cfg.Timeout}

	return &Client{
		client: openai.NewClientWithConfig(oaiCfg),
		cfg:    cfg,
		logger: logger,
		tracer: otel.Tracer("creditflow/internal/advisor"),
		sleep:  sleepContext,
	}, nil
}

func (c *Client) Model() string    { return c.cfg.Model }
func (c *Client) Endpoint() string { return c.cfg.Endpoint }

// Consult asks the model for a verdict on the view. Retryable failures are
// retried with exponential backoff while ctx allows.
func (c *Client) Consult(ctx context.Context, view models.View) (*ports.AdvisorResponse, error) {
	ctx, span := c.tracer.Start(ctx, "advisor.consult", trace.WithAttributes(
		attribute.String("advisor.model", c.cfg.Model),
		attribute.String("application_id", view.ApplicationID),
	))
	defer span.End()

	req, err := c.buildRequest(view)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	backoff := c.cfg.RetryBackoff
	var lastErr error
	for attempt := 0; attempt <= c.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			if err := c.sleep(ctx, backoff); err != nil {
				lastErr = ClassifyError(err)
				break
			}
			backoff *= 2
		}

		resp, err := c.complete(ctx, req, view, attempt)
		if err == nil {
			span.SetAttributes(attribute.Int("advisor.attempts", attempt+1))
			return resp, nil
		}
		lastErr = err
		if !IsRetryable(err) || ctx.Err() != nil {
			break
		}
	}

	span.RecordError(lastErr)
	span.SetStatus(codes.Error, lastErr.Error())
	return nil, lastErr
}

func (c *Client) complete(ctx context.Context, req openai.ChatCompletionRequest, view models.View, attempt int) (*ports.AdvisorResponse, error) {
	start := time.Now()
	resp, err := c.client.CreateChatCompletion(ctx, req)
	if err != nil {
		classified := ClassifyError(err)
		c.logger.WarnContext(ctx, "advisor request failed",
			"application_id", view.ApplicationID,
			"attempt", attempt+1,
			"retryable", classified.Retryable,
			"elapsed", time.Since(start),
			"error", classified,
		)
		return nil, classified
	}

	c.logger.DebugContext(ctx, "advisor request completed",
		"application_id", view.ApplicationID,
		"prompt_tokens", resp.Usage.PromptTokens,
		"completion_tokens", resp.Usage.CompletionTokens,
		"elapsed", time.Since(start),
	)

	args, err := extractArgs(resp)
	if err != nil {
		return nil, newError(ErrorTypeResponse, "unusable advisor response", false, err)
	}
	return c.toResponse(ctx, args)
}

func (c *Client) buildRequest(view models.View) (openai.ChatCompletionRequest, error) {
	payload, err := json.Marshal(view)
	if err != nil {
		return openai.ChatCompletionRequest{}, fmt.Errorf("encode advisor view: %w", err)
	}
	req := openai.ChatCompletionRequest{
		Model: c.cfg.Model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: "Credit application:\n" + string(payload)},
		},
		Temperature: c.cfg.Temperature,
		Tools: []openai.Tool{{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        decisionTool,
				Description: "Record the credit decision for the application",
				Parameters:  decisionSchema,
			},
		}},
		ToolChoice: openai.ToolChoice{
			Type:     openai.ToolTypeFunction,
			Function: openai.ToolFunction{Name: decisionTool},
		},
	}
	if c.cfg.MaxTokens > 0 {
		req.MaxTokens = c.cfg.MaxTokens
	}
	return req, nil
}

// extractArgs reads the forced tool call, falling back to a JSON object in
// the message content for endpoints that ignore tool_choice.
func extractArgs(resp openai.ChatCompletionResponse) (decisionArgs, error) {
	var args decisionArgs
	if len(resp.Choices) == 0 {
		return args, fmt.Errorf("no choices in response")
	}
	msg := resp.Choices[0].Message

	raw := ""
	for _, call := range msg.ToolCalls {
		if call.Function.Name == decisionTool {
			raw = call.Function.Arguments
			break
		}
	}
	if raw == "" {
		extracted, err := ExtractJSON(msg.Content)
		if err != nil {
			return args, err
		}
		raw = extracted
	}

	if err := json.Unmarshal([]byte(raw), &args); err != nil {
		return args, fmt.Errorf("decode %s arguments: %w", decisionTool, err)
	}
	return args, nil
}

func (c *Client) toResponse(ctx context.Context, args decisionArgs) (*ports.AdvisorResponse, error) {
	decision, ok := models.ParseAdvisorDecision(args.Decision)
	if !ok {
		return nil, newError(ErrorTypeResponse, fmt.Sprintf("unknown decision %q", args.Decision), false, nil)
	}
	if args.Confidence == nil {
		return nil, newError(ErrorTypeResponse, "confidence is missing", false, nil)
	}

	out := &ports.AdvisorResponse{
		Outcome: models.AdvisorOutcome{
			Decision:      decision,
			Confidence:    *args.Confidence,
			Justification: strings.TrimSpace(args.Justification),
			Source:        sourceModel,
		},
	}
	for _, p := range args.ProposedRules {
		def, err := p.definition()
		if err != nil {
			c.logger.WarnContext(ctx, "dropping invalid rule proposal",
				"name", p.Name,
				"type", p.Type,
				"error", err,
			)
			continue
		}
		out.ProposedRules = append(out.ProposedRules, def)
	}
	return out, nil
}

func (p proposedRule) definition() (rulesmodels.Definition, error) {
	kind, err := rulesmodels.ParseKind(p.Type)
	if err != nil {
		return rulesmodels.Definition{}, err
	}
	params, err := rulesmodels.DecodeParams(kind, p.Parameters)
	if err != nil {
		return rulesmodels.Definition{}, err
	}
	def := rulesmodels.Definition{
		Name:        p.Name,
		Description: p.Description,
		Kind:        kind,
		Params:      params,
		Origin:      rulesmodels.OriginAdvisor,
		Active:      true,
	}
	if err := def.Validate(); err != nil {
		return rulesmodels.Definition{}, err
	}
	return def, nil
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
