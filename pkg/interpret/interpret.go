// Package interpret wraps the external collaborators that sit in front of
// planning: the guardrail checker and the natural-language interpreter.
package interpret

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/dock108/reelplan/pkg/models"
)

// Result is the two-variant outcome of interpretation: exactly one of
// Parsed or NeedsClarification is set, and callers must handle both.
type Result struct {
	Parsed             *models.RequestSpec
	NeedsClarification *Clarification
}

// Clarification asks the user to disambiguate before planning can proceed.
type Clarification struct {
	Questions []string `json:"questions"`
}

// Verdict is the guardrail decision for a piece of free text.
type Verdict struct {
	Allowed bool   `json:"allowed"`
	Reason  string `json:"reason,omitempty"`
}

// Interpreter turns free text into a structured request, or asks for
// clarification.
type Interpreter interface {
	Interpret(ctx context.Context, freeText string) (Result, error)
}

// Guardrail screens free text before it reaches the interpreter.
type Guardrail interface {
	Check(ctx context.Context, freeText string) (Verdict, error)
}

// HTTPInterpreter calls the interpretation service's JSON API.
type HTTPInterpreter struct {
	baseURL string
	log     *zap.Logger
	client  *http.Client
}

func NewHTTPInterpreter(baseURL string, log *zap.Logger) *HTTPInterpreter {
	return &HTTPInterpreter{
		baseURL: baseURL,
		log:     log,
		client: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

type interpretResponse struct {
	Spec          *models.RequestSpec `json:"spec,omitempty"`
	Clarification *Clarification      `json:"clarification,omitempty"`
	Assumptions   []string            `json:"assumptions,omitempty"`
}

func (i *HTTPInterpreter) Interpret(ctx context.Context, freeText string) (Result, error) {
	var parsed interpretResponse
	if err := postJSON(ctx, i.client, i.baseURL+"/interpret", map[string]string{"text": freeText}, &parsed); err != nil {
		return Result{}, fmt.Errorf("interpret: %w", err)
	}

	switch {
	case parsed.Clarification != nil:
		i.log.Info("interpretation needs clarification",
			zap.Int("questions", len(parsed.Clarification.Questions)))
		return Result{NeedsClarification: parsed.Clarification}, nil
	case parsed.Spec != nil:
		spec := *parsed.Spec
		spec.Assumptions = parsed.Assumptions
		return Result{Parsed: &spec}, nil
	default:
		return Result{}, fmt.Errorf("interpret: response carried neither spec nor clarification")
	}
}

// HTTPGuardrail calls the safety checker's JSON API.
type HTTPGuardrail struct {
	baseURL string
	log     *zap.Logger
	client  *http.Client
}

func NewHTTPGuardrail(baseURL string, log *zap.Logger) *HTTPGuardrail {
	return &HTTPGuardrail{
		baseURL: baseURL,
		log:     log,
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

func (g *HTTPGuardrail) Check(ctx context.Context, freeText string) (Verdict, error) {
	var verdict Verdict
	if err := postJSON(ctx, g.client, g.baseURL+"/check", map[string]string{"text": freeText}, &verdict); err != nil {
		return Verdict{}, fmt.Errorf("guardrail check: %w", err)
	}
	if !verdict.Allowed {
		g.log.Info("guardrail blocked request", zap.String("reason", verdict.Reason))
	}
	return verdict, nil
}

func postJSON(ctx context.Context, client *http.Client, url string, payload, out interface{}) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("status %d: %s", resp.StatusCode, string(msg))
	}

	return json.NewDecoder(resp.Body).Decode(out)
}
