// Package gemini provides the Google Gemini advisory client
package gemini

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"google.golang.org/genai"

	"github.com/harborfin/drift/internal/common"
	"github.com/harborfin/drift/internal/interfaces"
	"github.com/harborfin/drift/internal/models"
)

const DefaultModel = "gemini-2.0-flash"

// Compile-time interface check
var _ interfaces.AdvisorClient = (*Client)(nil)

// Client implements the AdvisorClient interface
type Client struct {
	client *genai.Client
	model  string
	logger *common.Logger
}

// ClientOption configures the client
type ClientOption func(*Client)

// WithModel sets the model to use
func WithModel(model string) ClientOption {
	return func(c *Client) {
		if model != "" {
			c.model = model
		}
	}
}

// WithLogger sets the logger
func WithLogger(logger *common.Logger) ClientOption {
	return func(c *Client) {
		c.logger = logger
	}
}

// NewClient creates a new Gemini advisory client
func NewClient(ctx context.Context, apiKey string, opts ...ClientOption) (*Client, error) {
	genaiClient, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	c := &Client{
		client: genaiClient,
		model:  DefaultModel,
		logger: common.NewSilentLogger(),
	}

	for _, opt := range opts {
		opt(c)
	}

	return c, nil
}

// Available reports whether the advisory is configured and usable.
func (c *Client) Available() bool {
	return c != nil && c.client != nil
}

// ProposeRebalance asks the model to reorder/adjust/filter the deterministic
// candidate set. The response is parsed into the neutral AdvisorProposal
// structure; the caller's validation funnel decides what, if anything, is
// accepted.
func (c *Client) ProposeRebalance(ctx context.Context, req *interfaces.AdvisorRequest) (*models.AdvisorProposal, error) {
	prompt := buildRebalancePrompt(req)

	c.logger.Debug().Str("model", c.model).Str("portfolio", req.PortfolioName).Msg("Requesting advisory proposal")

	contents := genai.Text(prompt)
	config := &genai.GenerateContentConfig{
		ResponseMIMEType: "application/json",
	}

	result, err := c.client.Models.GenerateContent(ctx, c.model, contents, config)
	if err != nil {
		return nil, fmt.Errorf("failed to generate proposal: %w", err)
	}

	text, err := extractTextFromResponse(result)
	if err != nil {
		return nil, err
	}

	return parseProposal(text)
}

// extractTextFromResponse extracts text from a generate content response
func extractTextFromResponse(result *genai.GenerateContentResponse) (string, error) {
	if len(result.Candidates) == 0 || result.Candidates[0].Content == nil || len(result.Candidates[0].Content.Parts) == 0 {
		return "", fmt.Errorf("no content generated")
	}

	text := ""
	for _, part := range result.Candidates[0].Content.Parts {
		if part.Text != "" {
			text += part.Text
		}
	}

	return text, nil
}

// parseProposal decodes the model's JSON into the neutral proposal structure.
// Markdown code fences are stripped first; models add them despite the JSON
// response type.
func parseProposal(text string) (*models.AdvisorProposal, error) {
	cleaned := strings.TrimSpace(text)
	cleaned = strings.TrimPrefix(cleaned, "```json")
	cleaned = strings.TrimPrefix(cleaned, "```")
	cleaned = strings.TrimSuffix(cleaned, "```")
	cleaned = strings.TrimSpace(cleaned)

	var proposal models.AdvisorProposal
	if err := json.Unmarshal([]byte(cleaned), &proposal); err != nil {
		return nil, fmt.Errorf("failed to parse advisory response: %w", err)
	}

	return &proposal, nil
}

// buildRebalancePrompt creates the advisory prompt from the sanitized
// computation view.
func buildRebalancePrompt(req *interfaces.AdvisorRequest) string {
	var sb strings.Builder

	sb.WriteString("You are a portfolio rebalancing assistant. Review the deterministic ")
	sb.WriteString("rebalancing candidates below and propose a final action list. You may ")
	sb.WriteString("reorder, adjust amounts, or drop actions, but must respect the constraints.\n\n")

	fmt.Fprintf(&sb, `Constraints:
- noise threshold: $%.2f (smaller actions are pointless)
- max actions per side: %d
- cash available: $%.2f
- total buys must not exceed total sells plus cash
- sell when the price percentile is high (>= %.0f), buy when it is low (<= %.0f)

`,
		req.Constraints.NoiseThreshold,
		req.Constraints.MaxActions,
		req.Constraints.CashAvailable,
		req.Constraints.SellPercentileThreshold,
		req.Constraints.BuyPercentileThreshold,
	)

	sb.WriteString("Securities:\n")
	for _, f := range req.Features {
		fmt.Fprintf(&sb, "- %s: current %.2f%%, target %.2f%%, deviation %.2f pts, gap $%.2f, market value $%.2f, unrealized P&L %.2f%%",
			f.Ticker, f.CurrentPct, f.TargetPct, f.Deviation, f.GapValue, f.MarketValue, f.UnrealizedPnLPct)
		if f.Price != nil {
			fmt.Fprintf(&sb, ", price $%.2f", *f.Price)
		}
		if f.TimingPercentile != nil {
			fmt.Fprintf(&sb, ", trailing-year percentile %.1f", *f.TimingPercentile)
		}
		sb.WriteString("\n")
	}

	sb.WriteString("\nDeterministic sell candidates:\n")
	for _, c := range req.Sells {
		fmt.Fprintf(&sb, "- SELL %s $%.2f\n", c.Ticker, abs(c.Amount))
	}
	sb.WriteString("\nDeterministic buy candidates:\n")
	for _, c := range req.Buys {
		fmt.Fprintf(&sb, "- BUY %s $%.2f\n", c.Ticker, abs(c.Amount))
	}

	if req.Risk != nil {
		fmt.Fprintf(&sb, "\nPortfolio risk: HHI %.0f (%s concentration), volatility %.1f%%, beta %.2f, Sharpe %.2f\n",
			req.Risk.HHI, req.Risk.ConcentrationRisk, req.Risk.Volatility, req.Risk.Beta, req.Risk.SharpeRatio)
	}

	sb.WriteString(`
Respond with a single JSON object, no prose outside it:
{
  "actions": [
    {"action": "BUY" or "SELL", "ticker": "...", "amount": 123.45, "confidence": 0.0-1.0, "reason": "one sentence"}
  ],
  "summary": "2-3 sentence executive summary of the plan"
}
`)

	return sb.String()
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
