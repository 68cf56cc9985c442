package extract

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"go.uber.org/zap"
	"google.golang.org/api/option"

	"github.com/openhire/jobradar/internal/domain"
)

// ModelClient abstracts the generative model behind the LLM extractor so
// tests can substitute a canned implementation.
type ModelClient interface {
	GenerateJSON(ctx context.Context, prompt string) (string, error)
	Close() error
}

// GeminiClient implements ModelClient on Google Gemini.
type GeminiClient struct {
	client *genai.Client
	model  string
}

// NewGeminiClient dials Gemini with the given API key and model name.
func NewGeminiClient(ctx context.Context, apiKey, model string) (*GeminiClient, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("gemini api key is required")
	}
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}
	return &GeminiClient{client: client, model: model}, nil
}

// GenerateJSON asks the model for a JSON-only response.
func (c *GeminiClient) GenerateJSON(ctx context.Context, prompt string) (string, error) {
	model := c.client.GenerativeModel(c.model)
	model.SetTemperature(0.1)
	model.ResponseMIMEType = "application/json"

	resp, err := model.GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		return "", fmt.Errorf("generate content: %w", err)
	}
	text, err := textFromResponse(resp)
	if err != nil {
		return "", err
	}
	return cleanJSONBlock(text), nil
}

// Close releases the underlying client.
func (c *GeminiClient) Close() error {
	if c.client != nil {
		return c.client.Close()
	}
	return nil
}

func textFromResponse(resp *genai.GenerateContentResponse) (string, error) {
	if len(resp.Candidates) == 0 {
		return "", fmt.Errorf("no candidates in response")
	}
	candidate := resp.Candidates[0]
	if candidate.Content == nil || len(candidate.Content.Parts) == 0 {
		return "", fmt.Errorf("no content in response")
	}
	var parts []string
	for _, part := range candidate.Content.Parts {
		if text, ok := part.(genai.Text); ok {
			parts = append(parts, string(text))
		}
	}
	if len(parts) == 0 {
		return "", fmt.Errorf("no text parts in response")
	}
	return strings.Join(parts, ""), nil
}

func cleanJSONBlock(text string) string {
	text = strings.TrimSpace(text)
	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSuffix(text, "```")
	return strings.TrimSpace(text)
}

// maxLLMContentBytes bounds the page text sent to the model.
const maxLLMContentBytes = 60_000

// llmJob is the response shape the prompt asks for.
type llmJob struct {
	Title          string `json:"title"`
	URL            string `json:"url"`
	Location       string `json:"location"`
	Department     string `json:"department"`
	EmploymentType string `json:"employment_type"`
	Salary         string `json:"salary"`
	Remote         bool   `json:"remote"`
}

// LLM is the last-resort extractor. It sends visible page text to a
// generative model and parses the structured response back into jobs.
type LLM struct {
	client ModelClient
	logger *zap.Logger
}

// NewLLM builds the extractor.
func NewLLM(client ModelClient, logger *zap.Logger) *LLM {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LLM{client: client, logger: logger}
}

// Type implements Extractor.
func (l *LLM) Type() domain.ATSType { return domain.ATSUnknown }

// Extract asks the model to pull postings out of the page.
func (l *LLM) Extract(ctx context.Context, req Request) ([]domain.ExtractedJob, error) {
	if l.client == nil {
		return nil, fmt.Errorf("llm extraction is not configured")
	}

	prompt := buildExtractionPrompt(req.SourceURL, req.Content)
	raw, err := l.client.GenerateJSON(ctx, prompt)
	if err != nil {
		return nil, fmt.Errorf("llm extraction: %w", err)
	}

	var parsed []llmJob
	if err := json.Unmarshal([]byte(raw), &parsed); err != nil {
		return nil, fmt.Errorf("parse llm response: %w", err)
	}

	jobs := make([]domain.ExtractedJob, 0, len(parsed))
	for _, p := range parsed {
		title := cleanText(p.Title)
		if title == "" {
			l.logger.Debug("skipping llm job without title", zap.String("url", p.URL))
			continue
		}
		sourceURL := p.URL
		if sourceURL == "" {
			sourceURL = req.SourceURL
		} else {
			sourceURL = absoluteURL(req.SourceURL, sourceURL)
		}
		jobs = append(jobs, domain.ExtractedJob{
			Title:          title,
			SourceURL:      sourceURL,
			Location:       cleanText(p.Location),
			Department:     cleanText(p.Department),
			EmploymentType: cleanText(p.EmploymentType),
			SalaryText:     cleanText(p.Salary),
			Remote:         p.Remote || isRemote(p.Location, title),
		})
	}
	l.logger.Info("llm extraction finished",
		zap.String("source_url", req.SourceURL),
		zap.Int("jobs", len(jobs)))
	return jobs, nil
}

// buildExtractionPrompt assembles the instruction plus the truncated page
// text. Markup is stripped first so the model sees prose, not tags.
func buildExtractionPrompt(sourceURL string, content []byte) string {
	text := stripMarkup(content)
	if len(text) > maxLLMContentBytes {
		text = text[:maxLLMContentBytes]
	}

	var b strings.Builder
	b.WriteString("You are extracting job postings from the text of a company careers page.\n")
	b.WriteString("Return ONLY a JSON array. Each element must have the keys:\n")
	b.WriteString(`  "title", "url", "location", "department", "employment_type", "salary", "remote"` + "\n")
	b.WriteString("Use empty strings for unknown string fields and false for unknown remote.\n")
	b.WriteString("Do not invent postings. If the page lists no jobs, return [].\n\n")
	b.WriteString("Page URL: ")
	b.WriteString(sourceURL)
	b.WriteString("\n\nPage text:\n")
	b.WriteString(text)
	return b.String()
}
