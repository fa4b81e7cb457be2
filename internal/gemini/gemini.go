package gemini

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

const DefaultModel = "gemini-1.5-flash"

type Client struct {
	client *genai.Client
	model  string
}

// Entity is one named entity returned by ExtractEntities.
type Entity struct {
	Name string `json:"name"`
	Type string `json:"type"` // PERSON, COMPANY or ORG
}

func NewClient(ctx context.Context, apiKey string) (*Client, error) {
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	return &Client{client: client, model: DefaultModel}, nil
}

func (c *Client) Close() {
	if c.client != nil {
		c.client.Close()
	}
}

func (c *Client) Name() string { return "gemini" }

// Translate renders English text as Simplified Chinese.
func (c *Client) Translate(ctx context.Context, text string) (string, error) {
	text = prepareText(text)
	if text == "" {
		return "", nil
	}

	prompt := fmt.Sprintf(`Translate the following English music-industry news text into Simplified Chinese.

REQUIREMENTS:
- Keep names of artists, companies, brands and organizations in their original form.
- Translate naturally, not word by word.
- Do not add commentary, notes or alternatives.

Answer strictly in this format:

CHINESE: <translation>

TEXT:
%s
`, text)

	model := c.client.GenerativeModel(c.model)
	model.SetTemperature(0.2)
	resp, err := c.generate(ctx, model, prompt)
	if err != nil {
		return "", err
	}
	return parseTranslation(resp)
}

// ExtractEntities asks the model for the people, companies and organizations
// named in text.
func (c *Client) ExtractEntities(ctx context.Context, text string) ([]Entity, error) {
	text = prepareText(text)
	if text == "" {
		return nil, nil
	}

	prompt := fmt.Sprintf(`List every person, company and organization named in the text below.
Return a JSON array only, each element {"name": "<as written in the text>", "type": "PERSON" | "COMPANY" | "ORG"}.
Return [] when there are none. Do not invent names that are not in the text.

TEXT:
%s
`, text)

	model := c.client.GenerativeModel(c.model)
	model.SetTemperature(0)
	model.ResponseMIMEType = "application/json"
	resp, err := c.generate(ctx, model, prompt)
	if err != nil {
		return nil, err
	}
	return parseEntities(resp)
}

func (c *Client) generate(ctx context.Context, model *genai.GenerativeModel, prompt string) (string, error) {
	resp, err := model.GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		return "", fmt.Errorf("failed to generate content: %w", err)
	}

	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil || len(resp.Candidates[0].Content.Parts) == 0 {
		return "", fmt.Errorf("no response from Gemini")
	}

	var b strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if t, ok := part.(genai.Text); ok {
			b.WriteString(string(t))
		}
	}
	return b.String(), nil
}

// prepareText sanitizes and limits content size (avoid over-long prompts)
func prepareText(content string) string {
	content = strings.ReplaceAll(content, "\r", "")
	content = strings.Join(strings.Fields(content), " ")
	maxChars := 6000
	if utf8.RuneCountInString(content) > maxChars {
		// cut on rune boundary then try to end at sentence
		runes := []rune(content)
		trimmed := string(runes[:maxChars])
		if idx := strings.LastIndex(trimmed, ". "); idx > 1200 {
			trimmed = trimmed[:idx+1]
		}
		content = trimmed
	}
	return content
}

var chineseLabel = regexp.MustCompile(`(?i)^(CHINESE|中文|译文|翻译)\s*[:：]\s?`)

func parseTranslation(response string) (string, error) {
	var b strings.Builder
	inSection := false

	for _, raw := range strings.Split(response, "\n") {
		line := strings.TrimSpace(raw)
		if line == "" {
			continue
		}
		if chineseLabel.MatchString(line) {
			inSection = true
			line = strings.TrimSpace(chineseLabel.ReplaceAllString(line, ""))
		}
		if !inSection || line == "" {
			continue
		}
		if b.Len() > 0 {
			b.WriteString(" ")
		}
		b.WriteString(line)
	}

	out := strings.TrimSpace(b.String())
	// Fallback: model skipped the label
	if out == "" && looksChinese(response) {
		out = strings.Join(strings.Fields(response), " ")
	}
	if out == "" {
		return "", fmt.Errorf("could not parse Gemini response: no Chinese translation")
	}
	if !looksChinese(out) {
		return "", fmt.Errorf("could not parse Gemini response: translation has no Chinese text")
	}
	return out, nil
}

func parseEntities(response string) ([]Entity, error) {
	s := strings.TrimSpace(response)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")

	start := strings.Index(s, "[")
	end := strings.LastIndex(s, "]")
	if start < 0 || end < start {
		return nil, fmt.Errorf("could not parse Gemini response: no JSON array")
	}

	var entities []Entity
	if err := json.Unmarshal([]byte(s[start:end+1]), &entities); err != nil {
		return nil, fmt.Errorf("could not parse Gemini response: %w", err)
	}

	out := entities[:0]
	for _, e := range entities {
		e.Name = strings.TrimSpace(e.Name)
		e.Type = strings.ToUpper(strings.TrimSpace(e.Type))
		if e.Name != "" {
			out = append(out, e)
		}
	}
	return out, nil
}

func looksChinese(s string) bool {
	// Count Han characters
	count := 0
	for _, r := range s {
		if unicode.Is(unicode.Han, r) {
			count++
		}
		if count > 1 {
			return true
		}
	}
	return false
}
