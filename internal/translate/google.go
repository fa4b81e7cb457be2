package translate

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
	"unicode/utf8"
)

// GTXURL is the public Google Translate endpoint (free, no key).
const GTXURL = "https://translate.googleapis.com/translate_a/single"

// maxGTXRunes limits text length for the API
const maxGTXRunes = 4000

// Google uses the free Google Translate endpoint.
type Google struct {
	BaseURL string
	Client  *http.Client
}

func NewGoogle(client *http.Client) *Google {
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}
	return &Google{BaseURL: GTXURL, Client: client}
}

func (g *Google) Name() string { return "gtx" }

func (g *Google) Translate(ctx context.Context, text string) (string, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return "", nil
	}
	if utf8.RuneCountInString(text) > maxGTXRunes {
		text = string([]rune(text)[:maxGTXRunes])
	}

	// Build query params
	params := url.Values{}
	params.Set("client", "gtx")
	params.Set("sl", "en")
	params.Set("tl", Target)
	params.Set("dt", "t") // return translations
	params.Set("q", text)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.BaseURL+"?"+params.Encode(), nil)
	if err != nil {
		return "", err
	}

	resp, err := g.Client.Do(req)
	if err != nil {
		return "", fmt.Errorf("HTTP error: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("google Translate API returned status: %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("error reading response: %w", err)
	}

	translation, err := parseGoogleTranslateResponse(body)
	if err != nil {
		return "", fmt.Errorf("error parsing response: %w", err)
	}
	return translation, nil
}

// parseGoogleTranslateResponse parses Google Translate API response
func parseGoogleTranslateResponse(body []byte) (string, error) {
	// Google Translate returns array of arrays
	var response []interface{}

	if err := json.Unmarshal(body, &response); err != nil {
		return "", err
	}

	if len(response) == 0 {
		return "", errors.New("empty response from Google Translate")
	}

	// First element contains translations
	translations, ok := response[0].([]interface{})
	if !ok {
		return "", errors.New("unexpected response format")
	}

	var result strings.Builder
	for _, translation := range translations {
		if translationArray, ok := translation.([]interface{}); ok && len(translationArray) > 0 {
			if translatedText, ok := translationArray[0].(string); ok {
				result.WriteString(translatedText)
			}
		}
	}

	return result.String(), nil
}
