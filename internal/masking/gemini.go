package masking

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"time"

	"go.uber.org/zap"
)

const defaultGeminiURL = "https://generativelanguage.googleapis.com/v1beta/models/gemini-2.0-flash:generateContent"

const detectPrompt = `分析以下文字，找出所有個人資料（PII），並以 JSON 格式回傳。
只回傳 JSON，不要有其他文字。

格式範例：
{"items": [{"text": "0912345678", "type": "phone"}, {"text": "wang@gmail.com", "type": "email"}]}

類型包含：phone, email, id_card, credit_card, name, address

文字內容：
%s`

// GeminiDetector calls the Gemini API to classify PII spans. It satisfies
// AIDetector; the engine handles its failures by degrading to regex.
type GeminiDetector struct {
	apiKey string
	url    string
	client *http.Client
	logger *zap.Logger
}

// NewGeminiDetector builds the client. Returns nil when no API key is
// configured so the engine runs regex-only.
func NewGeminiDetector(apiKey, url string, timeout time.Duration, logger *zap.Logger) *GeminiDetector {
	if apiKey == "" {
		return nil
	}
	if url == "" {
		url = defaultGeminiURL
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &GeminiDetector{
		apiKey: apiKey,
		url:    url,
		client: &http.Client{Timeout: timeout},
		logger: logger,
	}
}

type geminiRequest struct {
	Contents []geminiContent `json:"contents"`
}

type geminiContent struct {
	Parts []geminiPart `json:"parts"`
}

type geminiPart struct {
	Text string `json:"text"`
}

type geminiResponse struct {
	Candidates []struct {
		Content struct {
			Parts []geminiPart `json:"parts"`
		} `json:"content"`
	} `json:"candidates"`
}

type detectedPayload struct {
	Items []struct {
		Text string `json:"text"`
		Type string `json:"type"`
	} `json:"items"`
}

var jsonBlock = regexp.MustCompile(`(?s)\{.*\}`)

// Detect implements AIDetector.
func (g *GeminiDetector) Detect(ctx context.Context, text string) ([]Detected, error) {
	body, err := json.Marshal(geminiRequest{
		Contents: []geminiContent{{Parts: []geminiPart{{Text: fmt.Sprintf(detectPrompt, text)}}}},
	})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.url+"?key="+g.apiKey, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("gemini api status %d", resp.StatusCode)
	}

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, err
	}

	var parsed geminiResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, err
	}
	if len(parsed.Candidates) == 0 || len(parsed.Candidates[0].Content.Parts) == 0 {
		return nil, fmt.Errorf("gemini api returned no candidates")
	}

	block := jsonBlock.FindString(parsed.Candidates[0].Content.Parts[0].Text)
	if block == "" {
		return nil, fmt.Errorf("no json block in gemini response")
	}

	var payload detectedPayload
	if err := json.Unmarshal([]byte(block), &payload); err != nil {
		return nil, err
	}

	items := make([]Detected, 0, len(payload.Items))
	for _, item := range payload.Items {
		items = append(items, Detected{Text: item.Text, Category: categoryFromWire(item.Type)})
	}
	return items, nil
}

func categoryFromWire(raw string) Category {
	switch raw {
	case "phone":
		return CategoryPhone
	case "email":
		return CategoryEmail
	case "id_card":
		return CategoryNationalID
	case "credit_card":
		return CategoryCreditCard
	case "address":
		return CategoryAddress
	case "name":
		return CategoryName
	default:
		return Category(raw)
	}
}
