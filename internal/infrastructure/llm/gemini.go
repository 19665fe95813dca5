package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"NewsDigest/internal/config"
	"NewsDigest/internal/ports"
)

const systemPrompt = `Bạn là một chuyên gia phân tích tin tức AI, chuyên tóm tắt các bài báo kỹ thuật, nghiên cứu và video về trí tuệ nhân tạo.

Nhiệm vụ của bạn là tạo ra các bản tóm tắt súc tích, giàu thông tin giúp người đọc nắm bắt nhanh các điểm chính và tầm quan trọng của nội dung.

Hướng dẫn bắt buộc:
1. Ngôn ngữ: TOÀN BỘ kết quả trả về phải là Tiếng Việt.
2. Tiêu đề: Hấp dẫn, ngắn gọn (10-20 từ), tóm tắt được cốt lõi nội dung.
3. Tóm tắt: Viết 2-3 câu làm nổi bật các ý chính, kết quả đạt được hoặc tác động của tin tức đó.
4. Phong cách: Khách quan, chuyên nghiệp, dễ hiểu nhưng vẫn đảm bảo tính chính xác về kỹ thuật.
5. Định dạng: Trả về kết quả dưới dạng JSON object với đúng 2 key là "title" và "summary".`

// GeminiClient implements ports.Summarizer via the Gemini generateContent API.
type GeminiClient struct {
	endpoint   string
	model      string
	apiKey     string
	httpClient *http.Client
}

var _ ports.Summarizer = (*GeminiClient)(nil)

// NewGeminiClient builds a client from configuration.
func NewGeminiClient(cfg config.GeminiConfig) *GeminiClient {
	return &GeminiClient{
		endpoint: strings.TrimSuffix(cfg.Endpoint, "/"),
		model:    cfg.Model,
		apiKey:   cfg.APIKey,
		httpClient: &http.Client{
			Timeout: 60 * time.Second,
		},
	}
}

type geminiRequest struct {
	SystemInstruction geminiContent    `json:"system_instruction"`
	Contents          []geminiContent  `json:"contents"`
	GenerationConfig  generationConfig `json:"generationConfig"`
}

type geminiContent struct {
	Parts []geminiPart `json:"parts"`
}

type geminiPart struct {
	Text string `json:"text"`
}

type generationConfig struct {
	ResponseMIMEType string `json:"response_mime_type"`
}

type geminiResponse struct {
	Candidates []struct {
		Content struct {
			Parts []geminiPart `json:"parts"`
		} `json:"content"`
	} `json:"candidates"`
	Error *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// digestJSON is the exact two-key structure the model is instructed to emit.
type digestJSON struct {
	Title   string `json:"title"`
	Summary string `json:"summary"`
}

// GenerateDigest asks Gemini for a structured {title, summary} pair. Any
// transport error, API error, or payload that fails the two-key schema is
// returned as an error; no partial output ever comes back.
func (c *GeminiClient) GenerateDigest(ctx context.Context, req ports.DigestRequest) (ports.DigestOutput, error) {
	if c.apiKey == "" || c.model == "" {
		return ports.DigestOutput{}, fmt.Errorf("gemini client misconfigured")
	}

	userPrompt := fmt.Sprintf(
		"Hãy tóm tắt nội dung sau bằng Tiếng Việt.\nLoại bài: %s\nTiêu đề gốc: %s\nNội dung: %s",
		req.ContentType, req.Title, req.Content,
	)

	body, err := json.Marshal(geminiRequest{
		SystemInstruction: geminiContent{Parts: []geminiPart{{Text: systemPrompt}}},
		Contents:          []geminiContent{{Parts: []geminiPart{{Text: userPrompt}}}},
		GenerationConfig:  generationConfig{ResponseMIMEType: "application/json"},
	})
	if err != nil {
		return ports.DigestOutput{}, fmt.Errorf("marshal gemini payload: %w", err)
	}

	endpoint := fmt.Sprintf("%s/v1beta/models/%s:generateContent", c.endpoint, c.model)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return ports.DigestOutput{}, fmt.Errorf("new request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-goog-api-key", c.apiKey)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return ports.DigestOutput{}, fmt.Errorf("call gemini: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return ports.DigestOutput{}, fmt.Errorf("read gemini response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return ports.DigestOutput{}, fmt.Errorf("gemini returned %s: %s", resp.Status, truncateForLog(respBody))
	}

	var apiResp geminiResponse
	if err := json.Unmarshal(respBody, &apiResp); err != nil {
		return ports.DigestOutput{}, fmt.Errorf("decode gemini response: %w", err)
	}
	if apiResp.Error != nil {
		return ports.DigestOutput{}, fmt.Errorf("gemini error %d: %s", apiResp.Error.Code, apiResp.Error.Message)
	}
	if len(apiResp.Candidates) == 0 || len(apiResp.Candidates[0].Content.Parts) == 0 {
		return ports.DigestOutput{}, fmt.Errorf("gemini returned no candidates")
	}

	return parseDigest(apiResp.Candidates[0].Content.Parts[0].Text)
}

func parseDigest(text string) (ports.DigestOutput, error) {
	var digest digestJSON
	if err := json.Unmarshal([]byte(stripFences(text)), &digest); err != nil {
		return ports.DigestOutput{}, fmt.Errorf("parse digest JSON: %w", err)
	}

	if strings.TrimSpace(digest.Title) == "" || strings.TrimSpace(digest.Summary) == "" {
		return ports.DigestOutput{}, fmt.Errorf("digest missing title or summary")
	}

	return ports.DigestOutput{
		Title:   strings.TrimSpace(digest.Title),
		Summary: strings.TrimSpace(digest.Summary),
	}, nil
}

// stripFences removes markdown code fences some models wrap JSON in.
func stripFences(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}

func truncateForLog(body []byte) string {
	const max = 512
	text := strings.TrimSpace(string(body))
	if len(text) > max {
		return text[:max]
	}
	return text
}
