package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"html"
	"io"
	"net/http"
	"strings"
	"time"

	"pages-deployer/apperrors"
	"pages-deployer/config"
	"pages-deployer/metrics"
	"pages-deployer/models"
	"pages-deployer/utils"

	"go.uber.org/zap"
)

const (
	generationTimeout = 60 * time.Second
	titleMaxRunes     = 60
	generationPrompt  = "You are to write a minimal working GitHub Pages app."
)

// FileSet maps a relative, slash-separated path to the file's text.
type FileSet map[string]string

// Generator turns a brief into a FileSet, through a chat-completion backend when one
// is configured and a deterministic page otherwise.
type Generator struct {
	apiKey     string
	baseURL    string
	model      string
	httpClient *http.Client
	log        *zap.Logger
	metrics    *metrics.Metrics
}

func NewGenerator(cfg *config.Config, log *zap.Logger, m *metrics.Metrics) *Generator {
	g := &Generator{
		model:      cfg.LLMModel,
		httpClient: &http.Client{Timeout: generationTimeout},
		log:        log.Named("generator"),
		metrics:    m,
	}
	if cfg.LLMConfigured() {
		g.apiKey = cfg.LLMAPIKey
		g.baseURL = cfg.LLMBaseURL
	}
	if g.model == "" {
		g.model = "gpt-4o-mini"
	}
	return g
}

// Generate never fails: backend problems produce the fallback page.
func (g *Generator) Generate(ctx context.Context, brief string, attachments []models.Attachment) FileSet {
	title := utils.Truncate(brief, titleMaxRunes)

	if g.apiKey == "" || g.baseURL == "" {
		g.metrics.Generated("fallback_unconfigured")
		return fallbackFiles(brief, title, "Generated fallback README.")
	}

	content, err := g.complete(ctx, buildPrompt(brief, attachments))
	if err != nil {
		g.log.Warn("generation failed, using fallback", zap.Error(err))
		g.metrics.Generated("fallback_failed")
		return fallbackFiles(brief, title, "LLM call failed; fallback README.")
	}

	g.metrics.Generated("llm")
	return FileSet{
		"index.html": content,
		"README.md":  fmt.Sprintf("# %s\n\nGenerated by LLM.\n", title),
	}
}

func buildPrompt(brief string, attachments []models.Attachment) string {
	var b strings.Builder
	b.WriteString(generationPrompt)
	b.WriteString("\n\nBRIEF:\n")
	b.WriteString(brief)
	b.WriteString("\n\nATTACHMENTS:\n")
	if len(attachments) == 0 {
		b.WriteString("(none)\n")
	}
	for _, a := range attachments {
		fmt.Fprintf(&b, "- %s: %s\n", a.Name, a.URL)
	}
	return b.String()
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
}

func (g *Generator) complete(ctx context.Context, prompt string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, generationTimeout)
	defer cancel()

	payload, err := json.Marshal(chatRequest{
		Model:    g.model,
		Messages: []chatMessage{{Role: "user", Content: prompt}},
	})
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+"/chat/completions", bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+g.apiKey)

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return "", apperrors.Wrap(apperrors.ErrGeneration, "request failed", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", apperrors.Wrap(apperrors.ErrGeneration, "read response", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", apperrors.New(apperrors.ErrGeneration,
			fmt.Sprintf("generation backend returned %d: %s", resp.StatusCode, utils.Truncate(string(body), 200)))
	}

	c, err := decodeCompletion(body)
	if err != nil {
		return "", apperrors.Wrap(apperrors.ErrGeneration, "decode response", err)
	}
	g.log.Debug("generation completed", zap.Stringer("shape", c.Kind), zap.Int("bytes", len(c.Content)))
	return c.Content, nil
}

func fallbackFiles(brief, title, readmeNote string) FileSet {
	index := fmt.Sprintf(`<!doctype html>
<html>
<head>
  <meta charset="utf-8" />
  <title>%s</title>
</head>
<body>
  <h1>Generated App</h1>
  <pre>%s</pre>
</body>
</html>
`, html.EscapeString(title), html.EscapeString(brief))

	return FileSet{
		"index.html": index,
		"README.md":  fmt.Sprintf("# %s\n\n%s\n", title, readmeNote),
	}
}
