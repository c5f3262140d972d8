package services

import (
	"encoding/json"
	"errors"
	"strings"
)

// completionKind tells which shape of chat-completion response produced the text.
type completionKind int

const (
	// completionMessage: choices[0].message is an object with a content string.
	completionMessage completionKind = iota
	// completionText: choices[0].message is a string, or choices[0].text / top-level text is set.
	completionText
	// completionRaw: nothing recognizable; the whole body is used.
	completionRaw
)

func (k completionKind) String() string {
	switch k {
	case completionMessage:
		return "message"
	case completionText:
		return "text"
	default:
		return "raw"
	}
}

type completion struct {
	Kind    completionKind
	Content string
}

type completionBody struct {
	Choices []struct {
		Message json.RawMessage `json:"message"`
		Text    *string         `json:"text"`
	} `json:"choices"`
	Text *string `json:"text"`
}

// decodeCompletion extracts the generated text from a chat-completion response body.
// A body that is not a JSON object is an error; every JSON object decodes to one of
// the three variants.
func decodeCompletion(body []byte) (completion, error) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(body, &raw); err != nil {
		return completion{}, err
	}
	if raw == nil {
		return completion{}, errors.New("completion body is null")
	}

	var cb completionBody
	// Shapes we do not model (e.g. choices as a string) fall through to raw.
	_ = json.Unmarshal(body, &cb)

	if len(cb.Choices) > 0 {
		choice := cb.Choices[0]
		if content, kind, ok := messageContent(choice.Message); ok {
			return completion{Kind: kind, Content: content}, nil
		}
		if choice.Text != nil && *choice.Text != "" {
			return completion{Kind: completionText, Content: *choice.Text}, nil
		}
	}
	if cb.Text != nil && *cb.Text != "" {
		return completion{Kind: completionText, Content: *cb.Text}, nil
	}
	return completion{Kind: completionRaw, Content: string(body)}, nil
}

func messageContent(msg json.RawMessage) (string, completionKind, bool) {
	trimmed := strings.TrimSpace(string(msg))
	if trimmed == "" || trimmed == "null" {
		return "", 0, false
	}

	var s string
	if err := json.Unmarshal(msg, &s); err == nil {
		return s, completionText, s != ""
	}

	var structured struct {
		Content json.RawMessage `json:"content"`
	}
	if err := json.Unmarshal(msg, &structured); err != nil {
		return "", 0, false
	}
	var content string
	if err := json.Unmarshal(structured.Content, &content); err == nil && content != "" {
		return content, completionMessage, true
	}
	// Some providers return content as a list of typed parts.
	var parts []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	}
	if err := json.Unmarshal(structured.Content, &parts); err == nil {
		var b strings.Builder
		for _, p := range parts {
			b.WriteString(p.Text)
		}
		if b.Len() > 0 {
			return b.String(), completionMessage, true
		}
	}
	return "", 0, false
}
