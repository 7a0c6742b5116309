package generative

import (
	"encoding/json"
	"strings"
)

// Shape names which response layout produced a Completion.
type Shape string

const (
	ShapeCandidates   Shape = "candidates"
	ShapeOutputText   Shape = "output_text"
	ShapeOutput       Shape = "output"
	ShapeResponse     Shape = "response"
	ShapeBareString   Shape = "bare_string"
	ShapeUnrecognized Shape = "unrecognized"
)

type Completion struct {
	Shape Shape
	Text  string
}

func (c Completion) OK() bool {
	return c.Shape != ShapeUnrecognized && strings.TrimSpace(c.Text) != ""
}

type part struct {
	Text string `json:"text"`
}

// content is either a plain string or {"parts":[{"text":...}]}.
type content struct {
	text string
}

func (c *content) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		c.text = s
		return nil
	}
	var obj struct {
		Parts []part `json:"parts"`
		Text  string `json:"text"`
	}
	if err := json.Unmarshal(b, &obj); err != nil {
		// Unknown content layouts read as empty rather than failing the envelope.
		return nil
	}
	if obj.Text != "" {
		c.text = obj.Text
		return nil
	}
	var sb strings.Builder
	for _, p := range obj.Parts {
		sb.WriteString(p.Text)
	}
	c.text = sb.String()
	return nil
}

type candidate struct {
	Content *content `json:"content"`
	Output  string   `json:"output"`
}

type envelope struct {
	Candidates []candidate       `json:"candidates"`
	OutputText *string           `json:"output_text"`
	Output     []json.RawMessage `json:"output"`
	Response   *string           `json:"response"`
}

// ParseCompletion probes the known response layouts in priority order and
// returns the first one that carries non-empty text.
func ParseCompletion(raw []byte) Completion {
	trimmed := strings.TrimSpace(string(raw))
	if trimmed == "" {
		return Completion{Shape: ShapeUnrecognized}
	}
	if strings.HasPrefix(trimmed, `"`) {
		var s string
		if err := json.Unmarshal([]byte(trimmed), &s); err == nil && strings.TrimSpace(s) != "" {
			return Completion{Shape: ShapeBareString, Text: strings.TrimSpace(s)}
		}
		return Completion{Shape: ShapeUnrecognized}
	}

	var env envelope
	if err := json.Unmarshal([]byte(trimmed), &env); err != nil {
		return Completion{Shape: ShapeUnrecognized}
	}
	if len(env.Candidates) > 0 {
		c := env.Candidates[0]
		text := c.Output
		if c.Content != nil && strings.TrimSpace(c.Content.text) != "" {
			text = c.Content.text
		}
		if t := strings.TrimSpace(text); t != "" {
			return Completion{Shape: ShapeCandidates, Text: t}
		}
	}
	if env.OutputText != nil {
		if t := strings.TrimSpace(*env.OutputText); t != "" {
			return Completion{Shape: ShapeOutputText, Text: t}
		}
	}
	if len(env.Output) > 0 {
		if t := strings.TrimSpace(outputItemText(env.Output[0])); t != "" {
			return Completion{Shape: ShapeOutput, Text: t}
		}
	}
	if env.Response != nil {
		if t := strings.TrimSpace(*env.Response); t != "" {
			return Completion{Shape: ShapeResponse, Text: t}
		}
	}
	return Completion{Shape: ShapeUnrecognized}
}

// outputItemText reads output[0] as a string, {"content": string|parts} or
// {"content": [{"text": ...}]}.
func outputItemText(raw json.RawMessage) string {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var item struct {
		Content json.RawMessage `json:"content"`
		Text    string          `json:"text"`
	}
	if err := json.Unmarshal(raw, &item); err != nil {
		return ""
	}
	if item.Text != "" {
		return item.Text
	}
	if len(item.Content) == 0 {
		return ""
	}
	var list []part
	if err := json.Unmarshal(item.Content, &list); err == nil {
		var sb strings.Builder
		for _, p := range list {
			sb.WriteString(p.Text)
		}
		return sb.String()
	}
	var c content
	_ = c.UnmarshalJSON(item.Content)
	return c.text
}
