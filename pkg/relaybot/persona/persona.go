// Package persona loads the bot's persona document and renders it into the
// system prompt sent with every completion request.
package persona

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// ErrPersonaMissing is returned together with an empty Document when the
// persona file does not exist. Callers log it and keep running.
var ErrPersonaMissing = errors.New("persona file not found")

// Document is the structured persona description. Every field is optional.
type Document struct {
	Name         string     `json:"name" yaml:"name"`
	Introduction string     `json:"introduction" yaml:"introduction"`
	Bio          StringList `json:"bio" yaml:"bio"`
	Lore         StringList `json:"lore" yaml:"lore"`
	Topics       StringList `json:"topics" yaml:"topics"`
	Knowledge    StringList `json:"knowledge" yaml:"knowledge"`
	Style        Style      `json:"style" yaml:"style"`
	Adjectives   StringList `json:"adjectives" yaml:"adjectives"`
	Links        StringList `json:"links" yaml:"links"`
	Task         StringList `json:"task" yaml:"task"`
	Greeting     string     `json:"greeting,omitempty" yaml:"greeting,omitempty"`

	// Credentials may be shipped inside the persona file. They are never
	// rendered into the prompt.
	Credentials Credentials `json:"-" yaml:"-"`
}

// Style holds general and chat-specific style guidelines.
type Style struct {
	All  StringList `json:"all" yaml:"all"`
	Chat StringList `json:"chat" yaml:"chat"`
}

// Credentials are the secrets a persona file may carry at its top level.
type Credentials struct {
	APIKey        string `json:"OPENROUTER_API_KEY" yaml:"OPENROUTER_API_KEY"`
	DiscordToken  string `json:"DISCORD_BOT_TOKEN" yaml:"DISCORD_BOT_TOKEN"`
	TelegramToken string `json:"TELEGRAM_BOT_TOKEN" yaml:"TELEGRAM_BOT_TOKEN"`
}

// StringList is an ordered list of strings. When decoding it accepts either a
// single string or a list, so persona files can write `knowledge: "..."` or
// `knowledge: ["...", "..."]` interchangeably.
type StringList []string

// UnmarshalJSON implements json.Unmarshaler.
func (l *StringList) UnmarshalJSON(data []byte) error {
	trimmed := strings.TrimSpace(string(data))
	if trimmed == "null" {
		*l = nil
		return nil
	}
	if strings.HasPrefix(trimmed, "\"") {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*l = fromScalar(s)
		return nil
	}
	var items []string
	if err := json.Unmarshal(data, &items); err != nil {
		return fmt.Errorf("expected string or list of strings: %w", err)
	}
	*l = items
	return nil
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (l *StringList) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.ScalarNode:
		if node.Tag == "!!null" {
			*l = nil
			return nil
		}
		*l = fromScalar(node.Value)
		return nil
	case yaml.SequenceNode:
		var items []string
		if err := node.Decode(&items); err != nil {
			return err
		}
		*l = items
		return nil
	default:
		return fmt.Errorf("line %d: expected string or list of strings", node.Line)
	}
}

func fromScalar(s string) StringList {
	if s == "" {
		return nil
	}
	return StringList{s}
}

// Load reads a persona document from path. JSON is the default format; files
// ending in .yaml or .yml are parsed as YAML.
//
// A missing file yields an empty Document and ErrPersonaMissing. Any other
// read or parse error is returned with a nil Document.
func Load(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return &Document{}, fmt.Errorf("%s: %w", path, ErrPersonaMissing)
		}
		return nil, fmt.Errorf("reading persona file: %w", err)
	}
	doc, err := Parse(data, formatFor(path))
	if err != nil {
		return nil, fmt.Errorf("parsing persona file %s: %w", path, err)
	}
	return doc, nil
}

// Parse decodes a persona document. format is "json" or "yaml".
func Parse(data []byte, format string) (*Document, error) {
	doc := &Document{}
	var err error
	switch format {
	case "yaml":
		if err = yaml.Unmarshal(data, doc); err == nil {
			err = yaml.Unmarshal(data, &doc.Credentials)
		}
	default:
		if err = json.Unmarshal(data, doc); err == nil {
			err = json.Unmarshal(data, &doc.Credentials)
		}
	}
	if err != nil {
		return nil, err
	}
	return doc, nil
}

func formatFor(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return "yaml"
	default:
		return "json"
	}
}
