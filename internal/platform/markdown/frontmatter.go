// Package markdown reads and writes vault notes: a YAML frontmatter header
// followed by a free-form body that may contain generated blocks.
package markdown

import (
	"bytes"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

const separator = "---\n"

// Field is one frontmatter entry. Fields render in the order given.
type Field struct {
	Key   string
	Value any
}

// SplitFrontmatter returns the decoded header and the body after it. Notes
// without a header yield an empty map and the whole content as body. CRLF
// line endings are accepted.
func SplitFrontmatter(content string) (map[string]any, string, error) {
	content = strings.ReplaceAll(content, "\r\n", "\n")
	if !strings.HasPrefix(content, separator) {
		return map[string]any{}, content, nil
	}
	rest := strings.TrimPrefix(content, separator)
	var raw, body string
	if idx := strings.Index(rest, "\n---\n"); idx >= 0 {
		raw, body = rest[:idx], rest[idx+len("\n---\n"):]
	} else if strings.HasSuffix(rest, "\n---") {
		raw = strings.TrimSuffix(rest, "\n---")
	} else {
		return nil, "", fmt.Errorf("invalid frontmatter: missing closing separator")
	}

	decoded := map[string]any{}
	if err := yaml.Unmarshal([]byte(raw), &decoded); err != nil {
		return nil, "", fmt.Errorf("unmarshal frontmatter: %w", err)
	}
	return decoded, body, nil
}

// RenderFrontmatter writes fields as a YAML header above body. Fields with a
// nil value are left out.
func RenderFrontmatter(fields []Field, body string) (string, error) {
	header := &yaml.Node{Kind: yaml.MappingNode}
	for _, f := range fields {
		if f.Value == nil {
			continue
		}
		var value yaml.Node
		if err := value.Encode(f.Value); err != nil {
			return "", fmt.Errorf("encode frontmatter %s: %w", f.Key, err)
		}
		header.Content = append(header.Content,
			&yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: f.Key},
			&value,
		)
	}
	raw, err := yaml.Marshal(header)
	if err != nil {
		return "", fmt.Errorf("marshal frontmatter: %w", err)
	}
	buf := bytes.Buffer{}
	buf.WriteString(separator)
	if len(header.Content) > 0 {
		buf.Write(raw)
	}
	buf.WriteString(separator)
	if !strings.HasPrefix(body, "\n") {
		buf.WriteString("\n")
	}
	buf.WriteString(body)
	return buf.String(), nil
}
