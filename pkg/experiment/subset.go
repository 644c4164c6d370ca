package experiment

import (
	"fmt"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// SubsetDecoder decodes the restricted dialect some legacy experiment files
// were authored in. The grammar is deliberately narrow:
//
//   - "key: value" pairs, nested maps introduced by a key with nothing else
//     on the line and a more-indented block below it;
//   - sequences of "- " items, where an item is a bare scalar or a
//     "key: value" pair optionally continued by more-indented pairs that
//     merge into the same item;
//   - scalar coercion: true/false, null, quoted strings, numbers.
//
// It does NOT support multi-line scalars, anchors or references, flow-style
// collections, tabs, or mixed indentation. Out-of-grammar input is an
// error, never a silent mis-parse. New experiment files should use the
// default YAMLDecoder instead.
type SubsetDecoder struct{}

func (SubsetDecoder) Unmarshal(data []byte, def *Definition) error {
	doc, err := parseSubset(data)
	if err != nil {
		return err
	}
	// Funnel the generic document through the YAML mapping so field names
	// and coercions land exactly as they do on the default path.
	raw, err := yaml.Marshal(doc)
	if err != nil {
		return fmt.Errorf("re-encode document: %w", err)
	}
	return yaml.Unmarshal(raw, def)
}

type subsetLine struct {
	num    int // 1-based source line
	indent int
	text   string
}

type subsetParser struct {
	lines []subsetLine
	pos   int
}

// parseSubset decodes data into a generic map under the restricted grammar.
func parseSubset(data []byte) (map[string]any, error) {
	var lines []subsetLine
	for i, raw := range strings.Split(string(data), "\n") {
		if strings.Contains(raw, "\t") {
			return nil, fmt.Errorf("line %d: tabs are not supported", i+1)
		}
		trimmed := strings.TrimSpace(raw)
		if trimmed == "" || strings.HasPrefix(trimmed, "#") {
			continue
		}
		lines = append(lines, subsetLine{
			num:    i + 1,
			indent: len(raw) - len(strings.TrimLeft(raw, " ")),
			text:   trimmed,
		})
	}

	p := &subsetParser{lines: lines}
	if len(lines) == 0 {
		return map[string]any{}, nil
	}
	if strings.HasPrefix(lines[0].text, "- ") {
		return nil, fmt.Errorf("line %d: document root must be a map", lines[0].num)
	}
	node, err := p.parseMap(lines[0].indent)
	if err != nil {
		return nil, err
	}
	if p.pos < len(p.lines) {
		l := p.lines[p.pos]
		return nil, fmt.Errorf("line %d: unexpected indentation", l.num)
	}
	return node, nil
}

func (p *subsetParser) parseMap(indent int) (map[string]any, error) {
	node := make(map[string]any)
	for p.pos < len(p.lines) {
		l := p.lines[p.pos]
		if l.indent < indent {
			return node, nil
		}
		if l.indent > indent {
			return nil, fmt.Errorf("line %d: unexpected indentation", l.num)
		}
		if strings.HasPrefix(l.text, "- ") {
			return nil, fmt.Errorf("line %d: sequence item outside a sequence", l.num)
		}

		key, rest, ok := strings.Cut(l.text, ":")
		if !ok || strings.TrimSpace(key) == "" {
			return nil, fmt.Errorf("line %d: expected \"key: value\", got %q", l.num, l.text)
		}
		key = strings.TrimSpace(key)
		rest = strings.TrimSpace(rest)
		p.pos++

		if rest != "" {
			node[key] = coerceScalar(rest)
			continue
		}

		// A key with nothing after the colon introduces a nested block.
		if p.pos >= len(p.lines) || p.lines[p.pos].indent <= indent {
			node[key] = nil
			continue
		}
		child, err := p.parseBlock(p.lines[p.pos].indent)
		if err != nil {
			return nil, err
		}
		node[key] = child
	}
	return node, nil
}

func (p *subsetParser) parseBlock(indent int) (any, error) {
	if strings.HasPrefix(p.lines[p.pos].text, "- ") || p.lines[p.pos].text == "-" {
		return p.parseSequence(indent)
	}
	return p.parseMap(indent)
}

func (p *subsetParser) parseSequence(indent int) ([]any, error) {
	var items []any
	for p.pos < len(p.lines) {
		l := p.lines[p.pos]
		if l.indent < indent {
			return items, nil
		}
		if l.indent > indent || !strings.HasPrefix(l.text, "- ") {
			return nil, fmt.Errorf("line %d: expected \"- \" sequence item", l.num)
		}
		p.pos++

		itemText := strings.TrimSpace(strings.TrimPrefix(l.text, "- "))
		key, rest, hasColon := strings.Cut(itemText, ":")
		if !hasColon || strings.TrimSpace(key) == "" {
			items = append(items, coerceScalar(itemText))
			continue
		}

		item := map[string]any{
			strings.TrimSpace(key): coerceScalar(strings.TrimSpace(rest)),
		}
		// Continuation pairs at deeper indent merge into this item.
		if p.pos < len(p.lines) && p.lines[p.pos].indent > indent &&
			!strings.HasPrefix(p.lines[p.pos].text, "- ") {
			cont, err := p.parseMap(p.lines[p.pos].indent)
			if err != nil {
				return nil, err
			}
			for k, v := range cont {
				item[k] = v
			}
		}
		items = append(items, item)
	}
	return items, nil
}

// coerceScalar applies the dialect's scalar coercion rules.
func coerceScalar(s string) any {
	if len(s) >= 2 {
		if (s[0] == '"' && s[len(s)-1] == '"') || (s[0] == '\'' && s[len(s)-1] == '\'') {
			return s[1 : len(s)-1]
		}
	}
	switch s {
	case "true":
		return true
	case "false":
		return false
	case "null", "~", "":
		return nil
	}
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return int(n)
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return f
	}
	return s
}
