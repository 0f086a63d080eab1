package export

import (
	"bytes"
	"fmt"
	"math"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// entry is one top-level key of an exported mapping.
type entry struct {
	key   string
	value *yaml.Node
}

func mappingNode(pairs ...interface{}) *yaml.Node {
	n := &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
	for i := 0; i+1 < len(pairs); i += 2 {
		n.Content = append(n.Content, strNode(pairs[i].(string)), pairs[i+1].(*yaml.Node))
	}
	return n
}

func strNode(s string) *yaml.Node {
	return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: s}
}

func optStrNode(s *string) *yaml.Node {
	if s == nil {
		return nullNode()
	}
	return strNode(*s)
}

func nullNode() *yaml.Node {
	return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!null", Value: "null"}
}

func floatNode(f float64) *yaml.Node {
	return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!float", Value: formatFloat(f)}
}

func listNode(items []string) *yaml.Node {
	n := &yaml.Node{Kind: yaml.SequenceNode, Tag: "!!seq"}
	if len(items) == 0 {
		n.Style = yaml.FlowStyle
	}
	for _, it := range items {
		n.Content = append(n.Content, strNode(it))
	}
	return n
}

// formatFloat renders the shortest representation that round-trips and
// always carries a decimal point, so 10 is written as 10.0.
func formatFloat(f float64) string {
	switch {
	case math.IsNaN(f):
		return ".nan"
	case math.IsInf(f, 1):
		return ".inf"
	case math.IsInf(f, -1):
		return "-.inf"
	}
	if abs := math.Abs(f); abs != 0 && (abs < 1e-4 || abs >= 1e16) {
		s := strconv.FormatFloat(f, 'e', -1, 64)
		if mant, exp, _ := strings.Cut(s, "e"); !strings.Contains(mant, ".") {
			return mant + ".0e" + exp
		}
		return s
	}
	s := strconv.FormatFloat(f, 'f', -1, 64)
	if !strings.Contains(s, ".") {
		s += ".0"
	}
	return s
}

// encodeEntries writes a block mapping with four-space indentation and one
// blank line after each top-level entry. An empty mapping is written as {}.
func encodeEntries(entries []entry) ([]byte, error) {
	var buf bytes.Buffer
	if len(entries) == 0 {
		buf.WriteString("{}\n")
		return buf.Bytes(), nil
	}
	for _, e := range entries {
		enc := yaml.NewEncoder(&buf)
		enc.SetIndent(4)
		if err := enc.Encode(mappingNode(e.key, e.value)); err != nil {
			return nil, fmt.Errorf("failed to encode %q: %w", e.key, err)
		}
		if err := enc.Close(); err != nil {
			return nil, err
		}
		buf.WriteByte('\n')
	}
	return buf.Bytes(), nil
}
