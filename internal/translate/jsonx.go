package translate

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
)

var trailingCommaRe = regexp.MustCompile(`,\s*}`)

// DecodeLooseObject extracts a string-valued JSON object from a model
// response that may carry prose or code fences around it. It takes the
// outermost brace-delimited span and strips trailing commas before closing
// braces, then decodes strictly.
func DecodeLooseObject(raw string) (map[string]string, error) {
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start == -1 || end < start {
		return nil, fmt.Errorf("no JSON object found in response: %s", truncate(raw, 120))
	}
	span := trailingCommaRe.ReplaceAllString(raw[start:end+1], "}")

	var out map[string]string
	if err := json.Unmarshal([]byte(span), &out); err != nil {
		return nil, fmt.Errorf("decode model response: %w", err)
	}
	if out == nil {
		return nil, fmt.Errorf("model response decoded to null")
	}
	return out, nil
}

// encodeOrderedObject renders a JSON object with its keys in the given
// order. encoding/json maps would sort keys, and key order carries meaning
// here: it mirrors document reading order.
func encodeOrderedObject(pairs [][2]string) string {
	var sb strings.Builder
	sb.WriteByte('{')
	for i, kv := range pairs {
		if i > 0 {
			sb.WriteString(",\n")
		}
		k, _ := json.Marshal(kv[0])
		v, _ := json.Marshal(kv[1])
		sb.Write(k)
		sb.WriteString(": ")
		sb.Write(v)
	}
	sb.WriteByte('}')
	return sb.String()
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
