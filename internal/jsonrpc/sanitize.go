package jsonrpc

import (
	"bytes"
	"encoding/json"
)

// SchemaObjectResult marks a tool result whose payload travels in
// structuredContent rather than content.
const SchemaObjectResult = "v2-object-result"

// schemaShort is the bare version marker some clients send.
const schemaShort = "v2"

// Sanitize drops an empty "content" array from every message whose result is
// marked as an object result. It accepts a single message or a batch, and
// follows nested "responses" arrays. Any failure returns payload unchanged.
// The result is a new slice whenever something was removed; payload itself
// is never modified.
func Sanitize(payload []byte) (out []byte) {
	defer func() {
		if recover() != nil {
			out = payload
		}
	}()

	res, changed, err := sanitizeValue(bytes.TrimSpace(payload))
	if err != nil || !changed {
		return payload
	}
	return res
}

func sanitizeValue(raw json.RawMessage) (json.RawMessage, bool, error) {
	if len(raw) == 0 {
		return raw, false, nil
	}
	switch raw[0] {
	case '[':
		return sanitizeBatch(raw)
	case '{':
		return sanitizeMessage(raw)
	default:
		return raw, false, nil
	}
}

func sanitizeBatch(raw json.RawMessage) (json.RawMessage, bool, error) {
	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		return raw, false, err
	}

	changed := false
	for i, item := range items {
		if len(item) == 0 || item[0] != '{' {
			continue
		}
		res, c, err := sanitizeMessage(item)
		if err != nil {
			return raw, false, err
		}
		if c {
			items[i] = res
			changed = true
		}
	}
	if !changed {
		return raw, false, nil
	}

	out, err := encode(items)
	return out, err == nil, err
}

func sanitizeMessage(raw json.RawMessage) (json.RawMessage, bool, error) {
	var msg map[string]json.RawMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		return raw, false, err
	}

	changed := false
	if result, ok := msg["result"]; ok {
		res, c, err := sanitizeResult(result)
		if err != nil {
			return raw, false, err
		}
		if c {
			msg["result"] = res
			changed = true
		}
	}
	if nested, ok := msg["responses"]; ok && len(nested) > 0 && nested[0] == '[' {
		res, c, err := sanitizeBatch(nested)
		if err != nil {
			return raw, false, err
		}
		if c {
			msg["responses"] = res
			changed = true
		}
	}
	if !changed {
		return raw, false, nil
	}

	out, err := encode(msg)
	return out, err == nil, err
}

func sanitizeResult(raw json.RawMessage) (json.RawMessage, bool, error) {
	if len(raw) == 0 || raw[0] != '{' {
		return raw, false, nil
	}

	var result map[string]json.RawMessage
	if err := json.Unmarshal(raw, &result); err != nil {
		return raw, false, err
	}

	var schema string
	if err := json.Unmarshal(result["__schema"], &schema); err != nil {
		return raw, false, nil
	}
	if schema != SchemaObjectResult && schema != schemaShort {
		return raw, false, nil
	}

	content, ok := result["content"]
	if !ok || !isEmptyArray(content) {
		return raw, false, nil
	}
	delete(result, "content")

	out, err := encode(result)
	return out, err == nil, err
}

func isEmptyArray(raw json.RawMessage) bool {
	if len(raw) == 0 || raw[0] != '[' {
		return false
	}
	var items []json.RawMessage
	return json.Unmarshal(raw, &items) == nil && len(items) == 0
}

// encode marshals without HTML escaping so untouched string values keep
// their original bytes.
func encode(v any) (json.RawMessage, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}
