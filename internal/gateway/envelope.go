package gateway

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// decodeList accepts a bare JSON array or an object carrying the array under
// one of keys, "content" or "data". A "data" object is searched one level
// down. Unrecognized shapes decode to an empty list.
func decodeList[T any](body []byte, keys ...string) ([]T, error) {
	raw, ok := findList(bytes.TrimSpace(body), keys, true)
	if !ok {
		return []T{}, nil
	}
	var out []T
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("gateway: decode list: %w", err)
	}
	if out == nil {
		out = []T{}
	}
	return out, nil
}

func findList(body []byte, keys []string, descend bool) (json.RawMessage, bool) {
	if len(body) == 0 {
		return nil, false
	}
	if body[0] == '[' {
		return body, true
	}
	if body[0] != '{' {
		return nil, false
	}
	var env map[string]json.RawMessage
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, false
	}
	for _, key := range append(append([]string{}, keys...), "content", "data") {
		v := bytes.TrimSpace(env[key])
		if len(v) > 0 && v[0] == '[' {
			return v, true
		}
	}
	if descend {
		if data := bytes.TrimSpace(env["data"]); len(data) > 0 && data[0] == '{' {
			return findList(data, keys, false)
		}
	}
	return nil, false
}

// decodeItem accepts the record itself or an object wrapping it under one
// of keys or "data".
func decodeItem[T any](body []byte, keys ...string) (T, error) {
	var out T
	body = bytes.TrimSpace(body)
	if len(body) == 0 {
		return out, nil
	}
	if body[0] == '{' {
		var env map[string]json.RawMessage
		if err := json.Unmarshal(body, &env); err == nil {
			for _, key := range append(append([]string{}, keys...), "data") {
				v := bytes.TrimSpace(env[key])
				if len(v) > 0 && v[0] == '{' {
					body = v
					break
				}
			}
		}
	}
	if err := json.Unmarshal(body, &out); err != nil {
		return out, fmt.Errorf("gateway: decode record: %w", err)
	}
	return out, nil
}

// errorMessage extracts a human readable message from an error body.
func errorMessage(body []byte) string {
	var env struct {
		Message string `json:"message"`
		Error   string `json:"error"`
		Detail  string `json:"detail"`
	}
	if err := json.Unmarshal(body, &env); err == nil {
		for _, m := range []string{env.Message, env.Error, env.Detail} {
			if m = strings.TrimSpace(m); m != "" {
				return m
			}
		}
	}
	text := strings.TrimSpace(string(body))
	if len(text) > 200 {
		text = text[:200]
	}
	return text
}

var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05",
}

func parseTime(v string) time.Time {
	v = strings.TrimSpace(v)
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, v); err == nil {
			return t
		}
	}
	return time.Time{}
}
