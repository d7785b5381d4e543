package apiclient

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
)

// Result is the normalized outcome of an operation call. Failures never
// surface as errors; they are encoded as a non-OK result whose Data carries a
// "detail" message.
type Result struct {
	Status int  `json:"status"`
	Data   any  `json:"data"`
	OK     bool `json:"ok"`
}

// Detail returns the "detail" message of a failed result.
func (r Result) Detail() string {
	if data, ok := r.Data.(map[string]any); ok {
		switch detail := data["detail"].(type) {
		case string:
			return detail
		case nil:
		default:
			encoded, err := json.Marshal(detail)
			if err == nil {
				return string(encoded)
			}
		}
	}
	return ""
}

// Invoke calls {base}{path} with the JSON encoded body.
func (c *Client) Invoke(ctx context.Context, method, path string, body any) Result {
	method = strings.ToUpper(strings.TrimSpace(method))
	if method == "" {
		method = http.MethodPost
	}
	target, err := c.endpoint(path)
	if err != nil {
		return failure(err.Error())
	}
	if method == http.MethodGet || method == http.MethodHead {
		body = nil
	}

	resp, err := c.do(ctx, method, target, body)
	if err != nil {
		return failure(connectError(c.base, err).Error())
	}

	result := Result{
		Status: resp.status,
		OK:     resp.status >= 200 && resp.status < 300,
	}
	if len(strings.TrimSpace(string(resp.body))) == 0 {
		return result
	}
	var decoded any
	if err := json.Unmarshal(resp.body, &decoded); err != nil {
		result.Data = map[string]any{"detail": string(resp.body)}
		return result
	}
	result.Data = decoded
	return result
}

func failure(message string) Result {
	return Result{
		Status: http.StatusInternalServerError,
		Data:   map[string]any{"detail": message},
		OK:     false,
	}
}

// FieldErrors extracts validation errors shaped as a list of {"loc", "msg"}
// entries from the "detail" of a failed result, keyed by dotted location.
func (r Result) FieldErrors() map[string][]string {
	data, ok := r.Data.(map[string]any)
	if !ok {
		return nil
	}
	entries, ok := data["detail"].([]any)
	if !ok {
		return nil
	}
	out := make(map[string][]string)
	for _, entry := range entries {
		item, ok := entry.(map[string]any)
		if !ok {
			continue
		}
		msg, _ := item["msg"].(string)
		if strings.TrimSpace(msg) == "" {
			continue
		}
		loc, _ := item["loc"].([]any)
		segments := make([]string, 0, len(loc))
		for _, part := range loc {
			switch typed := part.(type) {
			case string:
				segments = append(segments, typed)
			case float64:
				segments = append(segments, strconv.Itoa(int(typed)))
			}
		}
		path := strings.Join(segments, ".")
		out[path] = append(out[path], msg)
	}
	if len(out) == 0 {
		return nil
	}
	return out
}
