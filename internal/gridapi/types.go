package gridapi

import (
	"encoding/json"
	"strconv"
	"strings"
	"time"
)

// Config holds grid API connection settings.
type Config struct {
	BaseURL        string `yaml:"base_url"`
	APIToken       string `yaml:"api_token"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
}

// Row is one raw record as returned by the grid API. Column types are not
// stable across tables (ids arrive as strings or numbers depending on which
// integration wrote the row), so values are extracted through the typed
// helpers below rather than direct struct decoding.
type Row map[string]any

// listResponse is the page envelope every table endpoint returns. Total is
// advisory only; the fetch loop never uses it as a termination signal.
type listResponse struct {
	Rows  []Row  `json:"rows"`
	Total *int64 `json:"total,omitempty"`
}

// getString extracts a column as a string, converting numeric values so that
// ids from different sources always compare as strings.
func getString(row Row, key string) string {
	v, ok := row[key]
	if !ok || v == nil {
		return ""
	}
	switch val := v.(type) {
	case string:
		return val
	case float64:
		if val == float64(int64(val)) {
			return strconv.FormatInt(int64(val), 10)
		}
		return strconv.FormatFloat(val, 'f', -1, 64)
	case int64:
		return strconv.FormatInt(val, 10)
	case json.Number:
		return val.String()
	case bool:
		return strconv.FormatBool(val)
	default:
		return ""
	}
}

// getInt extracts a column as an int, tolerating float, string, and
// json.Number encodings. Missing or unparseable values yield zero.
func getInt(row Row, key string) int {
	v, ok := row[key]
	if !ok || v == nil {
		return 0
	}
	switch val := v.(type) {
	case float64:
		return int(val)
	case int64:
		return int(val)
	case int:
		return val
	case json.Number:
		n, err := val.Int64()
		if err != nil {
			return 0
		}
		return int(n)
	case string:
		n, err := strconv.Atoi(strings.TrimSpace(val))
		if err != nil {
			return 0
		}
		return n
	default:
		return 0
	}
}

// getTime extracts a column as a timestamp. The grid stores RFC3339 for event
// timestamps and bare dates for rollup rows; both parse here.
func getTime(row Row, key string) time.Time {
	s := getString(row, key)
	if s == "" {
		return time.Time{}
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02 15:04:05", "2006-01-02"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}

// getDate extracts a column as a YYYY-MM-DD date key, truncating longer
// timestamp strings to their date part.
func getDate(row Row, key string) string {
	s := strings.TrimSpace(getString(row, key))
	if len(s) > 10 {
		s = s[:10]
	}
	return s
}

// getRaw re-encodes a structured column so it can be decoded later. Returns
// nil when the column is absent.
func getRaw(row Row, key string) json.RawMessage {
	v, ok := row[key]
	if !ok || v == nil {
		return nil
	}
	// A string column may itself hold serialized JSON.
	if s, isStr := v.(string); isStr {
		return json.RawMessage(s)
	}
	data, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	return data
}
