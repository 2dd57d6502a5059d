package audit

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
)

// Record is one audit entry for a completed request. Timestamps are
// UTC RFC3339Nano so entries from different instances collate.
type Record struct {
	ID           string            `json:"id"`
	Timestamp    time.Time         `json:"timestamp"`
	Method       string            `json:"method"`
	Path         string            `json:"path"`
	Query        string            `json:"query,omitempty"`
	StatusCode   int               `json:"status_code"`
	DurationMS   float64           `json:"duration_ms"`
	RequestSize  int64             `json:"request_size,omitempty"`
	ResponseSize int64             `json:"response_size,omitempty"`
	UserID       string            `json:"user_id,omitempty"`
	TenantID     string            `json:"tenant_id,omitempty"`
	ClientIP     string            `json:"client_ip,omitempty"`
	UserAgent    string            `json:"user_agent,omitempty"`
	Headers      map[string]string `json:"headers,omitempty"`
	Body         string            `json:"body,omitempty"`
	Error        string            `json:"error,omitempty"`
}

// NewRecord starts a record with a fresh id and timestamp.
func NewRecord() *Record {
	return &Record{
		ID:        uuid.NewString(),
		Timestamp: time.Now().UTC(),
	}
}

// Flatten renders the record as string key-values for stream backends.
func (r *Record) Flatten() map[string]interface{} {
	out := map[string]interface{}{
		"id":          r.ID,
		"timestamp":   r.Timestamp.UTC().Format(time.RFC3339Nano),
		"method":      r.Method,
		"path":        r.Path,
		"status_code": strconv.Itoa(r.StatusCode),
		"duration_ms": strconv.FormatFloat(r.DurationMS, 'f', 3, 64),
	}
	if r.Query != "" {
		out["query"] = r.Query
	}
	if r.RequestSize > 0 {
		out["request_size"] = strconv.FormatInt(r.RequestSize, 10)
	}
	if r.ResponseSize > 0 {
		out["response_size"] = strconv.FormatInt(r.ResponseSize, 10)
	}
	if r.UserID != "" {
		out["user_id"] = r.UserID
	}
	if r.TenantID != "" {
		out["tenant_id"] = r.TenantID
	}
	if r.ClientIP != "" {
		out["client_ip"] = r.ClientIP
	}
	if r.UserAgent != "" {
		out["user_agent"] = r.UserAgent
	}
	if r.Body != "" {
		out["body"] = r.Body
	}
	if r.Error != "" {
		out["error"] = r.Error
	}
	if len(r.Headers) > 0 {
		headers, _ := json.Marshal(r.Headers)
		out["headers"] = string(headers)
	}
	return out
}

// FromFlat reverses Flatten.
func FromFlat(values map[string]interface{}) (*Record, error) {
	str := func(key string) string {
		if v, ok := values[key].(string); ok {
			return v
		}
		return ""
	}

	ts, err := time.Parse(time.RFC3339Nano, str("timestamp"))
	if err != nil {
		return nil, fmt.Errorf("invalid audit timestamp: %w", err)
	}
	status, err := strconv.Atoi(str("status_code"))
	if err != nil {
		return nil, fmt.Errorf("invalid audit status code: %w", err)
	}
	duration, err := strconv.ParseFloat(str("duration_ms"), 64)
	if err != nil {
		return nil, fmt.Errorf("invalid audit duration: %w", err)
	}

	requestSize, _ := strconv.ParseInt(str("request_size"), 10, 64)
	responseSize, _ := strconv.ParseInt(str("response_size"), 10, 64)

	rec := &Record{
		ID:           str("id"),
		Timestamp:    ts,
		Method:       str("method"),
		Path:         str("path"),
		Query:        str("query"),
		StatusCode:   status,
		DurationMS:   duration,
		RequestSize:  requestSize,
		ResponseSize: responseSize,
		UserID:       str("user_id"),
		TenantID:     str("tenant_id"),
		ClientIP:     str("client_ip"),
		UserAgent:    str("user_agent"),
		Body:         str("body"),
		Error:        str("error"),
	}
	if raw := str("headers"); raw != "" {
		if err := json.Unmarshal([]byte(raw), &rec.Headers); err != nil {
			return nil, fmt.Errorf("invalid audit headers: %w", err)
		}
	}
	return rec, nil
}
