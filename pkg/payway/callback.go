package payway

import (
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"
)

// Gateway status codes carried in pushbacks and status queries.
const (
	StatusCodeApproved  = "00"
	StatusCodePending   = "01"
	StatusCodeDeclined  = "02"
	StatusCodeCancelled = "03"
)

// CallbackPayload is a parsed pushback. Fields keeps every received value,
// known or not, for storage and forensic logging.
type CallbackPayload struct {
	TranID     string
	StatusCode string
	APV        string
	Hash       string
	Fields     map[string]string
}

// statusKeys lists the spellings the status code arrives under, most specific first.
var statusKeys = []string{"status[code]", "status.code", "status_code", "status"}

// ParseCallbackForm reads a form-encoded pushback. Unknown fields are kept.
func ParseCallbackForm(values url.Values) CallbackPayload {
	fields := make(map[string]string, len(values))
	for key := range values {
		fields[key] = values.Get(key)
	}
	payload := CallbackPayload{
		TranID: strings.TrimSpace(values.Get("tran_id")),
		APV:    strings.TrimSpace(values.Get("apv")),
		Hash:   strings.TrimSpace(values.Get("hash")),
		Fields: fields,
	}
	for _, key := range statusKeys {
		if v := strings.TrimSpace(values.Get(key)); v != "" {
			payload.StatusCode = normalizeStatusCode(v)
			break
		}
	}
	return payload
}

// ParseCallbackJSON reads a JSON pushback where status is either an object
// with a code or a bare value.
func ParseCallbackJSON(body []byte) (CallbackPayload, error) {
	var raw map[string]any
	if err := json.Unmarshal(body, &raw); err != nil {
		return CallbackPayload{}, fmt.Errorf("decode callback: %w", err)
	}
	fields := make(map[string]string, len(raw))
	flatten("", raw, fields)

	payload := CallbackPayload{
		TranID: strings.TrimSpace(fields["tran_id"]),
		APV:    strings.TrimSpace(fields["apv"]),
		Hash:   strings.TrimSpace(fields["hash"]),
		Fields: fields,
	}
	for _, key := range statusKeys {
		if v := strings.TrimSpace(fields[key]); v != "" {
			payload.StatusCode = normalizeStatusCode(v)
			break
		}
	}
	return payload, nil
}

func flatten(prefix string, value map[string]any, out map[string]string) {
	for key, v := range value {
		name := key
		if prefix != "" {
			name = prefix + "." + key
		}
		if nested, ok := v.(map[string]any); ok {
			flatten(name, nested, out)
			continue
		}
		out[name] = stringify(v)
	}
}

func stringify(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	default:
		data, err := json.Marshal(t)
		if err != nil {
			return fmt.Sprint(t)
		}
		return string(data)
	}
}

// normalizeStatusCode turns 0, "0" and "00" into the two-digit form.
func normalizeStatusCode(v any) string {
	s := strings.TrimSpace(stringify(v))
	if len(s) == 1 && s[0] >= '0' && s[0] <= '9' {
		return "0" + s
	}
	return s
}
