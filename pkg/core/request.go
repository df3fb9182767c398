package core

import (
	"fmt"
	"maps"
	"net/url"
	"strconv"
	"strings"
)

type Params map[string]any

// Request is a provider request before transport. Path is relative to the base URL
// and has its template placeholders already filled.
type Request struct {
	Method string `json:"method"`
	Path   string `json:"path"`
	Query  Params `json:"query,omitempty"`
	Body   Params `json:"body,omitempty"`

	// Payload is the serialized body exactly as it must be sent; nil means no body.
	Payload     []byte            `json:"-"`
	Headers     map[string]string `json:"headers,omitempty"`
	RequireAuth bool              `json:"require_auth"`

	// Op is the operation the request was built for.
	Op Operation `json:"op"`
}

func NewRequest(method, path string) *Request {
	return &Request{
		Method:  method,
		Path:    path,
		Query:   make(Params),
		Headers: make(map[string]string),
	}
}

func (r *Request) SetQuery(key string, value any) *Request {
	if r.Query == nil {
		r.Query = make(Params)
	}
	r.Query[key] = value
	return r
}

func (r *Request) SetQueryParams(params Params) *Request {
	if r.Query == nil {
		r.Query = make(Params)
	}
	maps.Copy(r.Query, params)
	return r
}

// SetBodyParam adds a field to the JSON body.
func (r *Request) SetBodyParam(key string, value any) *Request {
	if r.Body == nil {
		r.Body = make(Params)
	}
	r.Body[key] = value
	return r
}

func (r *Request) SetHeader(key, value string) *Request {
	if r.Headers == nil {
		r.Headers = make(map[string]string)
	}
	r.Headers[key] = value
	return r
}

func (r *Request) SetRequireAuth(require bool) *Request {
	r.RequireAuth = require
	return r
}

// QueryString encodes Query with keys in sorted order, or "" when empty.
func (r *Request) QueryString() string {
	if len(r.Query) == 0 {
		return ""
	}
	values := url.Values{}
	for k, v := range r.Query {
		values.Set(k, FormatParam(v))
	}
	// url.Values.Encode sorts by key.
	return values.Encode()
}

// PathWithQuery returns Path followed by "?" and the encoded query when present.
func (r *Request) PathWithQuery() string {
	qs := r.QueryString()
	if qs == "" {
		return r.Path
	}
	return r.Path + "?" + qs
}

// ExpandPath fills "{name}" placeholders in template from params and returns the
// resulting path together with the params that were not consumed.
// A placeholder without a matching param is an error.
func ExpandPath(template string, params Params) (string, Params, error) {
	rest := make(Params, len(params))
	maps.Copy(rest, params)

	var b strings.Builder
	for {
		open := strings.IndexByte(template, '{')
		if open < 0 {
			b.WriteString(template)
			break
		}
		end := strings.IndexByte(template[open:], '}')
		if end < 0 {
			return "", nil, fmt.Errorf("unterminated placeholder in %q", template)
		}
		name := template[open+1 : open+end]
		val, ok := rest[name]
		if !ok {
			return "", nil, fmt.Errorf("missing path parameter: %s", name)
		}
		delete(rest, name)
		b.WriteString(template[:open])
		b.WriteString(url.PathEscape(FormatParam(val)))
		template = template[open+end+1:]
	}
	return b.String(), rest, nil
}

// FormatParam renders a parameter value the way it is sent on the wire.
func FormatParam(v any) string {
	switch val := v.(type) {
	case string:
		return val
	case int:
		return strconv.Itoa(val)
	case int64:
		return strconv.FormatInt(val, 10)
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(val)
	case fmt.Stringer:
		return val.String()
	default:
		return fmt.Sprintf("%v", val)
	}
}
