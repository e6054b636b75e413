package proxy

import (
	"encoding/base64"
	"encoding/json"
	"strconv"
	"strings"

	"github.com/aws/aws-lambda-go/events"
	"github.com/getkin/kin-openapi/openapi3"
	"github.com/pkg/errors"
)

// sanitized holds the request sections after validation and additional
// property stripping. Header keys carry their original submitted casing.
type sanitized struct {
	body    interface{}
	path    map[string]string
	query   map[string]string
	headers map[string]string
}

// rawBody returns the request body as a string, decoding it when the request
// is base64 encoded.
func rawBody(req events.APIGatewayProxyRequest) (string, error) {
	if req.IsBase64Encoded {
		b, err := base64.StdEncoding.DecodeString(req.Body)
		if err != nil {
			return "", errors.Wrap(err, "unable to decode request body")
		}

		return string(b), nil
	}

	return req.Body, nil
}

// parseBody lazily parses a serialized body into its structured form. A body
// that does not parse for the given content type is returned as submitted and
// left for schema validation to reject.
func parseBody(req events.APIGatewayProxyRequest, contentType string) (interface{}, error) {
	raw, err := rawBody(req)
	if err != nil {
		return nil, err
	}

	if raw == "" {
		return nil, nil
	}

	if strings.Contains(contentType, "json") {
		var v interface{}
		if err := json.Unmarshal([]byte(raw), &v); err == nil {
			return v, nil
		}
	}

	return raw, nil
}

// sanitizeRequest validates the body, query, header and path parameter
// sections of req against the resolved operation and returns the sanitized
// sections. When removeAdditional is set, properties and parameters not
// declared by the operation are stripped from the result. All sections are
// rebuilt as fresh copies so a validation failure never mutates the event
// observable by the handler.
func sanitizeRequest(item *openapi3.PathItem, op *openapi3.Operation, req events.APIGatewayProxyRequest, contentType string, removeAdditional bool, visit []openapi3.SchemaValidationOption) (*sanitized, error) {
	violations := []Violation{}

	body, err := parseBody(req, contentType)
	if err != nil {
		violations = append(violations, Violation{Field: "body", Reason: err.Error()})
	}

	if schema := requestBodySchema(op, contentType); schema != nil {
		if body == nil {
			if op.RequestBody.Value.Required {
				violations = append(violations, Violation{Field: "body", Reason: "request body is required"})
			}
		} else {
			if removeAdditional {
				body = stripUndeclared(body, schema)
			}

			if err := schema.Value.VisitJSON(body, visitOptions(visit)...); err != nil {
				violations = append(violations, collectViolations("body", err)...)
			}
		}
	} else if op.RequestBody != nil && op.RequestBody.Value != nil && op.RequestBody.Value.Required && body == nil {
		violations = append(violations, Violation{Field: "body", Reason: "request body is required"})
	}

	declared := declaredParams(item, op)

	path := sanitizeSection("path", declared, req.PathParameters, removeAdditional, visit, &violations)
	query := sanitizeSection("query", declared, req.QueryStringParameters, removeAdditional, visit, &violations)
	headers := sanitizeHeaders(declared, req.Headers, removeAdditional, visit, &violations)

	if len(violations) > 0 {
		return nil, &RequestValidationError{Violations: violations}
	}

	return &sanitized{body: body, path: path, query: query, headers: headers}, nil
}

// requestBodySchema returns the request body schema declared for contentType,
// or nil when the operation declares none.
func requestBodySchema(op *openapi3.Operation, contentType string) *openapi3.SchemaRef {
	if op.RequestBody == nil || op.RequestBody.Value == nil {
		return nil
	}

	media := op.RequestBody.Value.Content.Get(contentType)
	if media == nil {
		return nil
	}

	return media.Schema
}

// declaredParams merges path item level and operation level parameter
// declarations, operation level last.
func declaredParams(item *openapi3.PathItem, op *openapi3.Operation) openapi3.Parameters {
	params := append(openapi3.Parameters{}, item.Parameters...)
	return append(params, op.Parameters...)
}

// sanitizeSection validates the named parameter section and returns a fresh
// sanitized copy of it. Keys are matched exactly; use sanitizeHeaders for the
// header section.
func sanitizeSection(in string, declared openapi3.Parameters, values map[string]string, removeAdditional bool, visit []openapi3.SchemaValidationOption, violations *[]Violation) map[string]string {
	names := map[string]bool{}

	for _, ref := range declared {
		param := ref.Value
		if param == nil || param.In != in {
			continue
		}

		names[param.Name] = true
		value, present := values[param.Name]

		if !present {
			if param.Required {
				*violations = append(*violations, Violation{
					Field:  in + "." + param.Name,
					Reason: "parameter is required",
				})
			}
			continue
		}

		validateParam(in+"."+param.Name, param, value, visit, violations)
	}

	out := make(map[string]string, len(values))
	for name, value := range values {
		if removeAdditional && !names[name] {
			continue
		}
		out[name] = value
	}

	return out
}

// sanitizeHeaders validates the header section. Header names are matched
// case insensitively; the sanitized result preserves the casing the caller
// submitted.
func sanitizeHeaders(declared openapi3.Parameters, headers map[string]string, removeAdditional bool, visit []openapi3.SchemaValidationOption, violations *[]Violation) map[string]string {
	lowered := make(map[string]string, len(headers))
	for name, value := range headers {
		lowered[strings.ToLower(name)] = value
	}

	names := map[string]bool{}

	for _, ref := range declared {
		param := ref.Value
		if param == nil || param.In != openapi3.ParameterInHeader {
			continue
		}

		lower := strings.ToLower(param.Name)
		names[lower] = true
		value, present := lowered[lower]

		if !present {
			if param.Required {
				*violations = append(*violations, Violation{
					Field:  "headers." + lower,
					Reason: "parameter is required",
				})
			}
			continue
		}

		validateParam("headers."+lower, param, value, visit, violations)
	}

	out := make(map[string]string, len(headers))
	for name, value := range headers {
		if removeAdditional && !names[strings.ToLower(name)] {
			continue
		}
		out[name] = value
	}

	return out
}

// validateParam validates a single parameter value against its declared
// schema. The value is coerced per the schema's scalar type for validation
// only; the sanitized sections keep the submitted strings.
func validateParam(field string, param *openapi3.Parameter, value string, visit []openapi3.SchemaValidationOption, violations *[]Violation) {
	if param.Schema == nil || param.Schema.Value == nil {
		return
	}

	coerced := coerceScalar(value, param.Schema.Value)

	if err := param.Schema.Value.VisitJSON(coerced, visitOptions(visit)...); err != nil {
		*violations = append(*violations, collectViolations(field, err)...)
	}
}

// visitOptions appends the always on multi error collection to the engine
// pass through options.
func visitOptions(visit []openapi3.SchemaValidationOption) []openapi3.SchemaValidationOption {
	opts := make([]openapi3.SchemaValidationOption, 0, len(visit)+1)
	opts = append(opts, visit...)

	return append(opts, openapi3.MultiErrors())
}

// coerceScalar converts a string parameter value to the scalar type its
// schema declares, returning the string unchanged when conversion fails so
// validation reports the mismatch.
func coerceScalar(value string, schema *openapi3.Schema) interface{} {
	if schema.Type == nil {
		return value
	}

	switch {
	case schema.Type.Is(openapi3.TypeInteger), schema.Type.Is(openapi3.TypeNumber):
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	case schema.Type.Is(openapi3.TypeBoolean):
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}

	return value
}

// stripUndeclared rebuilds value keeping only properties declared by the
// schema, recursing through nested objects and arrays. The input is never
// mutated.
func stripUndeclared(value interface{}, ref *openapi3.SchemaRef) interface{} {
	if ref == nil || ref.Value == nil {
		return value
	}

	schema := ref.Value

	switch v := value.(type) {
	case map[string]interface{}:
		if len(schema.Properties) == 0 {
			return value
		}

		out := make(map[string]interface{}, len(v))
		for key, val := range v {
			prop, ok := schema.Properties[key]
			if !ok {
				continue
			}
			out[key] = stripUndeclared(val, prop)
		}

		return out
	case []interface{}:
		if schema.Items == nil {
			return value
		}

		out := make([]interface{}, len(v))
		for i, item := range v {
			out[i] = stripUndeclared(item, schema.Items)
		}

		return out
	}

	return value
}

// collectViolations flattens a kin-openapi validation error into field level
// violations rooted at prefix.
func collectViolations(prefix string, err error) []Violation {
	switch e := err.(type) {
	case openapi3.MultiError:
		violations := []Violation{}
		for _, sub := range e {
			violations = append(violations, collectViolations(prefix, sub)...)
		}
		return violations
	case *openapi3.SchemaError:
		field := prefix
		if pointer := e.JSONPointer(); len(pointer) > 0 {
			field = prefix + "." + strings.Join(pointer, ".")
		}

		reason := e.Reason
		if reason == "" {
			reason = e.Error()
		}

		return []Violation{{Field: field, Reason: reason}}
	}

	return []Violation{{Field: prefix, Reason: err.Error()}}
}
