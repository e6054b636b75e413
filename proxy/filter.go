package proxy

import (
	"encoding/json"

	"github.com/aws/aws-lambda-go/events"
	"github.com/getkin/kin-openapi/openapi3"
	"github.com/pkg/errors"
)

// rolesExtension is the schema extension listing the roles permitted to see a
// response property. Properties without the extension are visible to every
// role.
const rolesExtension = "x-roles"

// responsePlan is the response filtering variant for one invocation, selected
// once from the configuration flags before the handler runs.
type responsePlan struct {
	validate bool
	strip    bool
	role     string // empty when role based filtering is disabled
	visit    []openapi3.SchemaValidationOption
}

// resolveRole performs the two step role lookup: read the configured claim
// from the caller's authorizer claims, fall back to the default role when the
// claim (or any structure on the way to it) is absent.
func resolveRole(req events.APIGatewayProxyRequest, claimKey, defaultRole string) string {
	if claimKey == "" {
		return defaultRole
	}

	claims, ok := req.RequestContext.Authorizer["claims"].(map[string]interface{})
	if !ok {
		return defaultRole
	}

	role, ok := claims[claimKey].(string)
	if !ok || role == "" {
		return defaultRole
	}

	return role
}

// responseSchema returns the schema declared for status and contentType, or
// nil when the operation declares none.
func responseSchema(op *openapi3.Operation, status int, contentType string) *openapi3.SchemaRef {
	if op.Responses == nil {
		return nil
	}

	ref := op.Responses.Status(status)
	if ref == nil || ref.Value == nil {
		return nil
	}

	media := ref.Value.Content.Get(contentType)
	if media == nil {
		return nil
	}

	return media.Schema
}

// filterResponse validates and filters the response body against the schema
// the operation declares for status. A serialized (string) body is parsed,
// filtered and re-serialized; a structured body stays structured. When the
// operation declares no schema for the status there is no contract to
// enforce and the body is returned unchanged.
func filterResponse(plan responsePlan, op *openapi3.Operation, status int, body interface{}, contentType string) (interface{}, error) {
	schema := responseSchema(op, status, contentType)
	if schema == nil {
		return body, nil
	}

	value := body
	serialized := false

	if s, ok := body.(string); ok {
		var parsed interface{}
		if err := json.Unmarshal([]byte(s), &parsed); err == nil {
			value = parsed
			serialized = true
		}
	} else {
		normalized, err := normalizeJSON(body)
		if err != nil {
			return nil, err
		}

		value = normalized
	}

	if plan.strip {
		value = stripUndeclared(value, schema)
	}

	if plan.role != "" {
		value = filterByRole(value, schema, plan.role)
	}

	if plan.validate {
		if err := schema.Value.VisitJSON(value, visitOptions(plan.visit)...); err != nil {
			return nil, &ResponseValidationError{
				Status:     status,
				Violations: collectViolations("body", err),
			}
		}
	}

	if serialized {
		b, err := json.Marshal(value)
		if err != nil {
			return nil, errors.Wrap(err, "failed re-serializing filtered response body")
		}

		return string(b), nil
	}

	return value, nil
}

// normalizeJSON round trips a structured value through its JSON form so the
// schema visitor and the filters see plain JSON values regardless of the
// concrete Go types the handler returned.
func normalizeJSON(value interface{}) (interface{}, error) {
	b, err := json.Marshal(value)
	if err != nil {
		return nil, errors.Wrap(err, "failed serializing response body for filtering")
	}

	var out interface{}
	if err := json.Unmarshal(b, &out); err != nil {
		return nil, errors.Wrap(err, "failed parsing serialized response body")
	}

	return out, nil
}

// filterByRole rebuilds value removing properties not permitted for role,
// recursing through nested objects and arrays. The input is never mutated.
func filterByRole(value interface{}, ref *openapi3.SchemaRef, role string) interface{} {
	if ref == nil || ref.Value == nil {
		return value
	}

	schema := ref.Value

	switch v := value.(type) {
	case map[string]interface{}:
		out := make(map[string]interface{}, len(v))
		for key, val := range v {
			prop, ok := schema.Properties[key]
			if !ok {
				out[key] = val
				continue
			}

			if prop.Value != nil && !roleAllowed(prop.Value.Extensions[rolesExtension], role) {
				continue
			}

			out[key] = filterByRole(val, prop, role)
		}

		return out
	case []interface{}:
		if schema.Items == nil {
			return value
		}

		out := make([]interface{}, len(v))
		for i, item := range v {
			out[i] = filterByRole(item, schema.Items, role)
		}

		return out
	}

	return value
}

// roleAllowed reports whether role appears in a decoded x-roles extension
// value. A missing or malformed extension restricts nothing.
func roleAllowed(ext interface{}, role string) bool {
	roles, ok := ext.([]interface{})
	if !ok {
		return true
	}

	for _, r := range roles {
		if name, ok := r.(string); ok && name == role {
			return true
		}
	}

	return false
}
