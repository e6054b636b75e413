package proxy

import (
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseBody_serialized(t *testing.T) {
	req := testRequest("POST", "/pet")
	req.Body = `{"name":"Rex"}`

	body, err := parseBody(req, "application/json")

	assert.NoError(t, err)
	assert.Equal(t, map[string]interface{}{"name": "Rex"}, body)
}

func TestParseBody_empty(t *testing.T) {
	req := testRequest("POST", "/pet")

	body, err := parseBody(req, "application/json")

	assert.NoError(t, err)
	assert.Nil(t, body)
}

func TestParseBody_notJSON(t *testing.T) {
	req := testRequest("POST", "/pet")
	req.Body = "plain text"

	body, err := parseBody(req, "text/plain")

	assert.NoError(t, err)
	assert.Equal(t, "plain text", body)
}

func TestParseBody_malformed(t *testing.T) {
	req := testRequest("POST", "/pet")
	req.Body = `{"name":`

	body, err := parseBody(req, "application/json")

	assert.NoError(t, err)
	assert.Equal(t, `{"name":`, body)
}

func TestParseBody_base64(t *testing.T) {
	req := testRequest("POST", "/pet")
	req.Body = base64.StdEncoding.EncodeToString([]byte(`{"name":"Rex"}`))
	req.IsBase64Encoded = true

	body, err := parseBody(req, "application/json")

	assert.NoError(t, err)
	assert.Equal(t, map[string]interface{}{"name": "Rex"}, body)
}

func TestSanitizeRequest_stripsUndeclaredBodyProps(t *testing.T) {
	item := petstore().Paths.Value("/pet")

	req := testRequest("POST", "/pet")
	req.Body = `{"name":"Rex","extra":"x"}`

	s, err := sanitizeRequest(item, item.Post, req, "application/json", true, nil)

	assert.NoError(t, err)
	assert.Equal(t, map[string]interface{}{"name": "Rex"}, s.body)

	// The event itself is never mutated.
	assert.Equal(t, `{"name":"Rex","extra":"x"}`, req.Body)
}

func TestSanitizeRequest_keepsDeclaredProps(t *testing.T) {
	item := petstore().Paths.Value("/pet")

	req := testRequest("POST", "/pet")
	req.Body = `{"name":"Rex","extra":"x"}`

	s, err := sanitizeRequest(item, item.Post, req, "application/json", false, nil)

	assert.NoError(t, err)
	assert.Equal(t, map[string]interface{}{"name": "Rex", "extra": "x"}, s.body)
}

func TestSanitizeRequest_invalidBody(t *testing.T) {
	item := petstore().Paths.Value("/pet")

	req := testRequest("POST", "/pet")
	req.Body = `{"name":123}`

	s, err := sanitizeRequest(item, item.Post, req, "application/json", true, nil)

	assert.Nil(t, s)

	verr, ok := err.(*RequestValidationError)
	assert.True(t, ok)
	assert.Equal(t, 400, verr.StatusCode())
	assert.Contains(t, verr.Error(), "body.name")
}

func TestSanitizeRequest_requiredBodyMissing(t *testing.T) {
	item := petstore().Paths.Value("/pet")

	req := testRequest("POST", "/pet")

	s, err := sanitizeRequest(item, item.Post, req, "application/json", true, nil)

	assert.Nil(t, s)
	assert.Contains(t, err.Error(), "request body is required")
}

func TestSanitizeRequest_pathParamCoercion(t *testing.T) {
	item := petstore().Paths.Value("/pet/{id}")

	req := testRequest("GET", "/pet/4")
	req.PathParameters = map[string]string{"id": "4"}

	s, err := sanitizeRequest(item, item.Get, req, "application/json", true, nil)

	assert.NoError(t, err)
	assert.Equal(t, map[string]string{"id": "4"}, s.path)
}

func TestSanitizeRequest_pathParamInvalid(t *testing.T) {
	item := petstore().Paths.Value("/pet/{id}")

	req := testRequest("GET", "/pet/abc")
	req.PathParameters = map[string]string{"id": "abc"}

	_, err := sanitizeRequest(item, item.Get, req, "application/json", true, nil)

	assert.Error(t, err)
	assert.Contains(t, err.Error(), "path.id")
}

func TestSanitizeRequest_pathParamMissing(t *testing.T) {
	item := petstore().Paths.Value("/pet/{id}")

	req := testRequest("GET", "/pet/4")

	_, err := sanitizeRequest(item, item.Get, req, "application/json", true, nil)

	assert.Error(t, err)
	assert.Contains(t, err.Error(), "path.id: parameter is required")
}

func TestSanitizeRequest_queryValidationAndStripping(t *testing.T) {
	item := petstore().Paths.Value("/pet/{id}")

	req := testRequest("GET", "/pet/4")
	req.PathParameters = map[string]string{"id": "4"}
	req.QueryStringParameters = map[string]string{"verbose": "true", "junk": "1"}

	s, err := sanitizeRequest(item, item.Get, req, "application/json", true, nil)

	assert.NoError(t, err)
	assert.Equal(t, map[string]string{"verbose": "true"}, s.query)
}

func TestSanitizeRequest_queryInvalid(t *testing.T) {
	item := petstore().Paths.Value("/pet/{id}")

	req := testRequest("GET", "/pet/4")
	req.PathParameters = map[string]string{"id": "4"}
	req.QueryStringParameters = map[string]string{"verbose": "maybe"}

	_, err := sanitizeRequest(item, item.Get, req, "application/json", true, nil)

	assert.Error(t, err)
	assert.Contains(t, err.Error(), "query.verbose")
}

// Header names validate case insensitively and the sanitized headers keep the
// casing the caller submitted.
func TestSanitizeRequest_headerCasingPreserved(t *testing.T) {
	item := petstore().Paths.Value("/pet/{id}")

	req := testRequest("GET", "/pet/4")
	req.PathParameters = map[string]string{"id": "4"}
	req.Headers = map[string]string{"X-Role": "admin", "X-Junk": "1"}

	s, err := sanitizeRequest(item, item.Get, req, "application/json", true, nil)

	assert.NoError(t, err)
	assert.Equal(t, map[string]string{"X-Role": "admin"}, s.headers)
}

func TestSanitizeRequest_headerLowercaseSubmission(t *testing.T) {
	item := petstore().Paths.Value("/pet/{id}")

	req := testRequest("GET", "/pet/4")
	req.PathParameters = map[string]string{"id": "4"}
	req.Headers = map[string]string{"x-role": "admin"}

	s, err := sanitizeRequest(item, item.Get, req, "application/json", true, nil)

	assert.NoError(t, err)
	assert.Equal(t, map[string]string{"x-role": "admin"}, s.headers)
}

func TestStripUndeclared_nested(t *testing.T) {
	item := petstore().Paths.Value("/pet")
	schema := item.Post.RequestBody.Value.Content.Get("application/json").Schema

	value := map[string]interface{}{
		"name":  "Rex",
		"extra": map[string]interface{}{"deep": true},
	}

	stripped := stripUndeclared(value, schema)

	assert.Equal(t, map[string]interface{}{"name": "Rex"}, stripped)
	assert.Contains(t, value, "extra")
}

func TestCoerceScalar(t *testing.T) {
	item := petstore().Paths.Value("/pet/{id}")
	idSchema := item.Get.Parameters[0].Value.Schema.Value

	assert.Equal(t, float64(4), coerceScalar("4", idSchema))
	assert.Equal(t, "abc", coerceScalar("abc", idSchema))
}
