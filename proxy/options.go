package proxy

import (
	"github.com/getkin/kin-openapi/openapi3"
)

// DefaultContentType is the media type used to read request and response
// schemas from the spec document when none is configured.
const DefaultContentType = "application/json"

// DefaultRole is the role used for response filtering when no role claim can
// be resolved and no default is configured.
const DefaultRole = "default"

// BodyTransformer maps the sanitized request body before the handler runs.
type BodyTransformer func(body interface{}) interface{}

// ParamsTransformer maps a sanitized parameter section before the handler
// runs.
type ParamsTransformer func(params map[string]string) map[string]string

// SuccessTransformer shapes the response envelope for a success outcome
// (status below 300). It returns the envelope body, structured or already
// serialized, and the envelope status code.
type SuccessTransformer func(payload interface{}, statusCode int) (interface{}, int)

// ErrorTransformer shapes the response envelope for a non success outcome.
// When no error transformer is configured a non success outcome is raised as
// a *HandlerError fault instead.
type ErrorTransformer func(payload interface{}, statusCode int, message string) (interface{}, int)

// Options configures the middleware. Spec is required; everything else
// defaults to validation and filtering switched off.
type Options struct {
	// Spec is the parsed specification document. It is read only and safe
	// to share across concurrent invocations.
	Spec *openapi3.T

	// ContentType selects the media type used when reading request and
	// response schemas from the spec. Defaults to DefaultContentType.
	ContentType string

	// ValidateRequests enables request sanitization against the resolved
	// operation; ValidateResponses enables response schema validation.
	ValidateRequests  bool
	ValidateResponses bool

	// RemoveAdditionalRequestProps strips undeclared properties and
	// parameters from the sanitized request;
	// RemoveAdditionalResponseProps does the same for response bodies.
	RemoveAdditionalRequestProps  bool
	RemoveAdditionalResponseProps bool

	// Optional pure transforms applied at fixed pipeline points.
	TransformBody        BodyTransformer
	TransformPathParams  ParamsTransformer
	TransformQueryParams ParamsTransformer
	TransformSuccess     SuccessTransformer
	TransformError       ErrorTransformer

	// ValidationOptions are passed through to the schema validation engine
	// on every schema visit.
	ValidationOptions []openapi3.SchemaValidationOption

	// FilterByRole enables role based response filtering. RoleClaimKey
	// names the authorizer claim the caller role is read from; DefaultRole
	// is used when the claim is absent.
	FilterByRole bool
	RoleClaimKey string
	DefaultRole  string
}

func (o Options) contentType() string {
	if o.ContentType == "" {
		return DefaultContentType
	}

	return o.ContentType
}

func (o Options) defaultRole() string {
	if o.DefaultRole == "" {
		return DefaultRole
	}

	return o.DefaultRole
}
