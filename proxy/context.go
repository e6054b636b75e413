package proxy

import (
	"context"
	"encoding/base64"

	"github.com/aws/aws-lambda-go/events"
	"github.com/getkin/kin-openapi/openapi3"
	"github.com/pkg/errors"
)

// Handler defines the function interface the middleware uses to invoke the
// wrapped business handler once the request has been resolved, sanitized and
// transformed. A returned error propagates unchanged to the top boundary and
// becomes a 500 class error envelope.
type Handler func(*RequestContext) (Outcome, error)

// Outcome is the business handler's declared result. A StatusCode below 300
// is a success outcome; anything else is an error outcome. Message is
// optional and is used when building the error envelope for a non success
// status with no error transformer configured.
type Outcome struct {
	Payload    interface{}
	StatusCode int
	Message    string
}

// RequestContext carries all per invocation state through the pipeline. It is
// constructed fresh for every invocation and is never stored on the
// middleware itself, so concurrent invocations sharing one middleware
// instance cannot observe each other's state.
type RequestContext struct {
	Context   context.Context
	Request   events.APIGatewayProxyRequest
	Operation *openapi3.Operation

	// Sanitized request fields. Body is the structured request body after
	// validation and transforms. Headers are keyed by their original
	// submitted casing.
	Body        interface{}
	PathParams  map[string]string
	QueryParams map[string]string
	Headers     map[string]string

	// Role is the caller role resolved from the authorizer claims, used to
	// select the response filtering variant.
	Role string
}

// RawBody returns a string representation of the raw, unsanitized request
// body.
func (rctx *RequestContext) RawBody() (string, error) {
	if rctx.Request.IsBase64Encoded {
		b, err := base64.StdEncoding.DecodeString(rctx.Request.Body)
		if err != nil {
			return "", errors.Wrap(err, "unable to decode request body")
		}

		return string(b), nil
	}

	return rctx.Request.Body, nil
}
