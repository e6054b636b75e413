package proxy

import (
	"context"
	"encoding/json"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	"github.com/pkg/errors"
)

// Middleware wraps a business handler with the validation and transformation
// pipeline. A Middleware instance holds only read only state and is safe to
// share across concurrent invocations.
type Middleware struct {
	opts    Options
	handler Handler
	index   *index
}

// envelope is the intermediate response shape before final serialization.
// The body may be structured or already serialized.
type envelope struct {
	body   interface{}
	status int
}

// New builds a Middleware wrapping handler. It fails fast with a
// *SpecInvalidError when the spec document is missing, the handler is
// missing, or a path template in the document cannot be compiled.
func New(opts Options, handler Handler) (*Middleware, error) {
	if opts.Spec == nil {
		return nil, &SpecInvalidError{Reason: "no spec document provided"}
	}

	if handler == nil {
		return nil, &SpecInvalidError{Reason: "no handler provided"}
	}

	idx, err := newIndex(opts.Spec)
	if err != nil {
		return nil, &SpecInvalidError{Reason: err.Error()}
	}

	return &Middleware{opts: opts, handler: handler, index: idx}, nil
}

// Handle processes one invocation and returns the final response envelope.
// The signature is compatible with lambda.Start. The returned error is always
// nil: every fault raised during the invocation is caught exactly once here
// and converted into an error envelope.
func (mw *Middleware) Handle(ctx context.Context, req events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	response, err := mw.invoke(ctx, req)

	if err != nil {
		return faultResponse(err), nil
	}

	return response, nil
}

// HandleWithCallback processes one invocation and delivers the final
// response envelope through done, for callers using the completion callback
// convention.
func (mw *Middleware) HandleWithCallback(ctx context.Context, req events.APIGatewayProxyRequest, done func(events.APIGatewayProxyResponse)) {
	response, _ := mw.Handle(ctx, req)
	done(response)
}

// Start begins processing lambda invocations with the middleware as the
// function handler. It does not return.
func (mw *Middleware) Start() {
	lambda.Start(mw.Handle)
}

// invoke runs the pipeline for one invocation: resolve the operation,
// sanitize the request, apply request transforms, call the handler, apply
// the response transform selected by status class, filter the response and
// build the final envelope.
func (mw *Middleware) invoke(ctx context.Context, req events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	item, op, err := mw.index.resolve(req.HTTPMethod, req.Path)
	if err != nil {
		return events.APIGatewayProxyResponse{}, err
	}

	contentType := mw.opts.contentType()

	rctx := &RequestContext{
		Context:   ctx,
		Request:   req,
		Operation: op,
		Role:      resolveRole(req, mw.opts.RoleClaimKey, mw.opts.defaultRole()),
	}

	if mw.opts.ValidateRequests {
		s, err := sanitizeRequest(item, op, req, contentType, mw.opts.RemoveAdditionalRequestProps, mw.opts.ValidationOptions)
		if err != nil {
			return events.APIGatewayProxyResponse{}, err
		}

		rctx.Body = s.body
		rctx.PathParams = s.path
		rctx.QueryParams = s.query
		rctx.Headers = s.headers
	} else {
		body, err := parseBody(req, contentType)
		if err != nil {
			return events.APIGatewayProxyResponse{}, err
		}

		rctx.Body = body
		rctx.PathParams = copyParams(req.PathParameters)
		rctx.QueryParams = copyParams(req.QueryStringParameters)
		rctx.Headers = copyParams(req.Headers)
	}

	if t := mw.opts.TransformBody; t != nil {
		rctx.Body = t(rctx.Body)
	}

	if t := mw.opts.TransformPathParams; t != nil {
		rctx.PathParams = t(rctx.PathParams)
	}

	if t := mw.opts.TransformQueryParams; t != nil {
		rctx.QueryParams = t(rctx.QueryParams)
	}

	outcome, err := mw.handler(rctx)
	if err != nil {
		return events.APIGatewayProxyResponse{}, err
	}

	env, err := mw.translate(outcome)
	if err != nil {
		return events.APIGatewayProxyResponse{}, err
	}

	if env.status == 0 {
		return events.APIGatewayProxyResponse{}, &EnvelopeContractError{Missing: "statusCode"}
	}

	if env.body == nil {
		return events.APIGatewayProxyResponse{}, &EnvelopeContractError{Missing: "body"}
	}

	plan := responsePlan{
		validate: mw.opts.ValidateResponses,
		strip:    mw.opts.RemoveAdditionalResponseProps,
		visit:    mw.opts.ValidationOptions,
	}

	if mw.opts.FilterByRole {
		plan.role = rctx.Role
	}

	if plan.validate || plan.strip || plan.role != "" {
		body, err := filterResponse(plan, op, env.status, env.body, contentType)
		if err != nil {
			return events.APIGatewayProxyResponse{}, err
		}

		env.body = body
	}

	return buildResponse(env)
}

// translate applies the response transform selected by the outcome's status
// class. A success outcome without a configured transform falls through to
// default envelope construction; a non success outcome without one raises a
// *HandlerError carrying the declared status.
func (mw *Middleware) translate(outcome Outcome) (envelope, error) {
	if outcome.StatusCode < 300 {
		if t := mw.opts.TransformSuccess; t != nil {
			body, status := t(outcome.Payload, outcome.StatusCode)
			return envelope{body: body, status: status}, nil
		}

		return envelope{body: outcome.Payload, status: outcome.StatusCode}, nil
	}

	if t := mw.opts.TransformError; t != nil {
		body, status := t(outcome.Payload, outcome.StatusCode, outcome.Message)
		return envelope{body: body, status: status}, nil
	}

	return envelope{}, &HandlerError{Status: outcome.StatusCode, Message: outcome.Message}
}

// buildResponse serializes the envelope body when it is still structured and
// returns the final response.
func buildResponse(env envelope) (events.APIGatewayProxyResponse, error) {
	body, ok := env.body.(string)

	if !ok {
		b, err := json.Marshal(env.body)
		if err != nil {
			return events.APIGatewayProxyResponse{}, errors.Wrap(err, "failed serializing response body")
		}

		body = string(b)
	}

	return events.APIGatewayProxyResponse{Body: body, StatusCode: env.status}, nil
}

// faultResponse converts a pipeline fault into a best effort error envelope.
func faultResponse(err error) events.APIGatewayProxyResponse {
	b, _ := json.Marshal(map[string]string{"message": err.Error()})

	return events.APIGatewayProxyResponse{
		Body:       string(b),
		StatusCode: statusOf(err),
	}
}

// copyParams returns a fresh copy of a parameter section so transforms and
// handlers never mutate the inbound event.
func copyParams(params map[string]string) map[string]string {
	out := make(map[string]string, len(params))
	for name, value := range params {
		out[name] = value
	}

	return out
}
