// Package proxy provides an OpenAPI contract-enforcement middleware for aws
// lambda functions that act as aws api gateway proxy integrations. It resolves
// each incoming events.APIGatewayProxyRequest to an operation in the spec
// document, validates and sanitizes the request against the operation's
// schemas, invokes the wrapped business handler, filters the response against
// the declared response schema (optionally redacting fields by caller role)
// and always returns a well formed events.APIGatewayProxyResponse.
//
// The middleware is designed to be as simplistic as possible: it performs no
// retries, imposes no timeouts and logs nothing. Every fault raised while
// processing an invocation is converted exactly once into an error envelope
// at the top boundary.
//
// Example:
//
//	func petHandler(rctx *proxy.RequestContext) (proxy.Outcome, error) {
//		pet := map[string]interface{}{"id": 1, "name": "Rex"}
//		return proxy.Outcome{Payload: pet, StatusCode: 201}, nil
//	}
//
//	func main() {
//		doc, err := specutils.FromFile("petstore.json")
//		if err != nil {
//			log.Fatal(err)
//		}
//
//		mw, err := proxy.New(proxy.Options{
//			Spec:             doc,
//			ValidateRequests: true,
//		}, petHandler)
//		if err != nil {
//			log.Fatal(err)
//		}
//
//		lambda.Start(mw.Handle)
//	}
package proxy
