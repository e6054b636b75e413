package proxy

import (
	"io/ioutil"
	"log"

	"github.com/aws/aws-lambda-go/events"
	"github.com/getkin/kin-openapi/openapi3"
)

// petstore loads the shared spec fixture used across the package tests.
func petstore() *openapi3.T {
	content, err := ioutil.ReadFile("testdata/petstore.json")
	if err != nil {
		log.Fatal(err)
	}

	loader := openapi3.NewLoader()

	doc, err := loader.LoadFromData(content)
	if err != nil {
		log.Fatal(err)
	}

	err = doc.Validate(loader.Context)
	if err != nil {
		log.Fatal(err)
	}

	return doc
}

func testRequest(method string, path string) events.APIGatewayProxyRequest {
	return events.APIGatewayProxyRequest{
		HTTPMethod: method,
		Path:       path,
		Headers:    map[string]string{},
	}
}

func outcomeHandler(outcome Outcome) Handler {
	return func(*RequestContext) (Outcome, error) {
		return outcome, nil
	}
}
