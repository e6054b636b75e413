// Package specutils provides utilities for loading the OpenAPI spec document
// consumed by the proxy middleware. Documents can be loaded from raw bytes, a
// local file, an s3 object or from the lambda environment. Every loader
// validates the parsed document before returning it, so a lambda constructed
// from a specutils document fails fast on an unusable spec.
package specutils
