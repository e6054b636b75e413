package proxy

import (
	"net/http"
	"regexp"
	"sort"
	"strings"

	"github.com/getkin/kin-openapi/openapi3"
	"github.com/pkg/errors"
)

// templateVar matches one brace delimited variable segment in a path template.
var templateVar = regexp.MustCompile(`\{[^/}]+\}`)

// pathTemplate is a single spec path template compiled for matching against
// raw request paths.
type pathTemplate struct {
	key   string
	regex *regexp.Regexp
	item  *openapi3.PathItem
}

// index resolves an incoming method and path to an operation in the spec
// document. It is built once at construction time and read only afterwards,
// so it is safe to share across concurrent invocations.
type index struct {
	doc       *openapi3.T
	templates []*pathTemplate
}

// newIndex compiles every path template declared in doc.
func newIndex(doc *openapi3.T) (*index, error) {
	idx := &index{doc: doc}

	if doc.Paths == nil {
		return idx, nil
	}

	// The parsed document holds templates in a map, so source declaration
	// order is not observable. Sorted keys keep the first-match tie-break
	// deterministic across invocations.
	keys := make([]string, 0, doc.Paths.Len())
	for key := range doc.Paths.Map() {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	for _, key := range keys {
		rx, err := compileTemplate(key)
		if err != nil {
			return nil, errors.Wrapf(err, "failed compiling path template '%s'", key)
		}

		idx.templates = append(idx.templates, &pathTemplate{
			key:   key,
			regex: rx,
			item:  doc.Paths.Value(key),
		})
	}

	return idx, nil
}

// compileTemplate converts a path template into an anchored regex. Each {var}
// segment matches alphanumerics, hyphen, whitespace, '+' and the encoded
// space sequence '%20'.
func compileTemplate(key string) (*regexp.Regexp, error) {
	var b strings.Builder
	b.WriteString("^")

	last := 0
	for _, loc := range templateVar.FindAllStringIndex(key, -1) {
		b.WriteString(regexp.QuoteMeta(key[last:loc[0]]))
		b.WriteString(`([\w\s\-+]|%20)+`)
		last = loc[1]
	}
	b.WriteString(regexp.QuoteMeta(key[last:]))
	b.WriteString("$")

	return regexp.Compile(b.String())
}

// operationFor returns the operation item declares for method, or nil.
func operationFor(item *openapi3.PathItem, method string) *openapi3.Operation {
	switch method {
	case http.MethodGet:
		return item.Get
	case http.MethodHead:
		return item.Head
	case http.MethodPost:
		return item.Post
	case http.MethodPut:
		return item.Put
	case http.MethodDelete:
		return item.Delete
	case http.MethodConnect:
		return item.Connect
	case http.MethodOptions:
		return item.Options
	case http.MethodTrace:
		return item.Trace
	case http.MethodPatch:
		return item.Patch
	}

	return nil
}

// resolve returns the operation declared for method on the template matching
// path. An exact template key lookup is attempted first; on a miss the
// compiled templates are scanned in order and the first one whose pattern
// matches the path and which declares the method wins.
func (idx *index) resolve(method, path string) (*openapi3.PathItem, *openapi3.Operation, error) {
	method = strings.ToUpper(method)

	if idx.doc.Paths != nil {
		if item := idx.doc.Paths.Value(path); item != nil {
			if op := operationFor(item, method); op != nil {
				return item, op, nil
			}
		}
	}

	for _, tpl := range idx.templates {
		if !tpl.regex.MatchString(path) {
			continue
		}

		if op := operationFor(tpl.item, method); op != nil {
			return tpl.item, op, nil
		}
	}

	return nil, nil, &PathNotFoundError{Method: method, Path: path}
}
