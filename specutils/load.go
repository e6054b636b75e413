package specutils

import (
	"io"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/client"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3iface"
	"github.com/getkin/kin-openapi/openapi3"
	"github.com/pkg/errors"
)

// FromBytes parses and validates a spec document from its raw serialized
// form.
func FromBytes(data []byte) (*openapi3.T, error) {
	loader := openapi3.NewLoader()

	doc, err := loader.LoadFromData(data)
	if err != nil {
		return nil, errors.Wrap(err, "failed parsing spec document")
	}

	if err := doc.Validate(loader.Context); err != nil {
		return nil, errors.Wrap(err, "spec document failed validation")
	}

	return doc, nil
}

// FromFile parses and validates a spec document stored on the local
// filesystem.
func FromFile(path string) (*openapi3.T, error) {
	loader := openapi3.NewLoader()

	doc, err := loader.LoadFromFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed loading spec document from '%s'", path)
	}

	if err := doc.Validate(loader.Context); err != nil {
		return nil, errors.Wrap(err, "spec document failed validation")
	}

	return doc, nil
}

// S3Loader downloads and parses a spec document stored in s3.
type S3Loader struct {
	Region string `json:"region"`
	Bucket string `json:"bucket"`
	Key    string `json:"key"`

	svcFunc func(client.ConfigProvider) s3iface.S3API
}

// NewS3Loader returns a loader for the spec document at the given region,
// bucket and key.
func NewS3Loader(region string, bucket string, key string) *S3Loader {
	return &S3Loader{Region: region, Bucket: bucket, Key: key}
}

// svc is used internally to assist stubs on s3 for testing
func (l *S3Loader) svc(p client.ConfigProvider) s3iface.S3API {
	if l.svcFunc != nil {
		return l.svcFunc(p)
	}

	return s3.New(p)
}

// Load downloads the document from s3, then parses and validates it.
func (l *S3Loader) Load() (*openapi3.T, error) {
	sess, err := session.NewSession(aws.NewConfig().WithRegion(l.Region))
	if err != nil {
		return nil, errors.Wrap(err, "failed creating aws session")
	}

	out, err := l.svc(sess).GetObject(&s3.GetObjectInput{
		Bucket: aws.String(l.Bucket),
		Key:    aws.String(l.Key),
	})
	if err != nil {
		return nil, errors.Wrapf(err, "failed downloading spec document from 's3://%s/%s'", l.Bucket, l.Key)
	}
	defer out.Body.Close()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, errors.Wrap(err, "failed reading spec document body")
	}

	return FromBytes(data)
}

// FromS3 downloads, parses and validates a spec document stored in s3.
func FromS3(region string, bucket string, key string) (*openapi3.T, error) {
	return NewS3Loader(region, bucket, key).Load()
}
