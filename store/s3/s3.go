// Package s3 implements a Blobstore on Amazon S3 or a compatible service.
package s3

import (
	"bytes"
	"context"
	"io"
	"net/http"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/pkg/errors"

	"github.com/bobg/scm"
	"github.com/bobg/scm/store"
)

var (
	_ scm.Blobstore = &Store{}
	_ scm.Lister    = &Store{}
)

// Store is an S3-based Blobstore.
// Each blob is an object named by its key, under an optional prefix.
type Store struct {
	s3     *s3.S3
	bucket string
	prefix string
}

// Option configures a Store.
type Option func(*Store)

// Prefix places all objects under the given name prefix.
func Prefix(prefix string) Option {
	return func(s *Store) {
		s.prefix = prefix
	}
}

// New produces a new Store using the given client and bucket.
func New(client *s3.S3, bucket string, opts ...Option) *Store {
	s := &Store{s3: client, bucket: bucket}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func isNotFound(err error) bool {
	if aerr, ok := err.(awserr.Error); ok {
		switch aerr.Code() {
		case s3.ErrCodeNoSuchKey, "NotFound":
			return true
		}
	}
	if rerr, ok := err.(awserr.RequestFailure); ok && rerr.StatusCode() == http.StatusNotFound {
		return true
	}
	return false
}

// Get implements scm.Blobstore.Get.
func (s *Store) Get(ctx context.Context, key string) ([]byte, bool, error) {
	name := s.prefix + key
	obj, err := s.s3.GetObjectWithContext(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(name),
	})
	if isNotFound(err) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, errors.Wrapf(err, "getting object %s", name)
	}
	defer obj.Body.Close()

	b, err := io.ReadAll(obj.Body)
	if err != nil {
		return nil, false, errors.Wrapf(err, "reading object %s", name)
	}
	return b, true, nil
}

// Put implements scm.Blobstore.Put.
func (s *Store) Put(ctx context.Context, key string, b []byte) error {
	name := s.prefix + key
	_, err := s.s3.PutObjectWithContext(ctx, &s3.PutObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(name),
		Body:   bytes.NewReader(b),
	})
	return errors.Wrapf(err, "putting object %s", name)
}

// IsPresent implements scm.Blobstore.IsPresent.
func (s *Store) IsPresent(ctx context.Context, key string) (bool, error) {
	name := s.prefix + key
	_, err := s.s3.HeadObjectWithContext(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(name),
	})
	if isNotFound(err) {
		return false, nil
	}
	if err != nil {
		return false, errors.Wrapf(err, "heading object %s", name)
	}
	return true, nil
}

// AssertPresent implements scm.Blobstore.AssertPresent.
func (s *Store) AssertPresent(ctx context.Context, key string) error {
	return scm.AssertPresent(ctx, s, key)
}

// ListKeys implements scm.Lister.
// S3 lists keys in UTF-8 binary order, which is the order required.
func (s *Store) ListKeys(ctx context.Context, start string, f func(string) error) error {
	params := &s3.ListObjectsV2Input{
		Bucket:     aws.String(s.bucket),
		Prefix:     aws.String(s.prefix),
		StartAfter: aws.String(s.prefix + start),
	}

	var cbErr error
	err := s.s3.ListObjectsV2PagesWithContext(ctx, params, func(page *s3.ListObjectsV2Output, _ bool) bool {
		for _, obj := range page.Contents {
			key := aws.StringValue(obj.Key)[len(s.prefix):]
			if cbErr = f(key); cbErr != nil {
				return false
			}
		}
		return true
	})
	if cbErr != nil {
		return cbErr
	}
	return errors.Wrap(err, "listing objects")
}

func init() {
	store.Register("s3", func(ctx context.Context, conf map[string]interface{}) (scm.Blobstore, error) {
		bucket, ok := store.String(conf, "bucket")
		if !ok {
			return nil, errors.New(`missing "bucket" parameter`)
		}

		cfg := aws.NewConfig()
		if region, ok := store.String(conf, "region"); ok {
			cfg = cfg.WithRegion(region)
		}
		if endpoint, ok := store.String(conf, "endpoint"); ok {
			cfg = cfg.WithEndpoint(endpoint).WithS3ForcePathStyle(true)
		}
		sess, err := session.NewSession(cfg)
		if err != nil {
			return nil, errors.Wrap(err, "creating aws session")
		}

		var opts []Option
		if prefix, ok := store.String(conf, "prefix"); ok {
			opts = append(opts, Prefix(prefix))
		}
		return New(s3.New(sess), bucket, opts...), nil
	})
}
