package s3

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"os"
	"testing"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"

	"github.com/bobg/scm/testutil"
)

const (
	bucketVar   = "SCM_S3_TESTING_BUCKET"
	endpointVar = "SCM_S3_TESTING_ENDPOINT"
)

func TestStore(t *testing.T) {
	bucket := os.Getenv(bucketVar)
	if bucket == "" {
		t.Skipf("to run TestStore, set %s to a bucket name (and optionally %s to an S3-compatible endpoint)", bucketVar, endpointVar)
	}

	cfg := aws.NewConfig()
	if endpoint := os.Getenv(endpointVar); endpoint != "" {
		cfg = cfg.WithEndpoint(endpoint).WithS3ForcePathStyle(true)
	}
	sess, err := session.NewSession(cfg)
	if err != nil {
		t.Fatal(err)
	}

	var r [8]byte
	if _, err := rand.Read(r[:]); err != nil {
		t.Fatal(err)
	}

	s := New(s3.New(sess), bucket, Prefix("scmtest-"+hex.EncodeToString(r[:])+"/"))
	testutil.Blobstore(context.Background(), t, s)
}
