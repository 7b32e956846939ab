package s3_helper

import (
	"errors"
	"testing"

	"github.com/danthegoodman1/icefields/utils"
)

func TestParseURI(t *testing.T) {
	bucket, key, err := ParseURI("s3://configs/tables/people.yaml")
	if err != nil {
		t.Fatal(err)
	}
	if bucket != "configs" || key != "tables/people.yaml" {
		t.Fatalf("got bucket %q key %q", bucket, key)
	}

	if _, _, err := ParseURI("/tmp/people.yaml"); !errors.Is(err, ErrNotS3URI) {
		t.Fatalf("expected ErrNotS3URI, got %v", err)
	}

	prev := utils.S3_BUCKET_NAME
	defer func() { utils.S3_BUCKET_NAME = prev }()

	utils.S3_BUCKET_NAME = ""
	if _, _, err := ParseURI("s3:///people.yaml"); !errors.Is(err, ErrNotS3URI) {
		t.Fatalf("expected ErrNotS3URI without a bucket, got %v", err)
	}

	utils.S3_BUCKET_NAME = "fallback"
	bucket, key, err = ParseURI("s3:///people.yaml")
	if err != nil {
		t.Fatal(err)
	}
	if bucket != "fallback" || key != "people.yaml" {
		t.Fatalf("got bucket %q key %q", bucket, key)
	}
}
