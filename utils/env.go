package utils

import "os"

var (
	CRDB_DSN = os.Getenv("CRDB_DSN")

	AWS_ACCESS_KEY_ID     = os.Getenv("AWS_ACCESS_KEY_ID")
	AWS_SECRET_ACCESS_KEY = os.Getenv("AWS_SECRET_ACCESS_KEY")
	AWS_DEFAULT_REGION    = GetEnvOrDefault("AWS_DEFAULT_REGION", "us-east-1")

	S3_BUCKET_NAME = os.Getenv("S3_BUCKET_NAME")
	S3_ENDPOINT    = os.Getenv("S3_ENDPOINT")

	REDIS_ADDR     = os.Getenv("REDIS_ADDR")
	REDIS_PASSWORD = os.Getenv("REDIS_PASSWORD")

	// METASTORE selects where table configs live: file, redis, or crdb
	METASTORE = GetEnvOrDefault("METASTORE", "file")
	// CONFIG_DIR is the file metastore root, local path or s3://bucket/prefix
	CONFIG_DIR = GetEnvOrDefault("CONFIG_DIR", "./tables")
	// OUTPUT_DIR is where resolved parts are written, local path or s3://bucket/prefix
	OUTPUT_DIR = GetEnvOrDefault("OUTPUT_DIR", "./output")
)
