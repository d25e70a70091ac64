/*
Copyright 2024 The Streambatch Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

// Package s3 implements the object store on an S3 bucket. Credentials are
// resolved through the SDK default chain (env, shared config, instance
// profile); a custom endpoint can be set for S3-compatible stores.
package s3

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/aws/session"
	awss3 "github.com/aws/aws-sdk-go/service/s3"

	"github.com/streamproj/streambatch/pkg/objstore"
	sharedutil "github.com/streamproj/streambatch/pkg/shared/util"
)

type store struct {
	s3     *awss3.S3
	bucket string
	// base is the key prefix the store is scoped to, "" or ending in "/"
	base string
}

var _ objstore.ObjectStorer = (*store)(nil)

// NewStore returns a store scoped to s3://bucket/base. Region and endpoint
// come from the standard AWS environment (AWS_REGION, AWS_S3_ENDPOINT).
func NewStore(bucket, base string) (objstore.ObjectStorer, error) {
	cfg := aws.NewConfig().WithRegion(sharedutil.LookupEnvStringOr("AWS_REGION", "us-east-1"))
	if endpoint := sharedutil.LookupEnvStringOr("AWS_S3_ENDPOINT", ""); endpoint != "" {
		// S3-compatible stores (e.g. MinIO) need path-style addressing
		cfg = cfg.WithEndpoint(endpoint).WithS3ForcePathStyle(true)
	}
	sess, err := session.NewSession(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create aws session: %w", err)
	}
	if base != "" && !strings.HasSuffix(base, "/") {
		base += "/"
	}
	return &store{s3: awss3.New(sess), bucket: bucket, base: base}, nil
}

func (s *store) List(ctx context.Context, prefix string) ([]objstore.ObjectInfo, error) {
	var objects []objstore.ObjectInfo
	input := &awss3.ListObjectsV2Input{
		Bucket: aws.String(s.bucket),
		Prefix: aws.String(s.base + prefix),
	}
	err := s.s3.ListObjectsV2PagesWithContext(ctx, input, func(page *awss3.ListObjectsV2Output, _ bool) bool {
		for _, obj := range page.Contents {
			objects = append(objects, objstore.ObjectInfo{
				Key:          strings.TrimPrefix(aws.StringValue(obj.Key), s.base),
				Size:         aws.Int64Value(obj.Size),
				LastModified: aws.TimeValue(obj.LastModified),
			})
		}
		return true
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list s3://%s/%s%s: %w", s.bucket, s.base, prefix, err)
	}
	return objects, nil
}

func (s *store) Get(ctx context.Context, key string) ([]byte, error) {
	out, err := s.s3.GetObjectWithContext(ctx, &awss3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.base + key),
	})
	if err != nil {
		if aerr, ok := err.(awserr.Error); ok && aerr.Code() == awss3.ErrCodeNoSuchKey {
			return nil, fmt.Errorf("%w: %s", objstore.ErrNotFound, key)
		}
		return nil, fmt.Errorf("failed to get s3://%s/%s%s: %w", s.bucket, s.base, key, err)
	}
	defer func() { _ = out.Body.Close() }()
	return io.ReadAll(out.Body)
}

// Put relies on S3 put semantics: an object becomes visible only once the
// upload completes, which satisfies the atomic publish contract.
func (s *store) Put(ctx context.Context, key string, data []byte) error {
	_, err := s.s3.PutObjectWithContext(ctx, &awss3.PutObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.base + key),
		Body:   bytes.NewReader(data),
	})
	if err != nil {
		return fmt.Errorf("failed to put s3://%s/%s%s: %w", s.bucket, s.base, key, err)
	}
	return nil
}
