/*
Copyright 2025 WagerOps Authors.

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

// Package archive ships terminal queue records to long-term storage before
// the cleanup scheduler purges them. The production target is an S3 bucket;
// deployments without one fall back to JSON batches on local disk so cleanup
// never discards records unarchived.
package archive

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/wagerops/p2pqueue/config"
	"github.com/wagerops/p2pqueue/model"
)

// Archiver persists a batch of terminal records. A nil return is the
// acknowledgment the cleanup scheduler waits for before purging.
type Archiver interface {
	Archive(ctx context.Context, records []*model.ArchivedRecord) error
}

// NewFromConfig selects the archival target from configuration. With an S3
// bucket configured records go there; otherwise batches land on local disk.
func NewFromConfig(conf *config.Configuration) Archiver {
	if conf.Archive.S3BucketName != "" {
		return &S3Archive{conf: conf.Archive}
	}
	logrus.Info("no archive bucket configured, archiving terminal records to local disk")
	return &LocalArchive{Dir: "archives"}
}

// S3Archive writes each batch as one JSON object to the configured bucket.
type S3Archive struct {
	conf config.ArchiveConfig
}

// Archive uploads the batch under a date-partitioned key.
//
// Parameters:
// - ctx context.Context: The context for the operation.
// - records []*model.ArchivedRecord: The batch to persist.
//
// Returns:
// - error: An error if the upload fails; the caller retains the records.
func (a *S3Archive) Archive(ctx context.Context, records []*model.ArchivedRecord) error {
	payload, err := json.Marshal(records)
	if err != nil {
		return err
	}

	cfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(a.conf.S3Region),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(a.conf.AwsAccessKeyId, a.conf.AwsSecretAccessKey, "")),
	)
	if err != nil {
		return errors.Wrap(err, "loading aws configuration")
	}

	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		if a.conf.S3Endpoint != "" {
			o.BaseEndpoint = aws.String(a.conf.S3Endpoint)
			o.UsePathStyle = true
		}
	})

	key := batchKey(time.Now())
	_, err = client.PutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(a.conf.S3BucketName),
		Key:    aws.String(key),
		Body:   bytes.NewReader(payload),
	})
	if err != nil {
		return errors.Wrapf(err, "uploading archive batch %s", key)
	}

	logrus.Infof("archived %d record(s) to s3://%s/%s", len(records), a.conf.S3BucketName, key)
	return nil
}

// LocalArchive writes each batch as a JSON file under Dir.
type LocalArchive struct {
	Dir string
}

func (a *LocalArchive) Archive(_ context.Context, records []*model.ArchivedRecord) error {
	payload, err := json.Marshal(records)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(a.Dir, os.ModePerm); err != nil {
		return err
	}

	path := filepath.Join(a.Dir, batchKey(time.Now()))
	if err := os.MkdirAll(filepath.Dir(path), os.ModePerm); err != nil {
		return err
	}
	return os.WriteFile(path, payload, 0o644)
}

// batchKey partitions batches by day so operators can prune or replay a day
// at a time.
func batchKey(now time.Time) string {
	return fmt.Sprintf("%s/batch-%s.json", now.Format("2006-01-02"), uuid.New().String())
}
