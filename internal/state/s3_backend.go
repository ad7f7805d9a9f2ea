package state

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
	"github.com/google/uuid"

	"github.com/carina-lang/carina/internal/ir"
)

// S3Backend persists the state document as an S3 object, using the
// object's ETag for If-Match conditional PUTs (optimistic concurrency) and
// a sibling "<key>.lock" object with a conditional create (If-None-Match)
// standing in for an advisory lock. No DynamoDB lock table is used: S3's
// own conditional-write support is sufficient for single-lock exclusion,
// and avoids wiring a second AWS service just for locking.
//
// Grounded on picklr-io-picklr/internal/state/s3_backend.go, replacing its
// DynamoDB-table locking and PKL serialization with the scheme above.
type S3Backend struct {
	bucket     string
	key        string
	region     string
	encrypt    bool
	autoCreate bool
	profile    string

	client  *s3.Client
	loadedETag string
	loadedLineage string
	haveLoaded bool
}

func NewS3Backend(ctx context.Context, cfg ObjectStoreConfig) (*S3Backend, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("object-store backend requires a bucket")
	}
	key := cfg.Key
	if key == "" {
		key = "carina/state.json"
	}
	region := cfg.Region
	if region == "" {
		region = "us-east-1"
	}

	var opts []func(*awsconfig.LoadOptions) error
	opts = append(opts, awsconfig.WithRegion(region))
	if cfg.Profile != "" {
		opts = append(opts, awsconfig.WithSharedConfigProfile(cfg.Profile))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("unable to load AWS config: %w", err)
	}

	b := &S3Backend{
		bucket:     cfg.Bucket,
		key:        key,
		region:     region,
		encrypt:    cfg.Encrypt,
		autoCreate: cfg.AutoCreate,
		profile:    cfg.Profile,
		client:     s3.NewFromConfig(awsCfg),
	}

	if cfg.AutoCreate {
		if err := b.ensureBucket(ctx); err != nil {
			return nil, err
		}
	}

	return b, nil
}

func (b *S3Backend) ensureBucket(ctx context.Context) error {
	_, err := b.client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(b.bucket)})
	if err == nil {
		return nil
	}
	if !isNotFound(err) {
		return fmt.Errorf("failed to check bucket %s: %w", b.bucket, err)
	}
	input := &s3.CreateBucketInput{Bucket: aws.String(b.bucket)}
	if b.region != "us-east-1" {
		input.CreateBucketConfiguration = &s3types.CreateBucketConfiguration{
			LocationConstraint: s3types.BucketLocationConstraint(b.region),
		}
	}
	if _, err := b.client.CreateBucket(ctx, input); err != nil {
		return fmt.Errorf("failed to auto-create bucket %s: %w", b.bucket, err)
	}
	return nil
}

func isNotFound(err error) bool {
	var nsk *s3types.NoSuchKey
	if errors.As(err, &nsk) {
		return true
	}
	var nsb *s3types.NoSuchBucket
	if errors.As(err, &nsb) {
		return true
	}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		code := apiErr.ErrorCode()
		return code == "NotFound" || code == "NoSuchKey" || code == "NoSuchBucket"
	}
	return strings.Contains(err.Error(), "404")
}

func (b *S3Backend) Load(ctx context.Context) (*ir.StateDocument, error) {
	result, err := b.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(b.key),
	})
	if err != nil {
		if isNotFound(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to read state from s3://%s/%s: %w", b.bucket, b.key, err)
	}
	defer result.Body.Close()

	var buf bytes.Buffer
	if _, err := io.Copy(&buf, result.Body); err != nil {
		return nil, fmt.Errorf("failed to read S3 object body: %w", err)
	}
	content := buf.Bytes()

	if IsEncrypted(content) {
		decrypted, err := DecryptState(content)
		if err != nil {
			return nil, fmt.Errorf("failed to decrypt remote state: %w", err)
		}
		content = decrypted
	}

	doc := &ir.StateDocument{}
	if err := json.Unmarshal(content, doc); err != nil {
		return nil, fmt.Errorf("corrupt remote state at s3://%s/%s: %w", b.bucket, b.key, err)
	}

	if result.ETag != nil {
		b.loadedETag = *result.ETag
	}
	b.loadedLineage = doc.Lineage
	b.haveLoaded = true
	return doc, nil
}

// Save performs a conditional PUT keyed on the ETag captured at Load time.
// A fresh state (never loaded, ETag empty) uses If-None-Match: "*" so two
// concurrent first-writers cannot both succeed.
func (b *S3Backend) Save(ctx context.Context, doc *ir.StateDocument) error {
	if b.haveLoaded && b.loadedLineage != "" && doc.Lineage != "" && doc.Lineage != b.loadedLineage {
		return &LineageMismatchError{Expected: doc.Lineage, Actual: b.loadedLineage}
	}

	if doc.Lineage == "" {
		doc.Lineage = uuid.NewString()
	}
	doc.Serial++
	if doc.Version == 0 {
		doc.Version = ir.CurrentStateVersion
	}

	content, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("failed to serialize state: %w", err)
	}
	encrypted, err := EncryptState(content)
	if err != nil {
		return fmt.Errorf("failed to encrypt state: %w", err)
	}

	input := &s3.PutObjectInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(b.key),
		Body:   bytes.NewReader(encrypted),
	}
	if b.encrypt {
		input.ServerSideEncryption = s3types.ServerSideEncryptionAes256
	}
	if b.haveLoaded {
		input.IfMatch = aws.String(b.loadedETag)
	} else {
		input.IfNoneMatch = aws.String("*")
	}

	result, err := b.client.PutObject(ctx, input)
	if err != nil {
		if isPreconditionFailed(err) {
			doc.Serial--
			return &VersionMismatchError{Expected: doc.Serial, Actual: doc.Serial + 1}
		}
		return fmt.Errorf("failed to write state to s3://%s/%s: %w", b.bucket, b.key, err)
	}

	if result.ETag != nil {
		b.loadedETag = *result.ETag
	}
	b.loadedLineage = doc.Lineage
	b.haveLoaded = true
	return nil
}

func isPreconditionFailed(err error) bool {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		code := apiErr.ErrorCode()
		return code == "PreconditionFailed" || code == "412"
	}
	return strings.Contains(err.Error(), "PreconditionFailed") || strings.Contains(err.Error(), "412")
}

func (b *S3Backend) lockKey() string { return b.key + ".lock" }

type s3LockContent struct {
	LockID     string    `json:"lock_id"`
	Who        string    `json:"who"`
	AcquiredAt time.Time `json:"acquired_at"`
}

func (b *S3Backend) Lock(ctx context.Context, timeout time.Duration, who string) (*LockHandle, error) {
	deadline := time.Now().Add(timeout)
	for {
		handle, err := b.tryLock(ctx, who)
		if err == nil {
			return handle, nil
		}
		lockedErr, ok := err.(*LockedError)
		if !ok {
			return nil, err
		}
		if time.Now().After(deadline) {
			return nil, lockedErr
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(time.Second):
		}
	}
}

func (b *S3Backend) tryLock(ctx context.Context, who string) (*LockHandle, error) {
	handle := &LockHandle{LockID: uuid.NewString(), Who: who, AcquiredAt: time.Now().UTC()}
	content, err := json.Marshal(s3LockContent{LockID: handle.LockID, Who: who, AcquiredAt: handle.AcquiredAt})
	if err != nil {
		return nil, fmt.Errorf("failed to serialize lock object: %w", err)
	}

	_, err = b.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(b.bucket),
		Key:         aws.String(b.lockKey()),
		Body:        bytes.NewReader(content),
		IfNoneMatch: aws.String("*"),
	})
	if err == nil {
		return handle, nil
	}
	if !isPreconditionFailed(err) {
		return nil, fmt.Errorf("failed to acquire lock object s3://%s/%s: %w", b.bucket, b.lockKey(), err)
	}

	existing, getErr := b.client.GetObject(ctx, &s3.GetObjectInput{Bucket: aws.String(b.bucket), Key: aws.String(b.lockKey())})
	if getErr != nil {
		return nil, &LockedError{CurrentHolder: "unknown"}
	}
	defer existing.Body.Close()
	var buf bytes.Buffer
	io.Copy(&buf, existing.Body)
	var current s3LockContent
	_ = json.Unmarshal(buf.Bytes(), &current)
	return nil, &LockedError{CurrentHolder: current.Who, AcquiredAt: current.AcquiredAt}
}

func (b *S3Backend) Unlock(ctx context.Context, handle *LockHandle) error {
	result, err := b.client.GetObject(ctx, &s3.GetObjectInput{Bucket: aws.String(b.bucket), Key: aws.String(b.lockKey())})
	if err != nil {
		if isNotFound(err) {
			return nil
		}
		return fmt.Errorf("failed to read lock object before unlock: %w", err)
	}
	defer result.Body.Close()
	var buf bytes.Buffer
	io.Copy(&buf, result.Body)
	var current s3LockContent
	_ = json.Unmarshal(buf.Bytes(), &current)
	if current.LockID != "" && current.LockID != handle.LockID {
		return fmt.Errorf("lock object s3://%s/%s is held by a different lock (%s), refusing to unlock", b.bucket, b.lockKey(), current.LockID)
	}

	if _, err := b.client.DeleteObject(ctx, &s3.DeleteObjectInput{Bucket: aws.String(b.bucket), Key: aws.String(b.lockKey())}); err != nil {
		return fmt.Errorf("failed to release lock object: %w", err)
	}
	return nil
}
