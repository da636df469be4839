package storage

import (
	"context"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"go.uber.org/zap"

	"github.com/artgallery/service/internal/config"
)

// S3Provider implements Provider on AWS S3 or an S3-compatible endpoint such as R2.
type S3Provider struct {
	client     *s3.Client
	bucket     string
	publicBase string
	objectACL  bool
	logger    *zap.Logger
}

// NewS3Provider creates an S3 client with static credentials.
func NewS3Provider(ctx context.Context, cfg config.StorageConfig, logger *zap.Logger) (*S3Provider, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(cfg.Region),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, "")),
	)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	var opts []func(*s3.Options)
	endpoint := cfg.Endpoint
	if endpoint != "" {
		if !strings.Contains(endpoint, "://") {
			endpoint = "https://" + endpoint
		}
		opts = append(opts, func(o *s3.Options) {
			o.BaseEndpoint = aws.String(endpoint)
			o.UsePathStyle = cfg.PathStyle
		})
	}

	publicBase := cfg.PublicBase
	switch {
	case publicBase != "":
	case endpoint != "":
		publicBase = strings.TrimRight(endpoint, "/") + "/" + cfg.Bucket
	default:
		publicBase = fmt.Sprintf("https://%s.s3.%s.amazonaws.com", cfg.Bucket, cfg.Region)
	}

	return &S3Provider{
		client:     s3.NewFromConfig(awsCfg, opts...),
		bucket:     cfg.Bucket,
		publicBase: publicBase,
		objectACL:  cfg.ObjectACL,
		logger:     logger,
	}, nil
}

// Put uploads in.Body with a single PutObject call.
func (p *S3Provider) Put(ctx context.Context, in PutInput) (*Object, error) {
	key := ObjectKey(in.Name, in.AddRandomSuffix)

	input := &s3.PutObjectInput{
		Bucket:        aws.String(p.bucket),
		Key:           aws.String(key),
		Body:          in.Body,
		ContentType:   aws.String(in.ContentType),
		ContentLength: aws.Int64(in.Size),
	}
	if p.objectACL {
		input.ACL = cannedACL(in.Access)
	}

	out, err := p.client.PutObject(ctx, input)
	if err != nil {
		return nil, fmt.Errorf("put object %q: %w", key, err)
	}

	etag := ""
	if out.ETag != nil {
		etag = strings.Trim(*out.ETag, "\"")
	}
	p.logger.Debug("object stored",
		zap.String("bucket", p.bucket),
		zap.String("key", key),
		zap.String("etag", etag),
	)

	return &Object{
		URL:         PublicURL(p.publicBase, key),
		Key:         key,
		ContentType: in.ContentType,
		Size:        in.Size,
	}, nil
}

func cannedACL(a Access) types.ObjectCannedACL {
	if a == AccessPublicRead {
		return types.ObjectCannedACLPublicRead
	}
	return types.ObjectCannedACLPrivate
}
