// Package s3 generates presigned upload URLs for product images.
package s3

import (
	"context"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"shop-flow/internal/config"
)

type FilePresigner struct {
	presignClient *s3.PresignClient
	endpoint      string
	bucketName    string
}

func NewFilePresigner(ctx context.Context, cfg config.S3Config) (*FilePresigner, error) {
	resolver := aws.EndpointResolverWithOptionsFunc(func(service, region string, options ...interface{}) (aws.Endpoint, error) {
		return aws.Endpoint{
			URL:               cfg.Endpoint,
			SigningRegion:     region,
			HostnameImmutable: true,
		}, nil
	})

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(cfg.Region),
		awsconfig.WithEndpointResolverWithOptions(resolver),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, "")),
	)
	if err != nil {
		return nil, err
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.UsePathStyle = cfg.UsePathStyle
	})

	return &FilePresigner{
		presignClient: s3.NewPresignClient(client),
		endpoint:      cfg.Endpoint,
		bucketName:    cfg.Bucket,
	}, nil
}

func (p *FilePresigner) PresignedUploadURL(ctx context.Context, objectKey string) (string, error) {
	request, err := p.presignClient.PresignPutObject(ctx,
		&s3.PutObjectInput{
			Bucket: aws.String(p.bucketName),
			Key:    aws.String(objectKey),
		},
		func(opts *s3.PresignOptions) {
			opts.Expires = 15 * time.Minute
		},
	)
	if err != nil {
		return "", err
	}

	return request.URL, nil
}

// ObjectURL is the public URL the object will have once uploaded.
func (p *FilePresigner) ObjectURL(objectKey string) string {
	return p.endpoint + "/" + p.bucketName + "/" + objectKey
}
