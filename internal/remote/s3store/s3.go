// Package s3store mirrors notes to an S3-compatible bucket. A folder is a key prefix ending
// in "/" (materialised by an empty marker object) and a file id is the object key.
// Credentials come from the configuration, so the context token is not used.
package s3store

import (
	"bytes"
	"context"
	stderrors "errors"
	"io"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awshttp "github.com/aws/aws-sdk-go-v2/aws/transport/http"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	pkgerrors "github.com/pkg/errors"

	"github.com/hpungsan/noteboard/internal/errors"
	"github.com/hpungsan/noteboard/internal/remote"
)

const contentType = "text/markdown; charset=utf-8"

// Config holds bucket settings. Endpoint is set for non-AWS stores (MinIO, R2) and
// switches the client to path-style addressing.
type Config struct {
	Bucket          string
	Region          string
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
}

// Gateway implements remote.Gateway over the AWS SDK.
type Gateway struct {
	client *s3.Client
	bucket string
}

// New builds the S3 client. Without static keys the default credential chain applies.
func New(ctx context.Context, cfg Config) (*Gateway, error) {
	if cfg.Bucket == "" {
		return nil, errors.NewInvalidRequest("s3 provider requires remote.bucket")
	}
	opts := []func(*config.LoadOptions) error{config.WithRegion(cfg.Region)}
	if cfg.AccessKeyID != "" {
		opts = append(opts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, "")))
	}
	awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, errors.NewInvalidRequest("load s3 config: " + err.Error())
	}
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})
	return &Gateway{client: client, bucket: cfg.Bucket}, nil
}

func (g *Gateway) ListFiles(ctx context.Context, folderID string) ([]remote.File, error) {
	prefix := folderPrefix(folderID)
	p := s3.NewListObjectsV2Paginator(g.client, &s3.ListObjectsV2Input{
		Bucket:    aws.String(g.bucket),
		Prefix:    aws.String(prefix),
		Delimiter: aws.String("/"),
	})
	var files []remote.File
	for p.HasMorePages() {
		page, err := p.NextPage(ctx)
		if err != nil {
			return nil, classify("list files", err)
		}
		for _, obj := range page.Contents {
			key := aws.ToString(obj.Key)
			if key == prefix {
				continue
			}
			files = append(files, remote.File{
				ID:        key,
				Name:      strings.TrimPrefix(key, prefix),
				CreatedAt: aws.ToTime(obj.LastModified),
			})
		}
	}
	return files, nil
}

func (g *Gateway) GetFileContent(ctx context.Context, fileID string) (string, error) {
	out, err := g.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(g.bucket),
		Key:    aws.String(fileID),
	})
	if err != nil {
		return "", classify("get file", err)
	}
	defer out.Body.Close()
	data, err := io.ReadAll(out.Body)
	if err != nil {
		return "", classify("get file", err)
	}
	return string(data), nil
}

func (g *Gateway) CreateFile(ctx context.Context, folderID, name, body string, meta map[string]string) (string, error) {
	key := folderPrefix(folderID) + name
	if err := g.put(ctx, key, body, meta); err != nil {
		return "", classify("create file", err)
	}
	return key, nil
}

// UpdateFileContent rewrites the object, keeping the metadata it was created with.
func (g *Gateway) UpdateFileContent(ctx context.Context, fileID, body string) error {
	head, err := g.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(g.bucket),
		Key:    aws.String(fileID),
	})
	if err != nil {
		return classify("update file", err)
	}
	if err := g.put(ctx, fileID, body, head.Metadata); err != nil {
		return classify("update file", err)
	}
	return nil
}

func (g *Gateway) DeleteFile(ctx context.Context, fileID string) error {
	_, err := g.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(g.bucket),
		Key:    aws.String(fileID),
	})
	if err != nil {
		return classify("delete file", err)
	}
	return nil
}

func (g *Gateway) GetOrCreateFolder(ctx context.Context, name string) (string, error) {
	prefix := folderPrefix(name)
	out, err := g.client.ListObjectsV2(ctx, &s3.ListObjectsV2Input{
		Bucket:  aws.String(g.bucket),
		Prefix:  aws.String(prefix),
		MaxKeys: aws.Int32(1),
	})
	if err != nil {
		return "", classify("find folder", err)
	}
	if len(out.Contents) > 0 {
		return prefix, nil
	}
	if err := g.put(ctx, prefix, "", nil); err != nil {
		return "", classify("create folder", err)
	}
	return prefix, nil
}

func (g *Gateway) CreateFolder(ctx context.Context, parentID, name string) (string, error) {
	prefix := folderPrefix(folderPrefix(parentID) + name)
	if err := g.put(ctx, prefix, "", nil); err != nil {
		return "", classify("create folder", err)
	}
	return prefix, nil
}

func (g *Gateway) AccountLabel(context.Context) (string, error) {
	return "s3://" + g.bucket, nil
}

func (g *Gateway) put(ctx context.Context, key, body string, meta map[string]string) error {
	_, err := g.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(g.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader([]byte(body)),
		ContentType: aws.String(contentType),
		Metadata:    meta,
	})
	return err
}

// folderPrefix normalises a folder id to "a/b/".
func folderPrefix(folderID string) string {
	p := strings.Trim(folderID, "/")
	if p == "" {
		return ""
	}
	return p + "/"
}

func classify(op string, err error) error {
	if stderrors.Is(err, context.Canceled) {
		return errors.NewCancelled(op)
	}
	wrapped := pkgerrors.Wrap(err, "aws_s3")
	var re *awshttp.ResponseError
	if stderrors.As(err, &re) {
		return remote.ClassifyStatus(op, re.HTTPStatusCode(), wrapped)
	}
	return errors.NewNetwork(op, wrapped)
}
