package wiki

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/xxxsen/notesync/internal/model"
	appErr "github.com/xxxsen/notesync/internal/pkg/errors"
)

type s3Config struct {
	Endpoint  string `json:"endpoint"`
	SecretID  string `json:"secret_id"`
	SecretKey string `json:"secret_key"`
	Bucket    string `json:"bucket"`
	Region    string `json:"region"`
	Prefix    string `json:"prefix"`
}

// s3Store keeps the same JSON page documents as localStore in a bucket.
// Writes are last-write-wins; the host never writes one page concurrently.
type s3Store struct {
	client *s3.Client
	bucket string
	prefix string
}

func init() {
	Register("s3", createS3Store)
}

func createS3Store(args interface{}, db *sql.DB) (Store, error) {
	config := &s3Config{}
	if err := decodeConfig(args, config); err != nil {
		return nil, err
	}
	if config.Bucket == "" || config.SecretID == "" || config.SecretKey == "" {
		return nil, fmt.Errorf("s3 bucket/secret_id/secret_key are required")
	}
	if config.Region == "" {
		config.Region = "us-east-1"
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(context.Background(),
		awsconfig.WithRegion(config.Region),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(config.SecretID, config.SecretKey, "")),
	)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if config.Endpoint != "" {
			o.BaseEndpoint = aws.String(config.Endpoint)
			o.UsePathStyle = true
		}
	})
	return &s3Store{
		client: client,
		bucket: config.Bucket,
		prefix: strings.Trim(config.Prefix, "/"),
	}, nil
}

func (s *s3Store) key(community, name string) string {
	key := path.Join(community, name+".json")
	if s.prefix != "" {
		key = path.Join(s.prefix, key)
	}
	return key
}

func (s *s3Store) read(ctx context.Context, community, name string) (*model.WikiPage, error) {
	if err := validName(community, name); err != nil {
		return nil, err
	}
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key(community, name)),
	})
	if err != nil {
		var noKey *types.NoSuchKey
		if errors.As(err, &noKey) {
			return nil, appErr.ErrNotFound
		}
		return nil, err
	}
	defer out.Body.Close()
	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, err
	}
	var page model.WikiPage
	if err := json.Unmarshal(data, &page); err != nil {
		return nil, fmt.Errorf("decode wiki page %s: %w", name, err)
	}
	return &page, nil
}

func (s *s3Store) write(ctx context.Context, page *model.WikiPage) error {
	data, err := json.Marshal(page)
	if err != nil {
		return err
	}
	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(s.key(page.Community, page.Name)),
		Body:        bytes.NewReader(data),
		ContentType: aws.String("application/json"),
	})
	return err
}

func (s *s3Store) Get(ctx context.Context, community, name string) (*model.WikiPage, error) {
	return s.read(ctx, community, name)
}

func (s *s3Store) Create(ctx context.Context, community, name, content, reason string) (*model.WikiPage, error) {
	if _, err := s.read(ctx, community, name); err == nil {
		return nil, appErr.ErrConflict
	} else if !errors.Is(err, appErr.ErrNotFound) {
		return nil, err
	}
	page := newPage(community, name, content, reason)
	if err := s.write(ctx, page); err != nil {
		return nil, err
	}
	return page, nil
}

func (s *s3Store) Update(ctx context.Context, community, name, content, reason string) (*model.WikiPage, error) {
	page, err := s.read(ctx, community, name)
	if err != nil {
		return nil, err
	}
	revise(page, content, reason)
	if err := s.write(ctx, page); err != nil {
		return nil, err
	}
	return page, nil
}

func (s *s3Store) UpdateSettings(ctx context.Context, community, name string, listed bool, perm model.WikiPermission) error {
	page, err := s.read(ctx, community, name)
	if err != nil {
		return err
	}
	page.Listed = listed
	page.Permission = perm
	return s.write(ctx, page)
}
