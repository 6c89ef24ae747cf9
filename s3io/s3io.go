// Package s3io moves corpora and shards between S3 and the local disk.
package s3io

import (
	"context"
	"io"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/request"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/dustin/go-humanize"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

const scheme = "s3://"

// Client is the part of the S3 API used here; *s3.S3 satisfies it.
type Client interface {
	GetObjectWithContext(ctx aws.Context, input *s3.GetObjectInput,
		opts ...request.Option) (*s3.GetObjectOutput, error)
	PutObjectWithContext(ctx aws.Context, input *s3.PutObjectInput,
		opts ...request.Option) (*s3.PutObjectOutput, error)
	ListObjectsV2PagesWithContext(ctx aws.Context,
		input *s3.ListObjectsV2Input,
		fn func(*s3.ListObjectsV2Output, bool) bool,
		opts ...request.Option) error
}

// NewClient opens a session from the shared AWS configuration. Empty
// region and endpoint leave the SDK defaults in place.
func NewClient(region, endpoint string) (*s3.S3, error) {
	cfg := aws.NewConfig()
	if region != "" {
		cfg = cfg.WithRegion(region)
	}
	if endpoint != "" {
		cfg = cfg.WithEndpoint(endpoint).WithS3ForcePathStyle(true)
	}
	sess, err := session.NewSessionWithOptions(session.Options{
		Config:            *cfg,
		SharedConfigState: session.SharedConfigEnable,
	})
	if err != nil {
		return nil, errors.Wrap(err, "creating AWS session")
	}
	return s3.New(sess), nil
}

// IsURL reports whether location is an s3:// URL.
func IsURL(location string) bool {
	return strings.HasPrefix(location, scheme)
}

// ParseURL splits s3://bucket/key into its bucket and key.
func ParseURL(location string) (bucket, key string, err error) {
	if !IsURL(location) {
		return "", "", errors.Errorf("%q is not an s3:// URL", location)
	}
	bucket, key, _ = strings.Cut(strings.TrimPrefix(location, scheme), "/")
	if bucket == "" {
		return "", "", errors.Errorf("%q has no bucket", location)
	}
	return bucket, key, nil
}

// List returns the keys under prefix in lexical order.
func List(ctx context.Context, client Client, bucket,
	prefix string) ([]string, error) {
	var keys []string
	err := client.ListObjectsV2PagesWithContext(ctx,
		&s3.ListObjectsV2Input{
			Bucket: aws.String(bucket),
			Prefix: aws.String(prefix),
		},
		func(page *s3.ListObjectsV2Output, _ bool) bool {
			for _, object := range page.Contents {
				key := aws.StringValue(object.Key)
				if !strings.HasSuffix(key, "/") {
					keys = append(keys, key)
				}
			}
			return true
		})
	if err != nil {
		return nil, errors.Wrapf(err, "listing s3://%s/%s", bucket, prefix)
	}
	sort.Strings(keys)
	return keys, nil
}

// Fetch copies every object under the URL's key prefix, in key order, into
// w. An object that does not end in a newline is followed by one, so
// concatenated text files keep their last line separate.
func Fetch(ctx context.Context, client Client, location string,
	w io.Writer) (int64, error) {
	bucket, prefix, err := ParseURL(location)
	if err != nil {
		return 0, err
	}
	keys, err := List(ctx, client, bucket, prefix)
	if err != nil {
		return 0, err
	}
	if len(keys) == 0 {
		return 0, errors.Errorf("no objects under %s", location)
	}
	var total int64
	for _, key := range keys {
		n, err := fetchObject(ctx, client, bucket, key, w)
		total += n
		if err != nil {
			return total, err
		}
		klog.V(1).Infof("Fetched s3://%s/%s (%s)", bucket, key,
			humanize.Bytes(uint64(n)))
	}
	return total, nil
}

func fetchObject(ctx context.Context, client Client, bucket, key string,
	w io.Writer) (int64, error) {
	out, err := client.GetObjectWithContext(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return 0, errors.Wrapf(err, "getting s3://%s/%s", bucket, key)
	}
	defer out.Body.Close()
	tail := &lastByte{w: w}
	n, err := io.Copy(tail, out.Body)
	if err != nil {
		return n, errors.Wrapf(err, "reading s3://%s/%s", bucket, key)
	}
	if n > 0 && tail.last != '\n' {
		if _, err = w.Write([]byte{'\n'}); err != nil {
			return n, errors.Wrap(err, "writing corpus")
		}
		n++
	}
	return n, nil
}

type lastByte struct {
	w    io.Writer
	last byte
}

func (lb *lastByte) Write(p []byte) (int, error) {
	if len(p) > 0 {
		lb.last = p[len(p)-1]
	}
	return lb.w.Write(p)
}

// FetchFile fetches location into a file under dir and returns its path.
func FetchFile(ctx context.Context, client Client, location,
	dir string) (string, error) {
	_, key, err := ParseURL(location)
	if err != nil {
		return "", err
	}
	name := path.Base(strings.TrimSuffix(key, "/"))
	if name == "" || name == "." || name == "/" {
		name = "corpus"
	}
	local := filepath.Join(dir, name+".txt")
	file, err := os.Create(local)
	if err != nil {
		return "", errors.Wrap(err, "creating local corpus")
	}
	n, err := Fetch(ctx, client, location, file)
	if closeErr := file.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		os.Remove(local)
		return "", err
	}
	klog.Infof("Fetched %s to %s (%s)", location, local,
		humanize.Bytes(uint64(n)))
	return local, nil
}

// Publish uploads files under the URL's key prefix, keeping their base
// names.
func Publish(ctx context.Context, client Client, location string,
	files []string) error {
	bucket, prefix, err := ParseURL(location)
	if err != nil {
		return err
	}
	if prefix != "" && !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}
	for _, local := range files {
		if err = putFile(ctx, client, bucket, prefix+filepath.Base(local),
			local); err != nil {
			return err
		}
	}
	return nil
}

func putFile(ctx context.Context, client Client, bucket, key,
	local string) error {
	file, err := os.Open(local)
	if err != nil {
		return errors.Wrap(err, "opening shard")
	}
	defer file.Close()
	stat, err := file.Stat()
	if err != nil {
		return errors.Wrap(err, "stat shard")
	}
	if _, err = client.PutObjectWithContext(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(bucket),
		Key:           aws.String(key),
		Body:          file,
		ContentLength: aws.Int64(stat.Size()),
	}); err != nil {
		return errors.Wrapf(err, "putting s3://%s/%s", bucket, key)
	}
	klog.Infof("Published %s to s3://%s/%s (%s)", local, bucket, key,
		humanize.Bytes(uint64(stat.Size())))
	return nil
}
