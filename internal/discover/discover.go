// Package discover lists the archives published in the public trip-data S3
// bucket, so users can see which periods exist before fetching them.
package discover

import (
	"context"
	"fmt"
	"os"
	"regexp"
	"sort"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

const (
	// Bucket is the public bucket holding every published archive.
	Bucket = "tripdata"
	// Region the bucket lives in.
	Region = "us-east-1"
)

// archivePattern matches annual bundles (no month group) and monthly
// archives.
var archivePattern = regexp.MustCompile(`^(\d{4})(\d{2})?-citibike-tripdata\.(?:zip|csv\.zip)$`)

// Archive describes one listed object that parses as a trip-data archive.
type Archive struct {
	Key          string
	Size         int64
	LastModified time.Time
	Year         int
	Month        int // zero for annual bundles
}

// Lister enumerates trip-data archives from the bucket.
type Lister struct {
	client *s3.Client
}

// NewLister builds a read-only S3 client. The bucket is public, so requests
// are anonymous unless AWS credentials are present in the environment.
func NewLister() *Lister {
	opts := s3.Options{
		Region:      Region,
		Credentials: aws.AnonymousCredentials{},
	}
	if key, secret := os.Getenv("AWS_ACCESS_KEY_ID"), os.Getenv("AWS_SECRET_ACCESS_KEY"); key != "" && secret != "" {
		opts.Credentials = credentials.NewStaticCredentialsProvider(key, secret, "")
	}
	return &Lister{client: s3.New(opts)}
}

// ListArchives returns every recognisable archive in the bucket, ordered by
// (year, month). Objects that do not parse as archives (index pages, station
// data, checksums) are ignored.
func (l *Lister) ListArchives(ctx context.Context) ([]Archive, error) {
	var archives []Archive

	paginator := s3.NewListObjectsV2Paginator(l.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(Bucket),
	})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("list bucket %s: %w", Bucket, err)
		}
		for _, obj := range page.Contents {
			archive, ok := ParseKey(aws.ToString(obj.Key))
			if !ok {
				continue
			}
			archive.Size = aws.ToInt64(obj.Size)
			archive.LastModified = aws.ToTime(obj.LastModified)
			archives = append(archives, archive)
		}
	}

	sort.Slice(archives, func(i, j int) bool {
		if archives[i].Year != archives[j].Year {
			return archives[i].Year < archives[j].Year
		}
		return archives[i].Month < archives[j].Month
	})
	return archives, nil
}

// ParseKey interprets an object key as an archive name.
func ParseKey(key string) (Archive, bool) {
	m := archivePattern.FindStringSubmatch(key)
	if m == nil {
		return Archive{}, false
	}
	year, _ := strconv.Atoi(m[1])
	month := 0
	if m[2] != "" {
		month, _ = strconv.Atoi(m[2])
		if month < 1 || month > 12 {
			return Archive{}, false
		}
	}
	return Archive{Key: key, Year: year, Month: month}, true
}
