package uri

import (
	"fmt"
	"net/url"
	"path/filepath"
	"strings"
)

// Kind classifies an input reference.
type Kind int

const (
	KindInvalid Kind = iota
	KindS3
	KindHTTP
)

func (k Kind) String() string {
	switch k {
	case KindS3:
		return "s3"
	case KindHTTP:
		return "http"
	default:
		return "invalid"
	}
}

const s3Scheme = "s3://"

// Classify decides whether uri is an S3 URI, an HTTP(S) URI or invalid.
// Invalid input is a terminal error for the whole pipeline, never a retry.
func Classify(raw string) Kind {
	if IsS3URI(raw) {
		return KindS3
	}
	if IsHTTPURI(raw) {
		return KindHTTP
	}
	return KindInvalid
}

// IsS3URI requires the s3:// scheme plus a non-empty bucket and object path.
func IsS3URI(raw string) bool {
	if !strings.HasPrefix(raw, s3Scheme) {
		return false
	}
	rest := strings.TrimPrefix(raw, s3Scheme)
	bucket, key, found := strings.Cut(rest, "/")
	return found && bucket != "" && key != ""
}

// IsHTTPURI validates http(s) syntax with a host and non-empty path.
func IsHTTPURI(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return false
	}
	return u.Host != "" && u.Path != "" && u.Path != "/"
}

// ParseS3URI splits s3://bucket/key/parts into bucket and object key.
func ParseS3URI(raw string) (bucket, key string, err error) {
	if !IsS3URI(raw) {
		return "", "", fmt.Errorf("not a valid S3 URI: %s", raw)
	}
	rest := strings.TrimPrefix(raw, s3Scheme)
	bucket, key, _ = strings.Cut(rest, "/")
	return bucket, key, nil
}

// AssetInfo derives the stable asset identifier and the file extension
// from the URI's file name. The asset id is the base name without extension.
func AssetInfo(raw string) (assetID, extension string) {
	fn := filepath.Base(strings.TrimSuffix(raw, "/"))
	if i := strings.IndexAny(fn, "?#"); i >= 0 {
		fn = fn[:i]
	}
	extension = strings.ToLower(filepath.Ext(fn))
	assetID = strings.TrimSuffix(fn, filepath.Ext(fn))
	return assetID, extension
}
