// Package storage holds the object-storage collaborator consumed by the
// input resolver. Retries and credential refresh, if any, belong to the
// client library, not to callers.
package storage

import (
	"context"
	"fmt"
	"strings"
)

// ObjectStore reads whole objects addressed by s3://bucket/key URIs.
type ObjectStore interface {
	ReadObject(ctx context.Context, uri string) ([]byte, error)
}

// URIScheme is the remote-storage scheme recognized by the classifier.
const URIScheme = "s3"

// ParseURI splits an s3://bucket/key reference. Both parts must be
// non-empty for the string to count as an object-storage URI.
func ParseURI(uri string) (bucket, key string, err error) {
	rest, ok := strings.CutPrefix(uri, URIScheme+"://")
	if !ok {
		return "", "", fmt.Errorf("not an %s:// URI: %q", URIScheme, uri)
	}
	bucket, key, ok = strings.Cut(rest, "/")
	if !ok || bucket == "" || key == "" {
		return "", "", fmt.Errorf("malformed object URI %q: want %s://bucket/key", uri, URIScheme)
	}
	return bucket, key, nil
}
