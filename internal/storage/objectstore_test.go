package storage_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"skald/internal/storage"
)

func TestParseURI(t *testing.T) {
	cases := []struct {
		uri    string
		bucket string
		key    string
		ok     bool
	}{
		{"s3://docs/report.pdf", "docs", "report.pdf", true},
		{"s3://docs/nested/path/file.txt", "docs", "nested/path/file.txt", true},
		{"s3://docs", "", "", false},
		{"s3://docs/", "", "", false},
		{"s3:///key", "", "", false},
		{"http://docs/file", "", "", false},
		{"plain text", "", "", false},
	}
	for _, tc := range cases {
		bucket, key, err := storage.ParseURI(tc.uri)
		if tc.ok {
			assert.NoError(t, err, tc.uri)
		} else {
			assert.Error(t, err, tc.uri)
		}
		assert.Equal(t, tc.bucket, bucket, tc.uri)
		assert.Equal(t, tc.key, key, tc.uri)
	}
}
