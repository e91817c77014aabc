// Package resolver classifies content references and materializes them into
// a normalized input for a single invocation.
//
// Classification order (first match wins): object-storage URI, then an
// existing readable file, then inline text. The order is deliberate: a
// string that merely looks like a path but does not exist on disk must not
// become a failed file read — it falls through to inline text. Resolution is
// total and deterministic over the reference string and filesystem state.
package resolver

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	log "github.com/sirupsen/logrus"

	"skald/internal/models"
	"skald/internal/storage"
	"skald/internal/util"
)

// Resolver turns a content reference into a ResolvedInput.
type Resolver interface {
	Classify(reference string) models.SourceKind
	Resolve(ctx context.Context, reference string) (*models.ResolvedInput, error)
}

// New creates the default resolver. store may be nil when object storage is
// not configured; s3:// references then fail at resolution, not at
// classification.
func New(store storage.ObjectStore) Resolver {
	return &defaultResolver{store: store}
}

type defaultResolver struct {
	store storage.ObjectStore
}

// Classify assigns exactly one SourceKind to the reference. It never fails:
// anything that is neither a well-formed object URI nor an existing regular
// file is inline text.
func (r *defaultResolver) Classify(reference string) models.SourceKind {
	if strings.HasPrefix(reference, storage.URIScheme+"://") {
		if _, _, err := storage.ParseURI(reference); err == nil {
			return models.SourceObjectStorage
		}
		// Malformed s3:// strings fall through to the remaining checks.
	}

	fi, err := os.Stat(reference)
	if err == nil && fi.Mode().IsRegular() {
		return models.SourceLocalPath
	}

	return models.SourceInlineText
}

// Resolve materializes the referenced content. At most one external read is
// performed; retries belong to the storage collaborator.
func (r *defaultResolver) Resolve(ctx context.Context, reference string) (*models.ResolvedInput, error) {
	kind := r.Classify(reference)
	ref := models.ContentReference{Raw: reference, Kind: kind}

	switch kind {
	case models.SourceInlineText:
		return &models.ResolvedInput{
			Reference:   ref,
			ContentType: "text/plain; charset=utf-8",
			Text:        reference,
		}, nil

	case models.SourceLocalPath:
		data, err := os.ReadFile(reference)
		if err != nil {
			// The file existed at classification time; a read failure here
			// (permissions, races) is a real resolution failure.
			if errors.Is(err, os.ErrPermission) {
				return nil, fmt.Errorf("%w: permission denied reading %q", models.ErrUnresolvableInput, reference)
			}
			return nil, fmt.Errorf("%w: read %q: %v", models.ErrUnresolvableInput, reference, err)
		}
		log.Debugf("Resolved %q as local file (%d bytes)", reference, len(data))
		return buildInput(ref, reference, data)

	case models.SourceObjectStorage:
		if r.store == nil {
			return nil, fmt.Errorf("%w: %q is an object-storage URI but no object store is configured", models.ErrUnresolvableInput, reference)
		}
		data, err := r.store.ReadObject(ctx, reference)
		if err != nil {
			return nil, err
		}
		log.Debugf("Resolved %q from object storage (%d bytes)", reference, len(data))
		return buildInput(ref, reference, data)

	default:
		// The switch above is exhaustive over SourceKind.
		return nil, fmt.Errorf("%w: unhandled source kind %v", models.ErrUnresolvableInput, kind)
	}
}

// extensionTypes maps known file extensions to content types, consulted
// before byte sniffing.
var extensionTypes = map[string]string{
	".txt":  "text/plain; charset=utf-8",
	".md":   "text/markdown; charset=utf-8",
	".log":  "text/plain; charset=utf-8",
	".csv":  "text/csv; charset=utf-8",
	".json": "application/json",
	".yaml": "text/plain; charset=utf-8",
	".yml":  "text/plain; charset=utf-8",
	".sql":  "text/plain; charset=utf-8",
	".pdf":  "application/pdf",
	".docx": "application/vnd.openxmlformats-officedocument.wordprocessingml.document",
	".png":  "image/png",
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".mp3":  "audio/mpeg",
	".wav":  "audio/wav",
}

// binaryTypes are non-text content types the platform accepts as raw
// payloads for downstream document parsing.
var binaryTypes = map[string]bool{
	"application/pdf": true,
	"application/vnd.openxmlformats-officedocument.wordprocessingml.document": true,
	"image/png":  true,
	"image/jpeg": true,
	"audio/mpeg": true,
	"audio/wav":  true,
}

// buildInput infers a content type from the file extension, falling back to
// sniffing the payload, and populates Text or Data accordingly.
func buildInput(ref models.ContentReference, name string, data []byte) (*models.ResolvedInput, error) {
	contentType, ok := extensionTypes[strings.ToLower(filepath.Ext(name))]
	if !ok {
		contentType = http.DetectContentType(data)
	}

	in := &models.ResolvedInput{Reference: ref, ContentType: contentType}

	if isTextType(contentType) && !util.IsLikelyBinary(data) {
		text, err := util.CleanFileContent(data, ref.Raw)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", models.ErrUnsupportedContentType, err)
		}
		in.Text = text
		return in, nil
	}

	if binaryTypes[baseType(contentType)] {
		in.Data = data
		return in, nil
	}

	return nil, fmt.Errorf("%w: %q has content type %q", models.ErrUnsupportedContentType, ref.Raw, contentType)
}

func isTextType(contentType string) bool {
	base := baseType(contentType)
	return strings.HasPrefix(base, "text/") || base == "application/json"
}

// baseType strips parameters such as "; charset=utf-8".
func baseType(contentType string) string {
	base, _, _ := strings.Cut(contentType, ";")
	return strings.TrimSpace(base)
}
