// internal/provider/shape.go
//
// Connection-string shape classification.
//
// Context
// -------
// A tenant record does not declare which cloud its storage lives in; the
// format of the opaque connection string alone decides the driver.  All
// of the matching rules live in this one function so the priority and
// ambiguity decisions stay in one place and the "no recognized shape"
// case is exhaustive:
//
//   - Azure-style prefix                      → ShapeAzure
//   - ServiceURL override present             → ShapeGCS (S3 driver
//     pointed at that URL; covers GCS interoperability mode)
//   - AccountId and Bucket both present       → ShapeR2
//   - Bucket present without AccountId        → ShapeS3
//   - anything else                           → ErrUnsupportedShape
//
// Notes
// -----
//   - A misclassified string would write a tenant's assets to the wrong
//     backend, so there is no default shape, ever.
//   - Error text names the keys that were present, never their values.
//   - Oxford commas, two spaces after periods.
package provider

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Shape is the closed set of storage connection-string forms.
type Shape int

const (
	ShapeUnknown Shape = iota
	ShapeAzure
	ShapeS3
	ShapeR2
	ShapeGCS
)

func (s Shape) String() string {
	switch s {
	case ShapeAzure:
		return "azure"
	case ShapeS3:
		return "s3"
	case ShapeR2:
		return "r2"
	case ShapeGCS:
		return "gcs"
	default:
		return "unknown"
	}
}

// ErrUnsupportedShape means a connection string matched no known form.
// Fatal for that tenant's operation; never silently substituted.
var ErrUnsupportedShape = errors.New("unsupported storage configuration")

// azurePrefixes are the recognized openings of an Azure storage string.
var azurePrefixes = []string{
	"defaultendpointsprotocol=",
	"accountname=",
	"blobendpoint=",
	"usedevelopmentstorage=true",
}

// ConnString is one classified connection string.
type ConnString struct {
	Shape  Shape
	Raw    string
	fields map[string]string
}

// Field returns the value for a key (case-insensitive), or "".
func (c ConnString) Field(key string) string {
	return c.fields[strings.ToLower(key)]
}

// Classify parses and tags one storage connection string.
func Classify(raw string) (ConnString, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return ConnString{}, fmt.Errorf("%w: empty connection string", ErrUnsupportedShape)
	}

	fields := parseFields(trimmed)
	cs := ConnString{Raw: trimmed, fields: fields}

	lower := strings.ToLower(trimmed)
	for _, p := range azurePrefixes {
		if strings.HasPrefix(lower, p) {
			cs.Shape = ShapeAzure
			return cs, nil
		}
	}

	switch {
	case fields["serviceurl"] != "":
		cs.Shape = ShapeGCS
	case fields["accountid"] != "" && fields["bucket"] != "":
		cs.Shape = ShapeR2
	case fields["bucket"] != "":
		cs.Shape = ShapeS3
	default:
		keys := make([]string, 0, len(fields))
		for k := range fields {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		return ConnString{}, fmt.Errorf("%w: no recognized shape (keys: %s)",
			ErrUnsupportedShape, strings.Join(keys, ", "))
	}
	return cs, nil
}

// parseFields splits "Key=Value;Key=Value" into a lowercase-keyed map.
// Malformed segments are skipped; classification decides whether what
// remains is usable.
func parseFields(s string) map[string]string {
	fields := make(map[string]string, 8)
	for _, seg := range strings.Split(s, ";") {
		seg = strings.TrimSpace(seg)
		if seg == "" {
			continue
		}
		k, v, ok := strings.Cut(seg, "=")
		if !ok {
			continue
		}
		fields[strings.ToLower(strings.TrimSpace(k))] = strings.TrimSpace(v)
	}
	return fields
}
