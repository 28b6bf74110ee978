package source

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/samse/lottiekit/internal/shared"
)

// Kind is the origin of a composition.
type Kind int

const (
	KindFile Kind = iota
	KindResource
	KindAsset
	KindURL
	KindJSON
)

func (k Kind) String() string {
	return [...]string{"file", "resource", "asset", "url", "json"}[k]
}

// Source is a parsed source string.
type Source struct {
	Kind  Kind
	Value string
	ResID int
}

// Parse reads a source string:
//
//	res:<id>         bundled resource
//	asset:<name>     file in the asset filesystem
//	http(s)://...    remote document, cached locally
//	s3://bucket/key  remote document, cached locally
//	json:<payload>   inline document
//	anything else    local file path
func Parse(s string) (Source, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Source{}, fmt.Errorf("%w: empty source", shared.ErrMissingArgument)
	}

	scheme, rest, ok := strings.Cut(s, ":")
	if !ok {
		return Source{Kind: KindFile, Value: s}, nil
	}

	switch strings.ToLower(scheme) {
	case "res":
		id, err := strconv.Atoi(rest)
		if err != nil || id <= 0 {
			return Source{}, fmt.Errorf("%w: resource id %q", shared.ErrInvalidArgument, rest)
		}
		return Source{Kind: KindResource, ResID: id, Value: rest}, nil
	case "asset":
		if rest == "" {
			return Source{}, fmt.Errorf("%w: empty asset name", shared.ErrInvalidArgument)
		}
		return Source{Kind: KindAsset, Value: rest}, nil
	case "http", "https", "s3":
		return Source{Kind: KindURL, Value: s}, nil
	case "json":
		return Source{Kind: KindJSON, Value: rest}, nil
	default:
		return Source{Kind: KindFile, Value: s}, nil
	}
}
