// Package project loads ethograms, subjects and observations from project
// files.
package project

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/ethoflow/ethoflow/internal/model"
	eferrors "github.com/ethoflow/ethoflow/pkg/errors"
)

// Encoding is a project file encoding.
type Encoding int

const (
	EncodingJSON Encoding = iota
	EncodingYAML
)

// DetectEncoding picks an encoding from the file extension, falling back to
// sniffing the first non-space byte.
func DetectEncoding(path string, data []byte) Encoding {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return EncodingYAML
	case ".boris", ".json":
		return EncodingJSON
	}
	if trimmed := bytes.TrimSpace(data); len(trimmed) > 0 && trimmed[0] == '{' {
		return EncodingJSON
	}
	return EncodingYAML
}

// Load reads a project file.
func Load(path string) (*model.Project, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, eferrors.FileNotFound(path)
		}
		return nil, eferrors.ProjectLoad(path, err)
	}

	p, err := Decode(data, DetectEncoding(path, data))
	if err != nil {
		return nil, eferrors.ProjectLoad(path, err)
	}
	if p.Name == "" {
		p.Name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	return p, nil
}

// Decode parses project data in the given encoding.
func Decode(data []byte, enc Encoding) (*model.Project, error) {
	var (
		p   *model.Project
		err error
	)
	switch enc {
	case EncodingJSON:
		p, err = decodeBORIS(data)
	case EncodingYAML:
		p, err = decodeYAML(data)
	default:
		return nil, fmt.Errorf("unknown encoding %d", enc)
	}
	if err != nil {
		return nil, err
	}

	for _, obs := range p.Observations {
		obs.SortEvents()
	}
	return p, nil
}

// parseKind classifies a behavior type by its leading word, so BORIS
// variants such as "State event with coding map" keep their kind.
func parseKind(s string) (model.Kind, error) {
	t := strings.ToLower(strings.TrimSpace(s))
	switch {
	case strings.HasPrefix(t, "state"):
		return model.KindState, nil
	case t == "", strings.HasPrefix(t, "point"):
		return model.KindPoint, nil
	}
	return model.KindPoint, fmt.Errorf("unknown behavior type %q", s)
}
