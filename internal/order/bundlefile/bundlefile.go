// Package bundlefile reads order definitions from YAML files so orders can
// be previewed and submitted without the interactive wizard.
//
//	assignment:
//	  kind: tenant
//	  tenant_id: "42"
//	fast_track: false
//	tags: [billing-q3]
//	bundles:
//	  - name: web
//	    count: 2
//	    region: lagos-1
//	    compute_instance_id: "5"
//	    os_image_id: "9"
//	    months: 3
//	    volume_types:
//	      - volume_type_id: "10"
//	        storage_size_gb: 50
package bundlefile

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"nathanbeddoewebdev/vpsorder/internal/order/domain"
)

// File is a parsed order definition.
type File struct {
	Assignment domain.OrderAssignment       `yaml:"assignment"`
	FastTrack  bool                         `yaml:"fast_track"`
	Tags       []string                     `yaml:"tags"`
	Bundles    []domain.ConfigurationBundle `yaml:"bundles"`
}

// Target receives a loaded file. *workflow.Workflow implements it.
type Target interface {
	SetBundles(bundles []domain.ConfigurationBundle) error
	SetAssignment(a domain.OrderAssignment) error
	SetFastTrack(on bool) error
	SetTags(tags []string)
}

// Load reads and parses the file at path.
func Load(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read bundle file: %w", err)
	}
	f, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return f, nil
}

// Parse decodes a bundle file. Unknown keys are rejected so a misspelt
// field is not silently dropped from the order.
func Parse(data []byte) (*File, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var f File
	if err := dec.Decode(&f); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, errors.New("bundle file is empty")
		}
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	if len(f.Bundles) == 0 {
		return nil, errors.New("bundle file defines no bundles")
	}
	if f.Assignment.Kind == "" {
		f.Assignment.Kind = domain.AssignNone
	}
	return &f, nil
}

// Apply loads the file into t.
func (f *File) Apply(t Target) error {
	if err := t.SetAssignment(f.Assignment); err != nil {
		return fmt.Errorf("invalid assignment: %w", err)
	}
	if err := t.SetBundles(f.Bundles); err != nil {
		return err
	}
	if err := t.SetFastTrack(f.FastTrack); err != nil {
		return err
	}
	t.SetTags(f.Tags)
	return nil
}
