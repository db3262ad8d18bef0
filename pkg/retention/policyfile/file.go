package policyfile

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"chryso-hq/forms/pkg/retention"
)

// Extensions lists the file extensions treated as policy files.
var Extensions = []string{".yaml", ".yml"}

// document is the top-level layout of a policy file.
type document struct {
	Policies []entry `yaml:"policies"`
}

// entry decodes one policy, defaulting is_active to true.
type entry struct {
	retention.Policy
}

func (e *entry) UnmarshalYAML(node *yaml.Node) error {
	type plain retention.Policy
	p := plain{IsActive: true}
	if err := node.Decode(&p); err != nil {
		return err
	}
	e.Policy = retention.Policy(p)
	return nil
}

// FileError reports problems in one policy file.
type FileError struct {
	Path string
	Err  error
}

// Error implements the error interface.
func (e *FileError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("policy file: %v", e.Err)
	}
	return fmt.Sprintf("policy file %s: %v", e.Path, e.Err)
}

// Unwrap returns the underlying error.
func (e *FileError) Unwrap() error {
	return e.Err
}

// Parse decodes and validates a policy document. Defaults are applied to
// every policy. All validation problems are reported together.
func Parse(data []byte) ([]*retention.Policy, error) {
	var doc document
	dec := yaml.NewDecoder(bytes.NewReader(data))
	if err := dec.Decode(&doc); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	var (
		policies = make([]*retention.Policy, 0, len(doc.Policies))
		fields   []retention.FieldError
		seen     = make(map[string]int)
	)
	for i := range doc.Policies {
		p := doc.Policies[i].Policy
		p.ApplyDefaults()

		prefix := fmt.Sprintf("policies[%d]", i)
		if err := p.Validate(); err != nil {
			var ve *retention.ValidationError
			if errors.As(err, &ve) {
				for _, fe := range ve.Errors {
					fields = append(fields, retention.FieldError{Field: prefix + "." + fe.Field, Message: fe.Message})
				}
				continue
			}
			return nil, err
		}

		if p.IsActive {
			key := p.OrganizationID + "/" + string(p.EntityType)
			if j, dup := seen[key]; dup {
				fields = append(fields, retention.FieldError{
					Field:   prefix,
					Message: fmt.Sprintf("duplicate active policy for %s, first defined at policies[%d]", key, j),
				})
				continue
			}
			seen[key] = i
		}

		policies = append(policies, &p)
	}

	if len(fields) > 0 {
		return nil, &retention.ValidationError{Errors: fields}
	}
	return policies, nil
}

// Load reads policies from a file, or from every policy file in a directory
// in lexical order. Duplicate active policies across files are rejected.
func Load(path string) ([]*retention.Policy, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, &FileError{Path: path, Err: err}
	}
	if !info.IsDir() {
		return loadFile(path)
	}

	files, err := policyFiles(path)
	if err != nil {
		return nil, &FileError{Path: path, Err: err}
	}

	var (
		all  []*retention.Policy
		seen = make(map[string]string)
	)
	for _, f := range files {
		policies, err := loadFile(f)
		if err != nil {
			return nil, err
		}
		for _, p := range policies {
			if p.IsActive {
				key := p.OrganizationID + "/" + string(p.EntityType)
				if other, dup := seen[key]; dup {
					return nil, &FileError{Path: f, Err: fmt.Errorf("duplicate active policy for %s, also defined in %s", key, other)}
				}
				seen[key] = f
			}
			all = append(all, p)
		}
	}
	return all, nil
}

func loadFile(path string) ([]*retention.Policy, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &FileError{Path: path, Err: err}
	}
	policies, err := Parse(data)
	if err != nil {
		return nil, &FileError{Path: path, Err: err}
	}
	return policies, nil
}

func policyFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var files []string
	for _, e := range entries {
		if e.IsDir() || strings.HasPrefix(e.Name(), ".") || !hasPolicyExtension(e.Name()) {
			continue
		}
		files = append(files, filepath.Join(dir, e.Name()))
	}
	sort.Strings(files)
	return files, nil
}

func hasPolicyExtension(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	for _, valid := range Extensions {
		if ext == valid {
			return true
		}
	}
	return false
}
