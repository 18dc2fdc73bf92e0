package dataset

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"
	"gopkg.in/yaml.v3"

	"github.com/roach88/linx/internal/value"
)

// LoadError is a dataset file that could not be read.
type LoadError struct {
	Path    string
	Message string
	Pos     token.Pos // CUE position if available
}

func (e *LoadError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s", e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(), e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Path, e.Message)
}

// Load reads a dataset file, or every dataset file of a directory. The
// format follows the extension: .cue, .yaml/.yml or .json. The CUE files of
// a directory are unified into one value.
func Load(path string) (*Dataset, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, &LoadError{Path: path, Message: err.Error()}
	}
	if !info.IsDir() {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, &LoadError{Path: path, Message: err.Error()}
		}
		return Parse(path, data)
	}

	files, err := FindFiles(path)
	if err != nil {
		return nil, &LoadError{Path: path, Message: fmt.Sprintf("error scanning directory: %v", err)}
	}
	if len(files) == 0 {
		return nil, &LoadError{Path: path, Message: "no dataset files found"}
	}

	d := New()
	var cueFiles []string
	for _, f := range files {
		if filepath.Ext(f) == ".cue" {
			cueFiles = append(cueFiles, f)
			continue
		}
		data, err := os.ReadFile(f)
		if err != nil {
			return nil, &LoadError{Path: f, Message: err.Error()}
		}
		part, err := Parse(f, data)
		if err != nil {
			return nil, err
		}
		if err := d.merge(part); err != nil {
			return nil, &LoadError{Path: f, Message: err.Error()}
		}
	}
	if len(cueFiles) > 0 {
		part, err := loadCUEFiles(path, cueFiles)
		if err != nil {
			return nil, err
		}
		if err := d.merge(part); err != nil {
			return nil, &LoadError{Path: path, Message: err.Error()}
		}
	}
	return d, nil
}

// FindFiles returns the dataset files directly inside dir.
func FindFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var files []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		switch filepath.Ext(e.Name()) {
		case ".cue", ".yaml", ".yml", ".json":
			files = append(files, filepath.Join(dir, e.Name()))
		}
	}
	return files, nil
}

// Parse decodes dataset content; name selects the format by extension.
func Parse(name string, data []byte) (*Dataset, error) {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".cue":
		v := cuecontext.New().CompileBytes(data, cue.Filename(name))
		return fromCUE(name, v)
	case ".yaml", ".yml":
		var doc any
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return nil, &LoadError{Path: name, Message: fmt.Sprintf("parsing YAML: %v", err)}
		}
		return fromDocument(name, doc)
	case ".json":
		doc, err := decodeJSON(data)
		if err != nil {
			return nil, &LoadError{Path: name, Message: fmt.Sprintf("parsing JSON: %v", err)}
		}
		return fromDocument(name, doc)
	}
	return nil, &LoadError{Path: name, Message: "unknown dataset format (want .cue, .yaml, .yml or .json)"}
}

// loadCUEFiles compiles each file and unifies them, so tables may be split
// across files with or without a package clause.
func loadCUEFiles(dir string, files []string) (*Dataset, error) {
	ctx := cuecontext.New()
	v := ctx.CompileString("{}")
	for _, f := range files {
		data, err := os.ReadFile(f)
		if err != nil {
			return nil, &LoadError{Path: f, Message: err.Error()}
		}
		part := ctx.CompileBytes(data, cue.Filename(f))
		if err := part.Err(); err != nil {
			return nil, cueError(f, err)
		}
		v = v.Unify(part)
	}
	return fromCUE(dir, v)
}

// fromCUE reads the top-level fields of v as tables. Each table goes
// through JSON so CUE numbers come out as the same values as in JSON files.
func fromCUE(name string, v cue.Value) (*Dataset, error) {
	if err := v.Err(); err != nil {
		return nil, cueError(name, err)
	}
	iter, err := v.Fields()
	if err != nil {
		return nil, cueError(name, err)
	}
	d := New()
	for iter.Next() {
		b, err := iter.Value().MarshalJSON()
		if err != nil {
			return nil, cueError(name, err)
		}
		doc, err := decodeJSON(b)
		if err != nil {
			return nil, &LoadError{Path: name, Message: err.Error()}
		}
		rows, ok := doc.([]any)
		if !ok {
			return nil, &LoadError{Path: name, Message: fmt.Sprintf("table %s is not a list", iter.Label()), Pos: iter.Value().Pos()}
		}
		if err := d.Add(iter.Label(), rows); err != nil {
			return nil, &LoadError{Path: name, Message: err.Error()}
		}
	}
	return d, nil
}

func fromDocument(name string, doc any) (*Dataset, error) {
	m, ok := doc.(map[string]any)
	if !ok {
		return nil, &LoadError{Path: name, Message: fmt.Sprintf("top level must be a mapping of tables, got %T", doc)}
	}
	d := New()
	for table, v := range m {
		rows, ok := v.([]any)
		if !ok {
			return nil, &LoadError{Path: name, Message: fmt.Sprintf("table %s is not a list", table)}
		}
		if err := d.Add(table, rows); err != nil {
			return nil, &LoadError{Path: name, Message: err.Error()}
		}
	}
	return d, nil
}

// decodeJSON decodes JSON keeping integers integral.
func decodeJSON(data []byte) (any, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var doc any
	if err := dec.Decode(&doc); err != nil {
		return nil, err
	}
	return numbers(doc)
}

func numbers(v any) (any, error) {
	switch x := v.(type) {
	case json.Number:
		return value.ParseNumeric(x.String())
	case []any:
		for i, e := range x {
			n, err := numbers(e)
			if err != nil {
				return nil, err
			}
			x[i] = n
		}
	case map[string]any:
		for k, e := range x {
			n, err := numbers(e)
			if err != nil {
				return nil, err
			}
			x[k] = n
		}
	}
	return v, nil
}

// cueError extracts position info from CUE errors.
func cueError(name string, err error) error {
	list := errors.Errors(err)
	if len(list) == 0 {
		return &LoadError{Path: name, Message: err.Error()}
	}
	first := list[0]
	le := &LoadError{Path: name, Message: first.Error()}
	if positions := errors.Positions(first); len(positions) > 0 {
		le.Pos = positions[0]
	}
	return le
}
