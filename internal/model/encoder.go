// Package model holds the label encoders and the prediction oracles that
// turn an encoded feature record into a budget prediction.
package model

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"budgetsense/internal/core"
)

// LabelEncoder maps the labels of one categorical column to integer codes.
// Classes are kept sorted and a label's code is its index, so two encoders
// built from the same vocabulary agree. Lookups ignore case and surrounding
// whitespace.
type LabelEncoder struct {
	classes []string
	index   map[string]int
}

// NewLabelEncoder builds an encoder over the distinct labels.
func NewLabelEncoder(labels []string) *LabelEncoder {
	classes := make([]string, 0, len(labels))
	for _, l := range labels {
		if l = strings.TrimSpace(l); l != "" {
			classes = append(classes, l)
		}
	}
	slices.Sort(classes)
	classes = slices.Compact(classes)

	index := make(map[string]int, len(classes))
	for i, c := range classes {
		key := normalize(c)
		if _, dup := index[key]; !dup {
			index[key] = i
		}
	}
	return &LabelEncoder{classes: classes, index: index}
}

func normalize(label string) string {
	return strings.ToLower(strings.TrimSpace(label))
}

// Classes returns a copy of the vocabulary in code order.
func (e *LabelEncoder) Classes() []string {
	return slices.Clone(e.classes)
}

// Transform returns the code of label, or ErrUnknownCategory.
func (e *LabelEncoder) Transform(label string) (int, error) {
	if code, ok := e.index[normalize(label)]; ok {
		return code, nil
	}
	return core.Unknown, fmt.Errorf("%w: %q", core.ErrUnknownCategory, label)
}

// Inverse returns the label for code, or ErrUnknownCategory.
func (e *LabelEncoder) Inverse(code int) (string, error) {
	if code < 0 || code >= len(e.classes) {
		return "", fmt.Errorf("%w: code %d", core.ErrUnknownCategory, code)
	}
	return e.classes[code], nil
}

// Encoders holds one LabelEncoder per categorical column.
type Encoders struct {
	columns map[string]*LabelEncoder
}

// NewEncoders builds encoders for every categorical column of tables.
func NewEncoders(tables core.Tables) *Encoders {
	columns := make(map[string]*LabelEncoder, len(core.CategoricalColumns))
	for _, col := range core.CategoricalColumns {
		vocab, _ := tables.Column(col)
		columns[col] = NewLabelEncoder(vocab)
	}
	return &Encoders{columns: columns}
}

func (e *Encoders) column(name string) (*LabelEncoder, error) {
	enc, ok := e.columns[name]
	if !ok {
		return nil, fmt.Errorf("%w: no encoder for column %q", core.ErrUnknownCategory, name)
	}
	return enc, nil
}

// Transform encodes label in column.
func (e *Encoders) Transform(column, label string) (int, error) {
	enc, err := e.column(column)
	if err != nil {
		return core.Unknown, err
	}
	return enc.Transform(label)
}

// Inverse decodes code in column.
func (e *Encoders) Inverse(column string, code int) (string, error) {
	enc, err := e.column(column)
	if err != nil {
		return "", err
	}
	return enc.Inverse(code)
}

// Encode is Transform with unknown labels mapped to core.Unknown.
func (e *Encoders) Encode(column, label string) int {
	code, err := e.Transform(column, label)
	if err != nil {
		return core.Unknown
	}
	return code
}

// MarshalJSON writes the encoders as column -> classes.
func (e *Encoders) MarshalJSON() ([]byte, error) {
	out := make(map[string][]string, len(e.columns))
	for col, enc := range e.columns {
		out[col] = enc.classes
	}
	return json.Marshal(out)
}

// UnmarshalJSON reads encoders written by MarshalJSON.
func (e *Encoders) UnmarshalJSON(data []byte) error {
	var in map[string][]string
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	e.columns = make(map[string]*LabelEncoder, len(in))
	for col, classes := range in {
		e.columns[col] = NewLabelEncoder(classes)
	}
	return nil
}

// LoadEncoders reads encoders from a JSON file. Every categorical column
// must be present and non-empty.
func LoadEncoders(path string) (*Encoders, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read encoders file: %w", err)
	}
	var enc Encoders
	if err := json.Unmarshal(data, &enc); err != nil {
		return nil, fmt.Errorf("decode encoders file %s: %w", path, err)
	}
	var problems []string
	for _, col := range core.CategoricalColumns {
		if c, ok := enc.columns[col]; !ok || len(c.classes) == 0 {
			problems = append(problems, fmt.Sprintf("encoder for %s is missing or empty", col))
		}
	}
	if len(problems) > 0 {
		return nil, &core.ConfigurationError{Problems: problems}
	}
	return &enc, nil
}

// Save writes the encoders as JSON, creating parent directories.
func (e *Encoders) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create encoders directory: %w", err)
	}
	data, err := json.MarshalIndent(e, "", "  ")
	if err != nil {
		return fmt.Errorf("encode encoders: %w", err)
	}
	if err := os.WriteFile(path, append(data, '\n'), 0644); err != nil {
		return fmt.Errorf("write encoders file: %w", err)
	}
	return nil
}
