package probe

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/tidwall/gjson"
	"gopkg.in/yaml.v3"

	"github.com/torosent/crankbench/internal/config"
	"github.com/torosent/crankbench/internal/trial"
)

// approximate encoded size of one record, used to size generated documents
const recordBytes = 96

type record struct {
	ID    int      `yaml:"id" json:"id"`
	Name  string   `yaml:"name" json:"name"`
	Score float64  `yaml:"score" json:"score"`
	Tags  []string `yaml:"tags" json:"tags"`
}

type document struct {
	Version int      `yaml:"version" json:"version"`
	Items   []record `yaml:"items" json:"items"`
}

// newDocument builds a document whose encoding is roughly size bytes.
func newDocument(size int) document {
	n := max(1, size/recordBytes)
	doc := document{Version: 1, Items: make([]record, n)}
	for i := range doc.Items {
		tags := []string{"even"}
		if i%2 == 1 {
			tags = []string{"odd", "probe"}
		}
		doc.Items[i] = record{
			ID:    i,
			Name:  fmt.Sprintf("item-%04d", i),
			Score: float64(i%100) / 4,
			Tags:  tags,
		}
	}
	return doc
}

// YAMLDecode parses a generated YAML document of about Size bytes on each
// step.
type YAMLDecode struct {
	base
	Size int

	encoded []byte
}

func (w *YAMLDecode) Kind() string { return config.KindYAML }

func (w *YAMLDecode) RunStep(context.Context) (any, error) {
	var doc document
	if err := yaml.Unmarshal(w.encoded, &doc); err != nil {
		return nil, fmt.Errorf("decode yaml: %w", err)
	}
	return len(doc.Items), nil
}

func (w *YAMLDecode) Hooks() trial.Hooks {
	return trial.Hooks{
		BeforeTest: func(context.Context, trial.State) error {
			b, err := yaml.Marshal(newDocument(w.Size))
			if err != nil {
				return fmt.Errorf("encode yaml: %w", err)
			}
			w.encoded = b
			return nil
		},
		DiscoverStep: w.discover,
		ResultRow:    throughputRow(w.Size),
	}
}

// Query selects the names of items with a score of at least 5.
const Query = `items.#(score>=5)#.name`

// JSONQuery runs Query against a generated JSON document of about Size bytes
// on each step.
type JSONQuery struct {
	base
	Size int

	encoded []byte
}

func (w *JSONQuery) Kind() string { return config.KindJSON }

func (w *JSONQuery) RunStep(context.Context) (any, error) {
	return len(gjson.GetBytes(w.encoded, Query).Array()), nil
}

func (w *JSONQuery) Hooks() trial.Hooks {
	return trial.Hooks{
		BeforeTest: func(context.Context, trial.State) error {
			doc := newDocument(w.Size)
			b, err := json.Marshal(doc)
			if err != nil {
				return fmt.Errorf("encode json: %w", err)
			}
			if !gjson.ValidBytes(b) {
				return errors.New("generated json is invalid")
			}
			if n := gjson.GetBytes(b, "items.#").Int(); n != int64(len(doc.Items)) {
				return fmt.Errorf("generated json has %d items, want %d", n, len(doc.Items))
			}
			w.encoded = b
			return nil
		},
		DiscoverStep: w.discover,
		ResultRow:    throughputRow(w.Size),
	}
}
