package library

import (
	"bytes"
	"context"
	_ "embed"
	"encoding/json"
	"fmt"
	"io"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

//go:embed schemas/import.schema.json
var importSchemaJSON []byte

var (
	importSchemaOnce sync.Once
	importSchema     *jsonschema.Schema
	importSchemaErr  error
)

func compiledImportSchema() (*jsonschema.Schema, error) {
	importSchemaOnce.Do(func() {
		compiler := jsonschema.NewCompiler()
		if err := compiler.AddResource("import.schema.json", bytes.NewReader(importSchemaJSON)); err != nil {
			importSchemaErr = fmt.Errorf("failed to load import schema: %w", err)
			return
		}
		importSchema, importSchemaErr = compiler.Compile("import.schema.json")
		if importSchemaErr != nil {
			importSchemaErr = fmt.Errorf("failed to compile import schema: %w", importSchemaErr)
		}
	})
	return importSchema, importSchemaErr
}

type importDoc struct {
	Title       string     `json:"title"`
	Content     string     `json:"content"`
	Description string     `json:"description"`
	Favorite    bool       `json:"favorite"`
	Tags        []string   `json:"tags"`
	Variables   []Variable `json:"variables"`
}

// Import reads one exported prompt or an array of them and adds each as a new
// prompt. The document is checked against the import schema first; nothing
// is added if it does not match.
func (l *Library) Import(ctx context.Context, r io.Reader) ([]Prompt, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read import: %w", err)
	}

	var doc any
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decode import: %w", err)
	}

	schema, err := compiledImportSchema()
	if err != nil {
		return nil, err
	}
	if err := schema.Validate(doc); err != nil {
		return nil, fmt.Errorf("import does not match schema: %w", err)
	}

	var docs []importDoc
	if _, isArray := doc.([]any); isArray {
		if err := json.Unmarshal(data, &docs); err != nil {
			return nil, fmt.Errorf("decode import: %w", err)
		}
	} else {
		var one importDoc
		if err := json.Unmarshal(data, &one); err != nil {
			return nil, fmt.Errorf("decode import: %w", err)
		}
		docs = []importDoc{one}
	}

	added := make([]Prompt, 0, len(docs))
	for _, d := range docs {
		p, err := l.Add(ctx, Prompt{
			Title:       d.Title,
			Content:     d.Content,
			Description: d.Description,
			Favorite:    d.Favorite,
			Tags:        d.Tags,
			Variables:   d.Variables,
		})
		if err != nil {
			return added, fmt.Errorf("import %q: %w", d.Title, err)
		}
		added = append(added, *p)
	}
	return added, nil
}
