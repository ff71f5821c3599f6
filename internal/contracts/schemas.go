// Package contracts проверяет тела сообщений по JSON-схемам событий.
// Схемы лежат в events/<event-name>/v<N>.json и встраиваются в бинарник.
package contracts

import (
	"embed"
	"encoding/json"
	"fmt"
	"io/fs"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

//go:embed events
var schemasFS embed.FS

var (
	compiledSchemas map[string]*jsonschema.Schema
	compileErr      error
	compileOnce     sync.Once
)

// Load компилирует все схемы. Повторные вызовы возвращают результат первого.
func Load() error {
	compileOnce.Do(func() {
		compiledSchemas, compileErr = compileAll(schemasFS)
	})
	return compileErr
}

func compileAll(fsys fs.FS) (map[string]*jsonschema.Schema, error) {
	compiler := jsonschema.NewCompiler()
	compiler.AssertFormat = true

	// сначала все файлы как ресурсы, чтобы работали $ref между схемами
	var paths []string
	err := fs.WalkDir(fsys, "events", func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !strings.HasSuffix(path, ".json") {
			return nil
		}
		file, err := fsys.Open(path)
		if err != nil {
			return err
		}
		defer file.Close()
		if err := compiler.AddResource(path, file); err != nil {
			return fmt.Errorf("failed to add schema resource %s: %w", path, err)
		}
		paths = append(paths, path)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("error walking and adding schema resources: %w", err)
	}

	schemas := make(map[string]*jsonschema.Schema)
	for _, path := range paths {
		key := generateKeyFromPath(path)
		if key == "" {
			continue // общие фрагменты вроде events/failure.json
		}
		schema, err := compiler.Compile(path)
		if err != nil {
			return nil, fmt.Errorf("could not compile schema %s: %w", path, err)
		}
		schemas[key] = schema
	}
	return schemas, nil
}

// generateKeyFromPath преобразует "events/scrape-task/v1.json" в "ScrapeTaskEvent/1.0.0"
func generateKeyFromPath(path string) string {
	trimmedPath := strings.TrimPrefix(path, "events/")
	trimmedPath = strings.TrimSuffix(trimmedPath, ".json")

	parts := strings.Split(trimmedPath, "/")
	if len(parts) != 2 || !strings.HasPrefix(parts[1], "v") {
		return ""
	}

	caser := cases.Title(language.English)

	var eventName strings.Builder
	for _, p := range strings.Split(parts[0], "-") {
		eventName.WriteString(caser.String(p))
	}
	eventName.WriteString("Event")

	version := strings.TrimPrefix(parts[1], "v") + ".0.0"

	return fmt.Sprintf("%s/%s", eventName.String(), version)
}

// Registered возвращает ключи известных схем
func Registered() []string {
	if err := Load(); err != nil {
		return nil
	}
	keys := make([]string, 0, len(compiledSchemas))
	for k := range compiledSchemas {
		keys = append(keys, k)
	}
	return keys
}

// ValidateEvent проверяет тело сообщения по схеме eventType/eventVersion
func ValidateEvent(eventType, eventVersion string, body []byte) error {
	if err := Load(); err != nil {
		return err
	}

	key := fmt.Sprintf("%s/%s", eventType, eventVersion)
	schema, ok := compiledSchemas[key]
	if !ok {
		return fmt.Errorf("schema for event '%s' version '%s' not found", eventType, eventVersion)
	}

	var v interface{}
	if err := json.Unmarshal(body, &v); err != nil {
		return fmt.Errorf("message body is not a valid JSON: %w", err)
	}

	if err := schema.Validate(v); err != nil {
		return fmt.Errorf("JSON schema validation failed: %w", err)
	}
	return nil
}
