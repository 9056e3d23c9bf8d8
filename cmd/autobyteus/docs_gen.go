package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"reflect"
	"sort"
	"strings"

	"github.com/spf13/cobra"
	cobraDoc "github.com/spf13/cobra/doc"

	"github.com/AutoByteus/autobyteus-sub000/pkg/config"
	"github.com/AutoByteus/autobyteus-sub000/pkg/providers"
	"github.com/AutoByteus/autobyteus-sub000/pkg/tools"
)

func newDocsCommand(rootFactory func() *cobra.Command) *cobra.Command {
	docsRoot := &cobra.Command{
		Use:    "docs",
		Short:  "Internal docs maintenance commands",
		Hidden: true,
	}

	var (
		outputDir string
		checkOnly bool
	)

	gen := &cobra.Command{
		Use:   "generate",
		Short: "Generate reference docs from command/config/model/tool source",
		RunE: func(cmd *cobra.Command, args []string) error {
			if strings.TrimSpace(outputDir) == "" {
				return fmt.Errorf("--output must not be empty")
			}
			return generateDocumentation(rootFactory, outputDir, checkOnly)
		},
	}
	gen.Flags().StringVar(&outputDir, "output", "docs", "Docs directory root")
	gen.Flags().BoolVar(&checkOnly, "check", false, "Fail if generated docs are out of date")

	docsRoot.AddCommand(gen)
	return docsRoot
}

func generateDocumentation(rootFactory func() *cobra.Command, outputDir string, checkOnly bool) error {
	tmpDir, err := os.MkdirTemp("", "autobyteus-docs-gen-*")
	if err != nil {
		return fmt.Errorf("create temp docs dir: %w", err)
	}
	defer os.RemoveAll(tmpDir)

	if err := writeGeneratedReferences(rootFactory, tmpDir); err != nil {
		return err
	}

	generated, err := readTree(tmpDir)
	if err != nil {
		return err
	}
	if checkOnly {
		for rel, want := range generated {
			got, err := os.ReadFile(filepath.Join(outputDir, rel))
			if err != nil {
				return fmt.Errorf("docs out of date: missing %s", rel)
			}
			if !bytes.Equal(want, got) {
				return fmt.Errorf("docs out of date: %s differs; run `autobyteus docs generate`", rel)
			}
		}
		return nil
	}

	for rel, data := range generated {
		if err := writeTextFile(filepath.Join(outputDir, rel), string(data)); err != nil {
			return fmt.Errorf("write %s: %w", rel, err)
		}
	}
	return nil
}

func writeGeneratedReferences(rootFactory func() *cobra.Command, outDir string) error {
	cliRoot := rootFactory()
	markCommandsForDocgen(cliRoot)

	cliDir := filepath.Join(outDir, "reference", "cli")
	if err := os.MkdirAll(cliDir, 0o755); err != nil {
		return fmt.Errorf("create cli docs dir: %w", err)
	}
	prepender := func(filename string) string {
		title := strings.TrimSuffix(filepath.Base(filename), filepath.Ext(filename))
		title = strings.ReplaceAll(title, "_", " ")
		return fmt.Sprintf("# %s\n\n", strings.TrimSpace(title))
	}
	linkHandler := func(name string) string {
		return name
	}
	if err := cobraDoc.GenMarkdownTreeCustom(cliRoot, cliDir, prepender, linkHandler); err != nil {
		return fmt.Errorf("generate cli markdown docs: %w", err)
	}

	manDir := filepath.Join(outDir, "reference", "man")
	if err := os.MkdirAll(manDir, 0o755); err != nil {
		return fmt.Errorf("create man docs dir: %w", err)
	}
	header := &cobraDoc.GenManHeader{
		Title:   "AUTOBYTEUS",
		Section: "1",
		Source:  "autobyteus",
	}
	if err := cobraDoc.GenManTree(cliRoot, header, manDir); err != nil {
		return fmt.Errorf("generate man pages: %w", err)
	}

	references := []struct {
		name  string
		build func() (string, error)
	}{
		{"config.md", buildConfigReferenceMarkdown},
		{"models.md", buildModelsReferenceMarkdown},
		{"tools.md", buildToolsReferenceMarkdown},
	}
	for _, ref := range references {
		content, err := ref.build()
		if err != nil {
			return err
		}
		if err := writeTextFile(filepath.Join(outDir, "reference", ref.name), content); err != nil {
			return err
		}
	}
	return nil
}

func markCommandsForDocgen(cmd *cobra.Command) {
	cmd.DisableAutoGenTag = true
	for _, child := range cmd.Commands() {
		if child.Name() == "docs" {
			continue
		}
		markCommandsForDocgen(child)
	}
}

func writeTextFile(path string, content string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create parent dir for %s: %w", path, err)
	}
	return os.WriteFile(path, []byte(content), 0o644)
}

// readTree maps every file under root, by relative path, to its contents.
func readTree(root string) (map[string][]byte, error) {
	files := map[string][]byte{}
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		files[rel] = data
		return nil
	})
	if err != nil {
		return nil, err
	}
	return files, nil
}

type configFieldRow struct {
	Path    string
	Type    string
	Env     string
	Default string
}

func buildConfigReferenceMarkdown() (string, error) {
	defaults, err := flattenConfigDefaults()
	if err != nil {
		return "", err
	}

	rows := []configFieldRow{}
	collectConfigRows(reflect.TypeOf((*config.Config)(nil)).Elem(), "", "", defaults, &rows)
	sort.Slice(rows, func(i, j int) bool { return rows[i].Path < rows[j].Path })

	var b strings.Builder
	b.WriteString("# Config Reference\n\n")
	b.WriteString("Generated from `pkg/config/config.go` and `config.DefaultConfig()`.\n\n")
	b.WriteString("| Key | Type | Env Var | Default |\n")
	b.WriteString("| --- | --- | --- | --- |\n")
	for _, row := range rows {
		b.WriteString("| `" + escapePipes(row.Path) + "` | `" + escapePipes(row.Type) + "` | `" + escapePipes(valueOr(row.Env, "-")) + "` | `" + escapePipes(valueOr(row.Default, "-")) + "` |\n")
	}
	return b.String(), nil
}

// collectConfigRows walks json-tagged fields. envPrefix tags on nested
// structs are prepended to the env names below them.
func collectConfigRows(t reflect.Type, prefix, envPrefix string, defaults map[string]string, rows *[]configFieldRow) {
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		if !f.IsExported() {
			continue
		}
		jsonTag := strings.TrimSpace(strings.Split(f.Tag.Get("json"), ",")[0])
		if jsonTag == "" || jsonTag == "-" {
			continue
		}
		path := jsonTag
		if prefix != "" {
			path = prefix + "." + jsonTag
		}

		if f.Type.Kind() == reflect.Struct {
			collectConfigRows(f.Type, path, envPrefix+f.Tag.Get("envPrefix"), defaults, rows)
			continue
		}

		env := strings.TrimSpace(f.Tag.Get("env"))
		if env != "" {
			env = envPrefix + env
		}
		*rows = append(*rows, configFieldRow{
			Path:    path,
			Type:    friendlyType(f.Type),
			Env:     env,
			Default: defaults[path],
		})
	}
}

func flattenConfigDefaults() (map[string]string, error) {
	data, err := json.Marshal(config.DefaultConfig())
	if err != nil {
		return nil, err
	}
	var root map[string]interface{}
	if err := json.Unmarshal(data, &root); err != nil {
		return nil, err
	}
	out := map[string]string{}
	flattenMapValues("", root, out)
	return out, nil
}

func flattenMapValues(prefix string, v interface{}, out map[string]string) {
	typed, ok := v.(map[string]interface{})
	if !ok {
		encoded, _ := json.Marshal(v)
		out[prefix] = string(encoded)
		return
	}
	for k, child := range typed {
		next := k
		if prefix != "" {
			next = prefix + "." + k
		}
		flattenMapValues(next, child, out)
	}
}

func friendlyType(t reflect.Type) string {
	switch t.Kind() {
	case reflect.String:
		return "string"
	case reflect.Bool:
		return "bool"
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return "int"
	case reflect.Float32, reflect.Float64:
		return "float"
	case reflect.Slice:
		return "array<" + friendlyType(t.Elem()) + ">"
	case reflect.Map:
		return "map<" + friendlyType(t.Key()) + "," + friendlyType(t.Elem()) + ">"
	case reflect.Pointer:
		return "*" + friendlyType(t.Elem())
	default:
		return t.String()
	}
}

func buildModelsReferenceMarkdown() (string, error) {
	catalog := providers.NewModelCatalog()
	registry := providers.NewDefaultRegistry(nil)

	var b strings.Builder
	b.WriteString("# Model Reference\n\n")
	b.WriteString("Generated from the built-in model catalog. Override or extend it with a YAML file at `llm.model_catalog`.\n\n")
	b.WriteString("## Providers\n\n")
	for _, name := range registry.Names() {
		b.WriteString("- `" + name + "`\n")
	}
	b.WriteString("\n## Models\n\n")
	b.WriteString("| Model | Provider | Context Tokens | Max Output Tokens | Compaction Ratio | Safety Margin |\n")
	b.WriteString("| --- | --- | --- | --- | --- | --- |\n")
	for _, name := range catalog.Names() {
		meta, ok := catalog.Lookup(name)
		if !ok {
			continue
		}
		ratio := "-"
		if meta.DefaultCompactionRatio != nil {
			ratio = fmt.Sprint(*meta.DefaultCompactionRatio)
		}
		b.WriteString("| `" + escapePipes(name) + "` | " + valueOr(meta.Provider, "-") + " | " + intOr(meta.MaxContextTokens) + " | " + intOr(meta.DefaultMaxOutputTokens) + " | " + ratio + " | " + intOr(meta.DefaultSafetyMarginTokens) + " |\n")
	}
	return b.String(), nil
}

func buildToolsReferenceMarkdown() (string, error) {
	tmpWorkspace, err := os.MkdirTemp("", "autobyteus-docs-tools-*")
	if err != nil {
		return "", err
	}
	defer os.RemoveAll(tmpWorkspace)

	registry := tools.NewFileToolRegistry(tmpWorkspace, true, true, 0)

	var b strings.Builder
	b.WriteString("# Tool Reference\n\n")
	b.WriteString("Generated from runtime tool registration and tool descriptions.\n\n")
	b.WriteString("| Tool | Description |\n")
	b.WriteString("| --- | --- |\n")
	for _, line := range registry.GetSummaries() {
		name, desc := parseToolSummary(line)
		if name == "" {
			continue
		}
		b.WriteString("| `" + escapePipes(name) + "` | " + escapePipes(desc) + " |\n")
	}

	b.WriteString("\n## Notes\n\n")
	b.WriteString("- `write_file` refuses to write unless `tools.allow_write` is true.\n")
	b.WriteString("- `agent.restrict_to_workspace` confines every path argument to the workspace.\n")
	b.WriteString("- Tool calls and results are recorded in the memory store and may be summarized during compaction.\n")
	return b.String(), nil
}

func parseToolSummary(line string) (string, string) {
	trimmed := strings.TrimSpace(line)
	if !strings.HasPrefix(trimmed, "- `") {
		return "", ""
	}
	trimmed = strings.TrimPrefix(trimmed, "- `")
	parts := strings.SplitN(trimmed, "` - ", 2)
	if len(parts) != 2 {
		return "", ""
	}
	return strings.TrimSpace(parts[0]), strings.TrimSpace(parts[1])
}

func escapePipes(v string) string {
	return strings.ReplaceAll(v, "|", "\\|")
}
