package annotation

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/evolbiolab/paperval/internal/schema"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad(t *testing.T) {
	path := writeFile(t, "annotations.json", `{
		"validation_papers": {
			"paper-a": {
				"automated_extraction": {"title": "A"},
				"ground_truth": {"title": "A"},
				"notes": "checked",
				"annotator": "mk",
				"annotation_date": "2025-11-03"
			},
			"paper-b": {
				"automated_extraction": {"title": "B"},
				"ground_truth": null,
				"notes": "",
				"annotator": "",
				"annotation_date": ""
			}
		}
	}`)

	set, err := Load(path)
	require.NoError(t, err)
	require.Len(t, set.Papers, 2)

	assert.True(t, set.Papers["paper-a"].Annotated())
	assert.False(t, set.Papers["paper-b"].Annotated())
	assert.Equal(t, []string{"paper-a"}, set.Annotated())
	assert.Equal(t, []string{"paper-b"}, set.Pending())
}

func TestLoadMissingPapersKey(t *testing.T) {
	path := writeFile(t, "wrong.json", `{"papers": {}}`)

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "validation_papers")
}

func TestLoadEmptyPapersIsValid(t *testing.T) {
	// An empty set is well-formed; refusing to score zero papers is the
	// validator's decision, not the loader's.
	path := writeFile(t, "empty.json", `{"validation_papers": {}}`)

	set, err := Load(path)
	require.NoError(t, err)
	assert.Empty(t, set.Papers)
	assert.Empty(t, set.Annotated())
}

func TestLoadMalformedJSON(t *testing.T) {
	path := writeFile(t, "broken.json", `{"validation_papers": {`)

	_, err := Load(path)
	assert.Error(t, err)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.json"))
	assert.Error(t, err)
}

func TestNewSetAndRoundTrip(t *testing.T) {
	sch := &schema.Schema{Fields: map[string]schema.Field{
		"title":    {Type: schema.TypeString},
		"num_taxa": {Type: schema.TypeNumeric},
	}}
	require.NoError(t, sch.Validate())

	seeds := map[string]PaperSeed{
		"paper-a": {
			Extraction: map[string]any{"title": "A", "num_taxa": 4.0},
			PDFPath:    "pdfs/paper-a.pdf",
		},
		"paper-b": {
			Extraction: map[string]any{"title": "B"},
		},
	}

	set := NewSet(sch, seeds)
	require.Len(t, set.Papers, 2)
	assert.False(t, set.Papers["paper-a"].Annotated())
	assert.Equal(t, "pdfs/paper-a.pdf", set.Papers["paper-a"].PDFPath)
	require.NotNil(t, set.Instructions)
	assert.Equal(t, "string", set.Instructions.SchemaReference["title"])

	path := filepath.Join(t.TempDir(), "out.json")
	require.NoError(t, set.Save(path))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"paper-a", "paper-b"}, loaded.Pending())
	assert.Empty(t, loaded.Annotated())
	assert.Equal(t, "A", loaded.Papers["paper-a"].AutomatedExtraction["title"])
}

func TestSaveDeterministic(t *testing.T) {
	sch := &schema.Schema{Fields: map[string]schema.Field{
		"title": {Type: schema.TypeString},
	}}
	set := NewSet(sch, map[string]PaperSeed{
		"b": {Extraction: map[string]any{"title": "B"}},
		"a": {Extraction: map[string]any{"title": "A"}},
	})

	dir := t.TempDir()
	first := filepath.Join(dir, "first.json")
	second := filepath.Join(dir, "second.json")
	require.NoError(t, set.Save(first))
	require.NoError(t, set.Save(second))

	f, err := os.ReadFile(first)
	require.NoError(t, err)
	s, err := os.ReadFile(second)
	require.NoError(t, err)
	assert.Equal(t, f, s)
}

func TestDescribeField(t *testing.T) {
	tests := []struct {
		name  string
		field schema.Field
		want  string
	}{
		{"scalar", schema.Field{Type: schema.TypeBoolean}, "boolean"},
		{"bare list", schema.Field{Type: schema.TypeList}, "list of string"},
		{
			"list of objects",
			schema.Field{Type: schema.TypeList, Elem: &schema.Field{
				Type: schema.TypeObject,
				Fields: map[string]schema.Field{
					"species": {Type: schema.TypeString},
					"count":   {Type: schema.TypeNumeric},
				},
			}},
			"list of object{count: numeric, species: string}",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, describeField(tt.field))
		})
	}
}
