package postprocess

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"

	"github.com/quantmind-br/bomgate/internal/domain"
)

const sampleBom = `{
  "bomFormat": "CycloneDX",
  "specVersion": "1.5",
  "components": [
    {"bom-ref": "pkg:npm/left-pad@1.3.0", "purl": "pkg:npm/left-pad@1.3.0", "scope": "required"},
    {"bom-ref": "pkg:npm/jest@29.0.0", "purl": "pkg:npm/jest@29.0.0", "scope": "optional"},
    {"bom-ref": "pkg:pypi/requests@2.31.0", "purl": "pkg:pypi/requests@2.31.0"},
    {"bom-ref": "pkg:maven/org.acme/core@1.0", "purl": "pkg:maven/org.acme/core@1.0", "scope": "excluded",
     "components": [{"bom-ref": "pkg:maven/org.acme/inner@1.0", "purl": "pkg:maven/org.acme/inner@1.0"}]},
    {"bom-ref": "app-internal", "name": "no purl"}
  ],
  "dependencies": [
    {"ref": "pkg:npm/left-pad@1.3.0", "dependsOn": ["pkg:npm/jest@29.0.0", "pkg:pypi/requests@2.31.0"]},
    {"ref": "pkg:npm/jest@29.0.0", "dependsOn": []},
    {"ref": "pkg:maven/org.acme/core@1.0", "dependsOn": ["pkg:maven/org.acme/inner@1.0"]},
    {"ref": "pkg:pypi/requests@2.31.0"}
  ]
}`

func run(t *testing.T, opts domain.RequestOptions) gjson.Result {
	t.Helper()
	out, err := NewFilter(nil).PostProcess(context.Background(), &domain.BomResult{Raw: []byte(sampleBom)}, opts)
	require.NoError(t, err)
	require.True(t, gjson.ValidBytes(out.Raw))
	return gjson.ParseBytes(out.Raw)
}

func refs(r gjson.Result, path string) []string {
	var out []string
	for _, v := range r.Get(path).Array() {
		out = append(out, v.String())
	}
	return out
}

func TestPostProcess_RequiredOnly(t *testing.T) {
	doc := run(t, domain.RequestOptions{RequiredOnly: true})

	assert.Equal(t, []string{
		"pkg:npm/left-pad@1.3.0",
		"pkg:pypi/requests@2.31.0",
		"app-internal",
	}, refs(doc, "components.#.bom-ref"))

	assert.Equal(t, []string{"pkg:npm/left-pad@1.3.0", "pkg:pypi/requests@2.31.0"}, refs(doc, "dependencies.#.ref"))
	assert.Equal(t, []string{"pkg:pypi/requests@2.31.0"}, refs(doc, "dependencies.0.dependsOn"))
	assert.Equal(t, "1.5", doc.Get("specVersion").String())
}

func TestPostProcess_Only(t *testing.T) {
	doc := run(t, domain.RequestOptions{Only: []string{"NPM"}})

	assert.Equal(t, []string{"pkg:npm/left-pad@1.3.0", "pkg:npm/jest@29.0.0"}, refs(doc, "components.#.bom-ref"))
	assert.Equal(t, []string{"pkg:npm/left-pad@1.3.0", "pkg:npm/jest@29.0.0"}, refs(doc, "dependencies.#.ref"))
}

func TestPostProcess_Filter(t *testing.T) {
	doc := run(t, domain.RequestOptions{Filter: []string{"jest", "internal"}})

	assert.Equal(t, []string{
		"pkg:npm/left-pad@1.3.0",
		"pkg:pypi/requests@2.31.0",
		"pkg:maven/org.acme/core@1.0",
	}, refs(doc, "components.#.bom-ref"))
	assert.Equal(t, []string{"pkg:pypi/requests@2.31.0"}, refs(doc, "dependencies.0.dependsOn"))
}

func TestPostProcess_FilterNested(t *testing.T) {
	doc := run(t, domain.RequestOptions{Filter: []string{"inner"}})

	assert.Empty(t, doc.Get("components.3.components").Array())
	assert.True(t, doc.Get("components.3.components").IsArray())
	assert.Empty(t, refs(doc, "dependencies.2.dependsOn"))
}

func TestPostProcess_DroppedParentDropsChildren(t *testing.T) {
	doc := run(t, domain.RequestOptions{RequiredOnly: true})

	for _, ref := range refs(doc, "dependencies.#.dependsOn|@flatten") {
		assert.NotEqual(t, "pkg:maven/org.acme/inner@1.0", ref)
	}
}

func TestPostProcess_NoComponents(t *testing.T) {
	in := &domain.BomResult{Raw: []byte(`{"bomFormat":"CycloneDX"}`)}
	out, err := NewFilter(nil).PostProcess(context.Background(), in, domain.RequestOptions{RequiredOnly: true})
	require.NoError(t, err)
	assert.JSONEq(t, `{"bomFormat":"CycloneDX"}`, string(out.Raw))
}

func TestPostProcess_StructuredDocument(t *testing.T) {
	in := &domain.BomResult{Document: map[string]any{
		"components": []map[string]string{{"purl": "pkg:npm/a@1"}, {"purl": "pkg:pypi/b@1"}},
	}}
	out, err := NewFilter(nil).PostProcess(context.Background(), in, domain.RequestOptions{Only: []string{"pypi"}})
	require.NoError(t, err)
	assert.Equal(t, []string{"pkg:pypi/b@1"}, refs(gjson.ParseBytes(out.Raw), "components.#.purl"))
}

func TestPostProcess_EmptyAndInvalid(t *testing.T) {
	f := NewFilter(nil)

	out, err := f.PostProcess(context.Background(), nil, domain.RequestOptions{RequiredOnly: true})
	require.NoError(t, err)
	assert.Nil(t, out)

	_, err = f.PostProcess(context.Background(), &domain.BomResult{Raw: []byte("{not json")}, domain.RequestOptions{RequiredOnly: true})
	assert.Error(t, err)
}
