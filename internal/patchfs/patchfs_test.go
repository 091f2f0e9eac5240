package patchfs

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSanitizeEntitiesIdempotent(t *testing.T) {
	input := `He said &quot;hi&quot; and \"bye\" and &#34;ok&#34;`
	once := SanitizeEntities(input)
	twice := SanitizeEntities(once)
	assert.Equal(t, once, twice)
	assert.NotContains(t, once, "&quot;")
	assert.NotContains(t, once, `\"`)
}

func TestCheckSyntaxRejectsUnbalanced(t *testing.T) {
	err := CheckSyntax("app.py", "def f( :\n    pass\n")
	assert.Error(t, err)
}

func TestCheckSyntaxAcceptsValid(t *testing.T) {
	err := CheckSyntax("app.py", "def f():\n    pass\n")
	assert.NoError(t, err)
}

func TestWriteFileStillWritesOnSyntaxFailure(t *testing.T) {
	dir := t.TempDir()
	layer, err := NewLayer(dir)
	require.NoError(t, err)

	result, err := layer.WriteFile("app.py", "def f( :\n    pass\n")
	require.NoError(t, err)
	assert.True(t, result.Saved)
	assert.True(t, result.NeedsDebugging)

	data, err := os.ReadFile(filepath.Join(dir, "app.py"))
	require.NoError(t, err)
	assert.Contains(t, string(data), "def f(")
}

func TestWriteFileRecordsPatch(t *testing.T) {
	dir := t.TempDir()
	layer, err := NewLayer(dir)
	require.NoError(t, err)

	_, err = layer.WriteFile("x.py", "print(1)\n")
	require.NoError(t, err)
	result, err := layer.WriteFile("x.py", "print(2)\n")
	require.NoError(t, err)
	assert.NotEmpty(t, result.PatchPath)

	_, statErr := os.Stat(result.PatchPath)
	assert.NoError(t, statErr)
}
