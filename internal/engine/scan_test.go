package engine

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCollectPairsSingleFile(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "src.txt")
	writeFile(t, src, []byte("x"))

	pairs, dirs, err := collectPairs(Config{
		Sources: []string{src},
		Dst:     filepath.Join(dir, "dst.txt"),
	})
	require.NoError(t, err)
	assert.Empty(t, dirs)
	require.Len(t, pairs, 1)
	assert.Equal(t, src, pairs[0].Src)
	assert.Equal(t, filepath.Join(dir, "dst.txt"), pairs[0].Dst)
}

func TestCollectPairsIntoExistingDir(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "src.txt")
	dstDir := filepath.Join(dir, "out")
	writeFile(t, src, []byte("x"))
	require.NoError(t, os.Mkdir(dstDir, 0o755))

	pairs, _, err := collectPairs(Config{Sources: []string{src}, Dst: dstDir})
	require.NoError(t, err)
	require.Len(t, pairs, 1)
	assert.Equal(t, filepath.Join(dstDir, "src.txt"), pairs[0].Dst)
}

func TestCollectPairsRecursiveTree(t *testing.T) {
	dir := t.TempDir()
	srcRoot := filepath.Join(dir, "tree")
	writeFile(t, filepath.Join(srcRoot, "a.txt"), []byte("a"))
	writeFile(t, filepath.Join(srcRoot, "sub", "b.txt"), []byte("b"))

	dstRoot := filepath.Join(dir, "mirror")
	pairs, dirs, err := collectPairs(Config{
		Sources:   []string{srcRoot},
		Dst:       dstRoot,
		Recursive: true,
	})
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{dstRoot, filepath.Join(dstRoot, "sub")}, dirs)
	assert.ElementsMatch(t, []Pair{
		{Src: filepath.Join(srcRoot, "a.txt"), Dst: filepath.Join(dstRoot, "a.txt")},
		{Src: filepath.Join(srcRoot, "sub", "b.txt"), Dst: filepath.Join(dstRoot, "sub", "b.txt")},
	}, pairs)
}

func TestCollectPairsErrors(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "src.txt")
	other := filepath.Join(dir, "other.txt")
	writeFile(t, src, []byte("x"))
	writeFile(t, other, []byte("y"))
	srcDir := filepath.Join(dir, "subdir")
	require.NoError(t, os.Mkdir(srcDir, 0o755))

	tests := []struct {
		name string
		cfg  Config
	}{
		{"no sources", Config{Dst: filepath.Join(dir, "dst")}},
		{"multiple sources need dir dest", Config{
			Sources: []string{src, other},
			Dst:     filepath.Join(dir, "dst.txt"),
		}},
		{"dir source without recursive", Config{
			Sources: []string{srcDir},
			Dst:     filepath.Join(dir, "dst"),
		}},
		{"stdin into directory", Config{
			Sources: []string{StdinSource},
			Dst:     dir,
		}},
		{"missing source", Config{
			Sources: []string{filepath.Join(dir, "absent.txt")},
			Dst:     filepath.Join(dir, "dst.txt"),
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := collectPairs(tt.cfg)
			require.Error(t, err)
		})
	}
}

func TestCollectPairsSkipsNonRegular(t *testing.T) {
	dir := t.TempDir()
	srcRoot := filepath.Join(dir, "tree")
	writeFile(t, filepath.Join(srcRoot, "real.txt"), []byte("x"))
	require.NoError(t, os.Symlink(
		filepath.Join(srcRoot, "real.txt"),
		filepath.Join(srcRoot, "link.txt"),
	))

	pairs, _, err := collectPairs(Config{
		Sources:   []string{srcRoot},
		Dst:       filepath.Join(dir, "mirror"),
		Recursive: true,
	})
	require.NoError(t, err)
	require.Len(t, pairs, 1)
	assert.Equal(t, filepath.Join(srcRoot, "real.txt"), pairs[0].Src)
}
