package listing_test

import (
	"os"
	"path/filepath"
	"testing"

	qt "github.com/frankban/quicktest"

	"fastxfer/listing"
)

func TestBuildWalksDirectoryDepthFirst(t *testing.T) {
	c := qt.New(t)

	root := t.TempDir()
	c.Assert(os.MkdirAll(filepath.Join(root, "sub", "nested"), 0o755), qt.IsNil)
	c.Assert(os.WriteFile(filepath.Join(root, "a.txt"), []byte("a"), 0o644), qt.IsNil)
	c.Assert(os.WriteFile(filepath.Join(root, "sub", "b.txt"), []byte("b"), 0o644), qt.IsNil)
	c.Assert(os.WriteFile(filepath.Join(root, "sub", "nested", "c.txt"), []byte("c"), 0o644), qt.IsNil)

	entries, err := listing.Build([]string{root})
	c.Assert(err, qt.IsNil)

	base := filepath.Base(root)

	var relPaths []string
	for _, e := range entries {
		relPaths = append(relPaths, e.RelativePath)
	}

	c.Assert(relPaths, qt.DeepEquals, []string{
		base,
		base + "/a.txt",
		base + "/sub",
		base + "/sub/b.txt",
		base + "/sub/nested",
		base + "/sub/nested/c.txt",
	})

	c.Assert(entries[0].Kind, qt.Equals, listing.Directory)
	c.Assert(entries[1].Kind, qt.Equals, listing.File)
}

func TestBuildSingleFile(t *testing.T) {
	c := qt.New(t)

	dir := t.TempDir()
	file := filepath.Join(dir, "solo.txt")
	c.Assert(os.WriteFile(file, []byte("solo"), 0o644), qt.IsNil)

	entries, err := listing.Build([]string{file})
	c.Assert(err, qt.IsNil)
	c.Assert(len(entries), qt.Equals, 1)
	c.Assert(entries[0].Kind, qt.Equals, listing.File)
	c.Assert(entries[0].RelativePath, qt.Equals, "solo.txt")
}

func TestBuildMissingPathErrors(t *testing.T) {
	c := qt.New(t)

	_, err := listing.Build([]string{filepath.Join(t.TempDir(), "does-not-exist")})
	c.Assert(err, qt.IsNotNil)
}
