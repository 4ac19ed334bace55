package shortext

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHash3IsDeterministicAndInAlphabet(t *testing.T) {
	a := Hash3("longextension")
	b := Hash3("longextension")
	assert.Equal(t, a, b)
	assert.Len(t, a, 3)
	for _, c := range a {
		assert.Contains(t, alphabet, string(c))
	}
}

func TestTransformIdentityCases(t *testing.T) {
	fn := New()

	assert.Equal(t, ".gitignore", fn(".gitignore"))
	assert.Equal(t, "noext", fn("noext"))
	assert.Equal(t, "file.go", fn("file.go"))
	assert.Equal(t, "dir/.hidden.longextension", fn("dir/.hidden.longextension"))
}

func TestTransformReplacesLongExtension(t *testing.T) {
	fn := New()
	got := fn("dir/archive.longextension")
	assert.True(t, len(got) == len("dir/archive.")+3)
	assert.Equal(t, "dir/archive.", got[:len("dir/archive.")])
}

func TestIdentityNeverChangesName(t *testing.T) {
	for _, n := range []string{"a.txt", ".dot", "noext", "a/b/c.longextension"} {
		assert.Equal(t, n, Identity(n))
	}
}
