// Package shortext implements the short-extension temp-name function used
// by the optional atomic-rename optimization: extracting to a name whose
// extension is a deterministic 3-character hash of the original, then
// renaming into place. On filesystems where long extensions are
// measurably slower to create (notably under certain anti-virus
// products), this shortens the window during which the file exists under
// its real, possibly-long extension.
package shortext

import (
	"strings"

	"github.com/no-more-secrets/p-unzip/internal/pathutil"
)

const alphabet = "abcdefghijklmnopqrstuvwxyz0123456789"

// Func maps an archive entry name to the name it should be extracted to.
type Func func(name string) string

// Identity never substitutes a temp name; it is the function used when
// the short-extension optimization is disabled.
func Identity(name string) string { return name }

// New returns the short-extension Func: identity for dotfiles, names with
// no extension, and names whose extension is already 3 characters or
// shorter; otherwise the extension is replaced by a deterministic 3-char
// hash of itself.
func New() Func {
	return transform
}

func transform(name string) string {
	base := name
	if idx := strings.LastIndexByte(name, '/'); idx >= 0 {
		base = name[idx+1:]
	}
	if strings.HasPrefix(base, ".") {
		return name
	}

	_, ext, ok := pathutil.SplitExtString(base)
	if !ok {
		return name
	}
	if len(ext) <= 3 {
		return name
	}

	hashed := Hash3(ext)

	dir := name[:len(name)-len(base)]
	newBase := base[:len(base)-len(ext)] + hashed
	return dir + newBase
}

// Hash3 deterministically maps ext to a 3-character string drawn from
// [a-z0-9], using a 32-bit FNV-like mix seeded at 37.
func Hash3(ext string) string {
	h := uint32(37)
	for i := 0; i < len(ext); i++ {
		h = (h * 54059) ^ (uint32(ext[i]) * 76963)
	}
	return string([]byte{
		alphabet[byte(h)%36],
		alphabet[byte(h>>8)%36],
		alphabet[byte(h>>16)%36],
	})
}
