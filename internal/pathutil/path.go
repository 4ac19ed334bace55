// Package pathutil provides an immutable, slash-separated relative path
// type for archive entry names, along with the component operations the
// extraction engine needs (parent, basename, join, extension surgery).
//
// Paths are always relative: construction rejects a leading slash, a
// drive-letter or embedded colon, and backslashes, so an archive entry
// can never escape the destination directory.
package pathutil

import (
	"errors"
	"strings"
)

// ErrAbsolute is returned when a path string starts with '/'.
var ErrAbsolute = errors.New("pathutil: absolute paths are not supported")

// ErrDriveOrColon is returned when a path string contains ':'.
var ErrDriveOrColon = errors.New("pathutil: drive letters / colons are not supported")

// ErrBackslash is returned when a path string contains '\\'.
var ErrBackslash = errors.New("pathutil: backslashes are not supported")

// ErrEmpty is returned by operations that require at least one component.
var ErrEmpty = errors.New("pathutil: path has no components")

// Path is an immutable, ordered sequence of non-empty path components.
// The zero value is the empty path, which stringifies to "" and is
// conventionally treated as the current directory.
type Path struct {
	components []string
}

// New splits s on '/' into a Path.
//
// New fails if s starts with '/', contains ':', or contains '\\'. An
// empty string is valid and yields a Path with zero components. Runs of
// consecutive slashes collapse (empty components between slashes are
// dropped), matching the reference splitter's behavior.
func New(s string) (Path, error) {
	if s == "" {
		return Path{}, nil
	}
	if strings.HasPrefix(s, "/") {
		return Path{}, ErrAbsolute
	}
	if strings.ContainsRune(s, ':') {
		return Path{}, ErrDriveOrColon
	}
	if strings.ContainsRune(s, '\\') {
		return Path{}, ErrBackslash
	}
	var components []string
	for _, c := range strings.Split(s, "/") {
		if c != "" {
			components = append(components, c)
		}
	}
	return Path{components: components}, nil
}

// MustNew is like New but panics on error. Intended for constants and
// tests, not for archive entry names supplied by untrusted input.
func MustNew(s string) Path {
	p, err := New(s)
	if err != nil {
		panic(err)
	}
	return p
}

// Empty reports whether the path has zero components.
func (p Path) Empty() bool {
	return len(p.components) == 0
}

// String joins the components with '/'. The result never has a leading
// or trailing slash; the empty path stringifies to "".
func (p Path) String() string {
	return strings.Join(p.components, "/")
}

// Parent drops the last component. Parent fails on an empty path.
func (p Path) Parent() (Path, error) {
	if p.Empty() {
		return Path{}, ErrEmpty
	}
	out := make([]string, len(p.components)-1)
	copy(out, p.components[:len(p.components)-1])
	return Path{components: out}, nil
}

// Basename returns the last component. Basename fails on an empty path.
func (p Path) Basename() (string, error) {
	if p.Empty() {
		return "", ErrEmpty
	}
	return p.components[len(p.components)-1], nil
}

// Join appends other's components after p's, preserving the no-empty-
// component invariant.
func (p Path) Join(other Path) Path {
	out := make([]string, 0, len(p.components)+len(other.components))
	out = append(out, p.components...)
	out = append(out, other.components...)
	return Path{components: out}
}

// AddExt appends ext verbatim to the last component. If p has no
// components, AddExt creates one equal to ext. The caller supplies any
// leading dot; AddExt does not add one itself.
func (p Path) AddExt(ext string) Path {
	if p.Empty() {
		return Path{components: []string{ext}}
	}
	out := make([]string, len(p.components))
	copy(out, p.components)
	out[len(out)-1] += ext
	return Path{components: out}
}

// SplitExt splits the last component on its final '.', considering only
// the basename. It returns ok=false if there is no component, or the
// basename contains no dot.
//
// Unlike the string-level split (see SplitExtString), the returned stem
// path keeps the trailing dot on its last component, so stem.AddExt(ext)
// rebuilds the original path, including for filenames that begin with a
// dot (e.g. "a/archive.tar.gz" splits into stem "a/archive.tar." and ext
// "gz"; ".bashrc" splits into stem "." and ext "bashrc").
func (p Path) SplitExt() (stem Path, ext string, ok bool) {
	if p.Empty() {
		return Path{}, "", false
	}
	base := p.components[len(p.components)-1]
	idx := strings.LastIndexByte(base, '.')
	if idx < 0 {
		return Path{}, "", false
	}
	parent, _ := p.Parent() //nolint:errcheck // non-empty, checked above
	stemComponent := base[:idx+1]
	extComponent := base[idx+1:]
	out := make([]string, len(parent.components)+1)
	copy(out, parent.components)
	out[len(out)-1] = stemComponent
	return Path{components: out}, extComponent, true
}

// SplitExtString is the string-level counterpart of SplitExt: it
// returns (stem, ext) for s with the last dot removed from both sides,
// or ok=false if s contains no dot.
func SplitExtString(s string) (stem, ext string, ok bool) {
	idx := strings.LastIndexByte(s, '.')
	if idx < 0 {
		return s, "", false
	}
	return s[:idx], s[idx+1:], true
}
