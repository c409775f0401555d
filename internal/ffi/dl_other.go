//go:build !cgo || !unix

package ffi

// Open reports ErrUnsupported: this build cannot load dynamic libraries.
// Built-in plugins still work through Static.
func Open(path string) (Library, error) {
	return nil, &OpenError{Path: path, Err: ErrUnsupported}
}
