package imgbed

import (
	"path/filepath"
	"strings"
)

// DefaultExtension is used when an uploaded filename carries no extension.
const DefaultExtension = "jpg"

// Reference is the client-visible token for a stored blob, in the form
// "<handle>.<extension>". The handle is whatever the storage provider issued
// and may itself contain dots, dashes or underscores.
type Reference string

// EncodeReference joins a storage handle and a file extension into a
// Reference. The extension is lower-cased; an empty extension becomes
// DefaultExtension. No escaping is applied.
func EncodeReference(handle, ext string) Reference {
	ext = strings.ToLower(strings.TrimPrefix(ext, "."))
	if ext == "" {
		ext = DefaultExtension
	}
	return Reference(handle + "." + ext)
}

// DecodeReference splits a Reference at its last dot. Everything before the
// dot is the handle, verbatim. A reference without a dot is all handle with
// an empty extension.
func DecodeReference(ref Reference) (handle, ext string) {
	s := string(ref)
	i := strings.LastIndexByte(s, '.')
	if i < 0 {
		return s, ""
	}
	return s[:i], s[i+1:]
}

// Handle returns the storage handle part of the reference.
func (r Reference) Handle() string {
	handle, _ := DecodeReference(r)
	return handle
}

// Extension returns the extension part of the reference, possibly empty.
func (r Reference) Extension() string {
	_, ext := DecodeReference(r)
	return ext
}

// Path returns the retrieval path served for this reference.
func (r Reference) Path() string {
	return "/file/" + string(r)
}

// ExtensionFromFilename returns the lower-cased extension of name without
// the leading dot, or DefaultExtension when name has none.
func ExtensionFromFilename(name string) string {
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(name), "."))
	if ext == "" {
		return DefaultExtension
	}
	return ext
}
