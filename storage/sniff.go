package storage

import "bytes"

// magic maps leading byte signatures to the extension appended to a stored
// file's content hash.
var magic = []struct {
	prefix []byte
	ext    string
}{
	{[]byte("\x89PNG\r\n\x1a\n"), ".png"},
	{[]byte("\xff\xd8\xff"), ".jpeg"},
	{[]byte("%PDF"), ".pdf"},
	{[]byte("GIF87a"), ".gif"},
	{[]byte("GIF89a"), ".gif"},
	{[]byte("PK\x03\x04"), ".zip"},
	{[]byte("ID3"), ".mpeg"},
	{[]byte("\xff\xfb"), ".mpeg"},
}

// DetectExt sniffs a file extension from leading magic bytes.
// Unknown content yields an empty extension.
func DetectExt(data []byte) string {
	for _, m := range magic {
		if bytes.HasPrefix(data, m.prefix) {
			return m.ext
		}
	}
	return ""
}
