package archiver

import (
	"sort"
	"strings"
)

const (
	FormatZip      = "zip"
	Format7z       = "7z"
	headerEncrypt  = "-mhe=on"
	passwordMasked = "-p***"
)

// Format describes an archive format the archiver can write with a password.
type Format struct {
	Name string
	// Ext is the suffix appended to the source path, including the dot.
	Ext string
	// Type is the value passed to 7z as -t<type>.
	Type string
	// HeaderEncryption reports whether file names can be encrypted too.
	HeaderEncryption bool
}

// formats is the registry of writable formats. Only formats that 7z can
// protect with a password are listed.
var formats = map[string]Format{
	FormatZip: {Name: FormatZip, Ext: ".zip", Type: "zip"},
	Format7z:  {Name: Format7z, Ext: ".7z", Type: "7z", HeaderEncryption: true},
}

// LookupFormat returns the registered format by name (case-insensitive).
func LookupFormat(name string) (Format, bool) {
	f, ok := formats[strings.ToLower(strings.TrimSpace(name))]
	return f, ok
}

// FormatNames returns the registered format names in sorted order.
func FormatNames() []string {
	names := make([]string, 0, len(formats))
	for name := range formats {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
