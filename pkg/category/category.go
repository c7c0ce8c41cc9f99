// Package category maps repository paths to the fixed set of kernel subsystem
// buckets that line counts are reported against.
package category

import (
	"errors"
	"fmt"
	"strings"
)

// ErrUnknownCategory is returned when decoding an unrecognized category name.
var ErrUnknownCategory = errors.New("unknown category")

// Category is one of the tracked subsystem buckets. The zero value is
// Unclassified.
type Category int

// Tracked categories in report order.
const (
	// Unclassified is returned for paths outside every table.
	Unclassified Category = iota
	Core
	FS
	Driver
	Net
	Arch
	Misc
	Firmware
)

var names = [...]string{
	Unclassified: "",
	Core:         "core",
	FS:           "fs",
	Driver:       "driver",
	Net:          "net",
	Arch:         "arch",
	Misc:         "misc",
	Firmware:     "firmware",
}

// tables holds the first path segments owned by each category. Lookup order
// follows the slice order; the first table containing the segment wins.
var tables = []struct {
	cat      Category
	segments []string
}{
	{Core, []string{"init", "block", "ipc", "kernel", "lib", "mm", "virt"}},
	{FS, []string{"fs"}},
	{Driver, []string{"crypto", "drivers", "sound", "security"}},
	{Net, []string{"net"}},
	{Arch, []string{"arch"}},
	{Misc, []string{
		"Documentation", "scripts", "samples", "usr", "MAINTAINERS", "CREDITS",
		"README", ".gitignore", "Kbuild", "Makefile", "REPORTING-BUGS", ".mailmap",
		"COPYING", "tools", "Kconfig", "LICENSES", "certs", ".clang-format",
	}},
	{Firmware, []string{"firmware"}},
}

var lookup = buildLookup()

func buildLookup() map[string]Category {
	index := make(map[string]Category)

	for _, table := range tables {
		for _, segment := range table.segments {
			if _, exists := index[segment]; !exists {
				index[segment] = table.cat
			}
		}
	}

	return index
}

// Classify returns the category owning the first "/"-delimited segment of path,
// or Unclassified when no table contains it.
func Classify(path string) Category {
	folder, _, _ := strings.Cut(path, "/")

	return lookup[folder]
}

// All returns the tracked categories in report order. Unclassified is not
// included.
func All() []Category {
	return []Category{Core, FS, Driver, Net, Arch, Misc, Firmware}
}

// Parse maps a category name back to its Category. Unknown names yield
// (Unclassified, false).
func Parse(name string) (Category, bool) {
	for _, cat := range All() {
		if names[cat] == name {
			return cat, true
		}
	}

	return Unclassified, false
}

// String returns the report name of the category.
func (c Category) String() string {
	if c < 0 || int(c) >= len(names) {
		return ""
	}

	return names[c]
}

// Tracked reports whether the category has a bucket in the aggregate.
func (c Category) Tracked() bool {
	return c > Unclassified && c <= Firmware
}

// Segments returns a copy of the path segments owned by the category.
func (c Category) Segments() []string {
	for _, table := range tables {
		if table.cat == c {
			out := make([]string, len(table.segments))
			copy(out, table.segments)

			return out
		}
	}

	return nil
}

// MarshalText implements [encoding.TextMarshaler].
func (c Category) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

// UnmarshalText implements [encoding.TextUnmarshaler]. The empty name decodes
// to Unclassified.
func (c *Category) UnmarshalText(text []byte) error {
	if len(text) == 0 {
		*c = Unclassified

		return nil
	}

	cat, ok := Parse(string(text))
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownCategory, text)
	}

	*c = cat

	return nil
}
