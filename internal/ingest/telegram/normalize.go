package telegram

import (
	"regexp"
	"strings"
)

// leadingOrdinal strips a leading ordinal prefix such as "03) ", "12. ",
// "7_" or "21] " that chat exports commonly prepend to a filename.
var leadingOrdinal = regexp.MustCompile(`^\d{1,5}[\]).\-_\s]+\s*`)

// disallowedPathChars are characters no destination filesystem or the
// object store accepts in a name.
var disallowedPathChars = regexp.MustCompile(`[<>:"/\\|?*]`)

// NormalizeName strips a leading ordinal prefix and any disallowed
// filesystem characters from a chat-supplied file or caption name, falling
// back to "untitled" for a name that normalizes to empty.
func NormalizeName(name string) string {
	name = leadingOrdinal.ReplaceAllString(name, "")
	name = disallowedPathChars.ReplaceAllString(name, "")
	name = strings.TrimSpace(name)
	if name == "" {
		return "untitled"
	}
	return name
}
