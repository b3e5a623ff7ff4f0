// Package cookiechunk splits cookie values across numbered slices so
// browsers never truncate them. Values are always stored as name.0,
// name.1, ... and reassembled on read; a value that fits in one cookie
// simply occupies name.0 alone. Read still accepts a legacy bare-name
// cookie.
package cookiechunk

import (
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
)

// DefaultChunkSize keeps each encoded slice safely under the 4096-byte
// browser limit once the name and attributes are counted in.
const DefaultChunkSize = 3180

// Write sets value as numbered slices under name.0, name.1, ...,
// splitting when the encoded form exceeds limit. Attributes (Domain,
// Path, Secure, ...) are taken from template; template.Name and
// template.Value are ignored. Slices left over from a previous, longer
// write are expired.
func Write(w http.ResponseWriter, r *http.Request, template http.Cookie, name, value string, limit int) {
	if limit <= 0 {
		limit = DefaultChunkSize
	}
	encoded := url.QueryEscape(value)

	// A legacy bare cookie must not shadow the sliced form.
	expire(w, template, name)

	count := 0
	for len(encoded) > 0 {
		n := limit
		if n > len(encoded) {
			n = len(encoded)
		}
		// Never split a percent escape across slices.
		for n > 0 && n < len(encoded) && isEscapeTail(encoded, n) {
			n--
		}
		set(w, template, fmt.Sprintf("%s.%d", name, count), encoded[:n])
		encoded = encoded[n:]
		count++
	}
	expireSlices(w, r, template, name, count)
}

// Read reassembles the value stored under name. A legacy bare cookie
// wins if present; otherwise name.0, name.1, ... are joined until the
// first gap. The second return reports whether anything was found.
func Read(r *http.Request, name string) (string, bool) {
	if c, err := r.Cookie(name); err == nil && c.Value != "" {
		decoded, err := url.QueryUnescape(c.Value)
		if err != nil {
			return "", false
		}
		return decoded, true
	}

	var b strings.Builder
	found := false
	for i := 0; ; i++ {
		c, err := r.Cookie(fmt.Sprintf("%s.%d", name, i))
		if err != nil || c.Value == "" {
			break
		}
		b.WriteString(c.Value)
		found = true
	}
	if !found {
		return "", false
	}
	decoded, err := url.QueryUnescape(b.String())
	if err != nil {
		return "", false
	}
	return decoded, true
}

// Remove expires the bare cookie and every slice present on the request.
func Remove(w http.ResponseWriter, r *http.Request, template http.Cookie, name string) {
	expire(w, template, name)
	expireSlices(w, r, template, name, 0)
}

func set(w http.ResponseWriter, template http.Cookie, name, encodedValue string) {
	c := template
	c.Name = name
	c.Value = encodedValue
	http.SetCookie(w, &c)
}

func expire(w http.ResponseWriter, template http.Cookie, name string) {
	c := template
	c.Name = name
	c.Value = ""
	c.MaxAge = -1
	http.SetCookie(w, &c)
}

// expireSlices clears every slice at index >= from that the client
// sent, so shrinking a value never leaves stale tails behind.
func expireSlices(w http.ResponseWriter, r *http.Request, template http.Cookie, name string, from int) {
	if r == nil {
		return
	}
	prefix := name + "."
	for _, c := range r.Cookies() {
		if !strings.HasPrefix(c.Name, prefix) {
			continue
		}
		idx, err := strconv.Atoi(c.Name[len(prefix):])
		if err != nil || idx < from {
			continue
		}
		expire(w, template, c.Name)
	}
}

// isEscapeTail reports whether cutting at n would split a %XX escape.
func isEscapeTail(s string, n int) bool {
	if s[n-1] == '%' {
		return true
	}
	if n >= 2 && s[n-2] == '%' {
		return true
	}
	return false
}
