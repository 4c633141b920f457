package attr

import (
	"bufio"
	"io"
	"strings"
)

// Find returns the first well-formed offset attribute in attrs.
func Find(attrs []string) (v float64, safe bool, ok bool) {
	for _, a := range attrs {
		if v, safe, ok := Decode(a); ok {
			return v, safe, true
		}
	}
	return 0, false, false
}

// Remove drops every attribute starting with Prefix, keeping the order of
// the rest.
func Remove(attrs []string) []string {
	out := make([]string, 0, len(attrs))
	for _, a := range attrs {
		if !strings.HasPrefix(a, Prefix) {
			out = append(out, a)
		}
	}
	return out
}

// Set replaces any offset attribute in attrs with one encoding v.
func Set(attrs []string, v float64, safe bool) ([]string, error) {
	enc, err := Encode(v, safe)
	if err != nil {
		return nil, err
	}
	return append(Remove(attrs), enc), nil
}

// ReadTable reads a newline separated attribute list. Blank lines are skipped.
func ReadTable(r io.Reader) ([]string, error) {
	var attrs []string
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		attrs = append(attrs, line)
	}
	return attrs, sc.Err()
}

// WriteTable writes attrs one per line.
func WriteTable(w io.Writer, attrs []string) error {
	bw := bufio.NewWriter(w)
	for _, a := range attrs {
		if _, err := bw.WriteString(a); err != nil {
			return err
		}
		if err := bw.WriteByte('\n'); err != nil {
			return err
		}
	}
	return bw.Flush()
}
