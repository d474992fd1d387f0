// Package cpp implements the subset of the C preprocessor needed to
// read declarations out of headers: comment stripping, conditional
// compilation, object and function macro definition and expansion, and
// the #pragma pack timeline. Directives that only matter to a real
// compilation, like #include, are recognized and skipped.
package cpp

import "strings"

// StripComments removes line and block comments while leaving string and
// character literals alone. Newlines inside block comments are kept so
// line numbers in the result match the source.
func StripComments(src string) string {
	var out strings.Builder
	out.Grow(len(src))

	i := 0
	for i < len(src) {
		c := src[i]
		switch {
		case c == '/' && i+1 < len(src) && src[i+1] == '/':
			for i < len(src) && src[i] != '\n' {
				i++
			}
		case c == '/' && i+1 < len(src) && src[i+1] == '*':
			i += 2
			for i < len(src) {
				if src[i] == '*' && i+1 < len(src) && src[i+1] == '/' {
					i += 2
					break
				}
				if src[i] == '\n' {
					out.WriteByte('\n')
				}
				i++
			}
		case c == '"' || c == '\'':
			quote := c
			out.WriteByte(c)
			i++
			for i < len(src) {
				out.WriteByte(src[i])
				if src[i] == '\\' && i+1 < len(src) {
					i++
					out.WriteByte(src[i])
				} else if src[i] == quote {
					i++
					break
				}
				i++
			}
		default:
			out.WriteByte(c)
			i++
		}
	}
	return out.String()
}
