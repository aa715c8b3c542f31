package extraction

import "strings"

// stripFences removes a surrounding markdown code fence.
func stripFences(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}

// repairJSON fixes two mistakes small models make often: a key missing its
// opening quote (`, type":`) and a trailing comma before a closing bracket.
// String contents are left untouched.
func repairJSON(s string) string {
	src := []rune(s)
	out := make([]rune, 0, len(src)+16)
	inString := false

	for i := 0; i < len(src); i++ {
		ch := src[i]

		if inString {
			out = append(out, ch)
			if ch == '\\' && i+1 < len(src) {
				i++
				out = append(out, src[i])
			} else if ch == '"' {
				inString = false
			}
			continue
		}

		switch ch {
		case '"':
			inString = true
			out = append(out, ch)
		case ',':
			j := skipSpace(src, i+1)
			if j < len(src) && (src[j] == '}' || src[j] == ']') {
				continue
			}
			out = append(out, ch)
			out, i = fixKey(src, out, i+1)
		case '{':
			out = append(out, ch)
			out, i = fixKey(src, out, i+1)
		default:
			out = append(out, ch)
		}
	}
	return string(out)
}

// fixKey copies whitespace starting at src[i] and, when it is followed by a bare
// word ending in `":`, emits the key with both quotes. It returns the index of
// the last rune consumed.
func fixKey(src, out []rune, i int) ([]rune, int) {
	j := skipSpace(src, i)
	out = append(out, src[i:j]...)
	if j >= len(src) || !isLetter(src[j]) {
		return out, j - 1
	}
	k := j
	for k < len(src) && (isLetter(src[k]) || src[k] == '_') {
		k++
	}
	if k+1 < len(src) && src[k] == '"' && src[k+1] == ':' {
		out = append(out, '"')
		out = append(out, src[j:k]...)
		out = append(out, '"')
		return out, k
	}
	return out, j - 1
}

func skipSpace(src []rune, i int) int {
	for i < len(src) && (src[i] == ' ' || src[i] == '\n' || src[i] == '\t' || src[i] == '\r') {
		i++
	}
	return i
}

// isLetter returns true if the rune is an ASCII letter.
func isLetter(r rune) bool {
	return (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z')
}
