package security

const maskEllipsis = "..."

// MaskAPIKey returns a display form of key: the first 8 and last 4 characters
// for keys longer than 12, otherwise only a 4 character prefix, and nothing
// at all for keys of 4 characters or less. The result is for display only.
func MaskAPIKey(key string) string {
	if key == "" {
		return ""
	}
	r := []rune(key)
	if len(r) <= 4 {
		return maskEllipsis
	}
	if len(r) <= 12 {
		return string(r[:4]) + maskEllipsis
	}
	return string(r[:8]) + maskEllipsis + string(r[len(r)-4:])
}
