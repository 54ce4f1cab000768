package security

// MaskPhone hides all but the country prefix and the last two digits: +84397912441 -> +84*******41.
func MaskPhone(phone string) string {
	if len(phone) <= 5 {
		return "****"
	}
	masked := []byte(phone)
	for i := 3; i < len(masked)-2; i++ {
		masked[i] = '*'
	}
	return string(masked)
}
