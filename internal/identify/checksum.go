package identify

// ValidNationalID validates a national-ID-like code: 6 to 20 digits where the
// last digit is a mod-10 check digit (Luhn) over the preceding ones. The
// check runs before any registry lookup so typos never produce a lookup miss
// that callers could confuse with an unregistered person.
func ValidNationalID(code string) bool {
	if len(code) < 6 || len(code) > 20 || !isDigits(code) {
		return false
	}
	return luhnCheckDigit(code[:len(code)-1]) == int(code[len(code)-1]-'0')
}

// luhnCheckDigit computes the mod-10 check digit for a digit string.
func luhnCheckDigit(digits string) int {
	sum := 0
	double := true
	for i := len(digits) - 1; i >= 0; i-- {
		d := int(digits[i] - '0')
		if double {
			d *= 2
			if d > 9 {
				d -= 9
			}
		}
		double = !double
		sum += d
	}
	return (10 - sum%10) % 10
}
