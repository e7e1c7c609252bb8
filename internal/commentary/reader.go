package commentary

var (
	units = [...]string{"không", "một", "hai", "ba", "bốn", "năm", "sáu", "bảy", "tám", "chín"}
	tens  = [...]string{"", "mười", "hai mươi", "ba mươi", "bốn mươi", "năm mươi", "sáu mươi", "bảy mươi", "tám mươi", "chín mươi"}
)

// ReadVietnamese spells 0..99 the way a caller reads it aloud:
// 21 "hai mươi mốt", 15 "mười lăm", 24 "hai mươi tư".
// Out-of-range values are clamped.
func ReadVietnamese(n int) string {
	switch {
	case n < 0:
		n = 0
	case n > 99:
		n = 99
	}
	if n < 10 {
		return units[n]
	}

	ten, unit := n/10, n%10
	out := tens[ten]
	switch unit {
	case 0:
	case 1:
		if ten > 1 {
			out += " mốt"
		} else {
			out += " một"
		}
	case 4:
		if ten > 1 {
			out += " tư"
		} else {
			out += " bốn"
		}
	case 5:
		out += " lăm"
	default:
		out += " " + units[unit]
	}
	return out
}
