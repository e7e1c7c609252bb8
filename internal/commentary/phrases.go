package commentary

import "math/rand"

// Phrases is the built-in bank of calls used when no generator answers.
type Phrases struct {
	ByNumber map[int][]string
	Generic  []string
}

// DefaultPhrases returns the stock rhymes.
func DefaultPhrases() *Phrases {
	return &Phrases{
		ByNumber: map[int][]string{
			1:  {"Gì ra con mấy, con mấy gì ra. Trúc xinh trúc mọc đầu đình, em xinh em đứng một mình cũng xinh. Là con số 1."},
			10: {"Tròn trĩnh như quả trứng gà, là con số 10."},
			17: {"Mười bảy bẻ gãy sừng trâu. Là con 17."},
			22: {"Tuy em nó xấu nhưng mà kết cấu nó đẹp. Là con 22."},
			30: {"Ba mươi Tết đến nơi rồi, con 30."},
			40: {"Bốn mươi, bốn mươi, ai cười thì cười."},
			50: {"Năm mươi, năm mươi, nửa đời người."},
			60: {"Sáu mươi năm cuộc đời. Con 60."},
		},
		Generic: []string{
			"Cờ ra con mấy, con mấy gì ra.",
			"Lặng lặng mà nghe, tôi kêu con cờ ra.",
			"Gió thổi lung lay, bàn tay con số mấy.",
		},
	}
}

// Pick returns a phrase for n, falling back to the generic pool.
func (p *Phrases) Pick(n int, rng *rand.Rand) string {
	if list := p.ByNumber[n]; len(list) > 0 {
		return list[rng.Intn(len(list))]
	}
	if len(p.Generic) == 0 {
		return ""
	}
	return p.Generic[rng.Intn(len(p.Generic))]
}
