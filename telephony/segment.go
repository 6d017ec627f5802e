package telephony

import "unicode/utf16"

// Part capacities of a single short message and of one part of a
// concatenated message. Concatenated parts lose room to the user data
// header.
const (
	gsm7SingleSeptets = 160
	gsm7PartSeptets   = 153
	ucs2SingleUnits   = 70
	ucs2PartUnits     = 67
)

const gsm7Basic = "@£$¥èéùìòÇ\nØø\rÅåΔ_ΦΓΛΩΠΨΣΘΞ" +
	"ÆæßÉ !\"#¤%&'()*+,-./0123456789:;<=>?" +
	"¡ABCDEFGHIJKLMNOPQRSTUVWXYZÄÖÑÜ§¿abcdefghijklmnopqrstuvwxyzäöñüà"

// Characters reached through the escape code, two septets each.
const gsm7Extension = "\f^{}\\[~]|€"

var gsm7Cost = func() map[rune]int {
	cost := make(map[rune]int, len(gsm7Basic)+len(gsm7Extension))
	for _, r := range gsm7Basic {
		cost[r] = 1
	}
	for _, r := range gsm7Extension {
		cost[r] = 2
	}
	return cost
}()

// DivideMessage splits text into the parts a radio would transmit.
//
// Text that fits the GSM default alphabet is measured in septets, anything
// else in UTF-16 code units. Splits fall on character boundaries, so an
// escaped character or a surrogate pair never straddles two parts. Empty
// text yields a single empty part.
func DivideMessage(text string) []string {
	runes := []rune(text)
	if isGSM7(runes) {
		return split(runes, func(r rune) int { return gsm7Cost[r] }, gsm7SingleSeptets, gsm7PartSeptets)
	}
	return split(runes, utf16Len, ucs2SingleUnits, ucs2PartUnits)
}

func isGSM7(runes []rune) bool {
	for _, r := range runes {
		if _, ok := gsm7Cost[r]; !ok {
			return false
		}
	}
	return true
}

// Runes decoded from a string are never lone surrogates.
func utf16Len(r rune) int {
	return utf16.RuneLen(r)
}

func split(runes []rune, cost func(rune) int, single, part int) []string {
	total := 0
	for _, r := range runes {
		total += cost(r)
	}
	if total <= single {
		return []string{string(runes)}
	}

	var parts []string
	start, used := 0, 0
	for i, r := range runes {
		c := cost(r)
		if used+c > part {
			parts = append(parts, string(runes[start:i]))
			start, used = i, 0
		}
		used += c
	}
	return append(parts, string(runes[start:]))
}
