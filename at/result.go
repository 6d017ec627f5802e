package at

import (
	"strconv"
	"strings"
)

// Message service failure codes from 3GPP TS 27.005 §3.2.5 that the
// telephony layer distinguishes.
const (
	CmsNoNetworkService = 331
	CmsNetworkTimeout   = 332
)

// ParseCMSError extracts the numeric code of a "+CMS ERROR: <n>" line. With
// verbose errors enabled (AT+CMEE=2) some modems report text instead of a
// number; those lines return ok=false.
func ParseCMSError(line string) (code int, ok bool) {
	return parseNumeric(line, CmsError)
}

// ParseSendResult extracts the message reference of a "+CMGS: <mr>" line.
func ParseSendResult(line string) (mr int, ok bool) {
	return parseNumeric(line, SendResult)
}

func parseNumeric(line, prefix string) (int, bool) {
	line = strings.TrimSpace(line)
	if !strings.HasPrefix(line, prefix) {
		return 0, false
	}
	field := strings.TrimSpace(strings.TrimPrefix(line, prefix))
	if i := strings.IndexByte(field, ','); i >= 0 {
		field = field[:i]
	}
	n, err := strconv.Atoi(field)
	if err != nil {
		return 0, false
	}
	return n, true
}
