package notify

import "strings"

// SMS length limits: a single GSM-7 message carries 160 characters, a single
// UCS-2 message 70. Multi-part messages lose header space per segment.
const (
	gsmSingleLimit     = 160
	gsmMultipartLimit  = 153
	ucs2SingleLimit    = 70
	ucs2MultipartLimit = 67
)

const gsmBasicCharset = "abcdefghijklmnopqrstuvwxyz" +
	"ABCDEFGHIJKLMNOPQRSTUVWXYZ" +
	"0123456789" +
	" \n\r@£$¥èéùìòÇØøÅåΔ_ΦΓΛΩΠΨΣΘΞÆæßÉ!\"#¤%&'()*+,-./:;<=>?¡ÄÖÑÜ§¿äöñüà"

// extension characters cost two septets each in GSM-7.
const gsmExtensionCharset = "^{}\\[~]|€"

// IsGSM7 reports whether the body fits the GSM-7 basic plus extension set.
func IsGSM7(body string) bool {
	for _, r := range body {
		if !strings.ContainsRune(gsmBasicCharset, r) && !strings.ContainsRune(gsmExtensionCharset, r) {
			return false
		}
	}
	return true
}

// MessageSegments estimates how many SMS parts a body will bill as. Used for
// cost and length visibility, not enforcement.
func MessageSegments(body string) int {
	if body == "" {
		return 0
	}

	if IsGSM7(body) {
		length := 0
		for _, r := range body {
			if strings.ContainsRune(gsmExtensionCharset, r) {
				length += 2
			} else {
				length++
			}
		}
		if length <= gsmSingleLimit {
			return 1
		}
		return (length + gsmMultipartLimit - 1) / gsmMultipartLimit
	}

	length := len([]rune(body))
	if length <= ucs2SingleLimit {
		return 1
	}
	return (length + ucs2MultipartLimit - 1) / ucs2MultipartLimit
}
