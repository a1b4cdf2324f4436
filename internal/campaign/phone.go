package campaign

import "strings"

// FormatPhone normalizes a raw phone value to the `+1 (NNN) NNN-NNNN` form
// SMS providers accept. Ten digits are taken as a US number, eleven with a
// leading 1 drop the country digit, anything longer keeps its last ten
// digits. Fewer than ten digits cannot be a deliverable number and yield "".
func FormatPhone(raw string) string {
	var digits strings.Builder
	for _, r := range raw {
		if r >= '0' && r <= '9' {
			digits.WriteRune(r)
		}
	}
	d := digits.String()

	switch {
	case len(d) < 10:
		return ""
	case len(d) == 11 && d[0] == '1':
		d = d[1:]
	case len(d) > 10:
		d = d[len(d)-10:]
	}

	return "+1 (" + d[0:3] + ") " + d[3:6] + "-" + d[6:10]
}
