package zap

import (
	"regexp"
	"strings"
)

// controlCharReplacer escapes control characters that can forge log lines in
// console encoders (CWE-117). Query text ends up in messages.
var controlCharReplacer = strings.NewReplacer(
	"\n", `\n`,
	"\r", `\r`,
	"\t", `\t`,
)

var (
	dsnUserInfoPattern = regexp.MustCompile(`(postgres(?:ql)?://)[^@\s/]+@`)
	dsnPasswordPattern = regexp.MustCompile(`(?i)(password=)[^\s&]+`)
)

func sanitizeString(s string) string {
	return controlCharReplacer.Replace(s)
}

// redactCredentials masks user info in postgres URLs and password=... pairs.
func redactCredentials(s string) string {
	s = dsnUserInfoPattern.ReplaceAllString(s, "${1}***@")
	return dsnPasswordPattern.ReplaceAllString(s, "${1}***")
}
