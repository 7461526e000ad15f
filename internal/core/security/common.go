package security

import "strings"

// commonPasswords is a short list of passwords seen at the top of every breach
// corpus. Matching is case-insensitive and ignores a trailing "!" or "1",
// which users commonly append to satisfy complexity rules.
var commonPasswords = map[string]struct{}{
	"password": {}, "password1": {}, "password123": {}, "passw0rd": {}, "p@ssw0rd": {}, "p@ssword": {},
	"123456": {}, "12345678": {}, "123456789": {}, "1234567890": {}, "qwerty": {}, "qwerty123": {},
	"qwertyuiop": {}, "letmein": {}, "welcome": {}, "welcome1": {}, "admin": {}, "admin123": {},
	"administrator": {}, "iloveyou": {}, "monkey": {}, "dragon": {}, "football": {}, "baseball": {},
	"sunshine": {}, "princess": {}, "trustno1": {}, "superman": {}, "starwars": {}, "whatever": {},
	"master": {}, "shadow": {}, "michael": {}, "changeme": {}, "secret": {}, "login": {},
	"abc123": {}, "111111": {}, "000000": {}, "1q2w3e4r": {}, "zaq12wsx": {}, "hello123": {},
	"summer2024": {}, "winter2024": {}, "spring2024": {}, "autumn2024": {}, "summer2025": {}, "winter2025": {},
	"company123": {}, "default": {}, "guest": {}, "test1234": {}, "qazwsx": {}, "asdfghjkl": {},
}

func isCommonPassword(password string) bool {
	p := strings.ToLower(strings.TrimSpace(password))
	for {
		if _, ok := commonPasswords[p]; ok {
			return true
		}
		trimmed := strings.TrimRight(p, "!1")
		if trimmed == p || trimmed == "" {
			return false
		}
		p = trimmed
	}
}
