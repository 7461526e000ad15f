// Package security holds the primitives of the authentication core:
// password policy and hashing, random tokens, the credential codec and
// API key masking. Nothing in here performs I/O.
package security

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"unicode"
	"unicode/utf8"

	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/bcrypt"
)

const (
	MinPasswordLength = 8
	MaxPasswordLength = 128
)

// Strength tiers reported by ValidatePassword.
const (
	StrengthWeak   = "weak"
	StrengthFair   = "fair"
	StrengthStrong = "strong"
)

// Policy rule messages. They double as the requirement checklist.
const (
	ruleMinLength = "Password must be at least 8 characters long"
	ruleMaxLength = "Password must be at most 128 characters long"
	ruleUpper     = "Password must contain at least one uppercase letter"
	ruleLower     = "Password must contain at least one lowercase letter"
	ruleDigit     = "Password must contain at least one number"
	ruleSymbol    = "Password must contain at least one special character"
	ruleCommon    = "Password is too common"
	rulePattern   = "Password must not contain repeated or sequential characters"
)

// PasswordValidation is the result of ValidatePassword.
type PasswordValidation struct {
	Valid    bool     `json:"valid"`
	Errors   []string `json:"errors"`
	Strength string   `json:"strength"`
}

// PasswordRequirements returns the checklist shown to clients.
func PasswordRequirements() []string {
	return []string{ruleMinLength, ruleUpper, ruleLower, ruleDigit, ruleSymbol, ruleCommon, rulePattern}
}

// ValidatePassword checks password against every policy rule and returns all
// violations, not just the first one.
func ValidatePassword(password string) PasswordValidation {
	var errs []string

	n := utf8.RuneCountInString(password)
	if n < MinPasswordLength {
		errs = append(errs, ruleMinLength)
	}
	if n > MaxPasswordLength {
		errs = append(errs, ruleMaxLength)
	}

	var hasUpper, hasLower, hasDigit, hasSymbol bool
	for _, c := range password {
		switch {
		case unicode.IsUpper(c):
			hasUpper = true
		case unicode.IsLower(c):
			hasLower = true
		case unicode.IsDigit(c):
			hasDigit = true
		case unicode.IsPunct(c) || unicode.IsSymbol(c) || unicode.IsSpace(c):
			hasSymbol = true
		}
	}
	if !hasUpper {
		errs = append(errs, ruleUpper)
	}
	if !hasLower {
		errs = append(errs, ruleLower)
	}
	if !hasDigit {
		errs = append(errs, ruleDigit)
	}
	if !hasSymbol {
		errs = append(errs, ruleSymbol)
	}
	if isCommonPassword(password) {
		errs = append(errs, ruleCommon)
	}
	if hasTrivialPattern(password) {
		errs = append(errs, rulePattern)
	}

	classes := 0
	for _, ok := range []bool{hasUpper, hasLower, hasDigit, hasSymbol} {
		if ok {
			classes++
		}
	}

	return PasswordValidation{
		Valid:    len(errs) == 0,
		Errors:   errs,
		Strength: strength(n, classes, len(errs)),
	}
}

func strength(length, classes, violations int) string {
	switch {
	case length < MinPasswordLength || classes <= 2:
		return StrengthWeak
	case violations == 0 && length >= 12:
		return StrengthStrong
	default:
		return StrengthFair
	}
}

// hasTrivialPattern detects three identical characters in a row or four
// consecutive ascending/descending characters ("aaa", "1234", "dcba").
func hasTrivialPattern(password string) bool {
	runes := []rune(strings.ToLower(password))
	repeat, asc, desc := 1, 1, 1
	for i := 1; i < len(runes); i++ {
		prev, cur := runes[i-1], runes[i]

		if cur == prev {
			repeat++
		} else {
			repeat = 1
		}
		if cur == prev+1 && isAlnum(cur) && isAlnum(prev) {
			asc++
		} else {
			asc = 1
		}
		if cur == prev-1 && isAlnum(cur) && isAlnum(prev) {
			desc++
		} else {
			desc = 1
		}

		if repeat >= 3 || asc >= 4 || desc >= 4 {
			return true
		}
	}
	return false
}

func isAlnum(r rune) bool {
	return (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9')
}

// Argon2Params are the Argon2id cost parameters. They are a deployment
// constant, never taken from the request.
type Argon2Params struct {
	Memory      uint32
	Iterations  uint32
	Parallelism uint8
	SaltLen     uint32
	KeyLen      uint32
}

func DefaultArgon2Params() Argon2Params {
	return Argon2Params{
		Memory:      64 * 1024,
		Iterations:  3,
		Parallelism: 4,
		SaltLen:     16,
		KeyLen:      32,
	}
}

var hashParams = DefaultArgon2Params()

// HashPassword returns a PHC-style Argon2id string.
// Format: argon2id$v=19$m=65536,t=3,p=4$<salt_b64>$<hash_b64>
func HashPassword(password string) (string, error) {
	return hashWithParams(password, hashParams)
}

func hashWithParams(password string, p Argon2Params) (string, error) {
	if password == "" {
		return "", errors.New("password is required")
	}
	salt := make([]byte, p.SaltLen)
	if _, err := rand.Read(salt); err != nil {
		return "", err
	}
	h := argon2.IDKey([]byte(password), salt, p.Iterations, p.Memory, p.Parallelism, p.KeyLen)
	enc := base64.RawStdEncoding
	return fmt.Sprintf(
		"argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version,
		p.Memory,
		p.Iterations,
		p.Parallelism,
		enc.EncodeToString(salt),
		enc.EncodeToString(h),
	), nil
}

// VerifyPassword reports whether password matches encoded. It never fails:
// malformed or unsupported hashes simply do not match. bcrypt hashes written
// before the Argon2id migration are still accepted.
func VerifyPassword(password, encoded string) bool {
	if password == "" || encoded == "" {
		return false
	}
	if isBcrypt(encoded) {
		return bcrypt.CompareHashAndPassword([]byte(encoded), []byte(password)) == nil
	}
	p, salt, want, err := parsePHC(encoded)
	if err != nil {
		return false
	}
	got := argon2.IDKey([]byte(password), salt, p.Iterations, p.Memory, p.Parallelism, uint32(len(want)))
	return subtle.ConstantTimeCompare(got, want) == 1
}

// NeedsRehash reports whether encoded was produced by an older scheme or with
// weaker parameters than the current ones.
func NeedsRehash(encoded string) bool {
	if isBcrypt(encoded) {
		return true
	}
	p, _, hash, err := parsePHC(encoded)
	if err != nil {
		return true
	}
	return p.Memory < hashParams.Memory ||
		p.Iterations < hashParams.Iterations ||
		uint32(len(hash)) < hashParams.KeyLen
}

var (
	dummyOnce sync.Once
	dummyHash string
)

// BurnVerification performs a verification that always fails, costing the
// same as a real one. Login calls it when the account does not exist.
func BurnVerification(password string) {
	dummyOnce.Do(func() {
		dummyHash, _ = HashPassword("dummy-password-for-timing")
	})
	_ = VerifyPassword(password+"\x00", dummyHash)
}

func isBcrypt(s string) bool {
	return strings.HasPrefix(s, "$2a$") || strings.HasPrefix(s, "$2b$") || strings.HasPrefix(s, "$2y$")
}

func parsePHC(s string) (Argon2Params, []byte, []byte, error) {
	// argon2id$v=19$m=65536,t=3,p=4$<salt>$<hash>
	parts := strings.Split(s, "$")
	if len(parts) != 5 {
		return Argon2Params{}, nil, nil, errors.New("invalid password hash format")
	}
	if parts[0] != "argon2id" {
		return Argon2Params{}, nil, nil, errors.New("unsupported password hash algorithm")
	}
	ver, err := strconv.Atoi(strings.TrimPrefix(parts[1], "v="))
	if err != nil || !strings.HasPrefix(parts[1], "v=") || ver != argon2.Version {
		return Argon2Params{}, nil, nil, errors.New("unsupported argon2 version")
	}

	var p Argon2Params
	for _, kv := range strings.Split(parts[2], ",") {
		key, val, ok := strings.Cut(kv, "=")
		if !ok {
			return Argon2Params{}, nil, nil, errors.New("invalid argon2 parameters")
		}
		switch key {
		case "m":
			v, err := strconv.ParseUint(val, 10, 32)
			if err != nil || v == 0 {
				return Argon2Params{}, nil, nil, errors.New("invalid argon2 memory")
			}
			p.Memory = uint32(v)
		case "t":
			v, err := strconv.ParseUint(val, 10, 32)
			if err != nil || v == 0 {
				return Argon2Params{}, nil, nil, errors.New("invalid argon2 iterations")
			}
			p.Iterations = uint32(v)
		case "p":
			v, err := strconv.ParseUint(val, 10, 8)
			if err != nil || v == 0 {
				return Argon2Params{}, nil, nil, errors.New("invalid argon2 parallelism")
			}
			p.Parallelism = uint8(v)
		default:
			return Argon2Params{}, nil, nil, errors.New("unknown argon2 parameter")
		}
	}
	if p.Memory == 0 || p.Iterations == 0 || p.Parallelism == 0 {
		return Argon2Params{}, nil, nil, errors.New("incomplete argon2 parameters")
	}

	enc := base64.RawStdEncoding
	salt, err := enc.DecodeString(parts[3])
	if err != nil {
		return Argon2Params{}, nil, nil, errors.New("invalid argon2 salt")
	}
	hash, err := enc.DecodeString(parts[4])
	if err != nil {
		return Argon2Params{}, nil, nil, errors.New("invalid argon2 hash")
	}
	if len(hash) < 16 {
		return Argon2Params{}, nil, nil, errors.New("invalid argon2 hash length")
	}
	return p, salt, hash, nil
}
