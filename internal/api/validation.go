package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/mail"
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/shopspring/decimal"
	"github.com/trogers1052/stock-run-tracker/internal/models"
)

const (
	msgRequired     = "This field is required."
	msgNull         = "This field may not be null."
	msgBlank        = "This field may not be blank."
	msgInvalidStr   = "Not a valid string."
	msgInvalidInt   = "A valid integer is required."
	msgInvalidNum   = "A valid number is required."
	msgInvalidDate  = "Date has wrong format. Use one of these formats instead: YYYY-MM-DD."
	msgInvalidEmail = "Enter a valid email address."

	nonFieldErrors = "non_field_errors"

	minInt32 = -2147483648
	maxInt32 = 2147483647
)

var (
	trailingZeros = regexp.MustCompile(`\.0*\s*$`)
	isoDate       = regexp.MustCompile(`^\d{4}-\d{1,2}-\d{1,2}$`)
)

// errInvalid aborts a locked update whose submitted fields failed validation
var errInvalid = errors.New("invalid input")

// validationErrors maps a field name to its messages, or to nested errors for list fields
type validationErrors map[string]interface{}

func (e validationErrors) add(field, msg string) {
	msgs, _ := e[field].([]string)
	e[field] = append(msgs, msg)
}

func (e validationErrors) empty() bool {
	return len(e) == 0
}

// rules constrain one field
type rules struct {
	required   bool
	allowNull  bool
	allowBlank bool
	noTrim     bool
	minLength  int
	maxLength  int

	maxDigits     int32
	decimalPlaces int32
}

// form validates a decoded JSON object field by field. In partial mode
// missing required fields are not reported.
type form struct {
	data    map[string]json.RawMessage
	partial bool
	errs    validationErrors
}

// newForm decodes body as a JSON object
func newForm(body []byte, partial bool) (*form, error) {
	var data map[string]json.RawMessage
	if len(bytes.TrimSpace(body)) > 0 {
		if err := json.Unmarshal(body, &data); err != nil {
			return nil, err
		}
	}
	if data == nil {
		data = map[string]json.RawMessage{}
	}
	return &form{data: data, partial: partial, errs: validationErrors{}}, nil
}

func (f *form) has(name string) bool {
	raw, ok := f.data[name]
	return ok && !isNullJSON(raw)
}

// field returns the raw value of name. set is false when the field is absent or rejected;
// null reports an accepted JSON null.
func (f *form) field(name string, r rules) (raw json.RawMessage, set bool, null bool) {
	raw, ok := f.data[name]
	if !ok {
		if r.required && !f.partial {
			f.errs.add(name, msgRequired)
		}
		return nil, false, false
	}
	if isNullJSON(raw) {
		if r.allowNull {
			return nil, true, true
		}
		f.errs.add(name, msgNull)
		return nil, false, false
	}
	return raw, true, false
}

func isNullJSON(raw json.RawMessage) bool {
	return bytes.Equal(bytes.TrimSpace(raw), []byte("null"))
}

// scalar decodes raw into its string form, accepting JSON strings and numbers
func scalar(raw json.RawMessage) (string, bool) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var v interface{}
	if err := dec.Decode(&v); err != nil {
		return "", false
	}
	switch t := v.(type) {
	case string:
		return t, true
	case json.Number:
		return t.String(), true
	default:
		return "", false
	}
}

// char validates a string field. A nil result with set true is an accepted null.
func (f *form) char(name string, r rules) (*string, bool) {
	raw, set, null := f.field(name, r)
	if !set || null {
		return nil, set
	}

	s, ok := scalar(raw)
	if !ok {
		f.errs.add(name, msgInvalidStr)
		return nil, false
	}
	if !r.noTrim {
		s = strings.TrimSpace(s)
	}
	if s == "" && !r.allowBlank {
		f.errs.add(name, msgBlank)
		return nil, false
	}

	valid := true
	if r.maxLength > 0 && utf8.RuneCountInString(s) > r.maxLength {
		f.errs.add(name, fmt.Sprintf("Ensure this field has no more than %d characters.", r.maxLength))
		valid = false
	}
	if r.minLength > 0 && utf8.RuneCountInString(s) < r.minLength {
		f.errs.add(name, fmt.Sprintf("Ensure this field has at least %d characters.", r.minLength))
		valid = false
	}
	if !valid {
		return nil, false
	}
	return &s, true
}

// email validates a string field holding a bare email address
func (f *form) email(name string, r rules) (*string, bool) {
	s, set := f.char(name, r)
	if s == nil {
		return nil, set
	}
	addr, err := mail.ParseAddress(*s)
	if err != nil || addr.Name != "" || addr.Address != *s || !validDomain(*s) {
		f.errs.add(name, msgInvalidEmail)
		return nil, false
	}
	return s, true
}

// validDomain requires a dotted domain after the last "@", or localhost
func validDomain(email string) bool {
	at := strings.LastIndex(email, "@")
	if at < 0 {
		return false
	}
	domain := strings.ToLower(email[at+1:])
	if domain == "localhost" {
		return true
	}
	if strings.HasPrefix(domain, ".") || strings.HasSuffix(domain, ".") || strings.Contains(domain, "..") {
		return false
	}
	return strings.Contains(domain, ".")
}

// integer validates a 32-bit integer field; integral floats such as "12.0" are accepted
func (f *form) integer(name string, r rules) (*int64, bool) {
	raw, set, null := f.field(name, r)
	if !set || null {
		return nil, set
	}

	s, ok := scalar(raw)
	if !ok {
		f.errs.add(name, msgInvalidInt)
		return nil, false
	}
	v, err := strconv.ParseInt(trailingZeros.ReplaceAllString(strings.TrimSpace(s), ""), 10, 64)
	if err != nil {
		f.errs.add(name, msgInvalidInt)
		return nil, false
	}
	if v > maxInt32 {
		f.errs.add(name, fmt.Sprintf("Ensure this value is less than or equal to %d.", maxInt32))
		return nil, false
	}
	if v < minInt32 {
		f.errs.add(name, fmt.Sprintf("Ensure this value is greater than or equal to %d.", minInt32))
		return nil, false
	}
	return &v, true
}

// number validates a decimal field against its column precision and returns it
// quantized to the column's decimal places
func (f *form) number(name string, r rules) (*decimal.Decimal, bool) {
	raw, set, null := f.field(name, r)
	if !set || null {
		return nil, set
	}

	s, ok := scalar(raw)
	if !ok {
		f.errs.add(name, msgInvalidNum)
		return nil, false
	}
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		f.errs.add(name, msgInvalidNum)
		return nil, false
	}
	if msg := checkPrecision(d, r.maxDigits, r.decimalPlaces); msg != "" {
		f.errs.add(name, msg)
		return nil, false
	}
	d = d.Round(r.decimalPlaces)
	return &d, true
}

// checkPrecision counts digits the way the literal was written, trailing zeros included
func checkPrecision(d decimal.Decimal, maxDigits, places int32) string {
	digits := int32(len(strings.TrimPrefix(d.Coefficient().String(), "-")))
	exp := d.Exponent()

	var total, whole, decimals int32
	switch {
	case exp >= 0:
		total = digits + exp
		whole = total
	case digits > -exp:
		total = digits
		decimals = -exp
		whole = total - decimals
	default:
		decimals = -exp
		total = decimals
	}

	if total > maxDigits {
		return fmt.Sprintf("Ensure that there are no more than %d digits in total.", maxDigits)
	}
	if decimals > places {
		return fmt.Sprintf("Ensure that there are no more than %d decimal places.", places)
	}
	if whole > maxDigits-places {
		return fmt.Sprintf("Ensure that there are no more than %d digits before the decimal point.", maxDigits-places)
	}
	return ""
}

// date validates a YYYY-MM-DD field; single digit months and days are accepted
func (f *form) date(name string, r rules) (*models.Date, bool) {
	raw, set, null := f.field(name, r)
	if !set || null {
		return nil, set
	}

	s, ok := scalar(raw)
	if !ok || !isoDate.MatchString(strings.TrimSpace(s)) {
		f.errs.add(name, msgInvalidDate)
		return nil, false
	}
	d, err := models.ParseDate(strings.TrimSpace(s))
	if err != nil {
		f.errs.add(name, msgInvalidDate)
		return nil, false
	}
	return &d, true
}
