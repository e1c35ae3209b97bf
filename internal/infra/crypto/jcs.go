package crypto

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"sort"
	"strconv"
	"strings"
)

// Canonicalize renders v as RFC 8785-style canonical JSON: object keys
// sorted, no insignificant whitespace, numbers in shortest ES6 form, strings
// minimally escaped. Identical values always canonicalize to identical bytes.
func Canonicalize(v any) ([]byte, error) {
	switch value := v.(type) {
	case nil, bool, string, json.Number, float64, float32,
		int, int8, int16, int32, int64,
		uint, uint8, uint16, uint32, uint64,
		map[string]any, []any:
		var buf bytes.Buffer
		if err := encodeCanonical(&buf, value); err != nil {
			return nil, err
		}
		return buf.Bytes(), nil
	case json.RawMessage:
		return CanonicalizeJSON([]byte(value))
	case []byte:
		return CanonicalizeJSON(value)
	default:
		b, err := json.Marshal(value)
		if err != nil {
			return nil, err
		}
		return CanonicalizeJSON(b)
	}
}

// CanonicalizeJSON re-encodes already-serialized JSON canonically.
func CanonicalizeJSON(input []byte) ([]byte, error) {
	dec := json.NewDecoder(bytes.NewReader(input))
	dec.UseNumber()

	var value any
	if err := dec.Decode(&value); err != nil {
		return nil, fmt.Errorf("invalid JSON: %w", err)
	}
	if err := dec.Decode(new(any)); !errors.Is(err, io.EOF) {
		if err == nil {
			return nil, errors.New("invalid JSON: trailing data")
		}
		return nil, fmt.Errorf("invalid JSON: %w", err)
	}

	var buf bytes.Buffer
	if err := encodeCanonical(&buf, value); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func encodeCanonical(buf *bytes.Buffer, value any) error {
	switch v := value.(type) {
	case nil:
		buf.WriteString("null")
	case bool:
		buf.WriteString(strconv.FormatBool(v))
	case string:
		encodeString(buf, v)
	case int:
		buf.WriteString(strconv.FormatInt(int64(v), 10))
	case int8:
		buf.WriteString(strconv.FormatInt(int64(v), 10))
	case int16:
		buf.WriteString(strconv.FormatInt(int64(v), 10))
	case int32:
		buf.WriteString(strconv.FormatInt(int64(v), 10))
	case int64:
		buf.WriteString(strconv.FormatInt(v, 10))
	case uint:
		buf.WriteString(strconv.FormatUint(uint64(v), 10))
	case uint8:
		buf.WriteString(strconv.FormatUint(uint64(v), 10))
	case uint16:
		buf.WriteString(strconv.FormatUint(uint64(v), 10))
	case uint32:
		buf.WriteString(strconv.FormatUint(uint64(v), 10))
	case uint64:
		buf.WriteString(strconv.FormatUint(v, 10))
	case json.Number:
		return encodeNumberString(buf, v.String())
	case float32:
		return encodeFloat(buf, float64(v))
	case float64:
		return encodeFloat(buf, v)
	case map[string]any:
		keys := make([]string, 0, len(v))
		for k := range v {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		buf.WriteByte('{')
		for i, k := range keys {
			if i > 0 {
				buf.WriteByte(',')
			}
			encodeString(buf, k)
			buf.WriteByte(':')
			if err := encodeCanonical(buf, v[k]); err != nil {
				return err
			}
		}
		buf.WriteByte('}')
	case []any:
		buf.WriteByte('[')
		for i, item := range v {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := encodeCanonical(buf, item); err != nil {
				return err
			}
		}
		buf.WriteByte(']')
	default:
		return fmt.Errorf("unsupported JSON type %T", value)
	}
	return nil
}

const hexDigits = "0123456789abcdef"

func encodeString(buf *bytes.Buffer, s string) {
	buf.WriteByte('"')
	for _, r := range s {
		switch r {
		case '"', '\\':
			buf.WriteByte('\\')
			buf.WriteRune(r)
		case '\b':
			buf.WriteString(`\b`)
		case '\f':
			buf.WriteString(`\f`)
		case '\n':
			buf.WriteString(`\n`)
		case '\r':
			buf.WriteString(`\r`)
		case '\t':
			buf.WriteString(`\t`)
		default:
			if r < 0x20 {
				buf.WriteString(`\u00`)
				buf.WriteByte(hexDigits[r>>4])
				buf.WriteByte(hexDigits[r&0x0f])
			} else {
				buf.WriteRune(r)
			}
		}
	}
	buf.WriteByte('"')
}

func encodeNumberString(buf *bytes.Buffer, number string) error {
	// Integral JSON numbers that fit int64 keep their exact form; everything
	// else goes through the ES6 float path.
	if n, err := strconv.ParseInt(number, 10, 64); err == nil {
		buf.WriteString(strconv.FormatInt(n, 10))
		return nil
	}
	f, err := strconv.ParseFloat(number, 64)
	if err != nil {
		return fmt.Errorf("invalid JSON number: %w", err)
	}
	return encodeFloat(buf, f)
}

func encodeFloat(buf *bytes.Buffer, f float64) error {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return errors.New("invalid JSON number")
	}
	if f == 0 {
		buf.WriteString("0")
		return nil
	}

	sign := ""
	if f < 0 {
		sign = "-"
		f = math.Abs(f)
	}

	sci := strconv.FormatFloat(f, 'e', -1, 64)
	parts := strings.SplitN(sci, "e", 2)
	exp, err := strconv.Atoi(parts[1])
	if err != nil {
		return fmt.Errorf("invalid float exponent: %w", err)
	}
	digits := strings.ReplaceAll(parts[0], ".", "")

	switch {
	case exp <= -7 || exp >= 21:
		buf.WriteString(sign)
		if len(digits) == 1 {
			buf.WriteString(digits)
		} else {
			buf.WriteString(digits[:1])
			buf.WriteByte('.')
			buf.WriteString(digits[1:])
		}
		buf.WriteByte('e')
		buf.WriteString(strconv.Itoa(exp))
	case exp+1 >= len(digits):
		buf.WriteString(sign)
		buf.WriteString(digits)
		buf.WriteString(strings.Repeat("0", exp+1-len(digits)))
	case exp < 0:
		buf.WriteString(sign)
		buf.WriteString("0.")
		buf.WriteString(strings.Repeat("0", -(exp + 1)))
		buf.WriteString(digits)
	default:
		buf.WriteString(sign)
		buf.WriteString(digits[:exp+1])
		buf.WriteByte('.')
		buf.WriteString(digits[exp+1:])
	}
	return nil
}
