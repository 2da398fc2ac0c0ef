package backend

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/noah-isme/toko-storefront/internal/pricing"
)

// Amount is a rupiah value that the backend may encode as a JSON number, a
// numeric string, or null. Fractions are rounded half away from zero.
type Amount int64

// Money converts to the pricing representation.
func (a Amount) Money() pricing.Money { return pricing.Money(a) }

// UnmarshalJSON implements json.Unmarshaler.
func (a *Amount) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*a = 0
		return nil
	}
	raw := string(data)
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		raw = strings.TrimSpace(s)
		if raw == "" {
			*a = 0
			return nil
		}
	}
	if v, err := strconv.ParseInt(raw, 10, 64); err == nil {
		*a = Amount(v)
		return nil
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return fmt.Errorf("%w: amount %q", ErrInvalidPayload, raw)
	}
	*a = Amount(math.Round(f))
	return nil
}

// MarshalJSON implements json.Marshaler.
func (a Amount) MarshalJSON() ([]byte, error) {
	return []byte(strconv.FormatInt(int64(a), 10)), nil
}
