// Copyright 2023 The pulse-core Authors
// This file is part of the pulse-core library.
//
// The pulse-core library is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// The pulse-core library is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with the pulse-core library. If not, see <http://www.gnu.org/licenses/>.

package types

import (
	"database/sql/driver"
	"fmt"
	"math/big"
	"strings"
)

// Amount is an on-chain quantity in the asset's smallest unit. It travels as
// a decimal string in JSON and maps to NUMERIC in the repository, since
// native token amounts overflow int64 on 18-decimal chains.
//
// The zero value is a valid zero amount.
type Amount struct {
	i big.Int
}

// NewAmount returns an Amount holding v.
func NewAmount(v int64) Amount {
	var a Amount
	a.i.SetInt64(v)
	return a
}

// AmountFromBig copies v into an Amount. A nil v yields zero.
func AmountFromBig(v *big.Int) Amount {
	var a Amount
	if v != nil {
		a.i.Set(v)
	}
	return a
}

// ParseAmount parses a base-10 amount string.
func ParseAmount(s string) (Amount, error) {
	var a Amount
	if _, ok := a.i.SetString(strings.TrimSpace(s), 10); !ok {
		return Amount{}, fmt.Errorf("invalid amount %q", s)
	}
	return a, nil
}

// Big returns a copy of the underlying integer.
func (a Amount) Big() *big.Int { return new(big.Int).Set(&a.i) }

// Cmp compares a and b like big.Int.Cmp.
func (a Amount) Cmp(b Amount) int { return a.i.Cmp(&b.i) }

// CmpBig compares the amount against a raw big integer.
func (a Amount) CmpBig(b *big.Int) int { return a.i.Cmp(b) }

// Sign returns -1, 0 or +1 like big.Int.Sign.
func (a Amount) Sign() int { return a.i.Sign() }

// IsZero reports whether the amount is exactly zero.
func (a Amount) IsZero() bool { return a.i.Sign() == 0 }

func (a Amount) String() string { return a.i.String() }

// Decimal renders the amount with a decimal point shifted left by the
// asset's decimals, trimming trailing zeros. Used for human-facing text;
// arithmetic always stays on the integer form.
func (a Amount) Decimal(decimals int32) string {
	s := a.i.String()
	neg := strings.HasPrefix(s, "-")
	if neg {
		s = s[1:]
	}
	d := int(decimals)
	if d <= 0 {
		if neg {
			return "-" + s
		}
		return s
	}
	for len(s) <= d {
		s = "0" + s
	}
	whole, frac := s[:len(s)-d], s[len(s)-d:]
	frac = strings.TrimRight(frac, "0")
	out := whole
	if frac != "" {
		out += "." + frac
	}
	if neg {
		out = "-" + out
	}
	return out
}

// MarshalText encodes the amount as its decimal string.
func (a Amount) MarshalText() ([]byte, error) {
	return []byte(a.i.String()), nil
}

// UnmarshalText decodes a decimal string. JSON numbers also land here when
// the field is quoted by upstream encoders.
func (a *Amount) UnmarshalText(text []byte) error {
	parsed, err := ParseAmount(string(text))
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}

// UnmarshalJSON accepts both "123" and 123 forms; some chain RPCs are not
// consistent about quoting large integers.
func (a *Amount) UnmarshalJSON(data []byte) error {
	s := strings.Trim(string(data), `"`)
	if s == "null" {
		*a = Amount{}
		return nil
	}
	return a.UnmarshalText([]byte(s))
}

// Value implements driver.Valuer, storing the amount as a NUMERIC literal.
func (a Amount) Value() (driver.Value, error) {
	return a.i.String(), nil
}

// Scan implements sql.Scanner for NUMERIC columns.
func (a *Amount) Scan(src interface{}) error {
	switch v := src.(type) {
	case nil:
		*a = Amount{}
		return nil
	case int64:
		a.i.SetInt64(v)
		return nil
	case []byte:
		return a.UnmarshalText(v)
	case string:
		return a.UnmarshalText([]byte(v))
	default:
		return fmt.Errorf("cannot scan %T into Amount", src)
	}
}
