// Package bytesize handles the byte counts ovsdp deals in: control frame
// and buffer sizes from the config file, and port and flow traffic
// counters shown by the CLI.
package bytesize

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// ByteSize is a count of bytes. It parses from and marshals to
// human-readable text such as "64KiB", so it can sit directly in config
// structs.
type ByteSize uint64

const (
	B ByteSize = 1

	KB ByteSize = 1000
	MB ByteSize = 1000 * KB
	GB ByteSize = 1000 * MB
	TB ByteSize = 1000 * GB

	KiB ByteSize = 1 << 10
	MiB ByteSize = 1 << 20
	GiB ByteSize = 1 << 30
	TiB ByteSize = 1 << 40
)

var (
	// ErrSyntax is returned by Parse for text that is not a size.
	ErrSyntax = errors.New("bytesize: invalid size")
	// ErrOutOfRange is returned by Range.Check.
	ErrOutOfRange = errors.New("bytesize: out of range")
)

var units = map[string]ByteSize{
	"": B, "b": B,
	"k": KB, "kb": KB,
	"m": MB, "mb": MB,
	"g": GB, "gb": GB,
	"t": TB, "tb": TB,
	"ki": KiB, "kib": KiB,
	"mi": MiB, "mib": MiB,
	"gi": GiB, "gib": GiB,
	"ti": TiB, "tib": TiB,
}

// binary units from largest to smallest, for formatting.
var binaryUnits = []struct {
	size ByteSize
	name string
}{
	{TiB, "TiB"},
	{GiB, "GiB"},
	{MiB, "MiB"},
	{KiB, "KiB"},
}

// Parse reads a size such as "4096", "64KiB", "1.5Mi" or "100MB". Unit
// suffixes are case-insensitive; Ki/Mi/Gi/Ti are powers of 1024 and
// K/M/G/T powers of 1000. The result must be a whole number of bytes.
func Parse(s string) (ByteSize, error) {
	text := strings.TrimSpace(s)
	split := strings.IndexFunc(text, func(r rune) bool {
		return (r < '0' || r > '9') && r != '.'
	})
	num, unit := text, ""
	if split >= 0 {
		num, unit = text[:split], strings.TrimSpace(text[split:])
	}
	if num == "" {
		return 0, fmt.Errorf("%w: %q", ErrSyntax, s)
	}

	mult, ok := units[strings.ToLower(unit)]
	if !ok {
		return 0, fmt.Errorf("%w: unknown unit %q in %q", ErrSyntax, unit, s)
	}

	if !strings.Contains(num, ".") {
		n, err := strconv.ParseUint(num, 10, 64)
		if err != nil {
			return 0, fmt.Errorf("%w: %q", ErrSyntax, s)
		}
		if n > math.MaxUint64/uint64(mult) {
			return 0, fmt.Errorf("%w: %q overflows", ErrSyntax, s)
		}
		return ByteSize(n) * mult, nil
	}

	f, err := strconv.ParseFloat(num, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrSyntax, s)
	}
	v := f * float64(mult)
	if v >= math.MaxUint64 {
		return 0, fmt.Errorf("%w: %q overflows", ErrSyntax, s)
	}
	if v != math.Trunc(v) {
		return 0, fmt.Errorf("%w: %q is not a whole number of bytes", ErrSyntax, s)
	}
	return ByteSize(v), nil
}

// String formats b for display, in the largest binary unit it reaches:
// "24B", "64KiB", "1.50MiB".
func (b ByteSize) String() string {
	for _, u := range binaryUnits {
		if b < u.size {
			continue
		}
		if b%u.size == 0 {
			return fmt.Sprintf("%d%s", b/u.size, u.name)
		}
		return fmt.Sprintf("%.2f%s", float64(b)/float64(u.size), u.name)
	}
	return fmt.Sprintf("%dB", uint64(b))
}

// MarshalText writes a form Parse reads back exactly: the largest binary
// unit dividing b, or plain bytes.
func (b ByteSize) MarshalText() ([]byte, error) {
	for _, u := range binaryUnits {
		if b >= u.size && b%u.size == 0 {
			return []byte(fmt.Sprintf("%d%s", b/u.size, u.name)), nil
		}
	}
	return []byte(strconv.FormatUint(uint64(b), 10)), nil
}

// UnmarshalText parses text with Parse.
func (b *ByteSize) UnmarshalText(text []byte) error {
	v, err := Parse(string(text))
	if err != nil {
		return err
	}
	*b = v
	return nil
}

// Int returns b as an int, saturating at math.MaxInt.
func (b ByteSize) Int() int {
	if uint64(b) > math.MaxInt {
		return math.MaxInt
	}
	return int(b)
}

// Range is an inclusive bound on a size. A zero Max leaves the range open
// above.
type Range struct {
	Min ByteSize
	Max ByteSize
}

// Contains reports whether b lies within r.
func (r Range) Contains(b ByteSize) bool {
	return b >= r.Min && (r.Max == 0 || b <= r.Max)
}

// Clamp returns b moved into r.
func (r Range) Clamp(b ByteSize) ByteSize {
	if b < r.Min {
		return r.Min
	}
	if r.Max != 0 && b > r.Max {
		return r.Max
	}
	return b
}

// Check returns an ErrOutOfRange error naming what when b lies outside r.
func (r Range) Check(what string, b ByteSize) error {
	if r.Contains(b) {
		return nil
	}
	return fmt.Errorf("%w: %s %s not in %s", ErrOutOfRange, what, b, r)
}

func (r Range) String() string {
	if r.Max == 0 {
		return fmt.Sprintf("[%s, ∞)", r.Min)
	}
	return fmt.Sprintf("[%s, %s]", r.Min, r.Max)
}
