package host

import (
	"context"
	"math"
	"strconv"

	"github.com/wippyai/vmcall/addr"
)

func (h *Host) memSet(_ context.Context, args []uint64) (uint64, error) {
	return 0, h.space.Fill(ptr(args[0]), byte(args[1]), uint32(i32(args[2])))
}

func (h *Host) memCpy(_ context.Context, args []uint64) (uint64, error) {
	return 0, h.space.Move(ptr(args[0]), ptr(args[1]), uint32(i32(args[2])))
}

// strNCpy copies at most n bytes of the string at src to dst and pads the rest
// of the n bytes with NUL. It returns dst.
func (h *Host) strNCpy(_ context.Context, args []uint64) (uint64, error) {
	dst, n := ptr(args[0]), uint32(i32(args[2]))
	if n == 0 {
		return uint64(dst), nil
	}
	if err := h.space.Check(dst, n); err != nil {
		return uint64(dst), err
	}
	s, err := h.space.ReadString(ptr(args[1]), n)
	if err != nil {
		return uint64(dst), err
	}
	buf := make([]byte, n)
	copy(buf, s)
	return uint64(dst), h.space.Write(dst, buf)
}

func (h *Host) memoryRemaining(context.Context, []uint64) (uint64, error) {
	return word(h.memLeft), nil
}

// snapVector rounds the three floats of a vec3_t at p to integral values.
func (h *Host) snapVector(_ context.Context, args []uint64) (uint64, error) {
	p := ptr(args[0])
	for i := addr.Host(0); i < 3; i++ {
		f, err := h.space.ReadF32(p + 4*i)
		if err != nil {
			return 0, err
		}
		if err := h.space.WriteF32(p+4*i, float32(math.RoundToEven(float64(f)))); err != nil {
			return 0, err
		}
	}
	return 0, nil
}

func (h *Host) milliseconds(context.Context, []uint64) (uint64, error) {
	return word(int32(h.now().Sub(h.start).Milliseconds())), nil
}

// realTime fills a qtime_t (nine ints, struct tm order) when p is not null and
// returns the Unix time in seconds.
func (h *Host) realTime(_ context.Context, args []uint64) (uint64, error) {
	t := h.now().Local()
	if p := ptr(args[0]); !p.IsNull() {
		fields := [9]int32{
			int32(t.Second()),
			int32(t.Minute()),
			int32(t.Hour()),
			int32(t.Day()),
			int32(t.Month()) - 1,
			int32(t.Year()) - 1900,
			int32(t.Weekday()),
			int32(t.YearDay()) - 1,
			boolInt(t.IsDST()),
		}
		for i, v := range fields {
			if err := h.space.WriteU32(p+addr.Host(4*i), uint32(v)); err != nil {
				return 0, err
			}
		}
	}
	return word(int32(t.Unix())), nil
}

// Math capabilities receive and return float32 bit patterns.

func unary(fn func(float64) float64) handler {
	return func(_ context.Context, args []uint64) (uint64, error) {
		return floatWord(fn(wordFloat(args[0]))), nil
	}
}

func atan2(_ context.Context, args []uint64) (uint64, error) {
	return floatWord(math.Atan2(wordFloat(args[0]), wordFloat(args[1]))), nil
}

func sin(x float64) float64   { return math.Sin(x) }
func cos(x float64) float64   { return math.Cos(x) }
func sqrt(x float64) float64  { return math.Sqrt(x) }
func floor(x float64) float64 { return math.Floor(x) }
func ceil(x float64) float64  { return math.Ceil(x) }

// acos clamps its input so slightly denormalized dot products stay defined.
func acos(x float64) float64 {
	return math.Acos(math.Max(-1, math.Min(1, x)))
}

func wordFloat(a uint64) float64 { return float64(math.Float32frombits(uint32(a))) }

func floatWord(f float64) uint64 { return uint64(math.Float32bits(float32(f))) }

func boolInt(b bool) int32 {
	if b {
		return 1
	}
	return 0
}

func itoa(v int32) string { return strconv.Itoa(int(v)) }

