package host

import (
	"bytes"
	"context"
	"encoding/binary"
	"math"
	"strconv"
	"strings"
	"text/scanner"

	"github.com/spf13/afero"

	"github.com/wippyai/vmcall/errors"
	"github.com/wippyai/vmcall/resource"
)

// Token types written into the guest's pc_token_t.
const (
	TokenString      int32 = 1
	TokenLiteral     int32 = 2
	TokenNumber      int32 = 3
	TokenName        int32 = 4
	TokenPunctuation int32 = 5
)

// Number subtypes.
const (
	numberDecimal int32 = 0x0008
	numberFloat   int32 = 0x0800
	numberInteger int32 = 0x1000
)

const (
	// MaxSourceHandles bounds the script sources a guest may hold open at once.
	MaxSourceHandles = 64

	maxTokenLength  = 1024
	tokenSize       = 16 + maxTokenLength
	maxSourceName   = 128
	maxDefineLength = 1024
)

// Token is one lexical item read from a script source.
type Token struct {
	Text    string
	Type    int32
	Subtype int32
	Int     int32
	Float   float32
}

// encode lays the token out as pc_token_t.
func (t Token) encode() []byte {
	buf := make([]byte, tokenSize)
	binary.LittleEndian.PutUint32(buf[0:], uint32(t.Type))
	binary.LittleEndian.PutUint32(buf[4:], uint32(t.Subtype))
	binary.LittleEndian.PutUint32(buf[8:], uint32(t.Int))
	binary.LittleEndian.PutUint32(buf[12:], math.Float32bits(t.Float))
	text := t.Text
	if len(text) >= maxTokenLength {
		text = text[:maxTokenLength-1]
	}
	copy(buf[16:], text)
	return buf
}

// source is an open script file.
type source struct {
	sc      scanner.Scanner
	name    string
	defines map[string]string
	line    int32
}

func newSource(name string, data []byte, defines map[string]string) *source {
	s := &source{name: name, defines: defines}
	s.sc.Init(bytes.NewReader(data))
	s.sc.Filename = name
	s.sc.Mode = scanner.ScanIdents | scanner.ScanInts | scanner.ScanFloats |
		scanner.ScanStrings | scanner.ScanChars | scanner.ScanComments | scanner.SkipComments
	s.sc.Error = func(*scanner.Scanner, string) {}
	return s
}

// next returns the following token, or false at the end of the source. The
// line of the last token returned survives reaching the end.
func (s *source) next() (Token, bool) {
	r := s.sc.Scan()
	if r == scanner.EOF {
		return Token{}, false
	}
	s.line = int32(s.sc.Line)
	text := s.sc.TokenText()
	if r == scanner.Ident {
		if v, ok := s.defines[text]; ok {
			return lexOne(v), true
		}
	}
	return classify(r, text), true
}

func classify(r rune, text string) Token {
	switch r {
	case scanner.Ident:
		return Token{Type: TokenName, Subtype: int32(len(text)), Text: text}
	case scanner.String, scanner.RawString:
		body := text[1 : len(text)-1]
		return Token{Type: TokenString, Subtype: int32(len(body)), Text: body}
	case scanner.Char:
		body := text[1 : len(text)-1]
		return Token{Type: TokenLiteral, Subtype: int32(len(body)), Text: body}
	case scanner.Int:
		n, _ := strconv.ParseInt(text, 0, 64)
		return Token{Type: TokenNumber, Subtype: numberDecimal | numberInteger, Int: int32(n), Float: float32(n), Text: text}
	case scanner.Float:
		f, _ := strconv.ParseFloat(text, 32)
		return Token{Type: TokenNumber, Subtype: numberDecimal | numberFloat, Int: int32(f), Float: float32(f), Text: text}
	}
	return Token{Type: TokenPunctuation, Text: text}
}

// lexOne reads the first token of a define's replacement text.
func lexOne(text string) Token {
	s := newSource("", []byte(text), nil)
	t, ok := s.next()
	if !ok {
		return Token{Type: TokenName}
	}
	return t
}

// AddDefine registers "NAME value" the way a global #define would.
func (h *Host) AddDefine(def string) error {
	fields := strings.Fields(def)
	if len(fields) == 0 {
		return errors.InvalidInput(errors.PhaseHost, "empty define")
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	h.defines[fields[0]] = strings.Join(fields[1:], " ")
	return nil
}

func (h *Host) pcAddGlobalDefine(_ context.Context, args []uint64) (uint64, error) {
	def, err := h.space.ReadString(ptr(args[0]), maxDefineLength)
	if err != nil {
		return 0, err
	}
	if err := h.AddDefine(def); err != nil {
		return 0, err
	}
	return 1, nil
}

func (h *Host) pcLoadSource(_ context.Context, args []uint64) (uint64, error) {
	qpath, err := h.space.ReadString(ptr(args[0]), maxQPath)
	if err != nil {
		return 0, err
	}
	name, err := cleanPath(qpath)
	if err != nil {
		return 0, err
	}
	data, err := afero.ReadFile(h.fs, name)
	if err != nil {
		return 0, errors.Wrap(errors.PhaseHost, errors.KindNotFound, err, "load source "+name)
	}

	h.mu.Lock()
	defines := make(map[string]string, len(h.defines))
	for k, v := range h.defines {
		defines[k] = v
	}
	h.mu.Unlock()

	handle, err := h.sources.Insert(resource.KindSource, newSource(name, data, defines))
	if err != nil {
		return 0, err
	}
	return uint64(handle), nil
}

func (h *Host) source(handle int32) (*source, error) {
	v, ok := h.sources.Get(resource.Handle(handle), resource.KindSource)
	if !ok {
		return nil, errors.NotFound(errors.PhaseHost, "source handle", itoa(handle))
	}
	return v.(*source), nil
}

func (h *Host) pcFreeSource(_ context.Context, args []uint64) (uint64, error) {
	if _, ok := h.sources.Remove(resource.Handle(i32(args[0]))); !ok {
		return 0, errors.NotFound(errors.PhaseHost, "source handle", itoa(i32(args[0])))
	}
	return 1, nil
}

func (h *Host) pcReadToken(_ context.Context, args []uint64) (uint64, error) {
	s, err := h.source(i32(args[0]))
	if err != nil {
		return 0, err
	}
	tok, ok := s.next()
	if !ok {
		return 0, nil
	}
	if err := h.space.Write(ptr(args[1]), tok.encode()); err != nil {
		return 0, err
	}
	return 1, nil
}

func (h *Host) pcSourceFileAndLine(_ context.Context, args []uint64) (uint64, error) {
	s, err := h.source(i32(args[0]))
	if err != nil {
		return 0, err
	}
	if err := h.space.WriteString(ptr(args[1]), s.name, maxSourceName); err != nil {
		return 0, err
	}
	if err := h.space.WriteU32(ptr(args[2]), uint32(s.line)); err != nil {
		return 0, err
	}
	return 1, nil
}
