package host

import (
	"context"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/wippyai/vmcall/capability"
	"github.com/wippyai/vmcall/errors"
)

// maxConsoleString bounds strings read from guest console calls.
const maxConsoleString = 8192

// Command is text the guest queued for the engine or the server.
type Command struct {
	Text   string
	Client bool
}

// SetArgs tokenizes line as the command the guest is about to handle. Argc,
// Argv and Args read from it.
func (h *Host) SetArgs(line string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.argv = tokenize(line)
}

// Commands returns the names the guest registered, sorted.
func (h *Host) Commands() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]string, 0, len(h.commands))
	for name := range h.commands {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// HasCommand reports whether the guest registered name.
func (h *Host) HasCommand(name string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	_, ok := h.commands[strings.ToLower(name)]
	return ok
}

// DrainCommands returns and clears the commands queued by the guest.
func (h *Host) DrainCommands() []Command {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := h.outbox
	h.outbox = nil
	return out
}

// Err returns the last fatal error the guest raised, or nil.
func (h *Host) Err() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.lastError == "" {
		return nil
	}
	return errors.New(errors.PhaseHost, errors.KindInvalidData).
		Capability(capability.Error.String()).
		Detail("%s", h.lastError).
		Build()
}

func (h *Host) print(_ context.Context, args []uint64) (uint64, error) {
	s, err := h.space.ReadString(ptr(args[0]), maxConsoleString)
	if err != nil {
		return 0, err
	}
	h.console.Info(strings.TrimRight(s, "\n"))
	return 0, nil
}

func (h *Host) error(_ context.Context, args []uint64) (uint64, error) {
	s, err := h.space.ReadString(ptr(args[0]), maxConsoleString)
	if err != nil {
		return 0, err
	}
	s = strings.TrimRight(s, "\n")
	h.console.Error(s)
	h.mu.Lock()
	h.lastError = s
	h.mu.Unlock()
	return 0, nil
}

func (h *Host) argc(context.Context, []uint64) (uint64, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return word(int32(len(h.argv))), nil
}

func (h *Host) argvAt(_ context.Context, args []uint64) (uint64, error) {
	n := i32(args[0])
	h.mu.Lock()
	var s string
	if n >= 0 && int(n) < len(h.argv) {
		s = h.argv[n]
	}
	h.mu.Unlock()
	return 0, h.space.WriteString(ptr(args[1]), s, uint32(i32(args[2])))
}

func (h *Host) args(_ context.Context, args []uint64) (uint64, error) {
	h.mu.Lock()
	var s string
	if len(h.argv) > 1 {
		s = strings.Join(h.argv[1:], " ")
	}
	h.mu.Unlock()
	return 0, h.space.WriteString(ptr(args[0]), s, uint32(i32(args[1])))
}

func (h *Host) sendConsoleCommand(_ context.Context, args []uint64) (uint64, error) {
	return 0, h.queue(args[0], false)
}

func (h *Host) sendClientCommand(_ context.Context, args []uint64) (uint64, error) {
	return 0, h.queue(args[0], true)
}

func (h *Host) queue(p uint64, client bool) error {
	s, err := h.space.ReadString(ptr(p), maxConsoleString)
	if err != nil {
		return err
	}
	h.mu.Lock()
	h.outbox = append(h.outbox, Command{Text: s, Client: client})
	h.mu.Unlock()
	Logger().Debug("guest command queued", zap.String("text", s), zap.Bool("client", client))
	return nil
}

func (h *Host) addCommand(_ context.Context, args []uint64) (uint64, error) {
	name, err := h.space.ReadString(ptr(args[0]), maxConsoleString)
	if err != nil {
		return 0, err
	}
	h.mu.Lock()
	h.commands[strings.ToLower(name)] = struct{}{}
	h.mu.Unlock()
	return 0, nil
}

func (h *Host) removeCommand(_ context.Context, args []uint64) (uint64, error) {
	name, err := h.space.ReadString(ptr(args[0]), maxConsoleString)
	if err != nil {
		return 0, err
	}
	h.mu.Lock()
	delete(h.commands, strings.ToLower(name))
	h.mu.Unlock()
	return 0, nil
}

// tokenize splits a console line into words, keeping double-quoted runs
// together and dropping // comments.
func tokenize(line string) []string {
	var out []string
	var cur strings.Builder
	inQuote, have := false, false
	for i := 0; i < len(line); i++ {
		c := line[i]
		switch {
		case inQuote:
			if c == '"' {
				inQuote = false
				continue
			}
			cur.WriteByte(c)
		case c == '"':
			inQuote, have = true, true
		case c == '/' && i+1 < len(line) && line[i+1] == '/':
			i = len(line)
		case c <= ' ':
			if have {
				out = append(out, cur.String())
				cur.Reset()
				have = false
			}
		default:
			cur.WriteByte(c)
			have = true
		}
	}
	if have {
		out = append(out, cur.String())
	}
	return out
}
