package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/spf13/afero"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/wippyai/vmcall/capability"
	"github.com/wippyai/vmcall/config"
	"github.com/wippyai/vmcall/dispatch"
	"github.com/wippyai/vmcall/engine"
	"github.com/wippyai/vmcall/hook"
	"github.com/wippyai/vmcall/host"
	"github.com/wippyai/vmcall/hostmem"
)

// frameMsec is the simulated time between drawn frames.
const frameMsec = 16

func main() {
	var (
		configFile  = flag.String("config", "", "Path to vmcall.toml")
		wasmFile    = flag.String("wasm", "", "Path to cgame wasm module")
		name        = flag.String("name", "cgame", "Guest name")
		frames      = flag.Int("frames", 1, "Number of frames to draw")
		list        = flag.Bool("list", false, "List the capability table and exit")
		only        = flag.String("cap", "", "With -list, show only this capability (name or number)")
		interactive = flag.Bool("i", false, "Interactive capability browser")
	)
	flag.Parse()

	if *wasmFile == "" && !*list && !*interactive {
		fmt.Fprintln(os.Stderr, "Usage: vmcall -wasm <cgame.wasm> [-frames N] [-config vmcall.toml]")
		fmt.Fprintln(os.Stderr, "       vmcall -list [-cap CG_FS_READ]")
		fmt.Fprintln(os.Stderr, "       vmcall [-wasm <cgame.wasm>] -i  (interactive mode)")
		os.Exit(1)
	}

	cfg, err := loadConfig(*configFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	if *list {
		if err := printTable(os.Stdout, *only); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	if *interactive {
		if err := runInteractive(cfg, *wasmFile, *name); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	log, err := newLogger(cfg.Log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()
	setLoggers(log)

	if err := run(cfg, log, *wasmFile, *name, *frames); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		return config.Default(), nil
	}
	return config.Load(path)
}

func newLogger(c config.Log) (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(c.Level)
	if err != nil {
		return nil, err
	}
	zc := zap.NewProductionConfig()
	if c.Development {
		zc = zap.NewDevelopmentConfig()
	}
	zc.Level = zap.NewAtomicLevelAt(level)
	return zc.Build()
}

func setLoggers(l *zap.Logger) {
	dispatch.SetLogger(l.Named("dispatch"))
	hook.SetLogger(l.Named("hook"))
	hostmem.SetLogger(l.Named("hostmem"))
	host.SetLogger(l.Named("host"))
	engine.SetLogger(l.Named("engine"))
}

// bridge is the host side assembled from configuration.
type bridge struct {
	fs    afero.Fs
	space *hostmem.Space
	host  *host.Host
	d     *dispatch.Dispatcher
	trace *hook.RenderTrace
}

func newBridge(cfg *config.Config, console *zap.Logger) (*bridge, error) {
	fs := afero.NewBasePathFs(afero.NewOsFs(), cfg.Host.FSRoot)
	space := hostmem.NewSpace(cfg.Engine.MemoryLimitPages)
	h := host.New(space,
		host.WithFS(fs),
		host.WithCvars(cfg.Cvars),
		host.WithConsole(console))

	if cfg.Host.CvarArchive != "" {
		if err := h.Cvars().LoadArchive(fs, cfg.Host.CvarArchive); err != nil {
			return nil, err
		}
	}

	var opts []dispatch.Option
	if cfg.Bridge.UncheckedPointers {
		opts = append(opts, dispatch.WithUncheckedPointers())
	}
	var traceOpts []hook.TraceOption
	if !cfg.Bridge.TraceRender {
		traceOpts = append(traceOpts, hook.WithoutLog())
	}
	b := &bridge{fs: fs, space: space, host: h, d: dispatch.New(h, opts...), trace: hook.NewRenderTrace(traceOpts...)}
	hook.Install(b.d, b.trace)
	return b, nil
}

func (b *bridge) close(cfg *config.Config) error {
	var err error
	if cfg.Host.CvarArchive != "" {
		err = b.host.Cvars().SaveArchive(b.fs, cfg.Host.CvarArchive)
	}
	if cerr := b.host.Close(); err == nil {
		err = cerr
	}
	return err
}

func engineConfig(c config.Engine) *engine.Config {
	return &engine.Config{
		ImportModule:     c.ImportModule,
		ImportName:       c.ImportName,
		EntryPoint:       c.EntryPoint,
		MemoryLimitPages: c.MemoryLimitPages,
	}
}

// callGuest sends cmd with args trimmed to what the entry point accepts and
// surfaces a fatal guest error raised during the call.
func callGuest(ctx context.Context, inst *engine.Instance, h *host.Host, cmd capability.Export, args ...int32) (int32, error) {
	if n := inst.Params(); len(args) > n {
		args = args[:n]
	}
	ret, err := inst.Call(ctx, cmd, args...)
	if err != nil {
		return 0, err
	}
	return ret, h.Err()
}

func run(cfg *config.Config, log *zap.Logger, wasmFile, name string, frames int) error {
	ctx := context.Background()

	data, err := os.ReadFile(wasmFile)
	if err != nil {
		return fmt.Errorf("read file: %w", err)
	}

	b, err := newBridge(cfg, log.Named("console"))
	if err != nil {
		return err
	}
	defer b.close(cfg)

	eng, err := engine.New(ctx, b.d, b.space, engineConfig(cfg.Engine))
	if err != nil {
		return fmt.Errorf("create engine: %w", err)
	}
	defer eng.Close(ctx)

	inst, err := eng.Load(ctx, name, data)
	if err != nil {
		return fmt.Errorf("load guest: %w", err)
	}
	fmt.Printf("Guest: %s mapped at %v\n", name, inst.Region())

	if _, err := callGuest(ctx, inst, b.host, capability.Init, 0, 0, 0); err != nil {
		return fmt.Errorf("%v: %w", capability.Init, err)
	}
	for i := 0; i < frames; i++ {
		if _, err := callGuest(ctx, inst, b.host, capability.DrawActiveFrame, int32((i+1)*frameMsec), 0, 0); err != nil {
			return fmt.Errorf("%v frame %d: %w", capability.DrawActiveFrame, i, err)
		}
	}
	if _, err := callGuest(ctx, inst, b.host, capability.Shutdown); err != nil {
		return fmt.Errorf("%v: %w", capability.Shutdown, err)
	}

	printStats(os.Stdout, b)
	return nil
}

// printTable lists the calling conventions, or only the one named by only.
func printTable(w io.Writer, only string) error {
	list := capability.All()
	if only != "" {
		id, ok := capability.Parse(only)
		if !ok {
			return fmt.Errorf("unknown capability %q", only)
		}
		c, ok := capability.Lookup(id)
		if !ok {
			return fmt.Errorf("%v is not served (retired: %t)", id, capability.Retired(id))
		}
		list = []capability.Convention{c}
	}
	fmt.Fprintf(w, "%-5s %-44s %s\n", "ID", "CONVENTION", "WIT")
	for _, c := range list {
		fmt.Fprintf(w, "%-5d %-44s %s\n", int32(c.ID), c.Signature(), witSignature(c))
	}
	return nil
}

func printStats(w io.Writer, b *bridge) {
	st := b.d.Stats()
	ids := make([]capability.ID, 0, len(st.Calls))
	for id := range st.Calls {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	fmt.Fprintf(w, "\nSystem calls: %d (unknown %d, rejected %d)\n", st.Total, st.Unknown, st.Rejected)
	for _, id := range ids {
		fmt.Fprintf(w, "  %-36s %d\n", id, st.Calls[id])
	}
	fmt.Fprintf(w, "Rendered scenes: %d\n", b.trace.Count())
	if cmds := b.host.Commands(); len(cmds) > 0 {
		fmt.Fprintf(w, "Registered commands: %s\n", strings.Join(cmds, " "))
	}
	for _, c := range b.host.DrainCommands() {
		target := "console"
		if c.Client {
			target = "server"
		}
		fmt.Fprintf(w, "Queued %s command: %q\n", target, c.Text)
	}
}
