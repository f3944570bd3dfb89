// ABOUTME: Interactive chat client for the coven assistant with line editing and history
// ABOUTME: Streams replies, renders them as markdown and reports backend connectivity changes

package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync"
	"syscall"

	"github.com/fatih/color"
	"github.com/peterh/liner"
	"golang.org/x/term"

	"github.com/2389/coven-console/internal/chat"
	"github.com/2389/coven-console/internal/client"
	"github.com/2389/coven-console/internal/config"
	"github.com/2389/coven-console/internal/console"
	"github.com/2389/coven-console/internal/health"
	"github.com/2389/coven-console/internal/logging"
	"github.com/2389/coven-console/internal/render"
	"github.com/2389/coven-console/internal/stream"
	"github.com/2389/coven-console/internal/validate"
)

var (
	cyan   = color.New(color.FgCyan)
	green  = color.New(color.FgGreen)
	yellow = color.New(color.FgYellow)
	gray   = color.New(color.FgHiBlack)
	red    = color.New(color.FgRed)
)

// historyPath returns the line history file.
// Priority: XDG_DATA_HOME/coven/chat_history > ~/.local/share/coven/chat_history
func historyPath() string {
	dataDir := os.Getenv("XDG_DATA_HOME")
	if dataDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return filepath.Join(os.TempDir(), "coven_chat_history")
		}
		dataDir = filepath.Join(homeDir, ".local", "share")
	}
	return filepath.Join(dataDir, "coven", "chat_history")
}

// repl is one interactive chat run.
type repl struct {
	console *console.Console
	chat    *chat.Session
	monitor *health.Monitor
	line    *liner.State
	counter validate.Counter
	styled  bool
	logger  *slog.Logger

	// cancelSend aborts the reply being streamed, if any
	mu         sync.Mutex
	cancelSend context.CancelFunc
}

func main() {
	configPath := flag.String("config", config.DefaultPath(), "path to console.toml")
	sessionID := flag.String("session", "", "resume a server-side session")
	plain := flag.Bool("plain", false, "print replies without markdown styling")
	flag.Parse()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := run(ctx, *configPath, *sessionID, *plain); err != nil {
		red.Fprintf(os.Stderr, "Error: %s\n", client.FriendlyError(err))
		slog.Debug("chat failed", "error", err)
		os.Exit(1)
	}
	fmt.Println("Goodbye!")
}

func run(ctx context.Context, configPath, sessionID string, plain bool) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	// Keep routine logs off the conversation
	if cfg.Logging.Level == "info" {
		cfg.Logging.Level = "warn"
	}
	logger := logging.Setup(cfg.Logging, os.Stderr)
	slog.SetDefault(logger)

	c, err := console.New(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer c.Close()

	info, err := c.Sessions.Current(ctx)
	if err != nil {
		return fmt.Errorf("%w. Run: coven-console login", err)
	}

	r := &repl{
		console: c,
		chat:    c.NewChat(),
		monitor: c.NewMonitor(),
		line:    liner.NewLiner(),
		counter: validate.Counter{Max: cfg.Chat.MaxChars},
		styled:  !plain && term.IsTerminal(int(os.Stdout.Fd())),
		logger:  logger,
	}
	defer r.chat.Close()
	defer r.close()

	r.line.SetCtrlCAborts(true)
	r.loadHistory()

	if sessionID != "" {
		if err := r.chat.Load(ctx, sessionID); err != nil {
			return err
		}
	}

	cyan.Printf("coven-chat")
	fmt.Printf(" signed in as %s\n", info.Email)
	fmt.Println("Type a message and press Enter. /help for commands. Ctrl+D to quit.")
	fmt.Println()
	if sessionID != "" {
		r.printTranscript()
	}

	monCtx, stopMonitor := context.WithCancel(ctx)
	defer stopMonitor()
	r.watchConnectivity()
	go func() {
		if err := r.monitor.Run(monCtx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Warn("health monitor stopped", "error", err)
		}
	}()

	// Ctrl+C while a reply streams cancels the reply, not the program
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		for range sigCh {
			r.mu.Lock()
			if r.cancelSend != nil {
				r.cancelSend()
			}
			r.mu.Unlock()
		}
	}()

	return r.loop(ctx)
}

func (r *repl) loop(ctx context.Context) error {
	for {
		input, err := r.line.Prompt("> ")
		if err != nil {
			// Ctrl+C at the prompt, Ctrl+D and closed stdin all end the session
			fmt.Println()
			return nil
		}

		input = strings.TrimSpace(input)
		if input == "" {
			continue
		}
		r.line.AppendHistory(input)

		if strings.HasPrefix(input, "/") {
			if quit := r.command(ctx, input); quit {
				return nil
			}
			fmt.Println()
			continue
		}

		r.send(ctx, input)
		fmt.Println()
	}
}

// command runs a slash command and reports whether to quit.
func (r *repl) command(ctx context.Context, input string) bool {
	name, arg, _ := strings.Cut(input, " ")
	arg = strings.TrimSpace(arg)

	switch name {
	case "/quit", "/exit", "/q":
		return true
	case "/help":
		printHelp()
	case "/new":
		r.chat.Reset()
		green.Println("Started a new conversation")
	case "/sessions":
		r.listSessions(ctx)
	case "/load":
		if arg == "" {
			yellow.Println("Usage: /load <session-id>")
			return false
		}
		if err := r.chat.Load(ctx, arg); err != nil {
			r.printError(err)
			return false
		}
		r.printTranscript()
	case "/tools":
		r.listTools(ctx)
	case "/status":
		r.printStatus()
	default:
		yellow.Printf("Unknown command %s. Type /help for commands.\n", name)
	}
	return false
}

func printHelp() {
	fmt.Println("Commands:")
	fmt.Println("  /new           Start a new conversation")
	fmt.Println("  /sessions      List your conversations")
	fmt.Println("  /load <id>     Resume a conversation")
	fmt.Println("  /tools         List tools the assistant can use")
	fmt.Println("  /status        Show backend connectivity")
	fmt.Println("  /help          Show this help")
	fmt.Println("  /quit          Exit")
}

func (r *repl) send(ctx context.Context, input string) {
	state := r.counter.State(input)
	if state.Over {
		red.Printf("Message is %d characters over the limit.\n", -state.Remaining)
		return
	}
	if state.Warn {
		gray.Printf("%d characters left\n", state.Remaining)
	}

	sendCtx, cancel := context.WithCancel(ctx)
	r.mu.Lock()
	r.cancelSend = cancel
	r.mu.Unlock()
	defer func() {
		r.mu.Lock()
		r.cancelSend = nil
		r.mu.Unlock()
		cancel()
	}()

	var (
		printed  int
		lastTool string
	)
	onUpdate := func(snap stream.Snapshot) {
		if snap.CurrentTool != "" && snap.CurrentTool != lastTool {
			lastTool = snap.CurrentTool
			gray.Printf("[using %s]\n", snap.CurrentTool)
		}
		if r.styled || len(snap.Messages) == 0 {
			return
		}
		last := snap.Messages[len(snap.Messages)-1]
		if last.Role == stream.RoleAssistant && len(last.Content) > printed {
			fmt.Print(last.Content[printed:])
			printed = len(last.Content)
		}
	}

	if r.styled {
		gray.Println("thinking...")
	}
	reply, err := r.chat.Send(sendCtx, input, onUpdate)
	if printed > 0 {
		fmt.Println()
	}
	if err != nil {
		r.printError(err)
		return
	}

	if r.styled {
		fmt.Print(render.Terminal(reply.Content, terminalWidth()))
	}
	if len(reply.ToolsUsed) > 0 {
		gray.Printf("tools: %s\n", strings.Join(reply.ToolsUsed, ", "))
	}
}

func (r *repl) printTranscript() {
	for _, m := range r.chat.Messages() {
		if m.Role == stream.RoleUser {
			green.Print("you: ")
			fmt.Println(m.Content)
			continue
		}
		cyan.Println("assistant:")
		if r.styled {
			fmt.Print(render.Terminal(m.Content, terminalWidth()))
		} else {
			fmt.Println(m.Content)
		}
	}
}

func (r *repl) listSessions(ctx context.Context) {
	sessions, err := r.console.Client.ListSessions(ctx)
	if err != nil {
		r.printError(err)
		return
	}
	if len(sessions) == 0 {
		yellow.Println("No conversations yet.")
		return
	}
	current := r.chat.SessionID()
	for _, s := range sessions {
		marker := "  "
		if s.ID == current {
			marker = green.Sprint("* ")
		}
		fmt.Printf("%s%s  %s", marker, s.ID, s.Title)
		gray.Printf("  (%d messages)\n", s.MessageCount)
	}
}

func (r *repl) listTools(ctx context.Context) {
	tools, err := r.console.Client.ListTools(ctx)
	if err != nil {
		r.printError(err)
		return
	}
	for _, t := range tools {
		if !t.Enabled {
			continue
		}
		cyan.Printf("  %-24s", t.Name)
		gray.Printf(" %-8s", t.Source)
		fmt.Printf(" %s\n", t.Description)
	}
}

func (r *repl) printStatus() {
	snap := r.monitor.Snapshot()
	if snap.Connected {
		green.Print("connected")
	} else {
		red.Print("disconnected")
	}
	fmt.Printf(" via %s", snap.Mode)
	if snap.Failures > 0 {
		fmt.Printf(", %d abnormal closes", snap.Failures)
	}
	if snap.LastCode != 0 {
		fmt.Printf(", last close code %d", snap.LastCode)
	}
	fmt.Println()
	if snap.LastStatus != nil {
		gray.Printf("backend %s, version %s\n", snap.LastStatus.Status, snap.LastStatus.Version)
	}
	gray.Printf("breaker %s\n", r.console.BreakerState())
}

// watchConnectivity prints a line whenever the backend goes away or comes back.
func (r *repl) watchConnectivity() {
	var (
		mu    sync.Mutex
		known bool
		was   bool
	)
	r.monitor.OnConnectivity(func(c health.Connectivity) {
		mu.Lock()
		defer mu.Unlock()
		if known && was == c.Connected {
			return
		}
		first := !known
		known, was = true, c.Connected

		switch {
		case c.Connected && !first:
			green.Println("\n[backend reachable again]")
		case !c.Connected && c.Mode == health.ModePolling:
			yellow.Println("\n[backend unreachable, checking periodically]")
		case !c.Connected:
			yellow.Println("\n[backend connection lost, reconnecting]")
		}
	})
}

func (r *repl) printError(err error) {
	if errors.Is(err, chat.ErrDuplicate) {
		yellow.Println(chat.ErrDuplicate.Message)
		return
	}
	red.Printf("[error] %s\n", client.FriendlyError(err))
	r.logger.Debug("request failed", "error", err)
}

func (r *repl) loadHistory() {
	if f, err := os.Open(historyPath()); err == nil {
		_, _ = r.line.ReadHistory(f)
		f.Close()
	}
}

func (r *repl) close() {
	path := historyPath()
	if err := os.MkdirAll(filepath.Dir(path), 0700); err == nil {
		if f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600); err == nil {
			_, _ = r.line.WriteHistory(f)
			f.Close()
		}
	}
	r.line.Close()
}

func terminalWidth() int {
	w, _, err := term.GetSize(int(os.Stdout.Fd()))
	if err != nil {
		return 0
	}
	return w
}
