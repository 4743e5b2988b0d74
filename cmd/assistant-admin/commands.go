// ABOUTME: Terminal subcommands driving the same screen controller as the web UI
// ABOUTME: The CLI keeps its session in the "cli" namespace of the configured store

package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/fatih/color"

	"github.com/alphasales/assistant-admin/internal/config"
	"github.com/alphasales/assistant-admin/internal/editor"
	"github.com/alphasales/assistant-admin/internal/screen"
	"github.com/alphasales/assistant-admin/internal/server"
	"github.com/alphasales/assistant-admin/internal/session"
	"github.com/alphasales/assistant-admin/internal/store"
	"github.com/alphasales/assistant-admin/internal/views"
	"github.com/alphasales/assistant-admin/internal/webhook"
)

// cliNamespace is the store namespace of the terminal session.
const cliNamespace = "cli"

var errNotLoggedIn = errors.New("not logged in (run: assistant-admin login)")

// terminal is one CLI invocation bound to a controller.
type terminal struct {
	ctrl *screen.Controller
	out  io.Writer
	in   *bufio.Reader
}

func newTerminal(ctx context.Context, cfg *config.Config, api screen.API, kv store.KV, in io.Reader, out io.Writer) (*terminal, error) {
	ctrl := screen.NewController(api, session.NewStore(kv, cliNamespace, cfg.Session.TTL), server.ControllerOptions(cfg))
	if err := ctrl.Start(ctx); err != nil {
		ctrl.Close()
		return nil, err
	}
	return &terminal{ctrl: ctrl, out: out, in: bufio.NewReader(in)}, nil
}

func runScreenCommand(ctx context.Context, cmd string, args []string) error {
	cfg, err := loadConfig(getConfigPath())
	if err != nil {
		return err
	}

	// Only warnings reach the terminal
	logCfg := cfg.Logging
	logCfg.Level = "warn"
	logCfg.Format = "text"
	logger, closeLog := setupLogger(logCfg, os.Stderr)
	defer closeLog()

	kv, err := server.OpenStore(ctx, cfg.Storage)
	if err != nil {
		return err
	}
	defer kv.Close()

	t, err := newTerminal(ctx, cfg, server.NewClient(cfg.Webhook, logger), kv, os.Stdin, os.Stdout)
	if err != nil {
		return err
	}
	defer t.ctrl.Close()

	return t.run(ctx, cmd, args)
}

func (t *terminal) run(ctx context.Context, cmd string, args []string) error {
	switch cmd {
	case "login":
		return t.login(ctx, args)
	case "logout":
		return t.logout(ctx)
	case "whoami":
		return t.whoami()
	case "assistants":
		return t.assistants(ctx, args)
	case "reports":
		return t.reports(ctx, args)
	case "show":
		return t.show(ctx, args)
	case "edit":
		return t.edit(ctx, args)
	default:
		return fmt.Errorf("unknown command: %s", cmd)
	}
}

func (t *terminal) login(ctx context.Context, args []string) error {
	if snap := t.ctrl.Snapshot(); snap.LoggedIn {
		fmt.Fprintf(t.out, "Already logged in as %s\n", snap.User.DisplayName())
		return nil
	}

	var email string
	if len(args) > 0 {
		email = args[0]
	} else {
		email = prompt(t.in, t.out, "Email", "")
	}
	password := os.Getenv(config.EnvPrefix + "PASSWORD")
	if password == "" {
		password = prompt(t.in, t.out, "Senha", "")
	}
	if strings.TrimSpace(email) == "" || password == "" {
		return errors.New("Informe email e senha")
	}

	if err := t.ctrl.Login(ctx, strings.TrimSpace(email), password); err != nil {
		if errors.Is(err, webhook.ErrAuthenticationFailed) || errors.Is(err, webhook.ErrRequestFailed) {
			return errors.New(webhook.UserMessage(err, "Erro ao fazer login"))
		}
		return err
	}

	snap := t.ctrl.Snapshot()
	color.New(color.FgGreen).Fprint(t.out, "✓ ")
	fmt.Fprintf(t.out, "Logged in as %s\n", snap.User.DisplayName())
	return nil
}

func (t *terminal) logout(ctx context.Context) error {
	if !t.ctrl.Snapshot().LoggedIn {
		return errNotLoggedIn
	}
	if err := t.ctrl.Logout(ctx); err != nil {
		return err
	}
	fmt.Fprintln(t.out, "Logged out")
	return nil
}

func (t *terminal) whoami() error {
	snap := t.ctrl.Snapshot()
	if !snap.LoggedIn {
		return errNotLoggedIn
	}
	fmt.Fprintf(t.out, "Name:  %s\n", snap.User.Name)
	fmt.Fprintf(t.out, "Email: %s\n", snap.User.Email)
	fmt.Fprintf(t.out, "ID:    %s\n", snap.User.ID)
	return nil
}

func (t *terminal) assistants(ctx context.Context, args []string) error {
	if !t.ctrl.Snapshot().LoggedIn {
		return errNotLoggedIn
	}
	flags, rest, err := parseFlags(args, "page")
	if err != nil {
		return err
	}

	if err := t.load(ctx); err != nil {
		return err
	}
	if err := t.navigate(rest, flags["page"]); err != nil {
		return err
	}

	return t.ctrl.Render(func(s screen.Snapshot) error {
		switch m := s.Model.(type) {
		case *views.AssistantList:
			page := m.Page()
			if page.Total == 0 {
				fmt.Fprintln(t.out, "Nenhum assistente encontrado.")
				return nil
			}
			w := tabwriter.NewWriter(t.out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tNAME")
			for _, a := range page.Rows {
				fmt.Fprintf(w, "%s\t%s\n", a.ID, a.Name)
			}
			if err := w.Flush(); err != nil {
				return err
			}
			fmt.Fprintln(t.out, page.Summary())
		case *views.Dashboard:
			page := m.Page()
			fmt.Fprintf(t.out, "%s (%s)\n\n", m.Assistant.Name, m.Assistant.ID)
			if page.Total == 0 {
				fmt.Fprintln(t.out, "Nenhum relatório encontrado.")
				return nil
			}
			w := tabwriter.NewWriter(t.out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, strings.Join(m.Columns, "\t"))
			for _, r := range page.Rows {
				cells := make([]string, len(m.Columns))
				for i, col := range m.Columns {
					cells[i] = m.Cell(r, col)
				}
				fmt.Fprintln(w, strings.Join(cells, "\t"))
			}
			if err := w.Flush(); err != nil {
				return err
			}
			fmt.Fprintln(t.out, page.Summary())
		}
		return nil
	})
}

func (t *terminal) reports(ctx context.Context, args []string) error {
	flags, rest, err := parseFlags(args, "page")
	if err != nil {
		return err
	}
	if len(rest) == 0 {
		return errors.New("usage: assistant-admin reports ID [QUERY] [--page N]")
	}
	if err := t.open(rest[0], t.ctrl.ViewReport); err != nil {
		return err
	}
	if err := t.load(ctx); err != nil {
		return err
	}
	if err := t.navigate(rest[1:], flags["page"]); err != nil {
		return err
	}

	bold := color.New(color.Bold)
	return t.ctrl.Render(func(s screen.Snapshot) error {
		list, ok := s.Model.(*views.ReportList)
		if !ok {
			return screen.ErrNotLoaded
		}
		page := list.Page()
		if page.Total == 0 {
			fmt.Fprintln(t.out, "Nenhum relatório encontrado.")
			return nil
		}
		for i, rep := range page.Rows {
			bold.Fprintf(t.out, "Relatório %d\n", page.First()+i)
			for _, f := range list.Fields(rep) {
				fmt.Fprintf(t.out, "  %s: %s\n", f.Key, f.Value)
			}
			fmt.Fprintln(t.out)
		}
		fmt.Fprintln(t.out, page.Summary())
		return nil
	})
}

func (t *terminal) show(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return errors.New("usage: assistant-admin show ID")
	}
	if err := t.open(args[0], t.ctrl.Edit); err != nil {
		return err
	}
	if err := t.load(ctx); err != nil {
		return err
	}

	return t.ctrl.Render(func(s screen.Snapshot) error {
		form, ok := s.Model.(*editor.Form)
		if !ok {
			return screen.ErrNotLoaded
		}
		t.printForm(form)
		return nil
	})
}

func (t *terminal) edit(ctx context.Context, args []string) error {
	flags, rest, err := parseFlags(args, "name", "prompt", "prompt-file", "columns")
	if err != nil {
		return err
	}
	if len(rest) != 1 {
		return errors.New("usage: assistant-admin edit ID [--name NAME] [--prompt TEXT | --prompt-file FILE] [--columns a,b,c]")
	}
	if _, ok := flags["prompt"]; ok {
		if _, ok := flags["prompt-file"]; ok {
			return errors.New("--prompt and --prompt-file are mutually exclusive")
		}
	}
	if path, ok := flags["prompt-file"]; ok {
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("reading prompt file: %w", err)
		}
		flags["prompt"] = string(data)
	}

	if err := t.open(rest[0], t.ctrl.Edit); err != nil {
		return err
	}
	if err := t.load(ctx); err != nil {
		return err
	}

	err = t.ctrl.UpdateForm(func(f *editor.Form) error {
		if name, ok := flags["name"]; ok {
			f.Name = name
		}
		if p, ok := flags["prompt"]; ok {
			f.Prompt = p
		}
		if cols, ok := flags["columns"]; ok {
			if !f.ColumnsEnabled {
				return errors.New("column editing is disabled")
			}
			f.Columns = splitColumns(cols)
		}
		return nil
	})
	if err != nil {
		return err
	}

	if err := t.ctrl.SubmitForm(ctx); err != nil {
		if errors.Is(err, screen.ErrSuperseded) || errors.Is(err, screen.ErrNotLoaded) {
			return err
		}
		return errors.New(editor.Message(err))
	}

	color.New(color.FgGreen).Fprint(t.out, "✓ ")
	fmt.Fprintln(t.out, editor.SuccessMessage)
	return nil
}

func (t *terminal) printForm(f *editor.Form) {
	bold := color.New(color.Bold)
	bold.Fprintln(t.out, f.Name)
	fmt.Fprintf(t.out, "ID:      %s\n", f.ID)
	if f.ColumnsEnabled {
		fmt.Fprintf(t.out, "Colunas: %s\n", strings.Join(f.Columns, ", "))
	}
	fmt.Fprintln(t.out)
	fmt.Fprintln(t.out, f.Prompt)
}

// open moves from Home to the screen of assistant id.
func (t *terminal) open(id string, transition func(string) error) error {
	if !t.ctrl.Snapshot().LoggedIn {
		return errNotLoggedIn
	}
	return transition(id)
}

// load fetches the current screen and turns a load failure into its
// user-facing message.
func (t *terminal) load(ctx context.Context) error {
	s := t.ctrl.Load(ctx)
	if s.Err == nil {
		return nil
	}
	slog.Debug("screen load failed", "component", "cli", "error", s.Err)
	if s.Screen.State == screen.StateEditing {
		return errors.New(editor.Message(s.Err))
	}
	return errors.New(views.Message(s.Err))
}

// navigate applies the query words and page flag to the loaded list.
func (t *terminal) navigate(words []string, pageFlag string) error {
	var query *string
	if len(words) > 0 {
		q := strings.Join(words, " ")
		query = &q
	}
	page := 0
	if pageFlag != "" {
		n, err := strconv.Atoi(pageFlag)
		if err != nil || n < 1 {
			return fmt.Errorf("invalid page %q", pageFlag)
		}
		page = n
	}
	if query == nil && page == 0 {
		return nil
	}
	return t.ctrl.Navigate(query, page)
}

// parseFlags splits "--name value" and "--name=value" flags from
// positional arguments. Only the given names are accepted.
func parseFlags(args []string, names ...string) (map[string]string, []string, error) {
	known := make(map[string]bool, len(names))
	for _, n := range names {
		known[n] = true
	}

	flags := map[string]string{}
	var rest []string
	for i := 0; i < len(args); i++ {
		arg := args[i]
		if !strings.HasPrefix(arg, "--") {
			rest = append(rest, arg)
			continue
		}
		name, value, hasValue := strings.Cut(strings.TrimPrefix(arg, "--"), "=")
		if !known[name] {
			return nil, nil, fmt.Errorf("unknown flag: %s", arg)
		}
		if !hasValue {
			if i+1 >= len(args) {
				return nil, nil, fmt.Errorf("--%s requires a value", name)
			}
			value = args[i+1]
			i++
		}
		flags[name] = value
	}
	return flags, rest, nil
}

// splitColumns parses "a, b,c" into column names. An empty string clears
// the list.
func splitColumns(s string) []string {
	if strings.TrimSpace(s) == "" {
		return []string{}
	}
	parts := strings.Split(s, ",")
	for i, p := range parts {
		parts[i] = strings.TrimSpace(p)
	}
	return parts
}
