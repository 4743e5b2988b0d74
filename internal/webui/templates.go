// ABOUTME: Template data types and rendering for the web UI
// ABOUTME: Templates are parsed once from the embedded filesystem; prompts render as Markdown

package webui

import (
	"bytes"
	"html/template"
	"io"
	"log/slog"
	"math"
	"net/http"

	"github.com/google/uuid"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"

	"github.com/alphasales/assistant-admin/internal/config"
	"github.com/alphasales/assistant-admin/internal/editor"
	"github.com/alphasales/assistant-admin/internal/listing"
	"github.com/alphasales/assistant-admin/internal/screen"
	"github.com/alphasales/assistant-admin/internal/views"
	"github.com/alphasales/assistant-admin/internal/webhook"
)

// Template data types
type loginData struct {
	Error     string
	Email     string
	CSRFToken string
}

// chrome is the part of every signed-in page rendered by base.html.
type chrome struct {
	Title     string
	CSRFToken string
	User      webhook.User
	Alert     *screen.Alert
	// Error is the load failure of the screen, shown with a retry button
	Error string
	// RefreshAfter, when positive, reloads "/" after that many seconds
	RefreshAfter int
	// Back shows the "Voltar" button
	Back bool
	// Logout shows the "Sair" button
	Logout bool
}

type pager struct {
	Path    string
	Query   string
	Number  int
	Numbers []int
	HasPrev bool
	HasNext bool
	Summary string
}

func newPager[T any](path string, p listing.Page[T]) pager {
	return pager{
		Path:    path,
		Query:   p.Query,
		Number:  p.Number,
		Numbers: p.Numbers(),
		HasPrev: p.HasPrev,
		HasNext: p.HasNext,
		Summary: p.Summary(),
	}
}

type assistantsData struct {
	chrome
	Loaded bool
	Rows   []webhook.Assistant
	Pager  pager
}

type dashboardData struct {
	chrome
	Loaded    bool
	Assistant webhook.Assistant
	Columns   []string
	Rows      []webhook.Report
	Board     *views.Dashboard
	Pager     pager
}

type editData struct {
	chrome
	ID             string
	Form           *editor.Form
	ColumnsEnabled bool
	Preview        template.HTML
	// SubmitToken is unique per rendered form; a second save with the
	// same token is ignored
	SubmitToken string
}

type reportCard struct {
	Number int
	Fields []views.Field
}

type reportsData struct {
	chrome
	Loaded      bool
	AssistantID string
	Cards       []reportCard
	Pager       pager
}

var markdown = goldmark.New(goldmark.WithExtensions(extension.GFM))

// renderMarkdown converts a prompt to HTML. Raw HTML in the prompt is
// dropped by the renderer.
func renderMarkdown(src string) template.HTML {
	var buf bytes.Buffer
	if err := markdown.Convert([]byte(src), &buf); err != nil {
		slog.Default().Warn("failed to convert markdown", "component", "webui", "error", err)
		return template.HTML("<p>" + template.HTMLEscapeString(src) + "</p>")
	}
	return template.HTML(buf.String())
}

var funcs = template.FuncMap{
	"text": webhook.Text,
	"add":  func(a, b int) int { return a + b },
}

// pages holds the parsed template sets, one per page.
type pages struct {
	loginTmpl      *template.Template
	assistantsTmpl *template.Template
	dashboardTmpl  *template.Template
	editTmpl       *template.Template
	reportsTmpl    *template.Template
}

func parsePage(name string) *template.Template {
	return template.Must(template.New("base.html").Funcs(funcs).ParseFS(templateFS,
		"templates/base.html",
		"templates/partials/*.html",
		"templates/"+name,
	))
}

func parsePages() pages {
	return pages{
		loginTmpl:      template.Must(template.New("login.html").Funcs(funcs).ParseFS(templateFS, "templates/login.html")),
		assistantsTmpl: parsePage("assistants.html"),
		dashboardTmpl:  parsePage("dashboard.html"),
		editTmpl:       parsePage("edit.html"),
		reportsTmpl:    parsePage("reports.html"),
	}
}

func (p pages) login(w io.Writer, data loginData) error {
	return p.loginTmpl.Execute(w, data)
}

// home renders either variant's Home; partial renders only the table.
func (p pages) home(w io.Writer, data any, partial bool) error {
	tmpl := p.assistantsTmpl
	if _, ok := data.(dashboardData); ok {
		tmpl = p.dashboardTmpl
	}
	if partial {
		return tmpl.ExecuteTemplate(w, "table", data)
	}
	return tmpl.Execute(w, data)
}

func (p pages) edit(w io.Writer, data editData) error {
	return p.editTmpl.Execute(w, data)
}

func (p pages) reports(w io.Writer, data reportsData, partial bool) error {
	if partial {
		return p.reportsTmpl.ExecuteTemplate(w, "table", data)
	}
	return p.reportsTmpl.Execute(w, data)
}

func (u *UI) chrome(r *http.Request, s screen.Snapshot, title string) chrome {
	return chrome{
		Title:     title,
		CSRFToken: getCSRFToken(r),
		User:      s.User,
		Alert:     s.Alert,
		Back:      s.Screen.State == screen.StateEditing || s.Screen.State == screen.StateViewingReport,
		Logout:    s.Screen.State == screen.StateHome,
	}
}

func (u *UI) homeData(r *http.Request, s screen.Snapshot) any {
	if s.Variant == config.VariantSingle {
		data := dashboardData{chrome: u.chrome(r, s, "Painel do Assistente")}
		if s.Err != nil {
			data.Error = views.Message(s.Err)
		}
		if board, ok := s.Model.(*views.Dashboard); ok && board != nil {
			page := board.Page()
			data.Loaded = true
			data.Assistant = board.Assistant
			data.Columns = board.Columns
			data.Rows = page.Rows
			data.Board = board
			data.Pager = newPager("/home", page)
		}
		return data
	}

	data := assistantsData{chrome: u.chrome(r, s, "Assistentes")}
	if s.Err != nil {
		data.Error = views.Message(s.Err)
	}
	if list, ok := s.Model.(*views.AssistantList); ok && list != nil {
		page := list.Page()
		data.Loaded = true
		data.Rows = page.Rows
		data.Pager = newPager("/home", page)
	}
	return data
}

func (u *UI) editData(r *http.Request, s screen.Snapshot) editData {
	data := editData{
		chrome:         u.chrome(r, s, "Editar Assistente"),
		ID:             s.Screen.AssistantID,
		ColumnsEnabled: s.ColumnsEnabled,
		SubmitToken:    uuid.NewString(),
	}
	if s.Err != nil {
		data.Error = editor.Message(s.Err)
	}
	if form, ok := s.Model.(*editor.Form); ok && form != nil {
		data.Form = form
		data.Preview = renderMarkdown(form.Prompt)
	}
	if s.RedirectPending {
		data.RefreshAfter = int(math.Ceil(u.config.SaveRedirectDelay.Seconds()))
	}
	return data
}

func (u *UI) reportsData(r *http.Request, s screen.Snapshot) reportsData {
	data := reportsData{
		chrome:      u.chrome(r, s, "Relatórios do Assistente"),
		AssistantID: s.Screen.AssistantID,
	}
	if s.Err != nil {
		data.Error = views.Message(s.Err)
	}
	if list, ok := s.Model.(*views.ReportList); ok && list != nil {
		page := list.Page()
		data.Loaded = true
		data.Pager = newPager(screenPath(s.Screen), page)
		for i, rep := range page.Rows {
			data.Cards = append(data.Cards, reportCard{Number: page.First() + i, Fields: list.Fields(rep)})
		}
	}
	return data
}
