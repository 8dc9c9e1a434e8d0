package web

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"io/fs"
	"math"
	"net/http"
	"path"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/spark200410/consultancy/internal/session"
)

//go:embed templates/*.html
var templateFS embed.FS

//go:embed static
var staticFS embed.FS

const (
	shellNone  = ""
	shellAdmin = "admin"
	shellUser  = "user"
)

// Page is the data every template receives.
type Page struct {
	Title   string
	Shell   string
	User    session.User
	Flash   string
	Error   string
	Refresh *Refresh
	Data    any
}

func (p Page) LoggedIn() bool { return p.User.Email != "" }

// Refresh sends the browser to URL after Delay.
type Refresh struct {
	URL   string
	Delay time.Duration
}

// Seconds rounds up so the meta refresh never fires early.
func (r Refresh) Seconds() int { return int(math.Ceil(r.Delay.Seconds())) }

func (r Refresh) Millis() int64 { return r.Delay.Milliseconds() }

// Renderer executes one template set per page, each sharing the layout.
type Renderer struct {
	pages  map[string]*template.Template
	logger zerolog.Logger
}

var templateFuncs = template.FuncMap{
	"lower": strings.ToLower,
}

func NewRenderer(logger zerolog.Logger) (*Renderer, error) {
	base, err := template.New("layout.html").Funcs(templateFuncs).ParseFS(templateFS, "templates/layout.html")
	if err != nil {
		return nil, fmt.Errorf("parse layout: %w", err)
	}

	files, err := fs.Glob(templateFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("list templates: %w", err)
	}

	pages := make(map[string]*template.Template, len(files))
	for _, file := range files {
		name := strings.TrimSuffix(path.Base(file), ".html")
		if name == "layout" {
			continue
		}
		t, err := base.Clone()
		if err != nil {
			return nil, fmt.Errorf("clone layout for %s: %w", name, err)
		}
		if _, err := t.ParseFS(templateFS, file); err != nil {
			return nil, fmt.Errorf("parse %s: %w", name, err)
		}
		pages[name] = t
	}
	return &Renderer{pages: pages, logger: logger}, nil
}

// Render writes the page with the given status. Rendering goes to a buffer
// first so a template error never produces half a page.
func (rn *Renderer) Render(w http.ResponseWriter, r *http.Request, status int, name string, p Page) {
	t, ok := rn.pages[name]
	if !ok {
		rn.logger.Error().Str("template", name).Msg("unknown template")
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	if u, ok := session.FromContext(r.Context()).User(); ok && p.User.Email == "" {
		p.User = u
	}

	var buf bytes.Buffer
	if err := t.ExecuteTemplate(&buf, "layout", p); err != nil {
		rn.logger.Error().Err(err).Str("template", name).Str("request_id", GetRequestID(r.Context())).Msg("render page")
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = buf.WriteTo(w)
}

func staticHandler() http.Handler {
	sub, err := fs.Sub(staticFS, "static")
	if err != nil {
		panic(err)
	}
	return http.StripPrefix("/static/", http.FileServer(http.FS(sub)))
}
