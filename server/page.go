package server

import (
	"context"
	"embed"
	"fmt"
	"html/template"
	"io/fs"
	"log/slog"
	"net/http"
	"net/url"

	"github.com/aluiziolira/go-promotores/ui"
	"github.com/gin-gonic/gin"
)

//go:embed templates/*.gohtml static/*
var assets embed.FS

// pageData is everything index.gohtml binds. All strings are bound as
// text or attribute values; html/template escapes them.
type pageData struct {
	Query      string
	Alert      ui.Alert
	Table      ui.Table
	DialogOpen bool
	Presets    []string
	QRHref     string
	CloseHref  string
	ExportHref string
}

func parsePage() (*template.Template, error) {
	funcs := template.FuncMap{
		"isCopy": func(a ui.Action) bool { return a.Kind == ui.ActionCopy },
	}
	page, err := template.New("index.gohtml").Funcs(funcs).ParseFS(assets, "templates/index.gohtml")
	if err != nil {
		return nil, fmt.Errorf("parse page template: %w", err)
	}
	return page, nil
}

func staticAssets() (fs.FS, error) {
	sub, err := fs.Sub(assets, "static")
	if err != nil {
		return nil, fmt.Errorf("static assets: %w", err)
	}
	return sub, nil
}

func newPage() pageData {
	return pageData{
		Table:   ui.RenderRecords(nil),
		Presets: ui.ScannerPresets,
	}
}

// handlePage renders the search screen. ?op= runs a search server side,
// ?qr=open shows the QR dialog. Without a search a failing health check
// is reported as a warning.
func (s *Server) handlePage(c *gin.Context) {
	p := newPage()
	p.DialogOpen = c.Query("qr") == "open"

	if op, ok := c.GetQuery("op"); ok {
		s.pageSearch(c.Request.Context(), &p, op)
	} else if h := s.catalog.Health(); !h.OK {
		p.Alert = ui.Alert{Message: fmt.Sprintf(ui.MsgHealthWarning, h.ErrorText()), Kind: ui.AlertError, Visible: true}
	}
	s.render(c, p)
}

// pageLinks keeps the current query in the dialog links.
func (p *pageData) pageLinks() {
	p.QRHref = "/?qr=open"
	p.CloseHref = "/"
	if p.Query != "" {
		p.QRHref += "&op=" + url.QueryEscape(p.Query)
		p.CloseHref += "?op=" + url.QueryEscape(p.Query)
	}
}

// handlePageUpload decodes an uploaded QR image and searches its value.
// On failure the dialog stays open with the reason.
func (s *Server) handlePageUpload(c *gin.Context) {
	p := newPage()
	value, _, err := s.decodeUpload(c)
	if err != nil {
		p.DialogOpen = true
		p.Alert = ui.Alert{Message: err.Error(), Kind: ui.AlertError, Visible: true}
		s.render(c, p)
		return
	}
	s.pageSearch(c.Request.Context(), &p, value)
	s.render(c, p)
}

func (s *Server) pageSearch(ctx context.Context, p *pageData, input string) {
	alerts := ui.NewAlertPresenter(0, nil, nil)
	ctrl := ui.NewSearchController(ui.SearcherFunc(s.search), alerts, func(t ui.Table) {
		p.Table = t
	})

	p.Query = input
	// Failures are already in the alert.
	_ = ctrl.Search(ctx, input)
	p.Alert = alerts.Current()
	if p.Table.HasData() {
		p.ExportHref = "/exportar?op=" + url.QueryEscape(input)
	}
}

func (s *Server) render(c *gin.Context, p pageData) {
	p.pageLinks()
	c.Header("Content-Type", "text/html; charset=utf-8")
	c.Status(http.StatusOK)
	if err := s.page.ExecuteTemplate(c.Writer, "index.gohtml", p); err != nil {
		slog.Error("render page", slog.Any("error", err))
	}
}
