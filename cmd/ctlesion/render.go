package main

import (
	"encoding/json"
	"net/http"
)

const (
	JSON = "json"
	HTML = "html"
)

type Page struct {
	Title   string
	Site    string
	Company string
	Assets  string
	Data    interface{}
}

type renderOpts struct {
	OutputFormat string
	StatusCode   int
}

func NewRenderOpts() *renderOpts {
	return &renderOpts{
		OutputFormat: HTML,
		StatusCode:   http.StatusOK,
	}
}

func JSONOpts() *renderOpts {
	opts := NewRenderOpts()
	opts.OutputFormat = JSON
	return opts
}

func Render(h *handler, w http.ResponseWriter, r *http.Request, title string, tpl string, data interface{}, opts *renderOpts) {
	if opts == nil {
		opts = NewRenderOpts()
	}

	if opts.OutputFormat == JSON {
		renderJSON(h, w, r, data, *opts)
		return
	}

	page := Page{
		Title:   title,
		Site:    h.Global.Site,
		Company: h.Global.Company,
		Assets:  h.Assets(),
		Data:    data,
	}

	renderHTML(h, w, r, tpl, page, *opts)
}

func renderJSON(h *handler, w http.ResponseWriter, r *http.Request, data interface{}, opts renderOpts) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(opts.StatusCode)

	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(data); err != nil {
		h.log.Println(r.URL.Path, ":", err)
	}
}

func renderHTML(h *handler, w http.ResponseWriter, r *http.Request, tpl string, page Page, opts renderOpts) {
	if tpl == "" {
		tpl = BaseFilename
	}

	if err := h.Template(tpl).Execute(w, page); err != nil {
		HTTPError(h, w, r, err)
	}
}
