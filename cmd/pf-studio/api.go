package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"

	"pf-studio/internal/activity"
	"pf-studio/internal/apibase"
	"pf-studio/internal/client"
	"pf-studio/internal/config"
	"pf-studio/internal/i18n"
	"pf-studio/internal/model"
	"pf-studio/internal/project"
	"pf-studio/internal/store"
)

// ResolveCmd prints the origin API calls would go to.
type ResolveCmd struct{}

func (r *ResolveCmd) Run(g *config.CLI) error {
	var rt *apibase.Runtime
	return withApp(g, func(context.Context) error {
		if apibase.Failed() || !rt.Resolved() {
			return apibase.ErrNoOrigin
		}
		fmt.Printf("%s\t(%s)\n", rt.APIBase(), rt.Source())
		return nil
	}, &rt)
}

// CallCmd sends one request through the dispatcher.
type CallCmd struct {
	Method string            `kong:"arg,help='HTTP method.'"`
	Path   string            `kong:"arg,help='Path relative to the API base, or an absolute URL.'"`
	Data   string            `kong:"short='d',help='Raw request body; @file reads it from a file.'"`
	Header map[string]string `kong:"short='H',help='Extra request header (Name=value).'"`
	Form   map[string]string `kong:"short='F',help='Multipart field (name=value, or name=@file for a file part).'"`
	Origin string            `kong:"help='Send this call to another origin.'"`
}

func (c *CallCmd) Run(g *config.CLI) error {
	req, closeFiles, err := c.request()
	if err != nil {
		return err
	}
	defer closeFiles()

	var api *client.Client
	return withApp(g, func(ctx context.Context) error {
		resp, err := api.Do(ctx, req)
		if err != nil {
			return err
		}
		defer func() { _ = resp.Body.Close() }()

		fmt.Fprintln(os.Stderr, resp.Status)
		if _, err := io.Copy(os.Stdout, resp.Body); err != nil {
			return fmt.Errorf("read response: %w", err)
		}
		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			return fmt.Errorf("request failed: %s", resp.Status)
		}
		return nil
	}, &api)
}

func (c *CallCmd) request() (*model.Request, func(), error) {
	req := &model.Request{
		Method: strings.ToUpper(c.Method),
		Path:   c.Path,
		Header: http.Header{},
		Origin: c.Origin,
	}
	for k, v := range c.Header {
		req.Header.Set(k, v)
	}

	if c.Data != "" {
		body := []byte(c.Data)
		if name, ok := strings.CutPrefix(c.Data, "@"); ok {
			data, err := os.ReadFile(name)
			if err != nil {
				return nil, nil, fmt.Errorf("read body: %w", err)
			}
			body = data
		}
		req.Body = body
	}

	var files []*os.File
	closeFiles := func() {
		for _, f := range files {
			_ = f.Close()
		}
	}
	if len(c.Form) > 0 {
		form := &model.Form{Fields: map[string]string{}}
		for k, v := range c.Form {
			name, ok := strings.CutPrefix(v, "@")
			if !ok {
				form.Fields[k] = v
				continue
			}
			f, err := os.Open(name)
			if err != nil {
				closeFiles()
				return nil, nil, fmt.Errorf("open form file: %w", err)
			}
			files = append(files, f)
			form.Files = append(form.Files, model.FormFile{Field: k, Filename: filepath.Base(name), Content: f})
		}
		req.Form = form
	}
	return req, closeFiles, nil
}

// ProjectCmd groups the project cache commands.
type ProjectCmd struct {
	Ensure ProjectEnsureCmd `kong:"cmd,help='Print the current project id, fetching or creating one when none is cached.'"`
	Clear  ProjectClearCmd  `kong:"cmd,help='Forget the cached project id.'"`
}

type ProjectEnsureCmd struct{}

func (p *ProjectEnsureCmd) Run(g *config.CLI) error {
	var cache *project.Cache
	return withApp(g, func(ctx context.Context) error {
		id, err := cache.Ensure(ctx)
		if err != nil {
			return err
		}
		fmt.Println(id)
		return nil
	}, &cache)
}

type ProjectClearCmd struct{}

func (p *ProjectClearCmd) Run(g *config.CLI) error {
	var cache *project.Cache
	return withApp(g, func(ctx context.Context) error {
		return cache.Clear(ctx)
	}, &cache)
}

// ActivityCmd prints one page of the admin activity log.
type ActivityCmd struct {
	Password string `kong:"help='Admin password sent as X-Admin-Password.',env='PF_ADMIN_PASSWORD'"`
	Actor    string `kong:"help='Only entries by this actor.'"`
	Action   string `kong:"help='Only entries with this action.'"`
	Since    string `kong:"help='Start date (ISO-8601 or dd/mm/yyyy[ HH:MM]).'"`
	Until    string `kong:"help='End date (ISO-8601 or dd/mm/yyyy[ HH:MM]).'"`
	Sort     string `kong:"default='desc',enum='asc,desc',help='Sort order by time.'"`
	Page     int    `kong:"default='1',help='Page number, starting at 1.'"`
}

func (a *ActivityCmd) Run(g *config.CLI) error {
	var (
		api    *client.Client
		cfg    *config.Config
		logger *slog.Logger
	)
	return withApp(g, func(ctx context.Context) error {
		v := activity.NewViewer(api, a.Password, cfg.Activity.PageSize, logger)
		filter := activity.Filter{
			Actor:  a.Actor,
			Action: a.Action,
			Since:  a.Since,
			Until:  a.Until,
			Sort:   a.Sort,
		}
		res := v.LoadAt(ctx, filter, (max(a.Page, 1)-1)*v.PageSize())
		activity.Render(os.Stdout, res)
		if v.HasNext() {
			fmt.Fprintf(os.Stderr, "more entries: --page %d\n", max(a.Page, 1)+1)
		}
		return res.Err
	}, &api, &cfg, &logger)
}

// LoginTokenCmd manages the stored bearer token.
type LoginTokenCmd struct {
	Set   LoginTokenSetCmd   `kong:"cmd,help='Store the token.'"`
	Clear LoginTokenClearCmd `kong:"cmd,help='Remove the stored token.'"`
}

type LoginTokenSetCmd struct {
	Token string `kong:"arg,help='Bearer token returned by login.'"`
}

func (l *LoginTokenSetCmd) Run(g *config.CLI) error {
	var st store.Store
	return withApp(g, func(ctx context.Context) error {
		return st.Set(ctx, store.KeyAuthToken, strings.TrimSpace(l.Token))
	}, &st)
}

type LoginTokenClearCmd struct{}

func (l *LoginTokenClearCmd) Run(g *config.CLI) error {
	var st store.Store
	return withApp(g, func(ctx context.Context) error {
		return st.Delete(ctx, store.KeyAuthToken)
	}, &st)
}

// APIBaseCmd manages the persisted origin override, the lowest-priority
// explicit source.
type APIBaseCmd struct {
	Set   APIBaseSetCmd   `kong:"cmd,help='Persist an API base override.'"`
	Clear APIBaseClearCmd `kong:"cmd,help='Remove the persisted override.'"`
}

type APIBaseSetCmd struct {
	URL string `kong:"arg,name='url',help='Absolute http(s) origin.'"`
}

func (a *APIBaseSetCmd) Run(g *config.CLI) error {
	base, ok := apibase.Normalize(a.URL)
	if !ok {
		return fmt.Errorf("not a usable api base: %q", a.URL)
	}
	var st store.Store
	return withApp(g, func(ctx context.Context) error {
		return st.Set(ctx, store.KeyAPIBase, base)
	}, &st)
}

type APIBaseClearCmd struct{}

func (a *APIBaseClearCmd) Run(g *config.CLI) error {
	var st store.Store
	return withApp(g, func(ctx context.Context) error {
		return errors.Join(
			st.Delete(ctx, store.KeyAPIBase),
			st.Delete(ctx, store.KeyAPIBaseLegacy),
		)
	}, &st)
}

// LangCmd reads and writes the language preference.
type LangCmd struct {
	Get  LangGetCmd  `kong:"cmd,help='Print the saved language.'"`
	Set  LangSetCmd  `kong:"cmd,help='Save a language.'"`
	Show LangShowCmd `kong:"cmd,help='Print the translation table.'"`
}

type LangGetCmd struct{}

func (l *LangGetCmd) Run(g *config.CLI) error {
	var pref *i18n.Preference
	return withApp(g, func(ctx context.Context) error {
		lang, err := pref.Get(ctx)
		if err != nil {
			return err
		}
		fmt.Printf("%s\t%s\n", lang, i18n.Label(lang))
		return nil
	}, &pref)
}

type LangSetCmd struct {
	Lang string `kong:"arg,help='Language code: en, bm or zh.'"`
}

func (l *LangSetCmd) Run(g *config.CLI) error {
	var pref *i18n.Preference
	return withApp(g, func(ctx context.Context) error {
		return pref.Set(ctx, strings.ToLower(strings.TrimSpace(l.Lang)))
	}, &pref)
}

type LangShowCmd struct {
	Lang string   `kong:"arg,optional,help='Language code; defaults to the saved preference.'"`
	Keys []string `kong:"short='k',help='Only these keys.'"`
}

func (l *LangShowCmd) Run(g *config.CLI) error {
	var (
		pref    *i18n.Preference
		catalog *i18n.Catalog
	)
	return withApp(g, func(ctx context.Context) error {
		lang := l.Lang
		if lang == "" {
			saved, err := pref.Get(ctx)
			if err != nil {
				return err
			}
			lang = saved
		}
		strs, err := catalog.Table(lang)
		if err != nil {
			return err
		}

		keys := l.Keys
		if len(keys) == 0 {
			for k := range strs {
				keys = append(keys, k)
			}
			slices.Sort(keys)
		}

		t := table.NewWriter()
		t.SetOutputMirror(os.Stdout)
		t.SetStyle(table.StyleLight)
		t.Style().Options.DrawBorder = false
		t.AppendHeader(table.Row{"Key", i18n.Label(lang)})
		for _, k := range keys {
			t.AppendRow(table.Row{k, catalog.Lookup(lang, k)})
		}
		t.Render()
		return nil
	}, &pref, &catalog)
}
