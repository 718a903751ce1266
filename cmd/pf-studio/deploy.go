package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"pf-studio/internal/apibase"
	"pf-studio/internal/badge"
	"pf-studio/internal/config"
	"pf-studio/internal/htmlpatch"
)

// SiteFiles are the pages a deploy command works on: the arguments when
// given, otherwise site.html_files.
type SiteFiles struct {
	Files []string `kong:"arg,optional,help='Pages relative to the site root (default: site.html_files).'"`
}

func (s SiteFiles) resolve(cfg *config.Config) []string {
	if len(s.Files) > 0 {
		return s.Files
	}
	return cfg.Site.HTMLFiles
}

// applyPatch runs patch over the selected pages and prints one line per
// file. Pages the patch could not handle fail the command.
func applyPatch(g *config.CLI, files SiteFiles, patch htmlpatch.Patch) error {
	var cfg *config.Config
	return withApp(g, func(ctx context.Context) error {
		results, err := htmlpatch.Apply(ctx, cfg.Site.Root, files.resolve(cfg), patch)
		if err != nil {
			return err
		}
		for _, r := range results {
			if r.Err != nil {
				fmt.Printf("%-10s %s: %v\n", r.Outcome, r.File, r.Err)
				continue
			}
			fmt.Printf("%-10s %s\n", r.Outcome, r.File)
		}
		summary := htmlpatch.Summarize(results)
		if n := summary[htmlpatch.Failed]; n > 0 {
			return fmt.Errorf("%d file(s) could not be patched", n)
		}
		return nil
	}, &cfg)
}

// InjectAPIBaseCmd writes the pf:apiBase meta tag.
type InjectAPIBaseCmd struct {
	URL string `kong:"arg,name='url',help='Backend origin to embed.'"`
	SiteFiles
}

func (c *InjectAPIBaseCmd) Run(g *config.CLI) error {
	base, ok := apibase.Normalize(c.URL)
	if !ok {
		return fmt.Errorf("not a usable api base: %q", c.URL)
	}
	return applyPatch(g, c.SiteFiles, func(content string) (string, htmlpatch.Outcome, error) {
		return htmlpatch.InjectAPIBase(content, base)
	})
}

// NormalizeHeadCmd fixes script order in every page head.
type NormalizeHeadCmd struct {
	SiteFiles
}

func (c *NormalizeHeadCmd) Run(g *config.CLI) error {
	return applyPatch(g, c.SiteFiles, htmlpatch.NormalizeHead)
}

// CheckFrontendCmd prints the static assertion report.
type CheckFrontendCmd struct {
	SiteFiles
}

func (c *CheckFrontendCmd) Run(g *config.CLI) error {
	var cfg *config.Config
	return withApp(g, func(context.Context) error {
		report, err := htmlpatch.Check(cfg.Site.Root, c.resolve(cfg))
		if err != nil {
			return err
		}
		for _, f := range report.Findings {
			fmt.Println(f)
		}
		fmt.Printf("\n%d passed, %d warnings, %d failed\n",
			report.Count(htmlpatch.Pass), report.Count(htmlpatch.Warn), report.Count(htmlpatch.Fail))
		if !report.OK() {
			return fmt.Errorf("front-end checks failed")
		}
		return nil
	}, &cfg)
}

// FixIndentCmd re-indents one page.
type FixIndentCmd struct {
	File   string `kong:"arg,optional,default='dashboard.html',help='Page relative to the site root.'"`
	Marker string `kong:"help='Comment after which lines are shifted.'"`
}

func (c *FixIndentCmd) Run(g *config.CLI) error {
	marker := c.Marker
	if marker == "" {
		marker = htmlpatch.DashboardMarker
	}
	return applyPatch(g, SiteFiles{Files: []string{c.File}}, func(content string) (string, htmlpatch.Outcome, error) {
		return htmlpatch.Reindent(content, marker)
	})
}

// UpdateBadgeCmd rewrites the QA badge in README.md.
type UpdateBadgeCmd struct {
	Dir string `kong:"default='.',type='existingdir',help='Repository root.'"`
}

func (c *UpdateBadgeCmd) Run(g *config.CLI) error {
	var logger *slog.Logger
	return withApp(g, func(ctx context.Context) error {
		remote, err := badge.RemoteURL(ctx, c.Dir)
		if err != nil {
			return err
		}
		repo, err := badge.ParseRemote(remote)
		if err != nil {
			return err
		}
		readme := filepath.Join(c.Dir, "README.md")
		res, err := badge.UpdateReadme(readme, repo)
		if err != nil {
			return err
		}
		logger.Debug("readme badge updated", "component", "badge", "repo", repo.String(), "path", readme, "result", string(res))
		fmt.Fprintf(os.Stdout, "%s README badge for %s\n", res, repo)
		return nil
	}, &logger)
}
