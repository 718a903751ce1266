package main

import (
	"fmt"

	"github.com/alecthomas/kong"

	"pf-studio/internal/config"
)

// Set by goreleaser ldflags.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// CLI is the full command tree. Global flags come from config.CLI.
type CLI struct {
	config.CLI

	Version kong.VersionFlag `kong:"help='Print version and exit.'"`

	Serve      ServeCmd      `kong:"cmd,default='1',help='Serve the front-end with runtime config and the /api proxy.'"`
	Resolve    ResolveCmd    `kong:"cmd,help='Print the resolved API base and the source it came from.'"`
	Call       CallCmd       `kong:"cmd,help='Send one request to the backend API.'"`
	Project    ProjectCmd    `kong:"cmd,help='Manage the cached project identifier.'"`
	Activity   ActivityCmd   `kong:"cmd,help='Browse the admin activity log.'"`
	LoginToken LoginTokenCmd `kong:"cmd,name='login-token',help='Store or clear the bearer token sent with API calls.'"`
	Base       APIBaseCmd    `kong:"cmd,name='api-base',help='Store or clear the persisted API base override.'"`
	Lang       LangCmd       `kong:"cmd,help='Read or change the language preference.'"`

	InjectAPIBase InjectAPIBaseCmd `kong:"cmd,name='inject-api-base',help='Write the pf:apiBase meta tag into the site pages.'"`
	NormalizeHead NormalizeHeadCmd `kong:"cmd,name='normalize-head',help='Put runtime-config.js and api.js first in every page head.'"`
	CheckFrontend CheckFrontendCmd `kong:"cmd,name='check-frontend',help='Run static assertions over the site pages.'"`
	FixIndent     FixIndentCmd     `kong:"cmd,name='fix-indent',help='Re-indent the block after a marker comment in one page.'"`
	UpdateBadge   UpdateBadgeCmd   `kong:"cmd,name='update-badge',help='Point the README QA badge at the origin repository.'"`
}

func main() {
	var cli CLI
	ctx := kong.Parse(&cli,
		kong.Name("pf-studio"),
		kong.Description("Runtime configuration, API client and deploy tools for the PF Creative AI Studio front-end."),
		kong.UsageOnError(),
		kong.Vars{"version": fmt.Sprintf("%s (%s, %s)", version, commit, date)},
	)
	ctx.FatalIfErrorf(ctx.Run(&cli.CLI))
}
