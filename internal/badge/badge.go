// Package badge keeps the QA workflow badge in README.md pointing at the
// repository's GitHub origin.
package badge

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"strings"
)

// Workflow is the GitHub Actions workflow the badge reports on.
const Workflow = "qa.yml"

// DefaultReadme is written when the repository has no README.md yet.
const DefaultReadme = "# PF Creative AI Studio\n\n%s\n\nDirector-Grade AI for Film Production Scripts\n"

var (
	// ErrNoRemote means no origin remote is configured yet.
	ErrNoRemote = errors.New("no origin remote configured")
	// ErrNotGitHub means the origin URL is not a github.com repository.
	ErrNotGitHub = errors.New("origin is not a GitHub repository")
)

var (
	originURL = regexp.MustCompile(`\[remote "origin"\][^\[]*?\burl\s*=\s*(.+)`)
	githubURL = regexp.MustCompile(`^https://github\.com/([^/]+)/([^/]+?)(?:\.git)?/?$`)
	badgeRE   = regexp.MustCompile(`\[!\[QA\]\(https://github\.com/[^/]+/[^/]+/actions/workflows/qa\.yml/badge\.svg\)\]\(https://github\.com/[^/]+/[^/]+/actions/workflows/qa\.yml\)`)
)

// Repo identifies a GitHub repository.
type Repo struct {
	Owner string
	Name  string
}

func (r Repo) String() string { return r.Owner + "/" + r.Name }

// ActionsURL is the page of the QA workflow runs.
func (r Repo) ActionsURL() string {
	return fmt.Sprintf("https://github.com/%s/%s/actions/workflows/%s", r.Owner, r.Name, Workflow)
}

// Markdown is the badge linking to ActionsURL.
func (r Repo) Markdown() string {
	return fmt.Sprintf("[![QA](%s/badge.svg)](%s)", r.ActionsURL(), r.ActionsURL())
}

// RemoteURL returns the origin remote of the repository at dir, asking git
// first and reading .git/config when git is unavailable.
func RemoteURL(ctx context.Context, dir string) (string, error) {
	cmd := exec.CommandContext(ctx, "git", "remote", "get-url", "origin")
	cmd.Dir = dir
	if out, err := cmd.Output(); err == nil {
		if u := strings.TrimSpace(string(out)); u != "" {
			return u, nil
		}
	}

	data, err := os.ReadFile(filepath.Join(dir, ".git", "config"))
	if errors.Is(err, fs.ErrNotExist) {
		return "", ErrNoRemote
	}
	if err != nil {
		return "", fmt.Errorf("read git config: %w", err)
	}
	m := originURL.FindSubmatch(data)
	if m == nil {
		return "", ErrNoRemote
	}
	return string(bytes.TrimSpace(m[1])), nil
}

// ParseRemote extracts owner and repository from an https or ssh GitHub URL.
func ParseRemote(remote string) (Repo, error) {
	u := strings.TrimSpace(remote)
	if rest, ok := strings.CutPrefix(u, "git@github.com:"); ok {
		u = "https://github.com/" + rest
	}
	if rest, ok := strings.CutPrefix(u, "ssh://git@github.com/"); ok {
		u = "https://github.com/" + rest
	}
	m := githubURL.FindStringSubmatch(u)
	if m == nil {
		return Repo{}, fmt.Errorf("%w: %s", ErrNotGitHub, remote)
	}
	return Repo{Owner: m[1], Name: m[2]}, nil
}

// Result says what UpdateReadme did.
type Result string

const (
	Created   Result = "created"
	Replaced  Result = "replaced"
	Inserted  Result = "inserted"
	Unchanged Result = "unchanged"
)

// UpdateReadme writes repo's badge into the README at path. An existing QA
// badge is replaced; otherwise the badge goes on the line after the title.
func UpdateReadme(path string, repo Repo) (Result, error) {
	badge := repo.Markdown()

	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		if err := os.WriteFile(path, []byte(fmt.Sprintf(DefaultReadme, badge)), 0o644); err != nil {
			return "", fmt.Errorf("create readme: %w", err)
		}
		return Created, nil
	}
	if err != nil {
		return "", fmt.Errorf("read readme: %w", err)
	}

	content := string(data)
	var out string
	var res Result
	if badgeRE.MatchString(content) {
		out, res = badgeRE.ReplaceAllLiteralString(content, badge), Replaced
	} else {
		lines := strings.Split(content, "\n")
		lines = append(lines[:1], append([]string{badge, ""}, lines[1:]...)...)
		out, res = strings.Join(lines, "\n"), Inserted
	}
	if out == content {
		return Unchanged, nil
	}

	if err := os.WriteFile(path, []byte(out), 0o644); err != nil {
		return "", fmt.Errorf("write readme: %w", err)
	}
	return res, nil
}
