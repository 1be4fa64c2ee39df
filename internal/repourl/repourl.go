// Package repourl validates and parses the Git repository URLs DocGraph
// accepts for import.
package repourl

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	giturls "github.com/whilp/git-urls"
)

// Validation errors. Both are user input errors and never reach the network.
var (
	ErrEmptyURL             = errors.New("repository URL is required")
	ErrUnsupportedURLFormat = errors.New("invalid repository URL. Supported: GitHub, GitLab, Bitbucket")
)

// ValidURL is a trimmed repository URL that passed Validate.
type ValidURL string

func (u ValidURL) String() string { return string(u) }

// Hosts lists the supported hosting providers.
var Hosts = []string{"github.com", "gitlab.com", "bitbucket.org"}

const segment = `[A-Za-z0-9_.-]+`

var patterns = []*regexp.Regexp{
	regexp.MustCompile(`^https://(github\.com|gitlab\.com|bitbucket\.org)/` + segment + `/` + segment + `$`),
	regexp.MustCompile(`^` + segment + `@(github\.com|gitlab\.com|bitbucket\.org):` + segment + `/` + segment + `$`),
}

// Validate trims raw and checks it against the accepted HTTPS and SSH forms.
// The returned URL is the trimmed input, otherwise unchanged.
func Validate(raw string) (ValidURL, error) {
	url := strings.TrimSpace(raw)
	if url == "" {
		return "", ErrEmptyURL
	}
	for _, p := range patterns {
		if p.MatchString(url) {
			return ValidURL(url), nil
		}
	}
	return "", ErrUnsupportedURLFormat
}

// Info is the host/owner/name triple of a repository URL.
type Info struct {
	Host  string
	Owner string
	Name  string
}

// FullPath returns "owner/name".
func (i Info) FullPath() string {
	return i.Owner + "/" + i.Name
}

// Parse extracts the host, owner and repository name from u.
// A trailing ".git" is dropped from the name.
func Parse(u ValidURL) (Info, error) {
	parsed, err := giturls.Parse(string(u))
	if err != nil {
		return Info{}, fmt.Errorf("parse git url: %w", err)
	}

	host := parsed.Hostname()
	if host == "" {
		host = parsed.Host
	}

	path := strings.Trim(parsed.Path, "/")
	path = strings.TrimSuffix(path, ".git")
	parts := strings.Split(path, "/")
	if len(parts) < 2 || parts[0] == "" || parts[1] == "" {
		return Info{}, fmt.Errorf("invalid repository URL format: %s", u)
	}

	return Info{Host: host, Owner: parts[0], Name: parts[1]}, nil
}
