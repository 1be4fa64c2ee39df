package vcs

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-git/go-git/v5"

	"github.com/arturoeanton/docgraph/internal/domain"
	"github.com/arturoeanton/docgraph/internal/port"
	"github.com/arturoeanton/docgraph/internal/repourl"
)

const maxDescriptionLen = 200

var descriptionFiles = []string{"README.md", "README.txt", "readme.md"}

// GitProvider implements port.VCSProvider using go-git.
type GitProvider struct {
	// Depth limits clone history; zero clones everything.
	Depth int
}

// NewGitProvider creates a new Git VCS provider.
func NewGitProvider(depth int) *GitProvider {
	return &GitProvider{Depth: depth}
}

// Clone clones url into dest, replacing anything already there.
func (g *GitProvider) Clone(ctx context.Context, url, dest string, progress port.ProgressFunc) (*domain.Snapshot, error) {
	report := func(p int, msg string) {
		if progress != nil {
			progress(p, msg)
		}
	}

	if err := os.RemoveAll(dest); err != nil {
		return nil, fmt.Errorf("clear %s: %w", dest, err)
	}
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return nil, fmt.Errorf("create storage dir: %w", err)
	}

	report(10, "Initializing clone operation...")
	report(30, "Cloning repository...")

	repo, err := git.PlainCloneContext(ctx, dest, false, &git.CloneOptions{
		URL:   url,
		Depth: g.Depth,
	})
	if err != nil {
		return nil, fmt.Errorf("git clone %s: %w", url, err)
	}

	report(70, "Analyzing repository structure...")
	snap, err := snapshot(repo, url, dest)
	if err != nil {
		return nil, err
	}

	report(90, "Finalizing import...")
	report(100, "Repository cloned successfully!")
	return snap, nil
}

// Pull fetches and merges the latest changes of origin into dest.
func (g *GitProvider) Pull(ctx context.Context, dest string) (*domain.Snapshot, error) {
	repo, err := git.PlainOpen(dest)
	if err != nil {
		if errors.Is(err, git.ErrRepositoryNotExists) {
			return nil, port.ErrRepositoryMissing
		}
		return nil, fmt.Errorf("open repository: %w", err)
	}

	wt, err := repo.Worktree()
	if err != nil {
		return nil, fmt.Errorf("get worktree: %w", err)
	}

	err = wt.PullContext(ctx, &git.PullOptions{RemoteName: "origin"})
	if err != nil && !errors.Is(err, git.NoErrAlreadyUpToDate) {
		return nil, fmt.Errorf("git pull %s: %w", dest, err)
	}

	url := ""
	if remote, err := repo.Remote("origin"); err == nil && len(remote.Config().URLs) > 0 {
		url = remote.Config().URLs[0]
	}
	return snapshot(repo, url, dest)
}

func snapshot(repo *git.Repository, url, dest string) (*domain.Snapshot, error) {
	head, err := repo.Head()
	if err != nil {
		return nil, fmt.Errorf("resolve HEAD: %w", err)
	}

	fileCount, totalSize, err := Analyze(dest)
	if err != nil {
		return nil, err
	}

	owner, name := nameFromURL(url)
	branch := "main"
	if head.Name().IsBranch() {
		branch = head.Name().Short()
	}

	return &domain.Snapshot{
		Name:        name,
		Owner:       owner,
		URL:         url,
		Branch:      branch,
		CommitHash:  head.Hash().String(),
		Description: Description(dest),
		FileCount:   fileCount,
		TotalSize:   totalSize,
	}, nil
}

// nameFromURL falls back to the last path element for URLs outside the
// supported hosts, such as local paths.
func nameFromURL(url string) (owner, name string) {
	if valid, err := repourl.Validate(url); err == nil {
		if info, err := repourl.Parse(valid); err == nil {
			return info.Owner, info.Name
		}
	}
	base := filepath.Base(strings.TrimSuffix(strings.TrimRight(url, "/"), ".git"))
	return "", base
}

// Analyze counts the files and their total size under root, skipping .git.
func Analyze(root string) (int, int64, error) {
	var count int
	var size int64
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.IsDir() {
			if d.Name() == ".git" {
				return filepath.SkipDir
			}
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return nil
		}
		count++
		size += info.Size()
		return nil
	})
	if err != nil {
		return 0, 0, fmt.Errorf("analyze %s: %w", root, err)
	}
	return count, size, nil
}

// Description returns the first non-heading line of the first README found
// in root, truncated to 200 characters.
func Description(root string) *string {
	for _, name := range descriptionFiles {
		f, err := os.Open(filepath.Join(root, name))
		if err != nil {
			continue
		}
		defer f.Close()

		sc := bufio.NewScanner(f)
		for sc.Scan() {
			line := strings.TrimSpace(sc.Text())
			if line == "" || strings.HasPrefix(line, "#") {
				continue
			}
			// Counted in characters so the cut never splits a UTF-8 sequence.
			if r := []rune(line); len(r) > maxDescriptionLen {
				line = string(r[:maxDescriptionLen])
			}
			return &line
		}
		return nil
	}
	return nil
}
