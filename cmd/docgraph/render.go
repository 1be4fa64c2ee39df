package main

import (
	"fmt"
	"io"
	"strconv"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/arturoeanton/docgraph/internal/domain"
	"github.com/arturoeanton/docgraph/internal/importer"
)

var styles = struct {
	Bold    lipgloss.Style
	Muted   lipgloss.Style
	Success lipgloss.Style
	Warning lipgloss.Style
	Error   lipgloss.Style
}{
	Bold:    lipgloss.NewStyle().Bold(true),
	Muted:   lipgloss.NewStyle().Foreground(lipgloss.Color("#2C4A54")),
	Success: lipgloss.NewStyle().Foreground(lipgloss.Color("#2CD7C7")),
	Warning: lipgloss.NewStyle().Foreground(lipgloss.Color("#F4D03F")),
	Error:   lipgloss.NewStyle().Foreground(lipgloss.Color("#E74C3C")),
}

// progressPrinter writes one line per observed job change and one line per
// newly imported repository. Registry notifications are serialized, so it
// needs no lock of its own.
type progressPrinter struct {
	w     io.Writer
	last  map[string]string
	repos map[string]bool
}

func newProgressPrinter(w io.Writer) *progressPrinter {
	return &progressPrinter{w: w, last: make(map[string]string), repos: make(map[string]bool)}
}

// Update is a Registry subscriber.
func (p *progressPrinter) Update(s importer.Snapshot) {
	for _, job := range s.Jobs {
		line := formatJob(job)
		if p.last[job.ID] == line {
			continue
		}
		p.last[job.ID] = line
		fmt.Fprintln(p.w, line)
	}
	for _, repo := range s.Repositories {
		if p.repos[repo.ID] {
			continue
		}
		p.repos[repo.ID] = true
		fmt.Fprintln(p.w, styles.Success.Render(fmt.Sprintf("imported %s/%s as %s", repo.Owner, repo.Name, repo.ID)))
	}
}

func formatJob(job domain.ImportJob) string {
	line := fmt.Sprintf("[%s] %-10s %3d%% %s", job.ID, job.Status, job.Progress, job.Message)
	switch job.Status {
	case domain.ImportStatusFailed:
		return styles.Error.Render(line)
	case domain.ImportStatusCompleted:
		return styles.Success.Render(line)
	}
	return line
}

func statusStyle(s domain.RepositoryStatus) lipgloss.Style {
	switch s {
	case domain.RepositoryStatusActive:
		return styles.Success
	case domain.RepositoryStatusSyncing:
		return styles.Warning
	case domain.RepositoryStatusError:
		return styles.Error
	}
	return styles.Muted
}

func renderRepositories(repos []domain.Repository) string {
	if len(repos) == 0 {
		return styles.Muted.Render("No repositories imported yet")
	}

	rows := make([][]string, 0, len(repos))
	for _, r := range repos {
		synced := "never"
		if r.LastSyncedAt != nil {
			synced = r.LastSyncedAt.Format("2006-01-02 15:04")
		}
		rows = append(rows, []string{
			r.ID,
			r.Owner + "/" + r.Name,
			r.Branch,
			statusStyle(r.Status).Render(string(r.Status)),
			strconv.Itoa(r.FileCount),
			synced,
		})
	}

	return table.New().
		Border(lipgloss.NormalBorder()).
		Headers("ID", "REPOSITORY", "BRANCH", "STATUS", "FILES", "LAST SYNC").
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return styles.Bold
			}
			return lipgloss.NewStyle()
		}).
		Rows(rows...).
		String()
}
