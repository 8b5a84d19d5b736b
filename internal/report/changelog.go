package report

import (
	"bytes"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/object"
)

var errEnough = errors.New("enough commits")

// RecentCommits returns up to n "- <subject> (<short hash>)" lines, newest
// first, from the repository containing root.
func RecentCommits(root string, n int) ([]string, error) {
	repo, err := git.PlainOpenWithOptions(root, &git.PlainOpenOptions{DetectDotGit: true})
	if err != nil {
		return nil, err
	}
	head, err := repo.Head()
	if err != nil {
		return nil, err
	}
	iter, err := repo.Log(&git.LogOptions{From: head.Hash()})
	if err != nil {
		return nil, err
	}
	defer iter.Close()

	lines := make([]string, 0, n)
	err = iter.ForEach(func(c *object.Commit) error {
		if len(lines) >= n {
			return errEnough
		}
		subject, _, _ := strings.Cut(strings.TrimSpace(c.Message), "\n")
		lines = append(lines, fmt.Sprintf("- %s (%s)", subject, c.Hash.String()[:7]))
		return nil
	})
	if err != nil && !errors.Is(err, errEnough) {
		return nil, err
	}
	return lines, nil
}

// Changelog renders the markdown document for lines.
func Changelog(lines []string, at time.Time) []byte {
	var b bytes.Buffer
	b.WriteString("# Changelog\n\nGenerated at ")
	b.WriteString(at.Format(time.RFC1123))
	b.WriteString("\n\n")
	b.WriteString(strings.Join(lines, "\n"))
	b.WriteString("\n")
	return b.Bytes()
}
