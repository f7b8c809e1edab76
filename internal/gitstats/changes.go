package gitstats

import (
	"errors"
	"io"
	"strings"

	git "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/format/diff"
	"github.com/go-git/go-git/v5/plumbing/object"
)

// FileChange is one file's diff from the recent history walk.
type FileChange struct {
	RelPath    string
	DiffText   string
	AddedLines int
	IsNewFile  bool
}

// RecentChanges walks the newest maxCommits commits and returns one diff
// per touched file, newest first, deduplicated by path. History errors
// degrade to an empty result.
func (c *Collector) RecentChanges(maxCommits int) []FileChange {
	if c == nil || c.repo == nil {
		return nil
	}
	iter, err := c.repo.Log(&git.LogOptions{})
	if err != nil {
		return nil
	}
	defer iter.Close()

	var commits []*object.Commit
	err = iter.ForEach(func(commit *object.Commit) error {
		commits = append(commits, commit)
		if len(commits) >= maxCommits {
			return io.EOF
		}
		return nil
	})
	if err != nil && !errors.Is(err, io.EOF) {
		return nil
	}

	seen := make(map[string]struct{})
	var changes []FileChange
	for i := 0; i+1 < len(commits); i++ {
		patch, err := commits[i+1].Patch(commits[i])
		if err != nil {
			continue
		}
		for _, fp := range patch.FilePatches() {
			from, to := fp.Files()
			var path string
			switch {
			case to != nil:
				path = to.Path()
			case from != nil:
				path = from.Path()
			default:
				continue
			}
			if _, dup := seen[path]; dup {
				continue
			}
			seen[path] = struct{}{}

			text, added := renderChunks(fp.Chunks())
			changes = append(changes, FileChange{
				RelPath:    path,
				DiffText:   text,
				AddedLines: added,
				IsNewFile:  from == nil,
			})
		}
	}
	return changes
}

// renderChunks formats file-patch chunks in unified-diff style and counts
// added lines.
func renderChunks(chunks []diff.Chunk) (string, int) {
	var b strings.Builder
	added := 0
	for _, chunk := range chunks {
		prefix := " "
		switch chunk.Type() {
		case diff.Add:
			prefix = "+"
		case diff.Delete:
			prefix = "-"
		}
		for _, line := range strings.Split(strings.TrimRight(chunk.Content(), "\n"), "\n") {
			b.WriteString(prefix)
			b.WriteString(line)
			b.WriteByte('\n')
			if chunk.Type() == diff.Add {
				added++
			}
		}
	}
	return b.String(), added
}
