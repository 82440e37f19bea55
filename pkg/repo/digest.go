// Package repo turns a repository checkout into prompt-ready text: a short
// summary, a directory tree and the concatenated file contents.
package repo

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"strings"
)

// Digest is the textual rendition of one repository.
type Digest struct {
	Source    string
	Summary   string
	Structure string
	Content   string
	Files     int
}

// String renders the digest in the form responders embed in prompts.
func (d Digest) String() string {
	return fmt.Sprintf("Repository Summary: %s. Structure: %s. Content: %s", d.Summary, d.Structure, d.Content)
}

// DefaultIgnore lists directory names never descended into.
var DefaultIgnore = []string{
	".git", "node_modules", "vendor", "dist", "build", "target",
	".venv", "__pycache__", ".idea", ".cache", "bin", "obj",
}

const separator = "================================================"

// Digester produces Digests. The zero value digests local paths without a
// size limit.
type Digester struct {
	// MaxFileBytes skips larger files. Zero means no limit.
	MaxFileBytes int64
	// Ignore holds directory names or slash globs relative to the root.
	// Nil selects DefaultIgnore.
	Ignore []string
	// CacheDir receives clones of remote sources.
	CacheDir string
}

// Digest resolves source (a local path or a remote git URL) and walks it.
func (d *Digester) Digest(ctx context.Context, source string) (Digest, error) {
	root, err := d.Resolve(ctx, source)
	if err != nil {
		return Digest{}, err
	}

	info, err := os.Stat(root)
	if err != nil {
		return Digest{}, fmt.Errorf("stat repository: %w", err)
	}
	if !info.IsDir() {
		return Digest{}, fmt.Errorf("repository %s is not a directory", root)
	}

	name := repoName(source)
	tree := &node{name: name, dir: true}
	var content strings.Builder
	var files, skipped int

	err = filepath.WalkDir(root, func(p string, entry fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			slog.Debug("Skipping unreadable path", "path", p, "error", walkErr)
			if entry != nil && entry.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		rel, err := filepath.Rel(root, p)
		if err != nil || rel == "." {
			return nil
		}
		rel = filepath.ToSlash(rel)

		if entry.IsDir() {
			if d.ignored(rel, entry.Name()) {
				return filepath.SkipDir
			}
			return nil
		}
		if !entry.Type().IsRegular() {
			return nil
		}

		fi, err := entry.Info()
		if err != nil {
			return nil
		}
		if d.MaxFileBytes > 0 && fi.Size() > d.MaxFileBytes {
			slog.Debug("Skipping large file", "path", rel, "size", fi.Size())
			skipped++
			return nil
		}
		if !IsTextMime(DetectFileMime(p)) {
			skipped++
			return nil
		}

		raw, err := os.ReadFile(p)
		if err != nil {
			slog.Debug("Skipping unreadable file", "path", rel, "error", err)
			return nil
		}

		tree.insert(rel)
		files++
		fmt.Fprintf(&content, "%s\nFILE: %s\n%s\n%s\n\n", separator, rel, separator, raw)
		return nil
	})
	if err != nil {
		return Digest{}, fmt.Errorf("walk repository %s: %w", source, err)
	}

	var structure strings.Builder
	structure.WriteString("Directory structure:\n")
	tree.render(&structure)

	body := content.String()
	summary := fmt.Sprintf("Repository: %s\nFiles analyzed: %d\nFiles skipped: %d\nEstimated tokens: %s",
		name, files, skipped, formatTokens(len(body)/4))

	slog.Info("Repository digested", "source", source, "files", files, "skipped", skipped)
	return Digest{
		Source:    source,
		Summary:   summary,
		Structure: structure.String(),
		Content:   body,
		Files:     files,
	}, nil
}

func (d *Digester) ignored(rel, name string) bool {
	patterns := d.Ignore
	if patterns == nil {
		patterns = DefaultIgnore
	}
	for _, p := range patterns {
		p = strings.TrimSuffix(filepath.ToSlash(strings.TrimSpace(p)), "/")
		if p == "" {
			continue
		}
		if p == name || p == rel {
			return true
		}
		if ok, _ := path.Match(p, rel); ok {
			return true
		}
	}
	return false
}

func formatTokens(n int) string {
	switch {
	case n >= 1_000_000:
		return fmt.Sprintf("%.1fM", float64(n)/1_000_000)
	case n >= 1_000:
		return fmt.Sprintf("%.1fk", float64(n)/1_000)
	default:
		return fmt.Sprintf("%d", n)
	}
}

// node is one entry of the rendered directory tree.
type node struct {
	name     string
	dir      bool
	children []*node
}

func (n *node) insert(rel string) {
	parts := strings.Split(rel, "/")
	cur := n
	for i, part := range parts {
		leaf := i == len(parts)-1
		var next *node
		for _, c := range cur.children {
			if c.name == part && c.dir != leaf {
				next = c
				break
			}
		}
		if next == nil {
			next = &node{name: part, dir: !leaf}
			cur.children = append(cur.children, next)
		}
		cur = next
	}
}

func (n *node) render(b *strings.Builder) {
	b.WriteString("└── " + n.name + "/\n")
	n.renderChildren(b, "    ")
}

func (n *node) renderChildren(b *strings.Builder, prefix string) {
	for i, c := range n.children {
		last := i == len(n.children)-1
		connector, indent := "├── ", "│   "
		if last {
			connector, indent = "└── ", "    "
		}
		name := c.name
		if c.dir {
			name += "/"
		}
		b.WriteString(prefix + connector + name + "\n")
		if c.dir {
			c.renderChildren(b, prefix+indent)
		}
	}
}
