package model

import (
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Filters narrow the current folder listing.
type Filters struct {
	Unread     bool
	Flagged    bool
	NeedsReply bool
}

// Active reports whether any filter is on.
func (f Filters) Active() bool { return f.Unread || f.Flagged || f.NeedsReply }

// String returns a compact label for the status bar, e.g. "unread+flagged".
func (f Filters) String() string {
	var parts []string
	if f.Unread {
		parts = append(parts, "unread")
	}
	if f.Flagged {
		parts = append(parts, "flagged")
	}
	if f.NeedsReply {
		parts = append(parts, "needs-reply")
	}
	return strings.Join(parts, "+")
}

// BuildQuery turns the current folder into a mu query. A folder starting
// with "/" is a maildir; anything else is already a query.
func BuildQuery(folder string, f Filters) string {
	var q string
	if strings.HasPrefix(folder, "/") {
		q = MaildirQuery(folder)
	} else {
		q = folder
	}
	if f.Unread {
		q += " AND flag:unread"
	}
	if f.Flagged {
		q += " AND flag:flagged"
	}
	if f.NeedsReply {
		q += " AND NOT flag:replied"
	}
	return q
}

// MaildirQuery matches every message in one maildir.
func MaildirQuery(maildir string) string {
	if strings.ContainsAny(maildir, " \t\"") {
		return `maildir:"` + strings.ReplaceAll(maildir, `"`, `\"`) + `"`
	}
	return "maildir:" + maildir
}

// ThreadQuery matches the message with the given Message-Id. Run it with
// related messages included to get the whole thread.
func ThreadQuery(messageID string) string {
	return "msgid:" + strings.Trim(messageID, "<>")
}

var fieldPrefixes = []string{
	"from:", "to:", "cc:", "bcc:", "subject:", "body:", "date:", "flag:", "prio:",
	"mime:", "maildir:", "tag:", "list:", "msgid:", "embed:", "file:",
}

// ShouldSearch decides whether a query typed so far is worth a live
// preview search: it needs at least three characters overall, and the
// last term needs at least three characters after any field prefix.
func ShouldSearch(query string) bool {
	trimmed := strings.TrimSpace(query)
	if len(trimmed) < 3 {
		return false
	}
	terms := strings.Fields(trimmed)
	active := terms[len(terms)-1]
	lower := strings.ToLower(active)
	for _, p := range fieldPrefixes {
		if strings.HasPrefix(lower, p) {
			active = active[len(p):]
			break
		}
	}
	return len(active) >= 3
}

// ScanMaildirFolders walks root and returns every directory that holds a
// cur/ subdirectory, as maildir paths relative to root ("/Inbox").
func ScanMaildirFolders(root string) []string {
	root = ExpandHome(root)
	var folders []string
	_ = filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil || !d.IsDir() {
			return nil
		}
		switch d.Name() {
		case "cur", "new", "tmp":
			return filepath.SkipDir
		}
		if info, err := os.Stat(filepath.Join(path, "cur")); err == nil && info.IsDir() {
			rel, err := filepath.Rel(root, path)
			if err != nil {
				return nil
			}
			if rel == "." {
				folders = append(folders, "/")
			} else {
				folders = append(folders, "/"+filepath.ToSlash(rel))
			}
		}
		return nil
	})
	sort.Strings(folders)
	return folders
}
