package toolexec

import (
	"os"
	"path"
	"strings"
)

// pathArgKeys are the argument names that local filesystem tools use for a
// path-like value. canonicalizeArgs only rewrites these.
var pathArgKeys = map[string]bool{
	"path":       true,
	"file":       true,
	"filePath":   true,
	"dir":        true,
	"directory":  true,
	"source":     true,
	"destination": true,
}

// wellKnownHomeSubdirs are the subdirectories of $HOME that a bare relative
// path (e.g. "Downloads/report.pdf") is assumed to live under when a tool
// argument names it without a leading "~/" or absolute prefix.
var wellKnownHomeSubdirs = map[string]bool{
	"Downloads": true,
	"Documents": true,
	"Projects":  true,
	"Desktop":   true,
}

// templatePlaceholders are the stand-in usernames a router or planner model
// sometimes emits instead of the real local user, e.g. "/home/{user}/...".
// Only paths built from one of these get cross-platform prefix rewriting;
// a literal username is left untouched since it might be intentional.
var templatePlaceholders = map[string]bool{
	"{user}":   true,
	"<user>":   true,
	"[USER]":   true,
	"user":     true,
	"username": true,
	"me":       true,
}

// canonicalizeArgs returns a copy of args with every path-like argument
// rewritten. It never mutates the caller's original map.
func canonicalizeArgs(args map[string]any) map[string]any {
	if args == nil {
		return map[string]any{}
	}
	out := make(map[string]any, len(args))
	for k, v := range args {
		if s, ok := v.(string); ok && pathArgKeys[k] {
			out[k] = canonicalizePath(s)
		} else {
			out[k] = v
		}
	}
	return out
}

// canonicalizePath applies, in order: tilde expansion, placeholder-username
// home-prefix rewriting (so a planner's "/home/{user}/x" or "/Users/me/x"
// resolves to the real local home regardless of OS convention), and
// bare-relative-to-well-known-subdir resolution.
func canonicalizePath(p string) string {
	home, err := os.UserHomeDir()
	if err != nil {
		home = ""
	}

	if p == "~" {
		return home
	}
	if strings.HasPrefix(p, "~/") {
		return path.Join(home, strings.TrimPrefix(p, "~/"))
	}

	if home != "" {
		if rest, ok := stripHomePrefix(p, "/home/"); ok {
			return rest
		}
		if rest, ok := stripHomePrefix(p, "/Users/"); ok {
			return rest
		}
	}

	if home != "" && !path.IsAbs(p) {
		first := p
		if i := strings.Index(p, "/"); i >= 0 {
			first = p[:i]
		}
		if wellKnownHomeSubdirs[first] {
			return path.Join(home, p)
		}
	}

	return p
}

// stripHomePrefix checks whether p looks like "<prefix><placeholder-user>/rest"
// for one of the recognized home-directory conventions, and if so rewrites
// it onto the real home directory. The username segment must be a
// recognized placeholder — a real username is left alone, since rewriting
// it would silently redirect a deliberate absolute path.
func stripHomePrefix(p, prefix string) (string, bool) {
	if !strings.HasPrefix(p, prefix) {
		return "", false
	}
	rest := strings.TrimPrefix(p, prefix)
	seg, tail, _ := strings.Cut(rest, "/")
	if !templatePlaceholders[seg] {
		return "", false
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", false
	}
	if tail == "" {
		return home, true
	}
	return path.Join(home, tail), true
}
