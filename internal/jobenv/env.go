// Package jobenv builds the per-job execution environment handed to a
// spawned job process, generalized from the teacher's internal/build/env.go
// (GetBuildEnv: merge process env + whitelisted vars + project-specific
// settings into one []string) from "go build subprocess environment" to
// "traced job subprocess environment" — same merge/override shape, applied
// to LMAKE_AUTODEP_ENV instead of CGO_CFLAGS.
package jobenv

import (
	"fmt"
	"os"
	"strings"

	"lmake/internal/rule"
)

// LinkSync controls how file writes are flushed before a dependent may read
// them (spec §6 "s{n|d|s} for file-sync policy").
type LinkSync uint8

const (
	SyncNone LinkSync = iota
	SyncData
	SyncStrict
)

func (s LinkSync) letter() byte {
	switch s {
	case SyncData:
		return 'd'
	case SyncStrict:
		return 's'
	default:
		return 'n'
	}
}

// Options are the per-Req autodep settings serialized into
// LMAKE_AUTODEP_ENV (spec §6).
type Options struct {
	Disabled     bool
	ReaddirOK    bool
	IgnoreStat   bool
	AutoMkdir    bool
	MountChrootOK bool
	DepsInSystem bool
	Link         rule.LinkSupport
	Sync         LinkSync
}

// letters encodes Options into the single/two-letter option tuples spec §6
// specifies: "d=disabled, D=readdir_ok, i=ignore_stat, m=auto_mkdir,
// M=mount_chroot_ok, X=deps_in_system" plus "l{n|f|a}" and "s{n|d|s}".
func (o Options) letters() string {
	var b strings.Builder
	if o.Disabled {
		b.WriteByte('d')
	}
	if o.ReaddirOK {
		b.WriteByte('D')
	}
	if o.IgnoreStat {
		b.WriteByte('i')
	}
	if o.AutoMkdir {
		b.WriteByte('m')
	}
	if o.MountChrootOK {
		b.WriteByte('M')
	}
	if o.DepsInSystem {
		b.WriteByte('X')
	}
	b.WriteByte('l')
	switch o.Link {
	case rule.LinkFile:
		b.WriteByte('f')
	case rule.LinkFull:
		b.WriteByte('a')
	default:
		b.WriteByte('n')
	}
	b.WriteByte('s')
	b.WriteByte(o.Sync.letter())
	return b.String()
}

func parseLetters(s string) (Options, error) {
	var o Options
	i := 0
	for i < len(s) {
		switch s[i] {
		case 'd':
			o.Disabled = true
			i++
		case 'D':
			o.ReaddirOK = true
			i++
		case 'i':
			o.IgnoreStat = true
			i++
		case 'm':
			o.AutoMkdir = true
			i++
		case 'M':
			o.MountChrootOK = true
			i++
		case 'X':
			o.DepsInSystem = true
			i++
		case 'l':
			if i+1 >= len(s) {
				return o, fmt.Errorf("jobenv: truncated link-support option at %q", s)
			}
			switch s[i+1] {
			case 'n':
				o.Link = rule.LinkNone
			case 'f':
				o.Link = rule.LinkFile
			case 'a':
				o.Link = rule.LinkFull
			default:
				return o, fmt.Errorf("jobenv: unknown link-support letter %q", s[i+1])
			}
			i += 2
		case 's':
			if i+1 >= len(s) {
				return o, fmt.Errorf("jobenv: truncated sync option at %q", s)
			}
			switch s[i+1] {
			case 'n':
				o.Sync = SyncNone
			case 'd':
				o.Sync = SyncData
			case 's':
				o.Sync = SyncStrict
			default:
				return o, fmt.Errorf("jobenv: unknown sync letter %q", s[i+1])
			}
			i += 2
		default:
			return o, fmt.Errorf("jobenv: unknown option letter %q", s[i])
		}
	}
	return o, nil
}

// AutodepEnv is the decoded form of LMAKE_AUTODEP_ENV (spec §6 field list).
type AutodepEnv struct {
	Service        string
	FastMail       string
	FastReportPipe string
	Options        Options
	FQDN           string
	TmpDirS        string
	RepoRootS      string
	SubRepoS       string
	SrcDirsS       []string
	Codecs         []string
	ViewsS         []string
}

// quote applies printable-quoted encoding (spec §6 "quoted printable
// encoding where noted"): colons and backslashes are escaped so a field can
// never be confused with the field separator.
func quote(s string) string {
	r := strings.NewReplacer(`\`, `\\`, ":", `\:`)
	return r.Replace(s)
}

func unquote(s string) string {
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		if s[i] == '\\' && i+1 < len(s) {
			i++
		}
		b.WriteByte(s[i])
	}
	return b.String()
}

func quoteList(items []string) string { return quote(strings.Join(items, ",")) }

func unquoteList(s string) []string {
	s = unquote(s)
	if s == "" {
		return nil
	}
	return strings.Split(s, ",")
}

// Encode serializes e into the colon-separated LMAKE_AUTODEP_ENV string,
// fields in the exact order spec §6 specifies.
func (e AutodepEnv) Encode() string {
	fields := []string{
		quote(e.Service),
		quote(e.FastMail),
		quote(e.FastReportPipe),
		e.Options.letters(),
		quote(e.FQDN),
		quote(e.TmpDirS),
		quote(e.RepoRootS),
		quote(e.SubRepoS),
		quoteList(e.SrcDirsS),
		quoteList(e.Codecs),
		quoteList(e.ViewsS),
	}
	return strings.Join(fields, ":")
}

// Parse decodes an LMAKE_AUTODEP_ENV value. Parsing is strict (spec §6: "a
// malformed value is a fatal config error") — any field-count or option
// mismatch is returned as an error rather than silently defaulted.
func Parse(s string) (AutodepEnv, error) {
	fields := splitUnescaped(s)
	if len(fields) != 11 {
		return AutodepEnv{}, fmt.Errorf("jobenv: expected 11 fields in LMAKE_AUTODEP_ENV, got %d", len(fields))
	}
	opts, err := parseLetters(fields[3])
	if err != nil {
		return AutodepEnv{}, err
	}
	return AutodepEnv{
		Service:        unquote(fields[0]),
		FastMail:       unquote(fields[1]),
		FastReportPipe: unquote(fields[2]),
		Options:        opts,
		FQDN:           unquote(fields[4]),
		TmpDirS:        unquote(fields[5]),
		RepoRootS:      unquote(fields[6]),
		SubRepoS:       unquote(fields[7]),
		SrcDirsS:       unquoteList(fields[8]),
		Codecs:         unquoteList(fields[9]),
		ViewsS:         unquoteList(fields[10]),
	}, nil
}

// splitUnescaped splits s on ':' that is not preceded by an odd run of
// backslashes, so escaped colons inside quoted fields survive the split.
func splitUnescaped(s string) []string {
	var fields []string
	var cur strings.Builder
	escaped := false
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case escaped:
			cur.WriteByte(c)
			escaped = false
		case c == '\\':
			cur.WriteByte(c)
			escaped = true
		case c == ':':
			fields = append(fields, cur.String())
			cur.Reset()
		default:
			cur.WriteByte(c)
		}
	}
	fields = append(fields, cur.String())
	return fields
}

// BuildEnv merges the host process environment (filtered to what a sandboxed
// job process is allowed to see), the caller-supplied extra vars, and the
// encoded LMAKE_AUTODEP_ENV, the same merge/override shape as the teacher's
// GetBuildEnv/MergeEnv.
func BuildEnv(autodep AutodepEnv, allowed []string, extra map[string]string) []string {
	env := []string{}
	for _, key := range allowed {
		if val, ok := os.LookupEnv(key); ok {
			env = append(env, key+"="+val)
		}
	}
	for k, v := range extra {
		env = setEnvKey(env, k, v)
	}
	env = setEnvKey(env, "LMAKE_AUTODEP_ENV", autodep.Encode())
	return env
}

func setEnvKey(env []string, key, value string) []string {
	prefix := key + "="
	for i, e := range env {
		if strings.HasPrefix(e, prefix) {
			env[i] = key + "=" + value
			return env
		}
	}
	return append(env, key+"="+value)
}
