package dist

import (
	"bufio"
	"io"
	"strconv"
	"strings"

	"github.com/madmax88/quicklisp-client/pkg/bundle"
	"github.com/madmax88/quicklisp-client/pkg/errors"
)

// alwaysPresent lists systems assumed to be provided by the host
// implementation rather than by any release. They are stripped from
// dependency lists during parsing so resolution never chases them.
var alwaysPresent = map[string]bool{
	"asdf": true,
	"uiop": true,
}

// parseDistinfo parses "key: value" metadata lines into a map. Keys are
// lowercased; values keep their original form.
func parseDistinfo(r io.Reader) (map[string]string, error) {
	meta := make(map[string]string)
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		key, value, found := strings.Cut(line, ":")
		if !found {
			return nil, errors.New(errors.ErrCodeInvalidFormat, "malformed distinfo line %q", line)
		}
		meta[strings.ToLower(strings.TrimSpace(key))] = strings.TrimSpace(value)
	}
	if err := sc.Err(); err != nil {
		return nil, errors.Wrap(errors.ErrCodeIO, err, "reading distinfo")
	}
	return meta, nil
}

// parseReleases parses the release index. Each non-comment line has the
// fields: project url size file-md5 content-sha1 prefix [system-file...],
// whitespace-separated. Returns releases keyed by lowercased name, with
// system definition files in declaration order and Systems left empty for
// the system index to fill in.
func parseReleases(r io.Reader) (map[string]*bundle.Release, error) {
	releases := make(map[string]*bundle.Release)
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) < 6 {
			return nil, errors.New(errors.ErrCodeInvalidFormat, "malformed release line %q", line)
		}
		size, err := strconv.ParseInt(fields[2], 10, 64)
		if err != nil {
			return nil, errors.New(errors.ErrCodeInvalidFormat, "release %s: bad size %q", fields[0], fields[2])
		}
		rel := &bundle.Release{
			Name:        fields[0],
			ArchiveURL:  fields[1],
			Size:        size,
			MD5:         fields[3],
			ContentSHA1: fields[4],
			Prefix:      fields[5],
			SystemFiles: fields[6:],
		}
		releases[strings.ToLower(rel.Name)] = rel
	}
	if err := sc.Err(); err != nil {
		return nil, errors.Wrap(errors.ErrCodeIO, err, "reading release index")
	}
	return releases, nil
}

// parseSystems parses the system index and joins it against releases. Each
// line has the fields: project system-file system-name [dependency...].
// Systems are appended to their owning release in declaration order and
// returned keyed by lowercased name. Lines naming an unknown release are
// an index inconsistency and rejected.
func parseSystems(r io.Reader, releases map[string]*bundle.Release) (map[string]*bundle.System, error) {
	systems := make(map[string]*bundle.System)
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) < 3 {
			return nil, errors.New(errors.ErrCodeInvalidFormat, "malformed system line %q", line)
		}
		rel, ok := releases[strings.ToLower(fields[0])]
		if !ok {
			return nil, errors.New(errors.ErrCodeInvalidDist, "system %s references unknown release %s", fields[2], fields[0])
		}
		sys := &bundle.System{
			Name:        fields[2],
			SystemFile:  fields[1] + ".asd",
			ReleaseName: rel.Name,
			Requires:    filterRequires(fields[2], fields[3:]),
		}
		rel.Systems = append(rel.Systems, sys)
		systems[strings.ToLower(sys.Name)] = sys
	}
	if err := sc.Err(); err != nil {
		return nil, errors.Wrap(errors.ErrCodeIO, err, "reading system index")
	}
	return systems, nil
}

// filterRequires drops dependencies that resolution must never chase: the
// system's own name (self-references appear in some indexes) and systems
// the host implementation always provides.
func filterRequires(name string, deps []string) []string {
	out := make([]string, 0, len(deps))
	for _, d := range deps {
		if strings.EqualFold(d, name) || alwaysPresent[strings.ToLower(d)] {
			continue
		}
		out = append(out, d)
	}
	return out
}
