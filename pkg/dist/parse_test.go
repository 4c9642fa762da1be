package dist

import (
	"strings"
	"testing"

	"github.com/madmax88/quicklisp-client/pkg/bundle"
	"github.com/madmax88/quicklisp-client/pkg/errors"
)

const sampleDistinfo = `name: quicklisp
version: 2023-10-21
system-index-url: http://example.com/dist/2023-10-21/systems.txt
release-index-url: http://example.com/dist/2023-10-21/releases.txt
canonical-distinfo-url: http://example.com/dist/2023-10-21/distinfo.txt
distinfo-subscription-url: http://example.com/dist/quicklisp.txt
`

const sampleReleases = `# project url size file-md5 content-sha1 prefix [system-file1..system-fileN]
alexandria http://example.com/archive/alexandria.tgz 53434 0abcd 1ef23 alexandria-20231021-git alexandria.asd
cl-ppcre http://example.com/archive/cl-ppcre.tgz 159000 2abcd 3ef45 cl-ppcre-2.1.1 cl-ppcre.asd cl-ppcre-unicode.asd
`

const sampleSystems = `# project system-file system-name [dependency1..dependencyN]
alexandria alexandria alexandria
cl-ppcre cl-ppcre cl-ppcre
cl-ppcre cl-ppcre-unicode cl-ppcre-unicode cl-ppcre cl-unicode asdf
`

func TestParseDistinfo(t *testing.T) {
	meta, err := parseDistinfo(strings.NewReader(sampleDistinfo))
	if err != nil {
		t.Fatalf("parseDistinfo() error = %v", err)
	}
	info := infoFromMeta(meta)
	if info.Name != "quicklisp" || info.Version != "2023-10-21" {
		t.Errorf("info = %+v", info)
	}
	if info.SystemIndexURL != "http://example.com/dist/2023-10-21/systems.txt" {
		t.Errorf("SystemIndexURL = %q", info.SystemIndexURL)
	}
}

func TestParseDistinfoMalformed(t *testing.T) {
	_, err := parseDistinfo(strings.NewReader("no separator here\n"))
	if errors.GetCode(err) != errors.ErrCodeInvalidFormat {
		t.Errorf("code = %q, want %q", errors.GetCode(err), errors.ErrCodeInvalidFormat)
	}
}

func TestParseReleases(t *testing.T) {
	releases, err := parseReleases(strings.NewReader(sampleReleases))
	if err != nil {
		t.Fatalf("parseReleases() error = %v", err)
	}
	if len(releases) != 2 {
		t.Fatalf("len(releases) = %d, want 2", len(releases))
	}

	rel := releases["cl-ppcre"]
	if rel == nil {
		t.Fatal("cl-ppcre missing")
	}
	if rel.Size != 159000 {
		t.Errorf("Size = %d, want 159000", rel.Size)
	}
	if rel.Prefix != "cl-ppcre-2.1.1" {
		t.Errorf("Prefix = %q", rel.Prefix)
	}
	want := []string{"cl-ppcre.asd", "cl-ppcre-unicode.asd"}
	if len(rel.SystemFiles) != 2 || rel.SystemFiles[0] != want[0] || rel.SystemFiles[1] != want[1] {
		t.Errorf("SystemFiles = %v, want %v", rel.SystemFiles, want)
	}
}

func TestParseReleasesMalformed(t *testing.T) {
	tests := []struct {
		name string
		line string
	}{
		{"too few fields", "alexandria http://example.com/a.tgz 100\n"},
		{"bad size", "alexandria http://example.com/a.tgz big 0a 1e alexandria-1 a.asd\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := parseReleases(strings.NewReader(tt.line))
			if errors.GetCode(err) != errors.ErrCodeInvalidFormat {
				t.Errorf("code = %q, want %q", errors.GetCode(err), errors.ErrCodeInvalidFormat)
			}
		})
	}
}

func TestParseSystemsJoinsReleases(t *testing.T) {
	releases, err := parseReleases(strings.NewReader(sampleReleases))
	if err != nil {
		t.Fatal(err)
	}
	systems, err := parseSystems(strings.NewReader(sampleSystems), releases)
	if err != nil {
		t.Fatalf("parseSystems() error = %v", err)
	}
	if len(systems) != 3 {
		t.Fatalf("len(systems) = %d, want 3", len(systems))
	}

	sys := systems["cl-ppcre-unicode"]
	if sys == nil {
		t.Fatal("cl-ppcre-unicode missing")
	}
	if sys.SystemFile != "cl-ppcre-unicode.asd" {
		t.Errorf("SystemFile = %q", sys.SystemFile)
	}
	if sys.ReleaseName != "cl-ppcre" {
		t.Errorf("ReleaseName = %q", sys.ReleaseName)
	}
	// asdf is stripped from the dependency list.
	if len(sys.Requires) != 2 || sys.Requires[0] != "cl-ppcre" || sys.Requires[1] != "cl-unicode" {
		t.Errorf("Requires = %v", sys.Requires)
	}

	// Systems land on their owning release in declaration order.
	rel := releases["cl-ppcre"]
	if len(rel.Systems) != 2 || rel.Systems[0].Name != "cl-ppcre" || rel.Systems[1].Name != "cl-ppcre-unicode" {
		t.Errorf("release systems = %v", rel.Systems)
	}
}

func TestParseSystemsUnknownRelease(t *testing.T) {
	_, err := parseSystems(strings.NewReader("ghost ghost ghost\n"), map[string]*bundle.Release{})
	if errors.GetCode(err) != errors.ErrCodeInvalidDist {
		t.Errorf("code = %q, want %q", errors.GetCode(err), errors.ErrCodeInvalidDist)
	}
}

func TestFilterRequires(t *testing.T) {
	tests := []struct {
		name string
		sys  string
		deps []string
		want []string
	}{
		{"drops self", "alpha", []string{"alpha", "beta"}, []string{"beta"}},
		{"drops asdf and uiop", "alpha", []string{"asdf", "uiop", "beta"}, []string{"beta"}},
		{"case insensitive", "Alpha", []string{"ALPHA", "ASDF", "beta"}, []string{"beta"}},
		{"empty", "alpha", nil, []string{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := filterRequires(tt.sys, tt.deps)
			if len(got) != len(tt.want) {
				t.Fatalf("filterRequires() = %v, want %v", got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("filterRequires() = %v, want %v", got, tt.want)
				}
			}
		})
	}
}
