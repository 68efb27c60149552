package epub

import (
	"archive/zip"
	"encoding/xml"
	"fmt"
	"io"
	"net/url"
	"path"
	"regexp"
	"strings"
)

const containerPath = "META-INF/container.xml"

// maxEntrySize bounds a single decompressed archive entry.
const maxEntrySize int64 = 256 * 1024 * 1024

type container struct {
	RootFiles []struct {
		FullPath  string `xml:"full-path,attr"`
		MediaType string `xml:"media-type,attr"`
	} `xml:"rootfiles>rootfile"`
}

type opfPackage struct {
	Title    []string `xml:"metadata>title"`
	Manifest []struct {
		ID        string `xml:"id,attr"`
		Href      string `xml:"href,attr"`
		MediaType string `xml:"media-type,attr"`
	} `xml:"manifest>item"`
	Spine []struct {
		IDRef  string `xml:"idref,attr"`
		Linear string `xml:"linear,attr"`
	} `xml:"spine>itemref"`
}

// archive indexes the entries of an EPUB zip by path.
type archive struct {
	names []string
	files map[string]*zip.File
	lower map[string]*zip.File
}

func newArchive(zr *zip.Reader) *archive {
	a := &archive{
		files: make(map[string]*zip.File, len(zr.File)),
		lower: make(map[string]*zip.File, len(zr.File)),
	}
	for _, f := range zr.File {
		a.names = append(a.names, f.Name)
		a.files[f.Name] = f
		a.lower[strings.ToLower(f.Name)] = f
	}
	return a
}

func (a *archive) find(name string) *zip.File {
	if f, ok := a.files[name]; ok {
		return f
	}
	return a.lower[strings.ToLower(name)]
}

func (a *archive) read(name string) ([]byte, error) {
	f := a.find(name)
	if f == nil {
		return nil, fmt.Errorf("%s: %w", name, ErrFileNotFound)
	}
	if f.UncompressedSize64 > uint64(maxEntrySize) {
		return nil, fmt.Errorf("%s: entry too large (%d bytes)", name, f.UncompressedSize64)
	}
	rc, err := f.Open()
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", name, err)
	}
	defer rc.Close()

	data, err := io.ReadAll(io.LimitReader(rc, maxEntrySize+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", name, err)
	}
	if int64(len(data)) > maxEntrySize {
		return nil, fmt.Errorf("%s: decompressed size exceeds limit", name)
	}
	return stripBOM(data), nil
}

// rootFile returns the OPF path named by container.xml, falling back to
// the first .opf entry in the archive.
func (a *archive) rootFile() (string, error) {
	if data, err := a.read(containerPath); err == nil {
		var c container
		if err := xml.Unmarshal(data, &c); err != nil {
			return "", fmt.Errorf("failed to parse container.xml: %w", err)
		}
		for _, rf := range c.RootFiles {
			if p := strings.TrimSpace(rf.FullPath); p != "" {
				return p, nil
			}
		}
	}
	for _, name := range a.names {
		if strings.HasSuffix(strings.ToLower(name), ".opf") {
			return name, nil
		}
	}
	return "", fmt.Errorf("no package document: %w", ErrInvalidEPUB)
}

// resolve joins href onto the directory of base, rejecting paths that
// escape the archive root.
func resolve(base, href string) string {
	href = strings.TrimSpace(href)
	if i := strings.IndexByte(href, '#'); i >= 0 {
		href = href[:i]
	}
	if href == "" || strings.HasPrefix(href, "/") {
		return ""
	}
	if decoded, err := url.PathUnescape(href); err == nil {
		href = decoded
	}
	p := path.Clean(path.Join(path.Dir(base), href))
	if p == ".." || strings.HasPrefix(p, "../") {
		return ""
	}
	return p
}

func stripBOM(data []byte) []byte {
	if len(data) >= 3 && data[0] == 0xEF && data[1] == 0xBB && data[2] == 0xBF {
		return data[3:]
	}
	return data
}

// xmlEntities maps HTML named entities that encoding/xml rejects.
var xmlEntities = map[string]string{
	"nbsp": "&#160;", "mdash": "&#8212;", "ndash": "&#8211;", "hellip": "&#8230;",
	"lsquo": "&#8216;", "rsquo": "&#8217;", "ldquo": "&#8220;", "rdquo": "&#8221;",
	"copy": "&#169;", "eacute": "&#233;",
}

var entityRe = regexp.MustCompile(`&(nbsp|mdash|ndash|hellip|lsquo|rsquo|ldquo|rdquo|copy|eacute);`)

func unmarshalOPF(data []byte, pkg *opfPackage) error {
	data = entityRe.ReplaceAllFunc(data, func(m []byte) []byte {
		return []byte(xmlEntities[string(m[1:len(m)-1])])
	})
	if err := xml.Unmarshal(data, pkg); err != nil {
		return fmt.Errorf("failed to parse package document: %w", err)
	}
	return nil
}
