package epub

import (
	"strings"
)

const (
	containerPath = "META-INF/container.xml"
	opfMediaType  = "application/oebps-package+xml"
	ncxMediaType  = "application/x-dtbncx+xml"
	epubMimetype  = "application/epub+zip"
	mimetypeEntry = "mimetype"
)

type Container struct {
	Rootfiles []Rootfile `xml:"rootfiles>rootfile" json:"rootfiles"`
}

type Rootfile struct {
	Fullpath string `xml:"full-path,attr" json:"full_path"`
	Type     string `xml:"media-type,attr" json:"media_type"`
}

// Rootfile returns the OPF path: the first rootfile declared with the OPF
// media type, otherwise the first non-empty full-path.
func (c *Container) Rootfile() string {
	var fallback string
	for _, rf := range c.Rootfiles {
		p := strings.TrimSpace(rf.Fullpath)
		if p == "" {
			continue
		}
		if strings.EqualFold(strings.TrimSpace(rf.Type), opfMediaType) {
			return p
		}
		if fallback == "" {
			fallback = p
		}
	}
	return fallback
}
