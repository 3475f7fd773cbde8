package epub

import (
	"bytes"
	"encoding/xml"
	"io"
	"strings"

	"github.com/pkg/errors"
	"golang.org/x/net/html/charset"
)

// Opf is the package document: manifest, spine and metadata.
type Opf struct {
	Version          string     `xml:"version,attr" json:"version"`
	UniqueIdentifier string     `xml:"unique-identifier,attr" json:"unique_identifier"`
	Manifest         []Manifest `xml:"manifest>item" json:"manifest"`
	Spine            Spine      `xml:"spine" json:"spine"`
	Metadata         Metadata   `xml:"-" json:"metadata"`
}

type Manifest struct {
	ID         string `xml:"id,attr" json:"id"`
	Href       string `xml:"href,attr" json:"href"`
	MediaType  string `xml:"media-type,attr" json:"media_type"`
	Properties string `xml:"properties,attr" json:"properties"`
}

type Spine struct {
	Toc      string    `xml:"toc,attr" json:"toc"`
	Itemrefs []Itemref `xml:"itemref" json:"itemrefs"`
}

type Itemref struct {
	IDRef  string `xml:"idref,attr" json:"idref"`
	Linear string `xml:"linear,attr" json:"linear"`
}

// dcElement is any Dublin Core element, or an OPF <meta>.
type dcElement struct {
	Value   string `xml:",chardata"`
	ID      string `xml:"id,attr"`
	Role    string `xml:"role,attr"`
	Scheme  string `xml:"scheme,attr"`
	FileAs  string `xml:"file-as,attr"`
	Name    string `xml:"name,attr"`
	Content string `xml:"content,attr"`
}

type rawMetadata struct {
	titles       []dcElement
	creators     []dcElement
	languages    []dcElement
	rights       []dcElement
	subjects     []dcElement
	publishers   []dcElement
	identifiers  []dcElement
	descriptions []dcElement
	dates        []dcElement
	metas        []dcElement
}

// newDecoder returns a forgiving decoder: HTML entities and declared legacy
// charsets are accepted.
func newDecoder(data []byte) *xml.Decoder {
	d := xml.NewDecoder(bytes.NewReader(stripBOM(data)))
	d.Strict = false
	d.Entity = xml.HTMLEntity
	d.CharsetReader = charset.NewReaderLabel
	return d
}

func decodeXML(data []byte, v interface{}) error {
	return newDecoder(data).Decode(v)
}

func stripBOM(data []byte) []byte {
	return bytes.TrimPrefix(data, []byte("\xef\xbb\xbf"))
}

func parseOpf(data []byte) (*Opf, error) {
	var opf Opf
	if err := decodeXML(data, &opf); err != nil {
		return nil, errors.Wrap(err, "parse OPF")
	}
	raw, err := parseMetadata(data)
	if err != nil {
		return nil, errors.Wrap(err, "parse OPF metadata")
	}
	opf.Metadata = raw.build(opf.UniqueIdentifier)
	return &opf, nil
}

// parseMetadata walks the <metadata> section matching elements by local
// name, so dc:, dc-metadata nesting and capitalised OEB names all work.
func parseMetadata(data []byte) (*rawMetadata, error) {
	d := newDecoder(data)
	md := &rawMetadata{}
	depth := 0
	for {
		tok, err := d.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}

		switch t := tok.(type) {
		case xml.StartElement:
			local := strings.ToLower(t.Name.Local)
			if local == "metadata" {
				depth++
				continue
			}
			if depth == 0 {
				continue
			}
			target := md.field(local)
			if target == nil {
				continue
			}
			var el dcElement
			if err := d.DecodeElement(&el, &t); err != nil {
				return nil, err
			}
			el.Value = strings.TrimSpace(el.Value)
			*target = append(*target, el)
		case xml.EndElement:
			if strings.ToLower(t.Name.Local) == "metadata" && depth > 0 {
				depth--
			}
		}
	}
	return md, nil
}

func (md *rawMetadata) field(local string) *[]dcElement {
	switch local {
	case "title":
		return &md.titles
	case "creator":
		return &md.creators
	case "language":
		return &md.languages
	case "rights":
		return &md.rights
	case "subject":
		return &md.subjects
	case "publisher":
		return &md.publishers
	case "identifier":
		return &md.identifiers
	case "description":
		return &md.descriptions
	case "date":
		return &md.dates
	case "meta":
		return &md.metas
	}
	return nil
}

// manifestByID indexes the manifest for idref resolution. The first item
// with a given id wins.
func (o *Opf) manifestByID() map[string]Manifest {
	m := make(map[string]Manifest, len(o.Manifest))
	for _, item := range o.Manifest {
		if _, ok := m[item.ID]; !ok {
			m[item.ID] = item
		}
	}
	return m
}
