package epub // import "github.com/Xunop/bookworm/internal/util/parsers/epub"

import (
	"archive/zip"
	"bytes"
	"fmt"
	"io"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/Xunop/bookworm/internal/log"
)

// Book is an opened EPUB archive with its container, package document and
// table of contents parsed.
type Book struct {
	Name      string    `json:"name"`
	Mimetype  string    `json:"mimetype"`
	Container Container `json:"container"`
	Opf       Opf       `json:"opf"`

	root    string
	tocPath string
	toc     *TOC

	rawContainer []byte
	rawOPF       []byte
	rawTOC       []byte

	files map[string]*zip.File
	// folded is the case-insensitive fallback index.
	folded map[string]*zip.File
	names  []string
}

// Open reads the EPUB at file. The archive name used in errors is the base
// file name.
func Open(file string) (*Book, error) {
	data, err := os.ReadFile(file)
	if err != nil {
		return nil, errors.Wrapf(err, "read %s", file)
	}
	return OpenBytes(filepath.Base(file), data)
}

// OpenBytes parses an EPUB held in memory. name is only used for
// diagnostics.
func OpenBytes(name string, data []byte) (*Book, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, &InvalidArchiveFormatError{Name: name, Err: err}
	}

	b := &Book{
		Name:   name,
		files:  make(map[string]*zip.File, len(zr.File)),
		folded: make(map[string]*zip.File, len(zr.File)),
	}
	for _, f := range zr.File {
		if strings.HasSuffix(f.Name, "/") {
			continue
		}
		b.files[f.Name] = f
		if _, ok := b.folded[strings.ToLower(f.Name)]; !ok {
			b.folded[strings.ToLower(f.Name)] = f
		}
		b.names = append(b.names, f.Name)
	}

	if m, err := b.ReadFile(mimetypeEntry); err == nil {
		b.Mimetype = strings.TrimSpace(string(m))
		if b.Mimetype != epubMimetype {
			log.Warn("Unexpected mimetype entry", zap.String("archive", name), zap.String("mimetype", b.Mimetype))
		}
	}

	if err := b.readContainer(); err != nil {
		return nil, err
	}
	if err := b.readPackage(); err != nil {
		return nil, err
	}
	if err := b.readTOC(); err != nil {
		return nil, err
	}
	return b, nil
}

func (b *Book) readContainer() error {
	raw, err := b.ReadFile(containerPath)
	if err != nil {
		return notEPUB(b.Name, "missing "+containerPath, nil)
	}
	if err := decodeXML(raw, &b.Container); err != nil {
		return notEPUB(b.Name, "unparsable "+containerPath, err)
	}
	if b.Container.Rootfile() == "" {
		return notEPUB(b.Name, containerPath+" declares no rootfile", nil)
	}
	b.rawContainer = raw
	return nil
}

func (b *Book) readPackage() error {
	rootfile := b.Container.Rootfile()
	raw, err := b.ReadFile(rootfile)
	if err != nil {
		return notEPUB(b.Name, fmt.Sprintf("package document %s not found", rootfile), nil)
	}
	opf, err := parseOpf(raw)
	if err != nil {
		return notEPUB(b.Name, fmt.Sprintf("unparsable package document %s", rootfile), err)
	}
	b.Opf = *opf
	b.rawOPF = raw

	b.root = path.Dir(rootfile)
	if b.root == "." {
		b.root = ""
	}

	if b.Opf.Metadata.Title() == "" {
		return missingMetadata(b.Name, "no title")
	}
	return nil
}

// readTOC locates the NCX through the spine toc attribute, falling back to
// the first manifest item with the NCX media type. A book that declares no
// TOC gets an empty one.
func (b *Book) readTOC() error {
	item, ok := b.tocItem()
	if !ok {
		b.toc = &TOC{}
		return nil
	}

	b.tocPath, _ = b.ContentPath(item.Href)
	raw, err := b.ReadFile(b.tocPath)
	if err != nil {
		return notEPUB(b.Name, fmt.Sprintf("table of contents %s not found", b.tocPath), nil)
	}
	toc, err := ParseTOC(raw)
	if err != nil {
		return notEPUB(b.Name, fmt.Sprintf("unparsable table of contents %s", b.tocPath), err)
	}
	toc.resolve(path.Dir(b.tocPath))
	b.toc = toc
	b.rawTOC = raw
	return nil
}

func (b *Book) tocItem() (Manifest, bool) {
	if id := b.Opf.Spine.Toc; id != "" {
		if item, ok := b.ManifestItem(id); ok {
			return item, true
		}
		log.Warn("Spine toc attribute does not match a manifest item", zap.String("archive", b.Name), zap.String("idref", id))
	}
	for _, item := range b.Opf.Manifest {
		if strings.EqualFold(item.MediaType, ncxMediaType) {
			return item, true
		}
	}
	return Manifest{}, false
}

// Metadata returns the parsed Dublin Core metadata.
func (b *Book) Metadata() Metadata {
	return b.Opf.Metadata
}

// TOC returns the parsed navigation map; never nil.
func (b *Book) TOC() *TOC {
	return b.toc
}

// ContentRoot is the directory of the package document inside the archive,
// "" when the OPF sits at the top level.
func (b *Book) ContentRoot() string {
	return b.root
}

func (b *Book) RawContainer() string { return string(b.rawContainer) }
func (b *Book) RawOPF() string       { return string(b.rawOPF) }
func (b *Book) RawTOC() string       { return string(b.rawTOC) }

// TOCPath is the archive path of the NCX, "" when there is none.
func (b *Book) TOCPath() string {
	return b.tocPath
}

// ManifestItem resolves a spine idref.
func (b *Book) ManifestItem(id string) (Manifest, bool) {
	for _, item := range b.Opf.Manifest {
		if item.ID == id {
			return item, true
		}
	}
	return Manifest{}, false
}

// Spine returns the itemrefs in reading order.
func (b *Book) Spine() []Itemref {
	return b.Opf.Spine.Itemrefs
}

// Files returns a list of all the files in the epub
func (b *Book) Files() []string {
	return b.names
}

// ContentPath resolves an OPF-relative href to an archive path and the
// fragment it carried.
func (b *Book) ContentPath(href string) (string, string) {
	return resolveHref(b.root, href)
}

// ReadFile returns the bytes of an archive member. Lookup is exact first,
// then case-insensitive.
func (b *Book) ReadFile(name string) ([]byte, error) {
	f, ok := b.files[name]
	if !ok {
		f, ok = b.folded[strings.ToLower(name)]
	}
	if !ok {
		return nil, errors.Wrap(ErrFileNotFound, name)
	}
	rc, err := f.Open()
	if err != nil {
		return nil, errors.Wrapf(err, "open %s", name)
	}
	defer rc.Close()
	return io.ReadAll(rc)
}

// SplitHref cleans an href and splits off its fragment.
func SplitHref(href string) (string, string) {
	return resolveHref("", href)
}

// resolveHref joins href onto base, dropping any fragment and percent
// escapes.
func resolveHref(base, href string) (string, string) {
	var fragment string
	if i := strings.IndexByte(href, '#'); i >= 0 {
		href, fragment = href[:i], href[i+1:]
	}
	if u, err := url.PathUnescape(href); err == nil {
		href = u
	}
	if href == "" {
		return "", fragment
	}
	p := path.Join(base, href)
	return strings.TrimPrefix(p, "/"), fragment
}
