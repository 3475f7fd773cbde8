// Package epubtest builds small EPUB archives in memory for tests.
package epubtest

import (
	"archive/zip"
	"bytes"
	"fmt"
	"io"
	"sort"
	"strings"
)

const Container = `<?xml version="1.0"?>
<container version="1.0" xmlns="urn:oasis:names:tc:opendocument:xmlns:container">
  <rootfiles>
    <rootfile full-path="OEBPS/content.opf" media-type="application/oebps-package+xml"/>
  </rootfiles>
</container>`

const OPF = `<?xml version="1.0" encoding="UTF-8"?>
<package xmlns="http://www.idpf.org/2007/opf" unique-identifier="bookid" version="2.0">
  <metadata xmlns:dc="http://purl.org/dc/elements/1.1/" xmlns:opf="http://www.idpf.org/2007/opf">
    <dc:title>  Sample Book  </dc:title>
    <dc:creator opf:role="aut">First Author</dc:creator>
    <dc:creator opf:role="aut">Second Author</dc:creator>
    <dc:language>en</dc:language>
    <dc:rights>CC-BY</dc:rights>
    <dc:subject>Fiction</dc:subject>
    <dc:subject>History</dc:subject>
    <dc:subject>Fiction</dc:subject>
    <dc:publisher>Example Press</dc:publisher>
    <dc:identifier id="uuid">urn:uuid:9b4d7c2e-1f0a-4c3b-9d8e-7a6b5c4d3e2f</dc:identifier>
    <dc:identifier id="bookid" opf:scheme="ISBN">978-3-16-148410-0</dc:identifier>
    <dc:description>A book &amp; its chapters&hellip;</dc:description>
    <meta name="cover" content="cover"/>
  </metadata>
  <manifest>
    <item id="ncx" href="toc.ncx" media-type="application/x-dtbncx+xml"/>
    <item id="copyright" href="text/copyright.xhtml" media-type="application/xhtml+xml"/>
    <item id="preface" href="text/preface.xhtml" media-type="application/xhtml+xml"/>
    <item id="ch1" href="text/chapter1.xhtml" media-type="application/xhtml+xml"/>
    <item id="ch2" href="text/chapter%202.xhtml" media-type="application/xhtml+xml"/>
    <item id="css" href="styles/main.css" media-type="text/css"/>
    <item id="cover" href="images/cover.png" media-type="image/png"/>
  </manifest>
  <spine toc="ncx">
    <itemref idref="copyright"/>
    <itemref idref="preface"/>
    <itemref idref="ch1"/>
    <itemref idref="ch1"/>
    <itemref idref="missing"/>
    <itemref idref="ch2"/>
  </spine>
</package>`

// NCX has Copyright with no children, Preface with eight children (the
// third of which has one child of its own), Chapter One and a point whose
// target is not in the spine.
var NCX = buildNCX()

func buildNCX() string {
	var b strings.Builder
	b.WriteString(`<?xml version="1.0" encoding="UTF-8"?>
<ncx xmlns="http://www.daisy.org/z3986/2005/ncx/" version="2005-1">
  <docTitle><text>Sample Book</text></docTitle>
  <navMap>
    <navPoint id="copyright" playOrder="1">
      <navLabel><text>Copyright</text></navLabel>
      <content src="text/copyright.xhtml"/>
    </navPoint>
    <navPoint id="preface" playOrder="2">
      <navLabel><text>Preface</text></navLabel>
      <content src="text/preface.xhtml"/>
`)
	order := 3
	for i := 1; i <= 8; i++ {
		fmt.Fprintf(&b, `      <navPoint id="s%d" playOrder="%d">
        <navLabel><text>Section %d</text></navLabel>
        <content src="text/preface.xhtml#s%d"/>
`, i, order, i, i)
		order++
		if i == 3 {
			fmt.Fprintf(&b, `        <navPoint id="n1" playOrder="%d">
          <navLabel><text>Note</text></navLabel>
          <content src="text/preface.xhtml#n1"/>
        </navPoint>
`, order)
			order++
		}
		b.WriteString("      </navPoint>\n")
	}
	fmt.Fprintf(&b, `    </navPoint>
    <navPoint id="chapter1" playOrder="%d">
      <navLabel><text>Chapter
        One</text></navLabel>
      <content src="text/chapter1.xhtml"/>
    </navPoint>
    <navPoint id="orphan" playOrder="%d">
      <navLabel><text>Orphan</text></navLabel>
      <content src="text/orphan.xhtml"/>
    </navPoint>
  </navMap>
</ncx>`, order, order+1)
	return b.String()
}

// XHTML wraps body in a default-namespace XHTML document.
func XHTML(title, body string) string {
	return `<?xml version="1.0" encoding="UTF-8"?>
<html xmlns="http://www.w3.org/1999/xhtml">
<head><title>` + title + `</title></head>
<body>
` + body + `
</body>
</html>`
}

// Files returns the members of the sample book; callers may modify the map
// before building.
func Files() map[string]string {
	return map[string]string{
		"mimetype":                   "application/epub+zip",
		"META-INF/container.xml":     Container,
		"OEBPS/content.opf":          OPF,
		"OEBPS/toc.ncx":              NCX,
		"OEBPS/text/copyright.xhtml": XHTML("Copyright", `<p>All rights reserved.</p>`),
		"OEBPS/text/preface.xhtml":   XHTML("Preface", `<h1>Preface</h1><p>Why this book was written.</p>`),
		"OEBPS/text/chapter1.xhtml":  XHTML("Chapter One", `<h1>Chapter One</h1><p>The quick brown fox jumps over the lazy dog.</p>`),
		"OEBPS/text/chapter 2.xhtml": XHTML("Chapter Two", `<h2>Chapter Two</h2><p>Dogs are loyal companions.</p>`),
		"OEBPS/styles/main.css":      "body { margin: 0; }",
		"OEBPS/images/cover.png":     "\x89PNG\r\n\x1a\nfake",
	}
}

// Build zips files, writing the mimetype entry first and the rest in name
// order so the output is stable.
func Build(files map[string]string) ([]byte, error) {
	buf := new(bytes.Buffer)
	zw := zip.NewWriter(buf)

	names := make([]string, 0, len(files))
	for name := range files {
		if name != "mimetype" {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	if _, ok := files["mimetype"]; ok {
		names = append([]string{"mimetype"}, names...)
	}

	for _, name := range names {
		method := zip.Deflate
		if name == "mimetype" {
			method = zip.Store
		}
		fw, err := zw.CreateHeader(&zip.FileHeader{Name: name, Method: method})
		if err != nil {
			return nil, err
		}
		if _, err := io.WriteString(fw, files[name]); err != nil {
			return nil, err
		}
	}
	if err := zw.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Sample is Build(Files()).
func Sample() ([]byte, error) {
	return Build(Files())
}
