// Package document builds ODT files for entity records and talks to
// the external conversion and map capture services.
package document

import (
	"archive/zip"
	"bytes"
	"embed"
	"encoding/xml"
	"fmt"
	"image"
	"image/png"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
	"text/template"
	"time"

	"github.com/omniscale/mapent/database"
	"github.com/omniscale/mapent/mapping"
	"github.com/pkg/errors"
)

//go:embed templates
var builtinTemplates embed.FS

const odtMediaType = "application/vnd.oasis.opendocument.text"

type FieldValue struct {
	Label string
	Value string
}

// Document is the data rendered into the content template.
type Document struct {
	Title       string
	EntityLabel string
	Date        string
	Fields      []FieldValue
	MapImage    []byte
}

// NewDocument collects the template data of a record.
func NewDocument(e *mapping.Entity, r *database.Record, now time.Time) Document {
	doc := Document{
		Title:       r.Title(e),
		EntityLabel: e.Label,
		Date:        now.Format("2006-01-02 15:04"),
	}
	for _, f := range e.Fields {
		doc.Fields = append(doc.Fields, FieldValue{
			Label: f.Label,
			Value: valueString(r.Fields[f.Name]),
		})
	}
	return doc
}

func valueString(v interface{}) string {
	switch v := v.(type) {
	case nil:
		return ""
	case string:
		return v
	case time.Time:
		return v.Format("2006-01-02 15:04")
	default:
		return fmt.Sprintf("%v", v)
	}
}

// Builder assembles ODT files from directory form templates. An
// entity template ({entity}.odt) takes precedence over default.odt,
// templates from the template directory over the builtin ones.
type Builder struct {
	templateDir string
}

func NewBuilder(templateDir string) *Builder {
	return &Builder{templateDir: templateDir}
}

// Build writes the ODT file for one record.
func (b *Builder) Build(w io.Writer, entityName string, doc Document) error {
	files, err := b.templateFiles(entityName)
	if err != nil {
		return err
	}
	content, ok := files["content.xml"]
	if !ok {
		return errors.New("document template without content.xml")
	}
	tmpl, err := template.New("content.xml").Parse(string(content))
	if err != nil {
		return errors.Wrap(err, "parsing content.xml")
	}
	rendered := bytes.Buffer{}
	if err := tmpl.Execute(&rendered, escape(doc)); err != nil {
		return errors.Wrap(err, "rendering content.xml")
	}

	zw := zip.NewWriter(w)
	// the mimetype entry must come first, stored uncompressed
	mime, err := zw.CreateHeader(&zip.FileHeader{Name: "mimetype", Method: zip.Store})
	if err != nil {
		return err
	}
	if _, err := mime.Write([]byte(odtMediaType)); err != nil {
		return err
	}
	if err := addZipFile(zw, "content.xml", rendered.Bytes()); err != nil {
		return err
	}

	names := make([]string, 0, len(files))
	for name := range files {
		if name == "mimetype" || name == "content.xml" {
			continue
		}
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if err := addZipFile(zw, name, files[name]); err != nil {
			return err
		}
	}

	img := doc.MapImage
	if img == nil {
		img = placeholderPNG()
	}
	if err := addZipFile(zw, "Pictures/map.png", img); err != nil {
		return err
	}
	return zw.Close()
}

func (b *Builder) templateFiles(entityName string) (map[string][]byte, error) {
	if b.templateDir != "" {
		for _, name := range []string{entityName, "default"} {
			dir := filepath.Join(b.templateDir, name+".odt")
			if fi, err := os.Stat(dir); err == nil && fi.IsDir() {
				return readTemplateDir(os.DirFS(dir))
			}
		}
	}
	for _, name := range []string{entityName, "default"} {
		sub, err := fs.Sub(builtinTemplates, path.Join("templates", name+".odt"))
		if err != nil {
			continue
		}
		files, err := readTemplateDir(sub)
		if err == nil && len(files) > 0 {
			return files, nil
		}
	}
	return nil, errors.Errorf("no document template for %q", entityName)
}

func readTemplateDir(fsys fs.FS) (map[string][]byte, error) {
	files := map[string][]byte{}
	err := fs.WalkDir(fsys, ".", func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		data, err := fs.ReadFile(fsys, p)
		if err != nil {
			return err
		}
		files[p] = data
		return nil
	})
	if err != nil {
		return nil, err
	}
	return files, nil
}

func addZipFile(zw *zip.Writer, name string, content []byte) error {
	f, err := zw.Create(name)
	if err != nil {
		return err
	}
	_, err = f.Write(content)
	return err
}

func escape(doc Document) Document {
	out := doc
	out.Title = xmlEscape(doc.Title)
	out.EntityLabel = xmlEscape(doc.EntityLabel)
	out.Date = xmlEscape(doc.Date)
	out.Fields = make([]FieldValue, len(doc.Fields))
	for i, f := range doc.Fields {
		out.Fields[i] = FieldValue{Label: xmlEscape(f.Label), Value: xmlEscape(f.Value)}
	}
	return out
}

func xmlEscape(s string) string {
	buf := bytes.Buffer{}
	xml.EscapeText(&buf, []byte(s))
	return buf.String()
}

// placeholderPNG is embedded when no map capture is available, the
// manifest always lists Pictures/map.png.
func placeholderPNG() []byte {
	img := image.NewRGBA(image.Rect(0, 0, 1, 1))
	buf := bytes.Buffer{}
	png.Encode(&buf, img)
	return buf.Bytes()
}
