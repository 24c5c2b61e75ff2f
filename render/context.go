package render

import (
	"github.com/omniscale/mapent/auth"
	"github.com/omniscale/mapent/database"
	"github.com/omniscale/mapent/history"
	"github.com/omniscale/mapent/mapping"
)

// Site holds the template values shared by all pages.
type Site struct {
	Title     string
	Version   string
	Debug     bool
	Language  string
	Languages []string
	MediaURL  string
	Fogged    bool
}

type MenuEntry struct {
	Label string
	URL   string
	Icon  string
}

// Page is the root template context.
type Page struct {
	Site      Site
	Title     string
	User      *auth.User
	Menu      []MenuEntry
	History   []history.Entry
	Flash     string
	FlashType string
	ActiveTab string
	Data      interface{}
}

// FieldView is one rendered entity field, used by the detail view and
// the forms.
type FieldView struct {
	Name      string
	Label     string
	Value     string
	Required  bool
	Multiline bool
	Error     string
}

type ListRow struct {
	ID    int64
	URL   string
	Cells []string
}

type ListData struct {
	Entity     *mapping.Entity
	Columns    []string
	Rows       []ListRow
	Query      string
	CanAdd     bool
	CanExport  bool
	Pagination Pagination
}

type DetailData struct {
	Entity         *mapping.Entity
	ID             int64
	Title          string
	Fields         []FieldView
	CanChange      bool
	CanDelete      bool
	LogEntries     []*database.LogEntry
	MoreLogEntries bool
}

type FormData struct {
	Heading   string
	Fields    []FieldView
	Geom      string
	GeomError string
	CancelURL string
}

type DeleteData struct {
	Title       string
	EntityLabel string
	CancelURL   string
}

type LoginData struct {
	Error string
	Next  string
}
