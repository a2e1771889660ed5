package describe

import (
	"bytes"
	"context"
	"fmt"
	"html"
	"log/slog"
	"mime"
	"net/url"
	"path"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	gmhtml "github.com/yuin/goldmark/renderer/html"

	"floorplan/internal/floorplan/models"
	"floorplan/internal/floorplan/source"
)

// BookingBaseURL is the equipment booking site linked from described items.
const BookingBaseURL = "https://app.clustermarket.com/accounts"

// ============================================================
// Description panel
// ============================================================

type Kind string

const (
	KindNone  Kind = "none"
	KindText  Kind = "text"
	KindEmbed Kind = "embed"
	KindList  Kind = "list"
)

type Booking struct {
	URL  string `json:"url,omitempty"`
	Note string `json:"note,omitempty"`
}

// Embed is fetched content placed into the panel as an HTML fragment.
type Embed struct {
	URI         string `json:"uri"`
	ContentType string `json:"content_type"`
	HTML        string `json:"html"`
}

// Panel is the content of the description area for one item.
type Panel struct {
	ItemID  string   `json:"item_id"`
	Name    string   `json:"name"`
	Booking *Booking `json:"booking,omitempty"`
	Kind    Kind     `json:"kind"`
	Text    string   `json:"text,omitempty"`
	Embed   *Embed   `json:"embed,omitempty"`
	Entries []string `json:"entries,omitempty"`
}

// Pending completes once the panel content is final.
type Pending struct {
	done  chan struct{}
	panel *Panel
}

func (p *Pending) Done() <-chan struct{} { return p.done }

// Panel returns the finished panel. It blocks until Done is closed.
func (p *Pending) Panel() *Panel {
	<-p.done
	return p.panel
}

func finished(panel *Panel) *Pending {
	p := &Pending{done: make(chan struct{}), panel: panel}
	close(p.done)
	return p
}

// ============================================================
// Loader
// ============================================================

// Loader resolves the descriptive content of items.
type Loader struct {
	fetcher        source.Fetcher
	markdown       goldmark.Markdown
	bookingAccount string
	logger         *slog.Logger
}

func NewLoader(fetcher source.Fetcher, bookingAccount string, logger *slog.Logger) *Loader {
	if logger == nil {
		logger = slog.Default()
	}
	return &Loader{
		fetcher: fetcher,
		markdown: goldmark.New(
			goldmark.WithExtensions(extension.GFM),
			goldmark.WithRendererOptions(gmhtml.WithUnsafe()),
		),
		bookingAccount: bookingAccount,
		logger:         logger.With("component", "describe"),
	}
}

// Header is the part of the panel shown as soon as an item is selected:
// its name and the booking block. The block appears when the item has a
// booking id or a booking note; the link needs both the id and an account.
func (l *Loader) Header(it *models.Item) *Panel {
	if it == nil {
		return nil
	}
	p := &Panel{ItemID: it.UniqueID, Name: it.Name, Kind: KindNone}
	if it.BookingID == "" && it.BookingNote == "" {
		return p
	}
	p.Booking = &Booking{Note: it.BookingNote}
	if it.BookingID != "" && l.bookingAccount != "" {
		p.Booking.URL = fmt.Sprintf("%s/%s/equipment/%s", BookingBaseURL,
			url.PathEscape(l.bookingAccount), url.PathEscape(it.BookingID))
	}
	return p
}

// Describe builds the panel for an item. Inline text, content listings and
// empty bodies complete immediately; a description reference completes
// when its fetch settles, whatever the outcome. A nil item yields a nil
// panel.
func (l *Loader) Describe(ctx context.Context, it *models.Item) *Pending {
	if it == nil {
		return finished(nil)
	}
	panel := l.Header(it)

	switch {
	case it.Description != "":
		panel.Kind = KindText
		panel.Text = it.Description
		return finished(panel)
	case it.DescriptionRef != "":
		p := &Pending{done: make(chan struct{}), panel: panel}
		// Superseded fetches still run to completion.
		go l.fetchInto(context.WithoutCancel(ctx), it, p)
		return p
	case len(it.Contents) > 0:
		panel.Kind = KindList
		panel.Entries = it.ContentNames()
		return finished(panel)
	default:
		return finished(panel)
	}
}

func (l *Loader) fetchInto(ctx context.Context, it *models.Item, p *Pending) {
	defer close(p.done)

	location := source.Resolve(it.SourceDocument, it.DescriptionRef)
	doc, err := l.fetcher.Fetch(ctx, location)
	if err != nil {
		l.logger.Warn("description fetch failed", "item", it.Name, "uri", location, "error", err)
		p.panel.Kind = KindText
		p.panel.Text = it.DescriptionRef
		return
	}

	fragment, err := l.render(doc)
	if err != nil {
		l.logger.Warn("description render failed", "item", it.Name, "uri", location, "error", err)
		p.panel.Kind = KindText
		p.panel.Text = it.DescriptionRef
		return
	}
	p.panel.Kind = KindEmbed
	p.panel.Embed = &Embed{URI: doc.Location, ContentType: doc.ContentType, HTML: fragment}
}

// render turns a fetched document into an HTML fragment.
func (l *Loader) render(doc *source.Document) (string, error) {
	switch mediaType(doc) {
	case "text/markdown":
		var buf bytes.Buffer
		if err := l.markdown.Convert(doc.Body, &buf); err != nil {
			return "", err
		}
		return buf.String(), nil
	case "text/html", "application/xhtml+xml":
		return string(doc.Body), nil
	default:
		return "<pre>" + html.EscapeString(string(doc.Body)) + "</pre>", nil
	}
}

func mediaType(doc *source.Document) string {
	mt, _, err := mime.ParseMediaType(doc.ContentType)
	if err != nil {
		mt = ""
	}
	if mt == "" || mt == "text/plain" || mt == "application/octet-stream" {
		loc := doc.Location
		if u, err := url.Parse(loc); err == nil {
			loc = u.Path
		}
		switch strings.ToLower(path.Ext(loc)) {
		case ".md", ".markdown":
			return "text/markdown"
		case ".html", ".htm":
			return "text/html"
		}
	}
	return mt
}
