package parser

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/couchcryptid/bmkg-relay/internal/domain"
	"golang.org/x/text/encoding/ianaindex"
)

const summaryRunes = 200

var pubDateLayouts = []string{
	time.RFC1123Z,
	"Mon, 2 Jan 2006 15:04:05 -0700",
	"2 Jan 2006 15:04:05 -0700",
	time.RFC1123,
}

type rssDoc struct {
	Channel struct {
		Items []rssItem `xml:"item"`
	} `xml:"channel"`
}

type rssItem struct {
	Title       string `xml:"title"`
	Link        string `xml:"link"`
	Description string `xml:"description"`
	PubDate     string `xml:"pubDate"`
}

// ParseActiveAlerts parses the nowcast RSS feed into the list of active
// alerts, in feed order with duplicate codes removed.
func ParseActiveAlerts(raw []byte) ([]domain.ActiveAlert, error) {
	var doc rssDoc
	dec := xml.NewDecoder(bytes.NewReader(raw))
	dec.CharsetReader = charsetReader
	if err := dec.Decode(&doc); err != nil {
		return nil, parseErr(KindRSS, "", "decode xml: %w", err)
	}

	alerts := make([]domain.ActiveAlert, 0, len(doc.Channel.Items))
	seen := make(map[string]struct{}, len(doc.Channel.Items))
	for _, item := range doc.Channel.Items {
		link := strings.TrimSpace(item.Link)
		if link == "" {
			return nil, parseErr(KindRSS, "link", "missing")
		}
		code := alertCodeFromLink(link)
		province := ProvinceFromAlertCode(code)
		if province == "" {
			return nil, parseErr(KindRSS, "link", "no alert code in %q", link)
		}
		if _, dup := seen[code]; dup {
			continue
		}
		seen[code] = struct{}{}

		published, err := parsePubDate(item.PubDate)
		if err != nil {
			return nil, err
		}
		title := strings.TrimSpace(item.Title)
		alerts = append(alerts, domain.ActiveAlert{
			AlertCode:    code,
			ProvinceCode: province,
			Province:     provinceFromTitle(title),
			Title:        title,
			Summary:      truncateRunes(strings.TrimSpace(item.Description), summaryRunes),
			PublishedAt:  published,
			Link:         link,
		})
	}
	return alerts, nil
}

// alertCodeFromLink turns ".../id/CBT20260216004_alert.xml" into "CBT20260216004".
func alertCodeFromLink(link string) string {
	name := link[strings.LastIndexByte(link, '/')+1:]
	return strings.TrimSuffix(name, "_alert.xml")
}

// provinceFromTitle returns the text after the last " di " or, in the
// English feed, " in ", e.g. "Peringatan Dini Cuaca di Banten" → "Banten".
func provinceFromTitle(title string) string {
	for _, sep := range []string{" di ", " in "} {
		if i := strings.LastIndex(title, sep); i >= 0 {
			return strings.TrimSpace(title[i+len(sep):])
		}
	}
	return title
}

func parsePubDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, parseErr(KindRSS, "pubDate", "missing")
	}
	for _, layout := range pubDateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, parseErr(KindRSS, "pubDate", "unparseable timestamp %q", s)
}

// charsetReader decodes documents that declare a non-UTF-8 charset; BMKG
// has served ISO-8859-1 declarations.
func charsetReader(label string, input io.Reader) (io.Reader, error) {
	enc, err := ianaindex.IANA.Encoding(label)
	if err != nil {
		return nil, fmt.Errorf("unsupported charset %q: %w", label, err)
	}
	if enc == nil {
		return nil, fmt.Errorf("unsupported charset %q", label)
	}
	return enc.NewDecoder().Reader(input), nil
}
