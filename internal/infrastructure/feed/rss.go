// Package feed renders RSS 2.0 + itunes podcast feeds and assembles
// self-contained bundle directories (§4.7, §4.8). RSS rendering is a pure
// function over (title, description, audio path) -> XML, grounded on
// hrom512-rss_bot's gofeed-consuming fetcher for the inverse (parse) shape;
// bundle-folder locking is grounded on five82-spindle's
// internal/daemon.Daemon use of github.com/gofrs/flock.
package feed

import (
	"encoding/xml"
	"fmt"
	"time"

	"github.com/archivecast/podgen/internal/ports"
)

const (
	mimeLocal  = "audio/wav"
	mimeHosted = "audio/mpeg"
	// durationPlaceholder is a fixed value (§4.7): the real duration isn't
	// computed from the audio file.
	durationPlaceholder = "10:00"
)

// Writer implements ports.FeedWriter.
type Writer struct{}

var _ ports.FeedWriter = (*Writer)(nil)

// New constructs a feed writer. It carries no state: rendering is a pure
// function of its inputs.
func New() *Writer { return &Writer{} }

type rssRoot struct {
	XMLName xml.Name `xml:"rss"`
	Version string   `xml:"version,attr"`
	ItunesNS string  `xml:"xmlns:itunes,attr"`
	Channel rssChannel `xml:"channel"`
}

type rssChannel struct {
	Title       string  `xml:"title"`
	Description string  `xml:"description"`
	Item        rssItem `xml:"item"`
}

type rssItem struct {
	Title           string      `xml:"title"`
	Description     string      `xml:"description"`
	PubDate         string      `xml:"pubDate"`
	GUID            rssGUID     `xml:"guid"`
	Enclosure       *rssEnclosure `xml:"enclosure,omitempty"`
	ItunesDuration  string      `xml:"itunes:duration"`
	ItunesExplicit  string      `xml:"itunes:explicit"`
}

type rssGUID struct {
	IsPermaLink string `xml:"isPermaLink,attr"`
	Value       string `xml:",chardata"`
}

type rssEnclosure struct {
	URL    string `xml:"url,attr"`
	Type   string `xml:"type,attr"`
	Length string `xml:"length,attr"`
}

// RenderRSS renders a single-item RSS 2.0 + itunes feed. When item.Local is
// true the enclosure's MIME type is audio/wav (a local bundle enclosure);
// otherwise audio/mpeg (a hosted URL). The relative argument does not
// affect the output. encoding/xml escapes every free-text
// field automatically, closing the reference implementation's metacharacter
// gap (§4.8, §9).
func (w *Writer) RenderRSS(item ports.FeedItem, relative bool) ([]byte, error) {
	mimeType := mimeHosted
	if item.Local {
		mimeType = mimeLocal
	}

	var enclosure *rssEnclosure
	if item.AudioPath != "" {
		enclosure = &rssEnclosure{URL: item.AudioPath, Type: mimeType, Length: "0"}
	}

	root := rssRoot{
		Version:  "2.0",
		ItunesNS: "http://www.itunes.com/dtds/podcast-1.0.dtd",
		Channel: rssChannel{
			Title:       item.Title,
			Description: item.Description,
			Item: rssItem{
				Title:       item.Title,
				Description: item.Description,
				PubDate:     time.Now().UTC().Format(time.RFC1123),
				GUID: rssGUID{
					IsPermaLink: "false",
					Value:       fmt.Sprintf("%s-%d", item.GUIDSeed, time.Now().UTC().UnixNano()),
				},
				Enclosure:      enclosure,
				ItunesDuration: durationPlaceholder,
				ItunesExplicit: "false",
			},
		},
	}

	out, err := xml.MarshalIndent(root, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal rss: %w", err)
	}
	return append([]byte(xml.Header), out...), nil
}
