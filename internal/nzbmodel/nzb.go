// Package nzbmodel holds the data model the download engine consumes and
// produces. NZB parsing itself lives outside this module's scope (spec §1);
// Parse below is a thin, self-contained reader for the well-known NZB XML
// shape, matching the contract described in spec.md §6.
package nzbmodel

import (
	"encoding/xml"
	"fmt"
	"io"
	"strings"
)

// Segment is one article belonging to a file. Number is 1-based.
type Segment struct {
	Number    int    `xml:"number,attr"`
	Bytes     int64  `xml:"bytes,attr"`
	MessageID string `xml:",chardata"`
}

// NzbFile is a logical file: an ordered list of segments plus the
// newsgroup(s) carrying them.
type NzbFile struct {
	Subject  string    `xml:"subject,attr"`
	Date     int64     `xml:"date,attr"`
	Groups   []string  `xml:"groups>group"`
	Segments []Segment `xml:"segments>segment"`
}

// TotalBytes sums the declared (pre-decode) size of every segment.
func (f *NzbFile) TotalBytes() int64 {
	var total int64
	for _, s := range f.Segments {
		total += s.Bytes
	}
	return total
}

// nzbDocument is the raw XML envelope.
type nzbDocument struct {
	XMLName xml.Name  `xml:"nzb"`
	Files   []NzbFile `xml:"file"`
}

// Parse reads an NZB document and returns its files in document order. A
// document that declares a non-UTF-8 encoding (NZB files conventionally
// declare iso-8859-1) is decoded as ISO-8859-1.
func Parse(r io.Reader) ([]NzbFile, error) {
	var doc nzbDocument
	dec := xml.NewDecoder(r)
	dec.CharsetReader = func(_ string, input io.Reader) (io.Reader, error) {
		raw, err := io.ReadAll(input)
		runes := make([]rune, len(raw))
		for i, b := range raw {
			runes[i] = rune(b)
		}
		return strings.NewReader(string(runes)), err
	}
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("parse nzb: %w", err)
	}
	return doc.Files, nil
}
