// Package ingest imports vendor price lists from CSV feeds.
//
// A feed row is phone,shop_id,name,price,unit,category. The header line is
// optional, shop_id, unit and category may be blank, and the separator is
// either ',' or ';' (detected from the first line unless given).
package ingest

import (
	"bufio"
	"encoding/csv"
	"io"
	"strings"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/transform"
)

// Supported feed encodings.
const (
	EncodingUTF8        = "utf-8"
	EncodingWindows1251 = "windows-1251"
)

const (
	colPhone = iota
	colShopID
	colName
	colPrice
	colUnit
	colCategory
)

// minColumns is the shortest usable record: phone, shop id, name, price.
const minColumns = colPrice + 1

// Options controls feed decoding.
type Options struct {
	// Encoding is EncodingUTF8 (default) or EncodingWindows1251.
	Encoding string
	// Comma is the field separator. Zero detects ';' or ',' from the first line.
	Comma rune
}

// Row is one decoded feed record. Price is nil when the cell is blank or not
// a number; the vendor service skips such entries.
type Row struct {
	Line     int
	Phone    string
	ShopID   string
	Name     string
	Price    *decimal.Decimal
	Unit     string
	Category string
}

// Stats counts what ReadFeed saw.
type Stats struct {
	Rows      int
	Malformed int
}

// ReadFeed decodes r and calls fn for every usable record. Records with too
// few columns or no phone are counted as malformed and skipped. An error from
// fn stops reading and is returned as is.
func ReadFeed(r io.Reader, opts Options, fn func(Row) error) (Stats, error) {
	var stats Stats

	switch strings.ToLower(strings.TrimSpace(opts.Encoding)) {
	case "", EncodingUTF8, "utf8":
	case EncodingWindows1251, "cp1251":
		r = transform.NewReader(r, charmap.Windows1251.NewDecoder())
	default:
		return stats, errors.Errorf("unsupported encoding %q", opts.Encoding)
	}

	br := bufio.NewReader(r)
	comma := opts.Comma
	if comma == 0 {
		var err error
		if comma, err = detectComma(br); err != nil {
			return stats, err
		}
	}

	cr := csv.NewReader(br)
	cr.Comma = comma
	cr.LazyQuotes = true
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true
	cr.ReuseRecord = true

	for first := true; ; first = false {
		record, err := cr.Read()
		if errors.Is(err, io.EOF) {
			return stats, nil
		}
		if err != nil {
			var perr *csv.ParseError
			if errors.As(err, &perr) {
				stats.Malformed++
				continue
			}
			return stats, errors.Wrap(err, "read feed")
		}
		if first && isHeader(record) {
			continue
		}

		row, ok := parseRecord(record, comma)
		if !ok {
			stats.Malformed++
			continue
		}
		row.Line, _ = cr.FieldPos(0)
		stats.Rows++
		if err := fn(row); err != nil {
			return stats, err
		}
	}
}

// detectComma picks ';' when the first line has more semicolons than commas.
func detectComma(br *bufio.Reader) (rune, error) {
	line, err := br.Peek(br.Size())
	if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, bufio.ErrBufferFull) {
		return 0, errors.Wrap(err, "peek feed")
	}
	if i := strings.IndexByte(string(line), '\n'); i >= 0 {
		line = line[:i]
	}
	if strings.Count(string(line), ";") > strings.Count(string(line), ",") {
		return ';', nil
	}
	return ',', nil
}

func isHeader(record []string) bool {
	return len(record) > 0 && strings.EqualFold(strings.TrimSpace(strings.TrimPrefix(record[0], "\ufeff")), "phone")
}

func parseRecord(record []string, comma rune) (Row, bool) {
	if len(record) < minColumns {
		return Row{}, false
	}
	cell := func(i int) string {
		if i >= len(record) {
			return ""
		}
		return strings.TrimSpace(record[i])
	}

	row := Row{
		Phone:    cell(colPhone),
		ShopID:   cell(colShopID),
		Name:     cell(colName),
		Price:    parsePrice(cell(colPrice), comma),
		Unit:     cell(colUnit),
		Category: cell(colCategory),
	}
	if row.Phone == "" {
		return Row{}, false
	}
	return row, true
}

// parsePrice reads a decimal price. Semicolon feeds come from spreadsheets
// that write decimal commas, so "12,50" is accepted there.
func parsePrice(s string, comma rune) *decimal.Decimal {
	if s == "" {
		return nil
	}
	if comma != ',' {
		s = strings.Replace(s, ",", ".", 1)
	}
	s = strings.ReplaceAll(s, " ", "")
	p, err := decimal.NewFromString(s)
	if err != nil {
		return nil
	}
	return &p
}
