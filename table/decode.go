package table

import (
	"strings"
)

// Decode turns CSV text into a rectangular grid of cells. Row 0 is
// the header.
//
// Decoding is best effort and never fails. A field starting with a
// double quote runs until the matching closing quote and may hold
// commas and line breaks; a doubled quote inside it is a literal
// quote, and anything between the closing quote and the next
// delimiter is dropped. Carriage returns outside quotes are
// ignored. Blank lines at the start or end of the input are not
// rows. Short rows are padded with empty cells up to the widest
// row.
func Decode(src string) [][]string {
	d := decoder{}

	for i := 0; i < len(src); i++ {
		ch := src[i]

		if d.quoted {
			if ch == '"' {
				if i+1 < len(src) && src[i+1] == '"' {
					d.field.WriteByte('"')
					i++
					continue
				}
				d.quoted = false
				d.closed = true
				continue
			}
			d.field.WriteByte(ch)
			continue
		}

		switch ch {
		case '"':
			d.lineUsed = true
			if !d.started {
				d.quoted = true
				d.started = true
			} else if !d.closed {
				d.field.WriteByte(ch)
			}
		case ',':
			d.lineUsed = true
			d.endField()
		case '\n':
			d.endRow()
		case '\r':
		default:
			d.lineUsed = true
			d.started = true
			if !d.closed {
				d.field.WriteByte(ch)
			}
		}
	}

	// Input not terminated by a newline still has a pending row.
	if d.lineUsed || d.quoted || d.field.Len() > 0 || len(d.row) > 0 {
		d.endRow()
	}

	// Blank lines before the header or after the last record are
	// not rows.
	for len(d.rows) > 0 && d.blank[len(d.blank)-1] {
		d.rows = d.rows[:len(d.rows)-1]
		d.blank = d.blank[:len(d.blank)-1]
	}
	for len(d.rows) > 0 && d.blank[0] {
		d.rows = d.rows[1:]
		d.blank = d.blank[1:]
	}

	width := 0
	for _, row := range d.rows {
		if len(row) > width {
			width = len(row)
		}
	}
	for i, row := range d.rows {
		for len(row) < width {
			row = append(row, "")
		}
		d.rows[i] = row
	}

	return d.rows
}

type decoder struct {
	rows  [][]string
	blank []bool
	row   []string
	field strings.Builder

	// quoted: inside a quoted field. closed: the closing quote
	// was seen, ignore until the next delimiter. started: the
	// current field has consumed a character.
	quoted  bool
	closed  bool
	started bool

	// lineUsed is set when the current line holds anything other
	// than carriage returns.
	lineUsed bool
}

func (d *decoder) endField() {
	d.row = append(d.row, d.field.String())
	d.field.Reset()
	d.quoted = false
	d.closed = false
	d.started = false
}

func (d *decoder) endRow() {
	blank := !d.lineUsed && len(d.row) == 0 && d.field.Len() == 0
	d.endField()
	d.rows = append(d.rows, d.row)
	d.blank = append(d.blank, blank)
	d.row = nil
	d.lineUsed = false
}
