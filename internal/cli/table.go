package cli

import (
	"bufio"
	"io"
	"strings"

	"github.com/mattn/go-runewidth"
)

const (
	tablePadding = 2

	// maxCellWidth caps free-form cells such as event payloads.
	maxCellWidth = 80
)

func writeTable(out io.Writer, headers []string, rows [][]string) error {
	colCount := len(headers)
	for _, row := range rows {
		if len(row) > colCount {
			colCount = len(row)
		}
	}
	if colCount == 0 {
		return nil
	}

	cells := make([][]string, 0, len(rows))
	for _, row := range rows {
		clipped := make([]string, len(row))
		for idx, cell := range row {
			clipped[idx] = clipCell(cell)
		}
		cells = append(cells, clipped)
	}

	widths := make([]int, colCount)
	updateWidth := func(index int, value string) {
		if w := runewidth.StringWidth(value); w > widths[index] {
			widths[index] = w
		}
	}
	for idx, header := range headers {
		updateWidth(idx, header)
	}
	for _, row := range cells {
		for idx, cell := range row {
			updateWidth(idx, cell)
		}
	}

	writer := bufio.NewWriter(out)
	var writeErr error
	writeString := func(value string) {
		if writeErr != nil {
			return
		}
		_, writeErr = writer.WriteString(value)
	}
	writeRow := func(row []string) {
		for idx := 0; idx < colCount; idx++ {
			cell := ""
			if idx < len(row) {
				cell = row[idx]
			}
			writeString(cell)
			if idx < colCount-1 {
				padding := widths[idx] - runewidth.StringWidth(cell)
				writeString(strings.Repeat(" ", padding+tablePadding))
			}
		}
		writeString("\n")
	}

	if len(headers) > 0 {
		writeRow(headers)
	}
	for _, row := range cells {
		writeRow(row)
	}
	if writeErr != nil {
		return writeErr
	}
	return writer.Flush()
}

// clipCell flattens newlines and truncates cells wider than maxCellWidth.
func clipCell(value string) string {
	value = strings.Join(strings.Fields(value), " ")
	return runewidth.Truncate(value, maxCellWidth, "...")
}

func formatYesNo(value bool) string {
	if value {
		return "yes"
	}
	return "no"
}
