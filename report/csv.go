package report

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/dargueta/blocksim"
	"github.com/gocarina/gocsv"
)

type directoryRow struct {
	Name         string `csv:"name"`
	Method       string `csv:"method"`
	Size         uint   `csv:"size"`
	Index        string `csv:"index"`
	Blocks       string `csv:"blocks"`
	Type         string `csv:"type"`
	ContentBytes int    `csv:"content_bytes"`
}

func newDirectoryRow(info blocksim.FileInfo) directoryRow {
	blocks := make([]string, len(info.Blocks))
	for i, block := range info.Blocks {
		blocks[i] = fmt.Sprint(block)
	}

	index := ""
	if info.Index != nil {
		index = fmt.Sprint(*info.Index)
	}

	return directoryRow{
		Name:         info.Name,
		Method:       info.Method.String(),
		Size:         info.Size,
		Index:        index,
		Blocks:       strings.Join(blocks, " "),
		Type:         string(info.Type),
		ContentBytes: len(info.Content),
	}
}

// WriteDirectoryCSV writes one row per file, sorted by name. Data blocks are
// space-separated in allocation order; the index column is empty for files
// that don't have an index block.
func WriteDirectoryCSV(w io.Writer, files map[string]blocksim.FileInfo) error {
	rows := make([]directoryRow, 0, len(files))
	for _, info := range files {
		rows = append(rows, newDirectoryRow(info))
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].Name < rows[j].Name })

	return gocsv.Marshal(rows, w)
}
