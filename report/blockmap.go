// Package report renders the state of a device for people: a PNG block map, a
// plain-text map for terminals and a CSV listing of the directory.
package report

import (
	"fmt"
	"image"
	"image/color"
	"io"
	"sort"

	"github.com/cespare/xxhash/v2"
	"github.com/dargueta/blocksim"
	"github.com/fogleman/gg"
)

const (
	CellSize      = 32
	BlocksPerRow  = 10
	margin        = 40
	legendRow     = 20
	indexBorder   = 4
	cellSeparator = 1
)

// FreeColor is the colour of free blocks in a block map.
var FreeColor = color.RGBA{R: 0xd3, G: 0xd3, B: 0xd3, A: 0xff}

// OwnerColor returns the colour used for a file's blocks. It depends only on
// the name, so a file keeps its colour across sessions.
func OwnerColor(name string) color.RGBA {
	rgb := xxhash.Sum64String(name) % 0xffffff
	return color.RGBA{
		R: uint8(rgb >> 16),
		G: uint8(rgb >> 8),
		B: uint8(rgb),
		A: 0xff,
	}
}

// CellCenter returns the pixel at the center of a block's cell in an image
// made by BlockMap.
func CellCenter(block blocksim.BlockID) image.Point {
	row := int(block) / BlocksPerRow
	column := int(block) % BlocksPerRow
	return image.Point{
		X: margin + column*CellSize + CellSize/2,
		Y: margin + row*CellSize + CellSize/2,
	}
}

func ownerNames(states []blocksim.BlockState) []string {
	seen := make(map[string]bool)
	names := []string{}
	for _, state := range states {
		if owner, owned := state.Owner(); owned && !seen[owner] {
			seen[owner] = true
			names = append(names, owner)
		}
	}
	sort.Strings(names)
	return names
}

func drawBlockMap(states []blocksim.BlockState, files map[string]blocksim.FileInfo) *gg.Context {
	rows := (len(states) + BlocksPerRow - 1) / BlocksPerRow
	owners := ownerNames(states)

	width := 2*margin + BlocksPerRow*CellSize
	height := 2*margin + rows*CellSize + legendRow*(len(owners)+1)

	dc := gg.NewContext(width, height)
	dc.SetRGB(1, 1, 1)
	dc.Clear()

	dc.SetRGB(0, 0, 0)
	dc.DrawStringAnchored(
		fmt.Sprintf("%d blocks, %d free", len(states), countFree(states)),
		float64(width)/2,
		float64(margin)/2,
		0.5,
		0.5)

	for i, state := range states {
		x := float64(margin + (i%BlocksPerRow)*CellSize)
		y := float64(margin + (i/BlocksPerRow)*CellSize)

		if i%BlocksPerRow == 0 {
			dc.SetRGB(0, 0, 0)
			dc.DrawStringAnchored(fmt.Sprint(i), x-6, y+CellSize/2, 1, 0.5)
		}

		if owner, owned := state.Owner(); owned {
			dc.SetColor(OwnerColor(owner))
		} else {
			dc.SetColor(FreeColor)
		}
		dc.DrawRectangle(
			x+cellSeparator,
			y+cellSeparator,
			CellSize-2*cellSeparator,
			CellSize-2*cellSeparator)
		dc.Fill()
	}

	// Outline index blocks so they stand out from the data blocks of the same
	// file.
	dc.SetRGB(0, 0, 0)
	dc.SetLineWidth(indexBorder)
	for _, info := range files {
		if info.Index == nil || int(*info.Index) >= len(states) {
			continue
		}
		i := int(*info.Index)
		x := float64(margin + (i%BlocksPerRow)*CellSize)
		y := float64(margin + (i/BlocksPerRow)*CellSize)
		dc.DrawRectangle(
			x+indexBorder/2,
			y+indexBorder/2,
			CellSize-indexBorder,
			CellSize-indexBorder)
		dc.Stroke()
	}

	legendTop := float64(margin + rows*CellSize + legendRow/2)
	for i, owner := range append([]string{""}, owners...) {
		y := legendTop + float64(i*legendRow)
		label := owner
		if owner == "" {
			dc.SetColor(FreeColor)
			label = "(free)"
		} else {
			dc.SetColor(OwnerColor(owner))
			if info, exists := files[owner]; exists {
				label = fmt.Sprintf("%s (%s, %d blocks)", owner, info.Method, len(info.OwnedBlocks()))
			}
		}
		dc.DrawRectangle(margin, y, legendRow-6, legendRow-6)
		dc.Fill()
		dc.SetRGB(0, 0, 0)
		dc.DrawStringAnchored(label, margin+legendRow, y+(legendRow-6)/2, 0, 0.5)
	}
	return dc
}

// BlockMap draws one cell per block, laid out BlocksPerRow to a row. Free
// blocks are grey, owned blocks are coloured by their owner's name, and index
// blocks get a black outline. A legend of owners goes underneath.
func BlockMap(states []blocksim.BlockState, files map[string]blocksim.FileInfo) image.Image {
	return drawBlockMap(states, files).Image()
}

// WriteBlockMapPNG writes the image made by BlockMap to `w` as a PNG.
func WriteBlockMapPNG(w io.Writer, states []blocksim.BlockState, files map[string]blocksim.FileInfo) error {
	return drawBlockMap(states, files).EncodePNG(w)
}

// SaveBlockMapPNG writes the image made by BlockMap to a PNG file.
func SaveBlockMapPNG(path string, states []blocksim.BlockState, files map[string]blocksim.FileInfo) error {
	return drawBlockMap(states, files).SavePNG(path)
}

func countFree(states []blocksim.BlockState) int {
	free := 0
	for _, state := range states {
		if state.IsFree() {
			free++
		}
	}
	return free
}
