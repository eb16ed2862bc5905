package main

import (
	"fmt"
	"os"

	"github.com/dargueta/blocksim/store"
	"github.com/dargueta/blocksim/utilities/compression"
)

func main() {
	if len(os.Args) != 3 {
		fmt.Fprintf(
			os.Stderr,
			"Expand a saved device into its JSON document.\nUsage: %s state-file output-file\n",
			os.Args[0])
		os.Exit(1)
	}

	sourceFilePath := os.Args[1]
	outputFilePath := os.Args[2]

	sourceFile, errSrc := os.Open(sourceFilePath)
	if errSrc != nil {
		fmt.Fprintf(
			os.Stderr, "Failed to open file for reading: `%v`: %s\n", sourceFilePath, errSrc)
		os.Exit(1)
	}
	defer sourceFile.Close()

	// Make sure it's really a snapshot before writing anything.
	snapshot, err := store.Decode(sourceFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Not a valid snapshot: %s\n", err)
		os.Exit(2)
	}
	if _, err = sourceFile.Seek(0, 0); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to rewind `%v`: %s\n", sourceFilePath, err)
		os.Exit(1)
	}

	outFile, errOut := os.Create(outputFilePath)
	if errOut != nil {
		fmt.Fprintf(
			os.Stderr, "Failed to open file for writing: `%v`: %s\n", outputFilePath, errOut)
		os.Exit(1)
	}
	defer outFile.Close()

	nWritten, err := compression.Decompress(sourceFile, outFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error expanding file: %s\n", err)
		os.Exit(2)
	}

	fmt.Printf(
		"Device %s (%d blocks, %d files): wrote %d bytes.\n",
		snapshot.DeviceID,
		snapshot.Capacity,
		len(snapshot.Files),
		nWritten)
}
