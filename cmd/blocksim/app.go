package main

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/dargueta/blocksim"
	"github.com/dargueta/blocksim/profiles"
	"github.com/dargueta/blocksim/report"
	"github.com/dargueta/blocksim/simulator"
	"github.com/dargueta/blocksim/store"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/urfave/cli/v2"
)

func newApp() *cli.App {
	return &cli.App{
		Name:  "blocksim",
		Usage: "Simulate contiguous, linked and indexed block allocation on a small device",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "state",
				Usage:   "file the device is saved to between runs",
				Value:   "blocksim.state",
				EnvVars: []string{"BLOCKSIM_STATE"},
			},
			&cli.StringFlag{
				Name:    "profile",
				Usage:   "predefined device size to use when creating a new device",
				EnvVars: []string{"BLOCKSIM_PROFILE"},
			},
			&cli.UintFlag{
				Name:  "capacity",
				Usage: "number of blocks when creating a new device, overrides --profile",
			},
			&cli.StringFlag{
				Name:  "metrics-textfile",
				Usage: "write Prometheus metrics to this file when the command finishes",
			},
		},
		Commands: []*cli.Command{
			{
				Name:      "create",
				Usage:     "Allocate a new file",
				ArgsUsage: "NAME",
				Flags: []cli.Flag{
					&cli.UintFlag{Name: "size", Usage: "number of data blocks", Required: true},
					&cli.StringFlag{Name: "method", Usage: "Contiguous, Linked or Indexed", Value: "Contiguous"},
					&cli.StringFlag{Name: "type", Usage: "file type", Value: string(blocksim.TextFile)},
					&cli.StringFlag{Name: "content", Usage: "initial content"},
				},
				Action: createFile,
			},
			{
				Name:      "rm",
				Usage:     "Delete a file and free its blocks",
				ArgsUsage: "NAME",
				Action:    deleteFile,
			},
			{
				Name:   "ls",
				Usage:  "List files and where they live",
				Action: listFiles,
			},
			{
				Name:      "cat",
				Usage:     "Print the content of a file",
				ArgsUsage: "NAME",
				Action:    printContent,
			},
			{
				Name:      "edit",
				Usage:     "Replace the content of a file, reading stdin if --content isn't given",
				ArgsUsage: "NAME",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "content", Usage: "new content"},
				},
				Action: editContent,
			},
			{
				Name:  "map",
				Usage: "Print a text map of the device",
				Flags: []cli.Flag{
					&cli.IntFlag{Name: "width", Usage: "blocks per row", Value: report.BlocksPerRow},
				},
				Action: printMap,
			},
			{
				Name:      "render",
				Usage:     "Draw the device as a PNG",
				ArgsUsage: "OUTPUT_FILE",
				Action:    renderMap,
			},
			{
				Name:      "export",
				Usage:     "Write the directory as CSV to a file, or stdout if none is given",
				ArgsUsage: "[OUTPUT_FILE]",
				Action:    exportDirectory,
			},
			{
				Name:   "check",
				Usage:  "Verify that the device and the directory agree",
				Action: checkConsistency,
			},
			{
				Name:   "profiles",
				Usage:  "List the predefined device profiles",
				Action: listProfiles,
			},
		},
		After: writeMetrics,
	}
}

type session struct {
	sim *simulator.Simulator
	// files is sim with metrics attached. Anything that changes the device
	// goes through here.
	files blocksim.FileManager
}

func openSession(c *cli.Context) (*session, error) {
	capacity := c.Uint("capacity")
	if capacity == 0 && c.IsSet("profile") {
		profile, err := profiles.GetPredefinedProfile(c.String("profile"))
		if err != nil {
			return nil, err
		}
		capacity = profile.Capacity
	}

	sim, err := simulator.New(simulator.Config{
		Capacity:  capacity,
		Store:     store.NewFileStore(c.String("state")),
		LogWriter: c.App.ErrWriter,
	})
	if err != nil {
		return nil, err
	}
	return &session{sim: sim, files: simulator.NewMetricsFileManager(sim)}, nil
}

func requireName(c *cli.Context) (string, error) {
	if c.NArg() != 1 {
		return "", blocksim.ErrInvalidArgument.WithMessage(
			fmt.Sprintf("expected exactly one file name, got %d arguments", c.NArg()))
	}
	return c.Args().First(), nil
}

// parseMethod is like blocksim.ParseMethod but ignores case.
func parseMethod(value string) (blocksim.Method, error) {
	for _, method := range blocksim.Methods() {
		if strings.EqualFold(method.String(), value) {
			return method, nil
		}
	}
	return blocksim.ParseMethod(value)
}

func createFile(c *cli.Context) error {
	name, err := requireName(c)
	if err != nil {
		return err
	}
	method, err := parseMethod(c.String("method"))
	if err != nil {
		return err
	}

	s, err := openSession(c)
	if err != nil {
		return err
	}
	err = s.files.CreateFile(
		name,
		c.Uint("size"),
		method,
		blocksim.FileType(c.String("type")),
		c.String("content"))
	if err != nil {
		return err
	}

	info, _ := s.sim.GetFile(name)
	fmt.Fprintf(c.App.Writer, "%s: %s\n", name, describePlacement(info))
	return nil
}

func deleteFile(c *cli.Context) error {
	name, err := requireName(c)
	if err != nil {
		return err
	}
	s, err := openSession(c)
	if err != nil {
		return err
	}

	deleted, err := s.files.DeleteFile(name)
	if err != nil {
		return err
	}
	if !deleted {
		return blocksim.ErrNotFound.WithMessage(name)
	}
	return nil
}

func describePlacement(info blocksim.FileInfo) string {
	blocks := make([]string, len(info.Blocks))
	for i, block := range info.Blocks {
		blocks[i] = fmt.Sprint(block)
	}

	description := fmt.Sprintf("%s, blocks %s", info.Method, strings.Join(blocks, ","))
	if info.Index != nil {
		description += fmt.Sprintf(", index %d", *info.Index)
	}
	return description
}

func listFiles(c *cli.Context) error {
	s, err := openSession(c)
	if err != nil {
		return err
	}

	files := s.files.GetAllFiles()
	names := make([]string, 0, len(files))
	for name := range files {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		info := files[name]
		fmt.Fprintf(c.App.Writer, "%-20s %-6s %s\n", name, info.Type, describePlacement(info))
	}
	fmt.Fprintf(
		c.App.Writer,
		"%d files, %d of %d blocks free\n",
		len(files),
		s.sim.FreeBlockCount(),
		s.sim.Capacity())
	return nil
}

func printContent(c *cli.Context) error {
	name, err := requireName(c)
	if err != nil {
		return err
	}
	s, err := openSession(c)
	if err != nil {
		return err
	}

	content, found := s.files.GetFileContent(name)
	if !found {
		return blocksim.ErrNotFound.WithMessage(name)
	}
	fmt.Fprintln(c.App.Writer, content)
	return nil
}

func editContent(c *cli.Context) error {
	name, err := requireName(c)
	if err != nil {
		return err
	}

	content := c.String("content")
	if !c.IsSet("content") {
		raw, err := io.ReadAll(c.App.Reader)
		if err != nil {
			return err
		}
		content = string(raw)
	}

	s, err := openSession(c)
	if err != nil {
		return err
	}
	updated, err := s.files.UpdateFileContent(name, content)
	if err != nil {
		return err
	}
	if !updated {
		return blocksim.ErrNotFound.WithMessage(name)
	}
	return nil
}

func printMap(c *cli.Context) error {
	s, err := openSession(c)
	if err != nil {
		return err
	}
	fmt.Fprint(c.App.Writer, report.TextMap(s.files.DeviceSnapshot(), c.Int("width")))
	return nil
}

func renderMap(c *cli.Context) error {
	if c.NArg() != 1 {
		return blocksim.ErrInvalidArgument.WithMessage("expected the path of the PNG to write")
	}
	s, err := openSession(c)
	if err != nil {
		return err
	}
	return report.SaveBlockMapPNG(c.Args().First(), s.files.DeviceSnapshot(), s.files.GetAllFiles())
}

func exportDirectory(c *cli.Context) error {
	s, err := openSession(c)
	if err != nil {
		return err
	}

	if c.NArg() == 0 {
		return report.WriteDirectoryCSV(c.App.Writer, s.files.GetAllFiles())
	}

	output, err := os.Create(c.Args().First())
	if err != nil {
		return err
	}
	defer output.Close()

	if err := report.WriteDirectoryCSV(output, s.files.GetAllFiles()); err != nil {
		return err
	}
	return output.Close()
}

func checkConsistency(c *cli.Context) error {
	s, err := openSession(c)
	if err != nil {
		return err
	}
	if err := s.sim.Verify(); err != nil {
		return err
	}
	fmt.Fprintf(c.App.Writer, "device %s is consistent\n", s.sim.DeviceID())
	return nil
}

func listProfiles(c *cli.Context) error {
	for _, profile := range profiles.All() {
		fmt.Fprintf(c.App.Writer, "%-10s %5d blocks  %s\n", profile.Slug, profile.Capacity, profile.Notes)
	}
	return nil
}

func writeMetrics(c *cli.Context) error {
	path := c.String("metrics-textfile")
	if path == "" {
		return nil
	}
	return prometheus.WriteToTextfile(path, prometheus.DefaultGatherer)
}
