package cmd

import (
	"fmt"
	"os"
	"strconv"

	"github.com/urfave/cli/v2"

	"github.com/pithecene-io/ferry/cli/render"
	"github.com/pithecene-io/ferry/client"
)

// FilesResponse is the ls command's payload.
type FilesResponse struct {
	Files []string `json:"files"`
	Count int      `json:"count"`
}

// TableHeaders implements render.Tabular.
func (r FilesResponse) TableHeaders() []string { return []string{"NAME"} }

// TableRows implements render.Tabular.
func (r FilesResponse) TableRows() [][]string {
	rows := make([][]string, 0, len(r.Files))
	for _, f := range r.Files {
		rows = append(rows, []string{f})
	}
	return rows
}

// UploadResponse is the put command's payload.
type UploadResponse struct {
	StoredName string `json:"stored_name"`
	Size       int64  `json:"size"`
}

// TableHeaders implements render.Tabular.
func (r UploadResponse) TableHeaders() []string { return []string{"STORED NAME", "SIZE"} }

// TableRows implements render.Tabular.
func (r UploadResponse) TableRows() [][]string {
	return [][]string{{r.StoredName, strconv.FormatInt(r.Size, 10)}}
}

// LsCommand returns the file listing command.
func LsCommand() *cli.Command {
	return &cli.Command{
		Name:  "ls",
		Usage: "List stored files",
		Flags: append([]cli.Flag{AddrFlag}, OutputFlags()...),
		Action: func(c *cli.Context) error {
			names, err := client.New(c.String("addr")).List(c.Context)
			if err != nil {
				return cli.Exit(err.Error(), 1)
			}
			r, err := render.NewRenderer(c)
			if err != nil {
				return err
			}
			return r.Render(FilesResponse{Files: names, Count: len(names)})
		},
	}
}

// GetCommand returns the file download command.
func GetCommand() *cli.Command {
	return &cli.Command{
		Name:      "get",
		Usage:     "Download a stored file",
		ArgsUsage: "<name>",
		Flags: []cli.Flag{
			AddrFlag,
			&cli.StringFlag{
				Name:    "out",
				Aliases: []string{"o"},
				Usage:   "Output path (default: the stored name)",
			},
		},
		Action: func(c *cli.Context) error {
			name := c.Args().First()
			if name == "" {
				return cli.Exit("get requires a file name", 2)
			}
			data, err := client.New(c.String("addr")).Get(c.Context, name)
			if err != nil {
				return cli.Exit(err.Error(), 1)
			}
			out := c.String("out")
			if out == "" {
				out = name
			}
			if err := os.WriteFile(out, data, 0o644); err != nil {
				return cli.Exit(fmt.Sprintf("write %s: %v", out, err), 1)
			}
			fmt.Fprintf(c.App.Writer, "%s (%d bytes)\n", out, len(data))
			return nil
		},
	}
}

// PutCommand returns the file upload command.
func PutCommand() *cli.Command {
	return &cli.Command{
		Name:      "put",
		Usage:     "Upload a file",
		ArgsUsage: "<path>",
		Flags:     append([]cli.Flag{AddrFlag}, OutputFlags()...),
		Action: func(c *cli.Context) error {
			path := c.Args().First()
			if path == "" {
				return cli.Exit("put requires a file path", 2)
			}
			info, err := os.Stat(path)
			if err != nil {
				return cli.Exit(err.Error(), 1)
			}
			stored, err := client.New(c.String("addr")).UploadFile(c.Context, path)
			if err != nil {
				return cli.Exit(err.Error(), 1)
			}
			r, err := render.NewRenderer(c)
			if err != nil {
				return err
			}
			return r.Render(UploadResponse{StoredName: stored, Size: info.Size()})
		},
	}
}

// RmCommand returns the file deletion command.
func RmCommand() *cli.Command {
	return &cli.Command{
		Name:      "rm",
		Usage:     "Delete a stored file",
		ArgsUsage: "<name>",
		Flags:     []cli.Flag{AddrFlag},
		Action: func(c *cli.Context) error {
			name := c.Args().First()
			if name == "" {
				return cli.Exit("rm requires a file name", 2)
			}
			if err := client.New(c.String("addr")).Delete(c.Context, name); err != nil {
				return cli.Exit(err.Error(), 1)
			}
			fmt.Fprintf(c.App.Writer, "deleted %s\n", name)
			return nil
		},
	}
}
