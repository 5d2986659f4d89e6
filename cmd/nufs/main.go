package main

import (
	"fmt"
	"io"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/urfave/cli/v2"
	"golang.org/x/exp/slices"
	"golang.org/x/sys/unix"

	"github.com/mit-pdos/go-nufs/common"
	"github.com/mit-pdos/go-nufs/config"
	"github.com/mit-pdos/go-nufs/filedisk"
	"github.com/mit-pdos/go-nufs/fs"
	"github.com/mit-pdos/go-nufs/util"
)

func main() {
	app := cli.App{
		Name:  "nufs",
		Usage: "inspect and modify a nufs image",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "YAML configuration file",
				Value:   "nufs.yaml",
			},
			&cli.StringFlag{
				Name:    "image",
				Aliases: []string{"i"},
				Usage:   "image file; overrides the configuration",
			},
		},
		Commands: []*cli.Command{{
			Name:  "mkfs",
			Usage: "format the image, discarding its contents",
			Action: func(ctx *cli.Context) error {
				c, err := loadConfig(ctx)
				if err != nil {
					return err
				}
				d, err := filedisk.NewMmapDisk(c.Image, common.NBLOCKS)
				if err != nil {
					return fmt.Errorf("opening image: %w", err)
				}
				fsys, err := fs.Mkfs(d, c.Options())
				if err != nil {
					d.Close()
					return err
				}
				defer fsys.Close()
				fmt.Println(fsys.Statfs().UUID)
				return nil
			},
		}, {
			Name:  "info",
			Usage: "print the image's identity and free space",
			Action: withFs(func(fsys *fs.Fs, ctx *cli.Context) error {
				st := fsys.Statfs()
				fmt.Printf("uuid:   %v\nblocks: %d/%d free (%d bytes each)\ninodes: %d/%d free\n",
					st.UUID, st.BlocksFree, st.Blocks, st.BlockSize, st.InodesFree, st.Inodes)
				return nil
			}),
		}, {
			Name:      "ls",
			Usage:     "list a directory",
			ArgsUsage: "[path]",
			Action: withFs(func(fsys *fs.Fs, ctx *cli.Context) error {
				path := ctx.Args().First()
				if path == "" {
					path = "/"
				}
				names, err := fsys.List(path)
				if err != nil {
					return err
				}
				slices.Sort(names)
				for _, name := range names {
					fmt.Println(name)
				}
				return nil
			}),
		}, {
			Name:      "stat",
			Usage:     "print a file's attributes",
			ArgsUsage: "path",
			Action: withFs(func(fsys *fs.Fs, ctx *cli.Context) error {
				path, err := arg(ctx, 0)
				if err != nil {
					return err
				}
				attr, err := fsys.Stat(path)
				if err != nil {
					return err
				}
				kind := "file"
				if attr.Mode&unix.S_IFMT == unix.S_IFDIR {
					kind = "directory"
				}
				fmt.Printf("inode: %d (%s)\nmode:  %#o\nsize:  %d\nlinks: %d\natime: %v\nmtime: %v\n",
					attr.Inum, kind, attr.Mode, attr.Size, attr.Nlink,
					attr.Atime.Format(time.RFC3339), attr.Mtime.Format(time.RFC3339))
				return nil
			}),
		}, {
			Name:      "cat",
			Usage:     "write a file's contents to stdout",
			ArgsUsage: "path",
			Action: withFs(func(fsys *fs.Fs, ctx *cli.Context) error {
				path, err := arg(ctx, 0)
				if err != nil {
					return err
				}
				attr, err := fsys.Stat(path)
				if err != nil {
					return err
				}
				data, err := fsys.Read(path, attr.Size, 0)
				if err != nil {
					return err
				}
				_, err = os.Stdout.Write(data)
				return err
			}),
		}, {
			Name:      "put",
			Aliases:   []string{"write"},
			Usage:     "copy a local file (or stdin) into the image",
			ArgsUsage: "path [local-file]",
			Flags: []cli.Flag{
				&cli.Uint64Flag{
					Name:  "offset",
					Usage: "byte offset to write at",
				},
			},
			Action: withFs(func(fsys *fs.Fs, ctx *cli.Context) error {
				path, err := arg(ctx, 0)
				if err != nil {
					return err
				}
				var r io.Reader = os.Stdin
				if src := ctx.Args().Get(1); src != "" {
					f, err := os.Open(src)
					if err != nil {
						return err
					}
					defer f.Close()
					r = f
				}
				data, err := io.ReadAll(r)
				if err != nil {
					return fmt.Errorf("reading input: %w", err)
				}
				if !fsys.Access(path) {
					if err := fsys.Mknod(path, unix.S_IFREG|0644); err != nil {
						return err
					}
				}
				_, err = fsys.Write(path, data, ctx.Uint64("offset"))
				return err
			}),
		}, {
			Name:      "mknod",
			Aliases:   []string{"touch"},
			Usage:     "create an empty file, or set the times of an existing one",
			ArgsUsage: "path",
			Flags: []cli.Flag{
				&cli.StringFlag{
					Name:  "mode",
					Usage: "octal permission bits",
					Value: "0644",
				},
				&cli.Int64Flag{
					Name:  "time",
					Usage: "unix time to set as atime and mtime (default now)",
				},
			},
			Action: withFs(func(fsys *fs.Fs, ctx *cli.Context) error {
				path, err := arg(ctx, 0)
				if err != nil {
					return err
				}
				if fsys.Access(path) {
					t := time.Now()
					if ctx.IsSet("time") {
						t = time.Unix(ctx.Int64("time"), 0)
					}
					return fsys.SetTime(path, t, t)
				}
				mode, err := parseMode(ctx.String("mode"))
				if err != nil {
					return err
				}
				return fsys.Mknod(path, mode)
			}),
		}, {
			Name:      "mkdir",
			Usage:     "create a directory",
			ArgsUsage: "path",
			Flags: []cli.Flag{
				&cli.StringFlag{
					Name:  "mode",
					Usage: "octal permission bits",
					Value: "0755",
				},
			},
			Action: withFs(func(fsys *fs.Fs, ctx *cli.Context) error {
				path, err := arg(ctx, 0)
				if err != nil {
					return err
				}
				mode, err := parseMode(ctx.String("mode"))
				if err != nil {
					return err
				}
				return fsys.Mkdir(path, mode)
			}),
		}, {
			Name:      "rm",
			Aliases:   []string{"unlink", "rmdir"},
			Usage:     "remove a name; a directory must be empty",
			ArgsUsage: "path",
			Action: withFs(func(fsys *fs.Fs, ctx *cli.Context) error {
				path, err := arg(ctx, 0)
				if err != nil {
					return err
				}
				return fsys.Unlink(path)
			}),
		}, {
			Name:      "ln",
			Usage:     "add the name new for the file at existing",
			ArgsUsage: "existing new",
			Action: withFs(func(fsys *fs.Fs, ctx *cli.Context) error {
				existing, err := arg(ctx, 0)
				if err != nil {
					return err
				}
				name, err := arg(ctx, 1)
				if err != nil {
					return err
				}
				return fsys.Link(name, existing)
			}),
		}, {
			Name:      "mv",
			Aliases:   []string{"rename"},
			Usage:     "rename a file or directory",
			ArgsUsage: "from to",
			Action: withFs(func(fsys *fs.Fs, ctx *cli.Context) error {
				from, err := arg(ctx, 0)
				if err != nil {
					return err
				}
				to, err := arg(ctx, 1)
				if err != nil {
					return err
				}
				return fsys.Rename(from, to)
			}),
		}, {
			Name:      "truncate",
			Usage:     "set a file's size",
			ArgsUsage: "path size",
			Action: withFs(func(fsys *fs.Fs, ctx *cli.Context) error {
				path, err := arg(ctx, 0)
				if err != nil {
					return err
				}
				s, err := arg(ctx, 1)
				if err != nil {
					return err
				}
				size, err := strconv.ParseUint(s, 10, 64)
				if err != nil {
					return fmt.Errorf("parsing size: %w", err)
				}
				return fsys.Truncate(path, size)
			}),
		}, {
			Name:  "dump",
			Usage: "print the bitmaps, inodes and directories",
			Action: withFs(func(fsys *fs.Fs, ctx *cli.Context) error {
				return fsys.Dump(os.Stdout)
			}),
		}},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func loadConfig(ctx *cli.Context) (*config.Config, error) {
	c, err := config.Load(ctx.String("config"))
	if err != nil {
		return nil, err
	}
	if image := ctx.String("image"); image != "" {
		c.Image = image
	}
	util.Debug = c.Debug
	return c, nil
}

func withFs(f func(*fs.Fs, *cli.Context) error) cli.ActionFunc {
	return func(ctx *cli.Context) error {
		c, err := loadConfig(ctx)
		if err != nil {
			return err
		}
		fsys, err := fs.OpenFile(c.Image, c.Options())
		if err != nil {
			return fmt.Errorf("opening %s: %w", c.Image, err)
		}
		defer fsys.Close()
		if err := f(fsys, ctx); err != nil {
			return fmt.Errorf("%w (errno %d)", err, fs.Errno(err))
		}
		return nil
	}
}

func arg(ctx *cli.Context, i int) (string, error) {
	a := ctx.Args().Get(i)
	if a == "" {
		return "", fmt.Errorf("%s: missing argument %d (usage: %s)",
			ctx.Command.Name, i+1, ctx.Command.ArgsUsage)
	}
	return a, nil
}

func parseMode(s string) (uint32, error) {
	m, err := strconv.ParseUint(s, 8, 32)
	if err != nil {
		return 0, fmt.Errorf("parsing mode %q: %w", s, err)
	}
	return uint32(m), nil
}
