package main

import (
	"fmt"
	"io/ioutil"
	"log"
	"os"
	"path/filepath"
	"strconv"

	"github.com/urfave/cli/v2"
	"gopkg.in/yaml.v2"

	"github.com/mit-pdos/go-floppy/common"
	"github.com/mit-pdos/go-floppy/image"
	"github.com/mit-pdos/go-floppy/layout"
	"github.com/mit-pdos/go-floppy/util"
)

func main() {
	config, err := LoadConfig()
	if err != nil {
		log.Fatal(err)
	}
	if err := newApp(config).Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func newApp(config *Config) *cli.App {
	imageFlag := &cli.StringFlag{
		Name:        "image",
		Aliases:     []string{"i"},
		Usage:       "the disk image to operate on",
		Value:       config.Image,
		Destination: &config.Image,
	}
	debugFlag := &cli.Uint64Flag{
		Name:        "debug",
		Usage:       "debug log level",
		Value:       config.Debug,
		Destination: &config.Debug,
	}

	return &cli.App{
		Name:  appName,
		Usage: "create and inspect floppy filesystem images",
		Flags: []cli.Flag{imageFlag, debugFlag},
		Before: func(ctx *cli.Context) error {
			util.Debug = config.Debug
			return nil
		},
		Commands: []*cli.Command{{
			Name:  "init",
			Usage: "create an image of zeroed blocks",
			Flags: []cli.Flag{&cli.Uint64Flag{
				Name:  "blocks",
				Usage: "the image size in blocks",
				Value: common.DefaultBlockCount,
			}},
			Action: func(ctx *cli.Context) error {
				if err := image.InitEmptyDisk(config.Image, ctx.Uint64("blocks")); err != nil {
					return err
				}
				fmt.Println("initialized empty disk")
				return nil
			},
		}, {
			Name:  "write-superblock",
			Usage: "write the default layout to block 0",
			Action: func(ctx *cli.Context) error {
				if err := image.WriteSuperblock(config.Image, layout.Default()); err != nil {
					return err
				}
				fmt.Println("wrote superblock to disk")
				return nil
			},
		}, {
			Name:  "format",
			Usage: "init followed by write-superblock",
			Action: func(ctx *cli.Context) error {
				return image.Format(config.Image)
			},
		}, {
			Name:  "read",
			Usage: "print the superblock",
			Flags: []cli.Flag{&cli.BoolFlag{
				Name:  "yaml",
				Usage: "print the superblock as YAML",
			}},
			Action: func(ctx *cli.Context) error {
				sb, err := image.ReadSuperblock(config.Image)
				if err != nil {
					return err
				}
				if ctx.Bool("yaml") {
					data, err := yaml.Marshal(&sb)
					if err != nil {
						return fmt.Errorf("marshaling superblock to YAML: %w", err)
					}
					_, err = os.Stdout.Write(data)
					return err
				}
				fmt.Print(sb.String())
				return nil
			},
		}, {
			Name:      "inode",
			Usage:     "print one inode of the inode table as YAML",
			ArgsUsage: "INUM",
			Action: func(ctx *cli.Context) error {
				if ctx.NArg() != 1 {
					return fmt.Errorf("inode: expected one INUM argument")
				}
				inum, err := strconv.ParseUint(ctx.Args().First(), 10, 32)
				if err != nil {
					return fmt.Errorf("inode: parsing inode number: %w", err)
				}
				ip, err := image.ReadInode(config.Image, common.Inum(inum))
				if err != nil {
					return err
				}
				data, err := yaml.Marshal(&ip)
				if err != nil {
					return fmt.Errorf("marshaling inode to YAML: %w", err)
				}
				_, err = os.Stdout.Write(data)
				return err
			},
		}, {
			Name:      "dump",
			Usage:     "copy one block into a file",
			ArgsUsage: "BLOCK",
			Flags: []cli.Flag{&cli.StringFlag{
				Name:  "out",
				Usage: "the output file; defaults to block_<BLOCK>.dump in the dump directory",
			}},
			Action: func(ctx *cli.Context) error {
				if ctx.NArg() != 1 {
					return fmt.Errorf("dump: expected one BLOCK argument")
				}
				index, err := strconv.ParseUint(ctx.Args().First(), 10, 64)
				if err != nil {
					return fmt.Errorf("dump: parsing block number: %w", err)
				}
				b, err := image.DumpBlock(config.Image, index)
				if err != nil {
					return err
				}
				out := ctx.String("out")
				if out == "" {
					out = filepath.Join(config.DumpDir, fmt.Sprintf("block_%d.dump", index))
				}
				if err := ioutil.WriteFile(out, b, 0644); err != nil {
					return fmt.Errorf("dump: %w", err)
				}
				fmt.Printf("%d bytes dumped to %s\n", len(b), out)
				return nil
			},
		}, {
			Name:    "allocate",
			Aliases: []string{"test-allocate"},
			Usage:   "allocate the first free data block",
			Action: func(ctx *cli.Context) error {
				bn, err := image.AllocateBlock(config.Image)
				if err != nil {
					return err
				}
				fmt.Println(bn)
				return nil
			},
		}, {
			Name:  "test-mount",
			Usage: "mount and unmount the image",
			Action: func(ctx *cli.Context) error {
				if err := image.CheckMount(config.Image); err != nil {
					return err
				}
				fmt.Println("mounted and unmounted", config.Image)
				return nil
			},
		}},
	}
}
