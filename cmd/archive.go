package cmd

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/zipfx/zipfx/internal/archive/tool"
	"github.com/zipfx/zipfx/internal/archive/tree"
	"github.com/zipfx/zipfx/internal/errs"
	"github.com/zipfx/zipfx/internal/model"
	"github.com/zipfx/zipfx/internal/op"
	"github.com/zipfx/zipfx/internal/session"
)

var (
	password string
	rawList  bool
	level    int
	format   string
)

// withSession opens the archive named by the first argument and runs fn
// on it.
func withSession(args []string, fn func(e *env, s *session.Session) error) error {
	e := newEnv()
	defer e.close()
	s, err := e.open(args[0], password)
	if err != nil {
		return err
	}
	defer func() {
		_ = e.coordinator.Close(s, false)
	}()
	return fn(e, s)
}

func entry(s *session.Session, path string) (*model.FileInfo, error) {
	f, ok := s.FindPath(tree.Clean(path))
	if !ok {
		return nil, errors.Wrap(errs.ObjectNotFound, path)
	}
	return f, nil
}

func printEntries(files []*model.FileInfo) {
	for _, f := range files {
		kind := "-"
		if f.IsFolder {
			kind = "d"
		}
		fmt.Printf("%s %12s %12s %s %s\n", kind, model.Size(f.RawSize), model.Size(f.PackedSize), f.ModTime().Format("2006-01-02 15:04"), f.FileName)
	}
}

var FormatsCmd = &cobra.Command{
	Use:   "formats",
	Short: "Show the formats that can be read and written",
	Run: func(cmd *cobra.Command, args []string) {
		e := newEnv()
		defer e.close()
		r := e.coordinator.Registry()
		compressors := r.CompressorArchives().ToSlice()
		sort.Strings(compressors)
		fmt.Printf("read:        %s\n", strings.Join(r.SupportedReadFormats(), " "))
		fmt.Printf("write:       %s\n", strings.Join(r.SupportedWriteFormats(), " "))
		fmt.Printf("compressors: %s\n", strings.Join(compressors, " "))
		for _, p := range r.Providers() {
			ext := p.Extension()
			keys := make([]string, 0, len(ext.Options))
			for _, o := range ext.Options {
				keys = append(keys, o.Key)
			}
			fmt.Printf("provider %-8s enabled=%-5t extension=%s %s\n", p.Name(), p.IsEnabled(), ext.Kind, strings.Join(keys, ","))
		}
	},
}

var ListCmd = &cobra.Command{
	Use:   "list <archive> [folder]",
	Short: "List the entries of an archive",
	Args:  cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		if rawList {
			// what the provider stores, without synthesized folders
			e := newEnv()
			defer e.close()
			rs, ok := e.coordinator.Registry().ReadServiceFor(args[0])
			if !ok {
				return errors.Wrap(errs.UnknownArchiveFormat, args[0])
			}
			files, err := tool.ListFilesAt(context.Background(), rs, "", args[0])
			if err != nil {
				return err
			}
			printEntries(files)
			return nil
		}
		return withSession(args, func(e *env, s *session.Session) error {
			if len(args) > 1 {
				f, err := entry(s, args[1])
				if err != nil {
					return err
				}
				s.NavigateInto(f)
			}
			printEntries(s.FilesAtCurrentLevel())
			return nil
		})
	},
}

var AllCmd = &cobra.Command{
	Use:   "tree <archive>",
	Short: "List every entry of an archive, folders first by level",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withSession(args, func(e *env, s *session.Session) error {
			printEntries(s.Files())
			return nil
		})
	},
}

var ExtractCmd = &cobra.Command{
	Use:   "extract <archive> <dest dir> [entry]",
	Short: "Extract the whole archive or one entry",
	Args:  cobra.RangeArgs(2, 3),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withSession(args, func(e *env, s *session.Session) error {
			var task *op.Task[*op.ExtractReport]
			if len(args) > 2 {
				f, err := entry(s, args[2])
				if err != nil {
					return err
				}
				task = e.coordinator.ExtractEntry(context.Background(), s, f, args[1])
			} else {
				task = e.coordinator.ExtractAll(context.Background(), s, args[1])
			}
			report, err := wait(task)
			if err != nil {
				return err
			}
			fmt.Printf("extracted %d entries\n", len(report.Succeeded))
			for name, reason := range report.Failed {
				fmt.Printf("failed %s: %s\n", name, reason)
			}
			return nil
		})
	},
}

var AddCmd = &cobra.Command{
	Use:   "add <archive> <folder in archive> <file>...",
	Short: "Add local files or directories to an archive",
	Args:  cobra.MinimumNArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withSession(args, func(e *env, s *session.Session) error {
			var files []*model.FileInfo
			for _, src := range args[2:] {
				staged, err := op.StagePath(src, args[1])
				if err != nil {
					return err
				}
				files = append(files, staged...)
			}
			_, err := wait(e.coordinator.AddEntries(context.Background(), s, files...))
			return err
		})
	},
}

var DeleteCmd = &cobra.Command{
	Use:   "delete <archive> <entry>",
	Short: "Delete an entry, and everything below a folder",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withSession(args, func(e *env, s *session.Session) error {
			f, err := entry(s, args[1])
			if err != nil {
				return err
			}
			if err := e.coordinator.StartDelete(s, f); err != nil {
				return err
			}
			_, err = wait(e.coordinator.ConfirmDelete(context.Background(), s))
			return err
		})
	},
}

func transferCmd(use, short string, move bool) *cobra.Command {
	return &cobra.Command{
		Use:   use + " <archive> <entry> <dest folder>",
		Short: short,
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(args, func(e *env, s *session.Session) error {
				f, err := entry(s, args[1])
				if err != nil {
					return err
				}
				start := e.coordinator.StartCopy
				if move {
					start = e.coordinator.StartMove
				}
				if err := start(s, f); err != nil {
					return err
				}
				_, err = wait(e.coordinator.Paste(context.Background(), s, args[2]))
				return err
			})
		},
	}
}

var TestCmd = &cobra.Command{
	Use:   "test <archive>",
	Short: "Verify the integrity of an archive",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withSession(args, func(e *env, s *session.Session) error {
			if _, err := wait(e.coordinator.TestIntegrity(context.Background(), s)); err != nil {
				return err
			}
			fmt.Printf("%s: ok\n", s.Info.Path)
			return nil
		})
	},
}

var CreateCmd = &cobra.Command{
	Use:   "create <archive> <file>...",
	Short: "Create an archive from local files or directories",
	Args:  cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		e := newEnv()
		defer e.close()
		var files []*model.FileInfo
		for _, src := range args[1:] {
			staged, err := op.StagePath(src, "")
			if err != nil {
				return err
			}
			files = append(files, staged...)
		}
		info := model.NewArchiveInfo(args[0])
		if format != "" {
			info.Format = format
		}
		if cmd.Flags().Changed("level") {
			info.CompressionLevel = level
		}
		if password != "" {
			info.SetProperty(model.PropPassword, password)
		}
		s, err := wait(e.coordinator.Create(context.Background(), info, files...))
		if err != nil {
			return err
		}
		_ = e.recent.Add(s.Info.Path)
		fmt.Printf("created %s with %d entries\n", s.Info.Path, s.Len())
		return e.coordinator.Close(s, false)
	},
}

var RecentCmd = &cobra.Command{
	Use:   "recent",
	Short: "Show recently opened archives",
	RunE: func(cmd *cobra.Command, args []string) error {
		Init()
		paths, err := recentList().Load()
		if err != nil {
			return err
		}
		for _, p := range paths {
			fmt.Println(p)
		}
		return nil
	},
}

func init() {
	for _, c := range []*cobra.Command{ListCmd, AllCmd, ExtractCmd, AddCmd, DeleteCmd, TestCmd, CreateCmd} {
		c.Flags().StringVarP(&password, "password", "p", "", "archive password")
	}
	ListCmd.Flags().BoolVar(&rawList, "raw", false, "list what the archive stores, without implied folders")
	CreateCmd.Flags().IntVarP(&level, "level", "l", model.DefaultCompressionLevel, "compression level 0-9")
	CreateCmd.Flags().StringVarP(&format, "format", "f", "", "archive format, from the file name when empty")

	RootCmd.AddCommand(FormatsCmd, ListCmd, AllCmd, ExtractCmd, AddCmd, DeleteCmd, TestCmd, CreateCmd, RecentCmd,
		transferCmd("cp", "Copy a file into another folder of the same archive", false),
		transferCmd("mv", "Move a file into another folder of the same archive", true),
	)
}
