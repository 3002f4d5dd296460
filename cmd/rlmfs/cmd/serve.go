package cmd

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/rlmfs/rlm/internal/vfs"
)

// newServeCmd exposes the virtual filesystem projection over a simple
// line-based stdio protocol: no kernel FUSE binding lives in this
// dependency corpus, so the projection is driven directly rather than
// mounted. A host that wants a real mount point can wrap vfs.FileSystem
// with its own OS-specific adapter; that binding is collaborator
// surface, not core.
//
// Protocol, one request per line, one reply per line:
//
//	LS <inode>                 -> name:inode:[d] ...
//	CAT <inode>                 -> raw bytes, newline-terminated
//	WRITE <inode> <text...>     -> OK or an error line
//	STAT <inode>                -> inode:isdir:size
func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the virtual filesystem projection over stdio",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd)
		},
	}
	return cmd
}

func runServe(cmd *cobra.Command) error {
	ctx := cmd.Context()

	a, err := newApp(configDir, wallClock)
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()

	a.Logger.Info("vfs_serve_started")

	in := bufio.NewScanner(cmd.InOrStdin())
	out := cmd.OutOrStdout()
	for in.Scan() {
		line := strings.TrimSpace(in.Text())
		if line == "" {
			continue
		}
		reply := dispatch(ctx, a.VFS, line)
		fmt.Fprintln(out, reply)
	}
	if err := in.Err(); err != nil && err != io.EOF {
		return err
	}
	return nil
}

func dispatch(ctx context.Context, fs *vfs.FileSystem, line string) string {
	fields := strings.SplitN(line, " ", 3)
	verb := strings.ToUpper(fields[0])

	switch verb {
	case "LS":
		if len(fields) < 2 {
			return "ERR missing inode"
		}
		inode, err := strconv.ParseUint(fields[1], 10, 64)
		if err != nil {
			return "ERR bad inode"
		}
		entries, err := fs.ReadDir(ctx, inode)
		if err != nil {
			return "ERR " + err.Error()
		}
		parts := make([]string, len(entries))
		for i, e := range entries {
			dirFlag := ""
			if e.IsDir {
				dirFlag = ":d"
			}
			parts[i] = fmt.Sprintf("%s:%d%s", e.Name, e.Inode, dirFlag)
		}
		return strings.Join(parts, " ")

	case "STAT":
		if len(fields) < 2 {
			return "ERR missing inode"
		}
		inode, err := strconv.ParseUint(fields[1], 10, 64)
		if err != nil {
			return "ERR bad inode"
		}
		node, err := fs.Attr(ctx, inode)
		if err != nil {
			return "ERR " + err.Error()
		}
		return fmt.Sprintf("%d:%t:%d", node.Inode, node.IsDir, node.Size)

	case "CAT":
		if len(fields) < 2 {
			return "ERR missing inode"
		}
		inode, err := strconv.ParseUint(fields[1], 10, 64)
		if err != nil {
			return "ERR bad inode"
		}
		data, err := fs.Read(ctx, inode)
		if err != nil {
			return "ERR " + err.Error()
		}
		return string(data)

	case "WRITE":
		if len(fields) < 3 {
			return "ERR missing inode or payload"
		}
		inode, err := strconv.ParseUint(fields[1], 10, 64)
		if err != nil {
			return "ERR bad inode"
		}
		if err := fs.Write(ctx, inode, []byte(fields[2])); err != nil {
			return "ERR " + err.Error()
		}
		return "OK"

	default:
		slog.Debug("vfs_serve_unknown_verb", slog.String("verb", verb))
		return "ERR unknown verb"
	}
}
