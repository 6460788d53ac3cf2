package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"
	"unicode"

	"github.com/fatih/color"

	"github.com/vfsim/vfsim/identity"
	"github.com/vfsim/vfsim/persist"
	"github.com/vfsim/vfsim/vfs"
)

// shell is the interactive command loop. Commands map 1:1 onto filesystem
// manager operations; the shell only parses lines and presents results,
// the core never prints.
type shell struct {
	fs      *vfs.FileSystem
	users   *identity.Manager
	store   *persist.Store
	history *vfs.MemoryRecorder
	out     io.Writer

	dirColor  *color.Color
	linkColor *color.Color
	errColor  *color.Color
}

func newShell(fs *vfs.FileSystem, users *identity.Manager, store *persist.Store, history *vfs.MemoryRecorder, out io.Writer) *shell {
	return &shell{
		fs:        fs,
		users:     users,
		store:     store,
		history:   history,
		out:       out,
		dirColor:  color.New(color.FgCyan, color.Bold),
		linkColor: color.New(color.FgMagenta),
		errColor:  color.New(color.FgRed),
	}
}

// Run reads commands from in until exit or EOF.
func (s *shell) Run(in io.Reader) error {
	fmt.Fprintln(s.out, "Welcome to vfsim. Type help to list commands.")
	sc := bufio.NewScanner(in)
	for {
		fmt.Fprintf(s.out, "%s:%s$ ", s.users.Current().Username, s.fs.CurrentPath())
		if !sc.Scan() {
			fmt.Fprintln(s.out)
			return sc.Err()
		}
		args := splitArgs(sc.Text())
		if len(args) == 0 {
			continue
		}
		if quit := s.dispatch(args[0], args[1:]); quit {
			return nil
		}
	}
}

func (s *shell) dispatch(cmd string, args []string) (quit bool) {
	switch cmd {
	case "pwd":
		fmt.Fprintln(s.out, s.fs.CurrentPath())
	case "ls":
		s.cmdLs(args)
	case "cd":
		s.cmdCd(args)
	case "mkdir":
		s.cmdMkdir(args)
	case "touch":
		s.cmdTouch(args)
	case "cat":
		s.cmdCat(args)
	case "write":
		s.cmdWrite(args)
	case "rm":
		s.cmdRm(args)
	case "find":
		s.cmdFind(args)
	case "grep":
		s.cmdGrep(args)
	case "ln":
		s.cmdLn(args)
	case "stat":
		s.cmdStat(args)
	case "du":
		s.cmdDu(args)
	case "su":
		s.cmdSu(args)
	case "whoami":
		fmt.Fprintln(s.out, s.users.Current())
	case "useradd":
		s.cmdUseradd(args)
	case "userdel":
		s.cmdUserdel(args)
	case "history":
		s.cmdHistory()
	case "save":
		s.cmdSave()
	case "load":
		s.cmdLoad()
	case "help", "?":
		s.cmdHelp()
	case "exit", "quit":
		fmt.Fprintln(s.out, "Goodbye!")
		return true
	default:
		s.printError(fmt.Errorf("unknown command %q, type help to list commands", cmd))
	}
	return false
}

func (s *shell) printError(err error) {
	fmt.Fprintf(s.out, "%s %v\n", s.errColor.Sprint("Error:"), err)
}

func (s *shell) cmdLs(args []string) {
	long := false
	path := "."
	for _, a := range args {
		if a == "-l" {
			long = true
		} else {
			path = a
		}
	}
	entries, err := s.fs.ListDirectory(path)
	if err != nil {
		s.printError(err)
		return
	}
	for _, e := range entries {
		name := e.Name()
		switch e.Kind() {
		case vfs.KindDirectory:
			name = s.dirColor.Sprint(name)
		case vfs.KindSymlink:
			name = s.linkColor.Sprint(name) + " -> " + e.TargetPath()
		}
		if long {
			fmt.Fprintf(s.out, "%c%s %-12s %8d %s\n", kindChar(e.Kind()), e.ACL().Mode(),
				e.Owner()+":"+e.Group(), e.Size(), name)
		} else {
			fmt.Fprintln(s.out, name)
		}
	}
}

func kindChar(k vfs.NodeKind) byte {
	switch k {
	case vfs.KindDirectory:
		return 'd'
	case vfs.KindSymlink:
		return 'l'
	default:
		return '-'
	}
}

func (s *shell) cmdCd(args []string) {
	path := "/"
	if len(args) > 0 {
		path = args[0]
	}
	if err := s.fs.ChangeDirectory(path); err != nil {
		s.printError(err)
	}
}

func (s *shell) cmdMkdir(args []string) {
	if len(args) == 0 {
		s.printError(errors.New("usage: mkdir DIRECTORY"))
		return
	}
	if _, err := s.fs.CreateDirectory(args[0]); err != nil {
		s.printError(err)
	}
}

func (s *shell) cmdTouch(args []string) {
	if len(args) == 0 {
		s.printError(errors.New("usage: touch FILE"))
		return
	}
	if _, err := s.fs.CreateFile(args[0], nil); err != nil {
		s.printError(err)
	}
}

func (s *shell) cmdCat(args []string) {
	if len(args) == 0 {
		s.printError(errors.New("usage: cat FILE"))
		return
	}
	content, err := s.fs.ReadFile(args[0])
	if err != nil {
		s.printError(err)
		return
	}
	fmt.Fprintln(s.out, string(content))
}

func (s *shell) cmdWrite(args []string) {
	if len(args) == 0 {
		s.printError(errors.New(`usage: write FILE "content"`))
		return
	}
	content := strings.Join(args[1:], " ")
	if err := s.fs.WriteFile(args[0], []byte(content)); err != nil {
		s.printError(err)
	}
}

func (s *shell) cmdRm(args []string) {
	if len(args) == 0 {
		s.printError(errors.New("usage: rm PATH"))
		return
	}
	if err := s.fs.Delete(args[0]); err != nil {
		s.printError(err)
	}
}

func (s *shell) cmdFind(args []string) {
	if len(args) == 0 {
		s.printError(errors.New("usage: find PATTERN [PATH]"))
		return
	}
	start := "."
	if len(args) > 1 {
		start = args[1]
	}
	matches, err := s.fs.SearchByName(args[0], start)
	if err != nil {
		s.printError(err)
		return
	}
	for _, m := range matches {
		fmt.Fprintln(s.out, m)
	}
}

func (s *shell) cmdGrep(args []string) {
	if len(args) == 0 {
		s.printError(errors.New("usage: grep TEXT [PATH]"))
		return
	}
	start := "."
	if len(args) > 1 {
		start = args[1]
	}
	matches, err := s.fs.SearchByContent(args[0], start)
	if err != nil {
		s.printError(err)
		return
	}
	for _, m := range matches {
		fmt.Fprintln(s.out, m)
	}
}

func (s *shell) cmdLn(args []string) {
	if len(args) != 3 || args[0] != "-s" {
		s.printError(errors.New("usage: ln -s TARGET LINK"))
		return
	}
	if _, err := s.fs.CreateSymlink(args[2], args[1]); err != nil {
		s.printError(err)
	}
}

func (s *shell) cmdStat(args []string) {
	if len(args) == 0 {
		s.printError(errors.New("usage: stat PATH"))
		return
	}
	node, err := s.fs.Stat(args[0])
	if err != nil {
		s.printError(err)
		return
	}
	fmt.Fprintf(s.out, "  Path: %s\n", node.FullPath())
	fmt.Fprintf(s.out, "  Kind: %s\n", node.Kind())
	fmt.Fprintf(s.out, "  Size: %d\n", node.Size())
	fmt.Fprintf(s.out, "Access: %s\n", node.ACL())
	if node.Kind() == vfs.KindSymlink {
		fmt.Fprintf(s.out, "Target: %s\n", node.TargetPath())
	}
	fmt.Fprintf(s.out, "    ID: %s\n", node.ID())
	fmt.Fprintf(s.out, "Create: %s\n", node.CreatedAt().Format("2006-01-02 15:04:05"))
	fmt.Fprintf(s.out, "Modify: %s\n", node.ModifiedAt().Format("2006-01-02 15:04:05"))
	fmt.Fprintf(s.out, "Access: %s\n", node.AccessedAt().Format("2006-01-02 15:04:05"))
}

func (s *shell) cmdDu(args []string) {
	path := "."
	if len(args) > 0 {
		path = args[0]
	}
	size, err := s.fs.DiskUsage(path)
	if err != nil {
		s.printError(err)
		return
	}
	fmt.Fprintf(s.out, "%d\t%s\n", size, path)
}

func (s *shell) cmdSu(args []string) {
	if len(args) == 0 {
		s.printError(errors.New("usage: su USERNAME"))
		return
	}
	if err := s.users.SwitchUser(args[0]); err != nil {
		s.printError(err)
	}
}

func (s *shell) cmdUseradd(args []string) {
	if len(args) == 0 {
		s.printError(errors.New("usage: useradd USERNAME [GROUP...]"))
		return
	}
	id, err := s.users.AddUser(args[0], s.users.NextUID(), args[1:]...)
	if err != nil {
		s.printError(err)
		return
	}
	fmt.Fprintf(s.out, "Added user %s\n", id)
}

func (s *shell) cmdUserdel(args []string) {
	if len(args) == 0 {
		s.printError(errors.New("usage: userdel USERNAME"))
		return
	}
	if !s.users.RemoveUser(args[0]) {
		s.printError(fmt.Errorf("cannot remove user %q", args[0]))
	}
}

func (s *shell) cmdHistory() {
	for _, ev := range s.history.Events() {
		status := "SUCCESS"
		if !ev.Success {
			status = "FAILED"
		}
		line := fmt.Sprintf("[%s] %s %s %s - %s",
			ev.At.Format("2006-01-02 15:04:05"), ev.User, ev.Op, ev.Path, status)
		if ev.Detail != "" {
			line += fmt.Sprintf(" (%s)", ev.Detail)
		}
		fmt.Fprintln(s.out, line)
	}
}

func (s *shell) cmdSave() {
	if err := s.store.Save(s.fs.Snapshot()); err != nil {
		s.printError(err)
		return
	}
	fmt.Fprintf(s.out, "State saved to %s\n", s.store.Path())
}

func (s *shell) cmdLoad() {
	snap, err := s.store.Load()
	if err != nil {
		s.printError(err)
		return
	}
	if err := s.fs.Restore(snap); err != nil {
		s.printError(err)
		return
	}
	fmt.Fprintf(s.out, "State loaded from %s\n", s.store.Path())
}

func (s *shell) cmdHelp() {
	fmt.Fprint(s.out, `Commands:
  pwd                      Print current working directory
  ls [-l] [PATH]           List directory contents
  cd [PATH]                Change directory (default /)
  mkdir DIRECTORY          Create a directory
  touch FILE               Create an empty file
  cat FILE                 Print file contents
  write FILE "content"     Write content to a file (created if missing)
  rm PATH                  Delete a file, symlink, or directory tree
  find PATTERN [PATH]      Search names by shell glob (* and ?)
  grep TEXT [PATH]         Search file contents for a substring
  ln -s TARGET LINK        Create a symbolic link
  stat PATH                Show node details (does not follow a final symlink)
  du [PATH]                Show recursive size in bytes
  su USERNAME              Switch user (only root may switch to others)
  whoami                   Show the current user
  useradd NAME [GROUP...]  Create a user
  userdel NAME             Remove a user
  history                  Show the operation audit log
  save                     Save encrypted state snapshot
  load                     Restore state from snapshot
  exit                     Leave the shell
`)
}

// splitArgs tokenizes a command line, honoring double quotes so quoted
// arguments may contain spaces. Quotes themselves are stripped.
func splitArgs(line string) []string {
	var args []string
	var cur strings.Builder
	inQuote := false
	pending := false
	for _, r := range line {
		switch {
		case r == '"':
			inQuote = !inQuote
			pending = true
		case unicode.IsSpace(r) && !inQuote:
			if pending {
				args = append(args, cur.String())
				cur.Reset()
				pending = false
			}
		default:
			cur.WriteRune(r)
			pending = true
		}
	}
	if pending {
		args = append(args, cur.String())
	}
	return args
}
