package watcher

import (
	"bufio"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// FilesystemType is a coarse classification of where a file lives. Change
// notifications are unreliable on network and FUSE mounts, so those are
// polled instead.
type FilesystemType int

const (
	FSTypeUnknown FilesystemType = iota
	FSTypeLocal
	FSTypeNFS
	FSTypeSMB
	FSTypeSSHFS
	FSTypeFUSE
)

func (t FilesystemType) String() string {
	switch t {
	case FSTypeLocal:
		return "local"
	case FSTypeNFS:
		return "nfs"
	case FSTypeSMB:
		return "smb"
	case FSTypeSSHFS:
		return "sshfs"
	case FSTypeFUSE:
		return "fuse"
	default:
		return "unknown"
	}
}

const mountTable = "/proc/self/mounts"

// detectFilesystemTypeFunc is swapped out in tests.
var detectFilesystemTypeFunc = DetectFilesystemType

// DetectFilesystemType classifies the mount holding path. The mount table
// is consulted first since it names sshfs; statfs covers systems without
// one. FSTypeUnknown when neither answers.
func DetectFilesystemType(path string) FilesystemType {
	if path == "" {
		return FSTypeUnknown
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return FSTypeUnknown
	}
	if f, err := os.Open(mountTable); err == nil {
		t := lookupMount(f, abs)
		f.Close()
		if t != FSTypeUnknown {
			return t
		}
	}
	if _, err := os.Stat(abs); err != nil {
		abs = filepath.Dir(abs)
	}
	return statfsType(abs)
}

// lookupMount finds the longest mount point prefixing path in a
// /proc/mounts style table.
func lookupMount(r io.Reader, path string) FilesystemType {
	best, bestLen := FSTypeUnknown, -1
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		fields := strings.Fields(sc.Text())
		if len(fields) < 3 {
			continue
		}
		mount := unescapeMount(fields[1])
		if !underMount(path, mount) || len(mount) <= bestLen {
			continue
		}
		best, bestLen = classify(fields[2]), len(mount)
	}
	return best
}

func underMount(path, mount string) bool {
	if mount == "/" {
		return strings.HasPrefix(path, "/")
	}
	return path == mount || strings.HasPrefix(path, mount+"/")
}

// unescapeMount undoes the octal escapes the kernel uses for blanks.
func unescapeMount(s string) string {
	return strings.NewReplacer(`\040`, " ", `\011`, "\t", `\012`, "\n", `\134`, `\`).Replace(s)
}

func classify(fstype string) FilesystemType {
	switch {
	case strings.HasPrefix(fstype, "nfs"):
		return FSTypeNFS
	case fstype == "cifs" || fstype == "smb3" || fstype == "smbfs":
		return FSTypeSMB
	case fstype == "fuse.sshfs":
		return FSTypeSSHFS
	case strings.HasPrefix(fstype, "fuse"):
		return FSTypeFUSE
	default:
		return FSTypeLocal
	}
}

func isRemoteFilesystem(t FilesystemType) bool {
	switch t {
	case FSTypeNFS, FSTypeSMB, FSTypeSSHFS, FSTypeFUSE:
		return true
	}
	return false
}
