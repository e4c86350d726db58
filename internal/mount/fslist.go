// Package mount implements the Image Mount Service (component E): listing
// the sub-files inside a disk image (MBR-partitioned or a bare
// filesystem) so the Delivery API can serve individual files out of a
// mounted image without unpacking it to disk. Grounded in fslist.rs's
// iterative stack-based FAT traversal and its MBR-parse-failure fallback.
package mount

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/diskfs/go-diskfs"
	"github.com/diskfs/go-diskfs/filesystem"
	"github.com/gabriel-vasile/mimetype"
	"github.com/gisst-archive/gisst/internal/apierr"
)

// depthLimit bounds directory-traversal recursion, guarding against a
// maliciously or corruptly crafted image with a cyclic directory table.
const depthLimit = 1024

// Entry is one file found inside a mounted image.
type Entry struct {
	Path      string // slash-separated path relative to the partition root
	Size      int64
	MIME      string
	Partition int // 0 for a bare (non-partitioned) image
}

// List opens the image at path and returns every file entry across all
// partitions (or the single synthetic partition 0 if the MBR fails to
// parse — the original's conservative fallback, since a raw filesystem
// image with no partition table is still a valid image to browse).
func List(path string) ([]Entry, error) {
	d, err := diskfs.Open(path, diskfs.WithOpenMode(diskfs.ReadOnly))
	if err != nil {
		return nil, apierr.Image("open disk image", err)
	}

	partitions := []int{0}
	if table, err := d.GetPartitionTable(); err == nil {
		parts := table.GetPartitions()
		if len(parts) > 0 {
			partitions = make([]int, len(parts))
			for i := range parts {
				partitions[i] = i + 1
			}
		}
	}

	var entries []Entry
	for _, p := range partitions {
		fs, err := d.GetFilesystem(p)
		if err != nil {
			continue // unformatted or unrecognized partition, skip it
		}
		found, err := walk(fs, p)
		if err != nil {
			return nil, apierr.Image(fmt.Sprintf("walk partition %d", p), err)
		}
		entries = append(entries, found...)
	}
	return entries, nil
}

type stackFrame struct {
	path  string
	depth int
}

// walk performs an iterative stack-based traversal (not recursive, to
// give the depth limit a single uniform enforcement point) of the
// filesystem's directory tree starting at "/".
func walk(fs filesystem.FileSystem, partition int) ([]Entry, error) {
	var entries []Entry
	stack := []stackFrame{{path: "/", depth: 0}}

	for len(stack) > 0 {
		frame := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		if frame.depth > depthLimit {
			return nil, fmt.Errorf("mount: directory traversal exceeded depth limit %d at %q", depthLimit, frame.path)
		}

		children, err := fs.ReadDir(frame.path)
		if err != nil {
			return nil, fmt.Errorf("mount: read dir %q: %w", frame.path, err)
		}

		for _, child := range children {
			name := child.Name()
			if name == "." || name == ".." {
				continue
			}
			childPath := joinPath(frame.path, name)
			if child.IsDir() {
				stack = append(stack, stackFrame{path: childPath, depth: frame.depth + 1})
				continue
			}
			entries = append(entries, Entry{
				Path:      strings.TrimPrefix(childPath, "/"),
				Size:      child.Size(),
				MIME:      sniffMIME(fs, childPath),
				Partition: partition,
			})
		}
	}
	return entries, nil
}

func joinPath(dir, name string) string {
	if strings.HasSuffix(dir, "/") {
		return dir + name
	}
	return dir + "/" + name
}

// sniffMIME reads the leading bytes of a sub-file to determine its
// content type, using mimetype's pure-Go sniffer (the corpus's analogue
// of a libmagic binding) rather than trusting the file extension.
func sniffMIME(fs filesystem.FileSystem, path string) string {
	f, err := fs.OpenFile(path, 0)
	if err != nil {
		return "application/octet-stream"
	}
	defer f.Close()

	head := make([]byte, 3072)
	n, _ := f.Read(head)
	mt := mimetype.Detect(head[:n])
	return mt.String()
}

// ReadFile re-opens the image at path and reads the file at subpath, a
// slash-separated path whose leading component names the partition
// ("part1", "part2", …) or is omitted entirely for a bare, unpartitioned
// image. It returns the sniffed MIME type and the file's full contents.
func ReadFile(path, subpath string) (mime string, data []byte, err error) {
	subpath = strings.Trim(subpath, "/")
	if subpath == "" {
		return "", nil, apierr.Input("empty subpath", nil)
	}

	d, err := diskfs.Open(path, diskfs.WithOpenMode(diskfs.ReadOnly))
	if err != nil {
		return "", nil, apierr.Image("open disk image", err)
	}

	partition := 0
	rest := subpath
	if part, tail, ok := strings.Cut(subpath, "/"); ok && strings.HasPrefix(part, "part") {
		n, parseErr := fmt.Sscanf(part, "part%d", &partition)
		if parseErr != nil || n != 1 {
			return "", nil, apierr.Input(fmt.Sprintf("malformed partition component %q", part), nil)
		}
		rest = tail
	}

	fs, err := d.GetFilesystem(partition)
	if err != nil {
		return "", nil, apierr.Image(fmt.Sprintf("open partition %d filesystem", partition), err)
	}

	f, err := fs.OpenFile("/"+rest, 0)
	if err != nil {
		return "", nil, apierr.NotFound(fmt.Sprintf("subpath %q", subpath), err)
	}
	defer f.Close()

	data, err = io.ReadAll(f)
	if err != nil {
		return "", nil, apierr.Storage(fmt.Sprintf("reading subpath %q", subpath), err)
	}

	mt := mimetype.Detect(data)
	return mt.String(), data, nil
}

// diskMagicDescriptor reproduces the one libmagic classification the
// original's fslist.rs relies on — "DOS/MBR boot sector" — from the raw
// leading bytes: a boot-jump opcode (0xEB or 0xE9) at offset 0, and the
// 0x55 0xAA boot signature at the end of the 512-byte sector. mimetype's
// own sniffer (used below for sub-file content typing) has no matcher for
// this descriptor, so it is reproduced directly rather than approximated
// with an unrelated MIME guess.
func diskMagicDescriptor(head []byte) string {
	if len(head) < 512 {
		return ""
	}
	if head[0] != 0xEB && head[0] != 0xE9 {
		return ""
	}
	if head[510] != 0x55 || head[511] != 0xAA {
		return ""
	}
	return "DOS/MBR boot sector"
}

// IsDiskImage reports whether path looks like a disk image: it consults
// the magic-oracle descriptor built by diskMagicDescriptor and classifies
// a file as a disk image iff that descriptor contains "DOS/MBR boot
// sector", matching fslist.rs's is_disk_image. Any read error — a
// missing file, a truncated sector — classifies as not a disk image, the
// original's conservative stance on oracle failure.
func IsDiskImage(path string) bool {
	f, err := os.Open(path)
	if err != nil {
		return false
	}
	defer f.Close()

	head := make([]byte, 512)
	n, err := io.ReadFull(f, head)
	if err != nil && err != io.ErrUnexpectedEOF {
		return false
	}
	return strings.Contains(diskMagicDescriptor(head[:n]), "DOS/MBR boot sector")
}
