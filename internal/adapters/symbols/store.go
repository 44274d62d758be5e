// Package symbols stores debug-symbol archives as per-architecture Mach-O
// files under their blake3 content address.
package symbols

import (
	"archive/zip"
	"bytes"
	"context"
	"debug/macho"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/bnema/itcsync/internal/domain"
	"github.com/bnema/itcsync/internal/ports"
	"github.com/google/uuid"
	"github.com/zeebo/blake3"
)

const (
	dirMode         = 0o700
	fileMode        = 0o600
	tempFilePattern = ".symbol-*.tmp"

	loadCmdUUID   = 0x1b
	maxEntryBytes = 1 << 30
)

var archNames = map[macho.Cpu]string{
	macho.Cpu386:   "i386",
	macho.CpuAmd64: "x86_64",
	macho.CpuArm:   "armv7",
	macho.CpuArm64: "arm64",
}

// Store writes symbol files to root/<project>/<hh>/<hash>. Identical slices
// land on the same path, so concurrent stores of one build are harmless.
type Store struct {
	root string
}

var _ ports.ArtifactStore = (*Store)(nil)

func NewStore(root string) *Store {
	return &Store{root: filepath.Clean(root)}
}

func (s *Store) StoreDebugSymbols(ctx context.Context, project domain.ProjectID, build domain.Build, archive []byte) ([]domain.SymbolFile, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	reader, err := zip.NewReader(bytes.NewReader(archive), int64(len(archive)))
	if err != nil {
		return nil, fmt.Errorf("open symbol archive of %s: %w", build.Key(), err)
	}

	var files []domain.SymbolFile
	for _, entry := range reader.File {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if entry.FileInfo().IsDir() {
			continue
		}

		data, err := readEntry(entry)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", entry.Name, err)
		}

		slices, ok := splitMachO(data)
		if !ok {
			continue
		}

		for _, slice := range slices {
			ref, err := s.write(project, slice.data)
			if err != nil {
				return nil, err
			}
			files = append(files, domain.SymbolFile{
				Ref:  ref,
				Name: entry.Name,
				Arch: slice.arch,
				UUID: slice.uuid,
				Size: int64(len(slice.data)),
			})
		}
	}

	return files, nil
}

// Path returns where ref is stored for project.
func (s *Store) Path(project domain.ProjectID, ref string) string {
	prefix := ref
	if len(ref) > 2 {
		prefix = ref[:2]
	}
	return filepath.Join(s.root, string(project), prefix, ref)
}

func (s *Store) write(project domain.ProjectID, data []byte) (string, error) {
	sum := blake3.Sum256(data)
	ref := hex.EncodeToString(sum[:])
	path := s.Path(project, ref)

	if _, err := os.Stat(path); err == nil {
		return ref, nil
	}

	if err := os.MkdirAll(filepath.Dir(path), dirMode); err != nil {
		return "", fmt.Errorf("create symbol directory: %w", err)
	}

	temp, err := os.CreateTemp(filepath.Dir(path), tempFilePattern)
	if err != nil {
		return "", fmt.Errorf("create temp symbol file: %w", err)
	}
	tempName := temp.Name()
	cleanup := true
	defer func() {
		if cleanup {
			_ = os.Remove(tempName)
		}
	}()

	if _, err := temp.Write(data); err != nil {
		_ = temp.Close()
		return "", fmt.Errorf("write symbol file: %w", err)
	}
	if err := temp.Chmod(fileMode); err != nil {
		_ = temp.Close()
		return "", fmt.Errorf("chmod symbol file: %w", err)
	}
	if err := temp.Close(); err != nil {
		return "", fmt.Errorf("close symbol file: %w", err)
	}
	if err := os.Rename(tempName, path); err != nil {
		return "", fmt.Errorf("store symbol file: %w", err)
	}

	cleanup = false
	return ref, nil
}

func readEntry(entry *zip.File) ([]byte, error) {
	rc, err := entry.Open()
	if err != nil {
		return nil, err
	}
	defer func() { _ = rc.Close() }()

	data, err := io.ReadAll(io.LimitReader(rc, maxEntryBytes+1))
	if err != nil {
		return nil, err
	}
	if len(data) > maxEntryBytes {
		return nil, errors.New("entry too large")
	}
	return data, nil
}

type archSlice struct {
	arch string
	uuid string
	data []byte
}

// splitMachO returns one slice per architecture. ok is false when data is not
// a Mach-O image.
func splitMachO(data []byte) ([]archSlice, bool) {
	reader := bytes.NewReader(data)

	if fat, err := macho.NewFatFile(reader); err == nil {
		out := make([]archSlice, 0, len(fat.Arches))
		for _, arch := range fat.Arches {
			end := uint64(arch.Offset) + uint64(arch.Size)
			if end > uint64(len(data)) {
				return nil, false
			}
			out = append(out, archSlice{
				arch: archName(arch.File),
				uuid: imageUUID(arch.File),
				data: data[arch.Offset:end],
			})
		}
		return out, true
	}

	thin, err := macho.NewFile(reader)
	if err != nil {
		return nil, false
	}
	return []archSlice{{arch: archName(thin), uuid: imageUUID(thin), data: data}}, true
}

func archName(f *macho.File) string {
	if name, ok := archNames[f.Cpu]; ok {
		return name
	}
	return strings.ToLower(f.Cpu.String())
}

func imageUUID(f *macho.File) string {
	for _, load := range f.Loads {
		raw := load.Raw()
		if len(raw) < 24 || f.ByteOrder.Uint32(raw[0:4]) != loadCmdUUID {
			continue
		}
		id, err := uuid.FromBytes(raw[8:24])
		if err != nil {
			return ""
		}
		return id.String()
	}
	return ""
}
