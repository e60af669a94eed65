package deb

import (
	"archive/tar"
	"bufio"
	"bytes"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/ulikunitz/xz"

	"github.com/MinaProtocol/mina-release-toolkit/internal/models"
)

// Debian packages are ar archives starting with "!<arch>\ndebian"
var debMagic = []byte("!<arch>\ndebian")

// IsPackage reports whether the file at path looks like a Debian binary
// package
func IsPackage(path string) bool {
	f, err := os.Open(path)
	if err != nil {
		return false
	}
	defer f.Close()

	header := make([]byte, len(debMagic))
	if _, err := io.ReadFull(f, header); err != nil {
		return false
	}
	return bytes.Equal(header, debMagic)
}

// Inspect reads the control block out of a .deb file and returns its parsed
// metadata
func Inspect(path string) (*models.Package, error) {
	control, err := ReadControl(path)
	if err != nil {
		return nil, fmt.Errorf("failed to extract control: %w", err)
	}

	pkg, err := ParseControl(control)
	if err != nil {
		return nil, fmt.Errorf("failed to parse control: %w", err)
	}

	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	pkg.Filename = path
	pkg.Size = info.Size()

	return pkg, nil
}

// ReadControl extracts the raw control file from a .deb package
func ReadControl(path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	// Skip the global ar header ("!<arch>\n")
	header := make([]byte, 8)
	if _, err := io.ReadFull(f, header); err != nil {
		return nil, err
	}

	for {
		// Each ar member has a 60 byte header
		arHeader := make([]byte, 60)
		if _, err := io.ReadFull(f, arHeader); err == io.EOF {
			break
		} else if err != nil {
			return nil, fmt.Errorf("failed to read ar header: %w", err)
		}

		// Member name: first 16 bytes, space padded, possibly with a
		// trailing slash
		name := strings.TrimRight(strings.TrimSpace(string(arHeader[0:16])), "/")

		// Member size: bytes 48-58, decimal
		var size int64
		fmt.Sscanf(strings.TrimSpace(string(arHeader[48:58])), "%d", &size)

		if strings.HasPrefix(name, "control.tar") {
			data := make([]byte, size)
			if _, err := io.ReadFull(f, data); err != nil {
				return nil, err
			}
			return readControlFromTar(data, name)
		}

		if _, err := f.Seek(size, io.SeekCurrent); err != nil {
			return nil, err
		}

		// Members are aligned to 2-byte boundaries
		if size%2 != 0 {
			f.Seek(1, io.SeekCurrent)
		}
	}

	return nil, fmt.Errorf("control.tar not found in package")
}

// readControlFromTar extracts the control file from control.tar*
func readControlFromTar(data []byte, filename string) ([]byte, error) {
	var tarReader *tar.Reader

	switch {
	case strings.HasSuffix(filename, ".gz"):
		gr, err := gzip.NewReader(bytes.NewReader(data))
		if err != nil {
			return nil, err
		}
		defer gr.Close()
		tarReader = tar.NewReader(gr)
	case strings.HasSuffix(filename, ".xz"):
		xr, err := xz.NewReader(bytes.NewReader(data))
		if err != nil {
			return nil, err
		}
		tarReader = tar.NewReader(xr)
	case strings.HasSuffix(filename, ".zst"):
		zr, err := zstd.NewReader(bytes.NewReader(data))
		if err != nil {
			return nil, err
		}
		defer zr.Close()
		tarReader = tar.NewReader(zr)
	default:
		tarReader = tar.NewReader(bytes.NewReader(data))
	}

	for {
		header, err := tarReader.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}

		if header.Name == "./control" || header.Name == "control" {
			return io.ReadAll(tarReader)
		}
	}

	return nil, fmt.Errorf("control file not found in control.tar")
}

// ParseControl parses a Debian control block. Continuation lines are folded
// into the value of the preceding field; fields not modeled on Package are
// preserved in Metadata.
func ParseControl(data []byte) (*models.Package, error) {
	pkg := &models.Package{
		Metadata: make(map[string]string),
	}

	scanner := bufio.NewScanner(bytes.NewReader(data))
	var currentKey string
	var currentValue strings.Builder

	for scanner.Scan() {
		line := scanner.Text()

		// Continuation lines start with space or tab
		if len(line) > 0 && (line[0] == ' ' || line[0] == '\t') {
			currentValue.WriteString("\n")
			currentValue.WriteString(strings.TrimSpace(line))
			continue
		}

		if currentKey != "" {
			setField(pkg, currentKey, currentValue.String())
		}

		if strings.Contains(line, ":") {
			parts := strings.SplitN(line, ":", 2)
			currentKey = strings.TrimSpace(parts[0])
			currentValue.Reset()
			if len(parts) > 1 {
				currentValue.WriteString(strings.TrimSpace(parts[1]))
			}
		}
	}

	if currentKey != "" {
		setField(pkg, currentKey, currentValue.String())
	}

	return pkg, scanner.Err()
}

func setField(pkg *models.Package, key, value string) {
	switch key {
	case "Package":
		pkg.Name = value
	case "Version":
		pkg.Version = value
	case "Architecture":
		pkg.Architecture = value
	case "Description":
		pkg.Description = value
	case "Maintainer":
		pkg.Maintainer = value
	case "Depends":
		for _, dep := range strings.Split(value, ",") {
			pkg.Dependencies = append(pkg.Dependencies, strings.TrimSpace(dep))
		}
	default:
		pkg.Metadata[key] = value
	}
}
