package matrix

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// ReadMatrixMarket parses a MatrixMarket coordinate file (real, general or
// symmetric). Symmetric files are expanded to full storage.
func ReadMatrixMarket(r io.Reader) (*CSR, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 1024*1024), 1024*1024)

	if !scanner.Scan() {
		return nil, fmt.Errorf("empty matrix market stream")
	}
	header := strings.Fields(strings.ToLower(scanner.Text()))
	if len(header) < 4 || header[0] != "%%matrixmarket" || header[1] != "matrix" {
		return nil, fmt.Errorf("not a matrix market header: %q", scanner.Text())
	}
	if header[2] != "coordinate" {
		return nil, fmt.Errorf("unsupported matrix market format %q, only coordinate is supported", header[2])
	}
	if header[3] != "real" && header[3] != "integer" {
		return nil, fmt.Errorf("unsupported matrix market field %q", header[3])
	}
	symmetric := false
	if len(header) > 4 {
		switch header[4] {
		case "general":
		case "symmetric":
			symmetric = true
		default:
			return nil, fmt.Errorf("unsupported matrix market symmetry %q", header[4])
		}
	}

	var b *Builder
	var rows, cols, nnz int
	lineNo := 1
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "%") {
			continue
		}
		fields := strings.Fields(line)

		if b == nil {
			// Size line
			if len(fields) != 3 {
				return nil, fmt.Errorf("line %d: malformed size line %q", lineNo, line)
			}
			var err error
			if rows, err = strconv.Atoi(fields[0]); err != nil {
				return nil, fmt.Errorf("line %d: bad row count: %v", lineNo, err)
			}
			if cols, err = strconv.Atoi(fields[1]); err != nil {
				return nil, fmt.Errorf("line %d: bad column count: %v", lineNo, err)
			}
			if nnz, err = strconv.Atoi(fields[2]); err != nil {
				return nil, fmt.Errorf("line %d: bad entry count: %v", lineNo, err)
			}
			b = NewBuilder(rows, cols)
			continue
		}

		if len(fields) != 3 {
			return nil, fmt.Errorf("line %d: malformed entry %q", lineNo, line)
		}
		i, err := strconv.Atoi(fields[0])
		if err != nil {
			return nil, fmt.Errorf("line %d: bad row index: %v", lineNo, err)
		}
		j, err := strconv.Atoi(fields[1])
		if err != nil {
			return nil, fmt.Errorf("line %d: bad column index: %v", lineNo, err)
		}
		v, err := strconv.ParseFloat(fields[2], 64)
		if err != nil {
			return nil, fmt.Errorf("line %d: bad value: %v", lineNo, err)
		}
		if i < 1 || i > rows || j < 1 || j > cols {
			return nil, fmt.Errorf("line %d: entry (%d, %d) outside %dx%d matrix", lineNo, i, j, rows, cols)
		}
		b.Add(i-1, j-1, v)
		if symmetric && i != j {
			b.Add(j-1, i-1, v)
		}
		nnz--
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading matrix market stream: %w", err)
	}
	if b == nil {
		return nil, fmt.Errorf("matrix market stream has no size line")
	}
	if nnz > 0 {
		return nil, fmt.Errorf("matrix market stream is missing %d entries declared on the size line", nnz)
	}
	if nnz < 0 {
		return nil, fmt.Errorf("matrix market stream has %d entries beyond the declared count", -nnz)
	}
	return b.Finish(), nil
}
