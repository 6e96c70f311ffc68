// Package samplefile reads and writes the plain-text sample format: the
// integer sample rate on the first line followed by one ADC reading per line
// in capture order.
package samplefile

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"drgex/internal/adc"
)

// Extension is appended to numbered sample files.
const Extension = ".csv"

// ErrMalformedFile is matched by every import failure caused by file content.
var ErrMalformedFile = errors.New("malformed sample file")

// MalformedError identifies the offending line of a rejected file. Line is
// 1-based; zero means the file as a whole.
type MalformedError struct {
	Path   string
	Line   int
	Text   string
	Reason string
}

func (e *MalformedError) Error() string {
	var b strings.Builder
	b.WriteString("malformed sample file")
	if e.Path != "" {
		b.WriteString(" " + e.Path)
	}
	if e.Line > 0 {
		fmt.Fprintf(&b, " line %d %q", e.Line, e.Text)
	}
	b.WriteString(": " + e.Reason)
	return b.String()
}

func (e *MalformedError) Is(target error) bool {
	return target == ErrMalformedFile
}

// Write encodes rate and samples to w.
func Write(w io.Writer, samples []int, rate int) error {
	if rate <= 0 {
		return fmt.Errorf("%w: %d", adc.ErrInvalidSampleRate, rate)
	}

	bw := bufio.NewWriter(w)
	if _, err := bw.WriteString(strconv.Itoa(rate) + "\n"); err != nil {
		return err
	}
	for i, s := range samples {
		if !adc.Valid(s) {
			return fmt.Errorf("sample %d out of range: %d", i, s)
		}
		if _, err := bw.WriteString(strconv.Itoa(s) + "\n"); err != nil {
			return err
		}
	}
	return bw.Flush()
}

// WriteFile creates filename and writes the buffer to it.
func WriteFile(filename string, samples []int, rate int) error {
	file, err := os.Create(filename)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}

	if err := Write(file, samples, rate); err != nil {
		file.Close()
		return fmt.Errorf("failed to write samples: %w", err)
	}
	return file.Close()
}

// Read decodes a buffer and its rate from r. Nothing is returned unless the
// whole input is valid.
func Read(r io.Reader) ([]int, int, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)

	rate := 0
	samples := make([]int, 0, 1024)
	line := 0
	for scanner.Scan() {
		line++
		text := strings.TrimSpace(scanner.Text())
		v, err := strconv.Atoi(text)
		if err != nil {
			return nil, 0, &MalformedError{Line: line, Text: text, Reason: "not an integer"}
		}

		if line == 1 {
			if v <= 0 {
				return nil, 0, &MalformedError{Line: line, Text: text, Reason: "sample rate must be positive"}
			}
			rate = v
			continue
		}
		if !adc.Valid(v) {
			return nil, 0, &MalformedError{Line: line, Text: text,
				Reason: fmt.Sprintf("sample outside [%d, %d]", adc.MinValue, adc.MaxValue)}
		}
		samples = append(samples, v)
	}
	if err := scanner.Err(); err != nil {
		return nil, 0, fmt.Errorf("failed to read samples: %w", err)
	}
	if line == 0 {
		return nil, 0, &MalformedError{Reason: "file is empty"}
	}
	return samples, rate, nil
}

// ReadFile opens filename and decodes it.
func ReadFile(filename string) ([]int, int, error) {
	file, err := os.Open(filename)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()

	samples, rate, err := Read(file)
	if err != nil {
		var me *MalformedError
		if errors.As(err, &me) {
			me.Path = filename
		}
		return nil, 0, err
	}
	return samples, rate, nil
}

// ReadHeader returns the rate and the number of sample lines without
// validating or keeping the samples.
func ReadHeader(filename string) (rate int, count int, err error) {
	file, err := os.Open(filename)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	if !scanner.Scan() {
		if err := scanner.Err(); err != nil {
			return 0, 0, err
		}
		return 0, 0, &MalformedError{Path: filename, Reason: "file is empty"}
	}
	text := strings.TrimSpace(scanner.Text())
	rate, err = strconv.Atoi(text)
	if err != nil || rate <= 0 {
		return 0, 0, &MalformedError{Path: filename, Line: 1, Text: text, Reason: "invalid sample rate"}
	}
	for scanner.Scan() {
		count++
	}
	return rate, count, scanner.Err()
}

// NextPath returns the first unused "<prefix>_<n>.csv" in dir, numbering from
// one past the number of entries already in the directory.
func NextPath(dir, prefix string) (string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create output directory: %w", err)
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", err
	}

	for n := len(entries) + 1; ; n++ {
		path := filepath.Join(dir, fmt.Sprintf("%s_%d%s", prefix, n, Extension))
		if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
			return path, nil
		} else if err != nil {
			return "", err
		}
	}
}

// ResolvePath maps an output setting to a file name. An existing directory,
// or a path ending in a separator, receives the next numbered file; anything
// else is used as given with Extension appended when it has none.
func ResolvePath(output, prefix string) (string, error) {
	if strings.HasSuffix(output, "/") || strings.HasSuffix(output, string(filepath.Separator)) {
		return NextPath(output, prefix)
	}
	if info, err := os.Stat(output); err == nil && info.IsDir() {
		return NextPath(output, prefix)
	}
	if filepath.Ext(output) == "" {
		output += Extension
	}
	return output, nil
}
