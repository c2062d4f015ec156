package cwebp

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"image/color"
	"image/png"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/dosanma1/forge-booster/internal/compression"
	"github.com/dosanma1/forge-booster/pkg/xos"
)

// ErrNotFound is returned when no cwebp executable can be located.
var ErrNotFound = errors.New("cwebp executable not found")

// Mode is what the tool may convert on a given platform level.
type Mode int

const (
	// ModeUnsupported means webp cannot be decoded at the variant's minSdk.
	ModeUnsupported Mode = iota
	// ModeOpaque converts only images without an alpha channel.
	ModeOpaque
	// ModeFull converts every candidate.
	ModeFull
)

// ModeFor returns the conversion mode for minSdk.
func ModeFor(minSdk int) Mode {
	switch {
	case minSdk >= 18:
		return ModeFull
	case minSdk >= 14:
		return ModeOpaque
	default:
		return ModeUnsupported
	}
}

func (m Mode) String() string {
	switch m {
	case ModeOpaque:
		return "opaque"
	case ModeFull:
		return "full"
	default:
		return "unsupported"
	}
}

// Lookup finds the cwebp executable: path when set, otherwise $PATH.
func Lookup(path string) (string, error) {
	if path != "" {
		info, err := os.Stat(path)
		if err != nil {
			return "", fmt.Errorf("%w: %v", ErrNotFound, err)
		}
		if info.IsDir() {
			return "", fmt.Errorf("%w: %s is a directory", ErrNotFound, path)
		}
		return path, nil
	}
	found, err := exec.LookPath("cwebp")
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrNotFound, err)
	}
	return found, nil
}

// Tool converts png images to webp in place by running cwebp.
type Tool struct {
	Path    string
	Quality int
	Mode    Mode
}

// Name implements compression.Compressor.
func (t *Tool) Name() string { return "Cwebp" }

// Compress implements compression.Compressor. A converted file replaces its
// input; a conversion that does not shrink the file is discarded and the
// record keeps the input.
func (t *Tool) Compress(ctx context.Context, input string) (compression.Record, error) {
	info, err := os.Stat(input)
	if err != nil {
		return compression.Record{}, err
	}
	before := info.Size()
	keep := compression.Record{Input: input, Output: input, Before: before, After: before}

	if t.Mode == ModeOpaque {
		alpha, err := hasAlpha(input)
		if err != nil {
			return compression.Record{}, err
		}
		if alpha {
			return keep, nil
		}
	}

	output := Output(input)
	pending, err := xos.NewPendingFile(output)
	if err != nil {
		return compression.Record{}, err
	}
	defer pending.Cleanup()

	var stderr bytes.Buffer
	out := &countingWriter{w: pending}
	cmd := exec.CommandContext(ctx, t.Path, "-mt", "-quiet", "-q", strconv.Itoa(t.Quality), input, "-o", "-")
	cmd.Stdout = out
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return compression.Record{}, ctxErr
		}
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return compression.Record{}, fmt.Errorf("cwebp: %w: %s", err, msg)
		}
		return compression.Record{}, fmt.Errorf("cwebp: %w", err)
	}
	if out.n == 0 {
		return compression.Record{}, fmt.Errorf("cwebp produced no output for %s", filepath.Base(input))
	}
	if out.n >= before {
		return keep, nil
	}

	if err := pending.Chmod(info.Mode().Perm()); err != nil {
		return compression.Record{}, err
	}
	if err := pending.CloseAtomically(); err != nil {
		return compression.Record{}, err
	}
	if err := os.Remove(input); err != nil {
		return compression.Record{}, fmt.Errorf("failed to replace %s: %w", input, err)
	}
	return compression.Record{Input: input, Output: output, Before: before, After: out.n}, nil
}

// Output returns the webp path replacing input: a.png becomes a.webp and
// drawable_a.png.flat becomes drawable_a.webp.flat.
func Output(input string) string {
	if base, ok := strings.CutSuffix(input, ".png.flat"); ok {
		return base + ".webp.flat"
	}
	return strings.TrimSuffix(input, filepath.Ext(input)) + ".webp"
}

func hasAlpha(path string) (bool, error) {
	f, err := os.Open(path)
	if err != nil {
		return false, err
	}
	defer f.Close()

	cfg, err := png.DecodeConfig(f)
	if err != nil {
		return false, fmt.Errorf("failed to decode %s: %w", filepath.Base(path), err)
	}
	switch m := cfg.ColorModel.(type) {
	case color.Palette:
		for _, c := range m {
			if _, _, _, a := c.RGBA(); a != 0xffff {
				return true, nil
			}
		}
		return false, nil
	default:
		if m == color.NRGBAModel || m == color.NRGBA64Model || m == color.AlphaModel || m == color.Alpha16Model {
			return true, nil
		}
	}

	// Gray and truecolor images can still mark one color transparent with a
	// tRNS chunk, which DecodeConfig does not read.
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return false, err
	}
	ok, err := hasTransparencyChunk(f)
	if err != nil {
		return false, fmt.Errorf("failed to read %s: %w", filepath.Base(path), err)
	}
	return ok, nil
}

// hasTransparencyChunk reports whether a tRNS chunk precedes the image data.
func hasTransparencyChunk(r io.Reader) (bool, error) {
	var sig [8]byte
	if _, err := io.ReadFull(r, sig[:]); err != nil {
		return false, err
	}
	var hdr [8]byte
	for {
		if _, err := io.ReadFull(r, hdr[:]); err != nil {
			return false, err
		}
		switch string(hdr[4:]) {
		case "tRNS":
			return true, nil
		case "IDAT", "IEND":
			return false, nil
		}
		// chunk data followed by its CRC
		n := int64(binary.BigEndian.Uint32(hdr[:4])) + 4
		if _, err := io.CopyN(io.Discard, r, n); err != nil {
			return false, err
		}
	}
}

type countingWriter struct {
	w io.Writer
	n int64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n += int64(n)
	return n, err
}
