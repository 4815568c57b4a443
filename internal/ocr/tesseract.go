package ocr

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"image"
	"os/exec"
	"strconv"
	"strings"
	"sync"

	"github.com/mgpai22/subocr/internal/tools"
)

// runs the tesseract command line tool, one process per frame
type TesseractEngine struct {
	binary string
	psm    PageSegMode

	langsOnce sync.Once
	langs     []string
	langsErr  error
}

func NewTesseractEngine(ctx context.Context, opts Options) (*TesseractEngine, error) {
	binary := opts.BinaryPath
	if binary == "" {
		found, err := tools.Tesseract()
		if err != nil {
			return nil, err
		}
		binary = found
	}
	psm := opts.PageSegMode
	if psm == 0 {
		psm = PSMSingleBlock
	}
	return &TesseractEngine{binary: binary, psm: psm}, nil
}

func (e *TesseractEngine) Recognize(ctx context.Context, img image.Image, lang string) (string, error) {
	data, err := encodePNG(img)
	if err != nil {
		return "", err
	}

	args := []string{"stdin", "stdout", "--psm", strconv.Itoa(int(e.psm))}
	if lang != "" {
		args = append(args, "-l", lang)
	}
	cmd := exec.CommandContext(ctx, e.binary, args...)
	cmd.Stdin = bytes.NewReader(data)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("tesseract failed: %w (%s)", err, strings.TrimSpace(stderr.String()))
	}
	return strings.TrimSpace(stdout.String()), nil
}

// installed traineddata, from tesseract --list-langs. Cached after the first call
func (e *TesseractEngine) Languages(ctx context.Context) ([]string, error) {
	e.langsOnce.Do(func() {
		out, err := exec.CommandContext(ctx, e.binary, "--list-langs").Output()
		if err != nil {
			e.langsErr = fmt.Errorf("failed to list tesseract languages: %w", err)
			return
		}
		e.langs = parseLangList(string(out))
	})
	return e.langs, e.langsErr
}

func (e *TesseractEngine) Close() error {
	return nil
}

// parses --list-langs output: a header line followed by one code per line
func parseLangList(out string) []string {
	var langs []string
	scanner := bufio.NewScanner(strings.NewReader(out))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "List of") || line == "osd" {
			continue
		}
		langs = append(langs, line)
	}
	return langs
}
