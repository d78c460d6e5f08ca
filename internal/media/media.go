// Package media encodes image attachments and extracts video frames.
package media

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
)

var mimeByExt = map[string]string{
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
	".gif":  "image/gif",
	".webp": "image/webp",
	".bmp":  "image/bmp",
}

// MediaType guesses the image MIME type from the file extension,
// defaulting to image/jpeg.
func MediaType(path string) string {
	if mt, ok := mimeByExt[strings.ToLower(filepath.Ext(path))]; ok {
		return mt
	}
	return "image/jpeg"
}

// EncodeImage reads an image file and returns a data URL plus its MIME type.
func EncodeImage(path string) (dataURL, mediaType string, err error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return "", "", fmt.Errorf("read image: %w", err)
	}
	mediaType = MediaType(path)
	dataURL = "data:" + mediaType + ";base64," + base64.StdEncoding.EncodeToString(raw)
	return dataURL, mediaType, nil
}

// FrameExtractor samples still frames from a video file.
type FrameExtractor interface {
	// ExtractFrames returns up to maxFrames evenly spaced frames as
	// image file paths, in temporal order.
	ExtractFrames(ctx context.Context, videoPath string, maxFrames int) ([]string, error)
}

// FFmpeg extracts frames by shelling out to ffprobe and ffmpeg.
type FFmpeg struct {
	// WorkDir receives extracted frames; defaults to the OS temp dir.
	WorkDir string
}

func (f *FFmpeg) ExtractFrames(ctx context.Context, videoPath string, maxFrames int) ([]string, error) {
	if maxFrames <= 0 {
		maxFrames = 1
	}
	duration, err := f.probeDuration(ctx, videoPath)
	if err != nil {
		return nil, err
	}

	dir := f.WorkDir
	if dir == "" {
		dir = os.TempDir()
	}
	outDir, err := os.MkdirTemp(dir, "frames-")
	if err != nil {
		return nil, fmt.Errorf("create frame dir: %w", err)
	}

	// Evenly spaced offsets, avoiding the exact start and end.
	frames := make([]string, 0, maxFrames)
	for i := 0; i < maxFrames; i++ {
		offset := duration * (float64(i) + 0.5) / float64(maxFrames)
		out := filepath.Join(outDir, fmt.Sprintf("frame-%03d.jpg", i))
		cmd := exec.CommandContext(ctx, "ffmpeg",
			"-ss", strconv.FormatFloat(offset, 'f', 3, 64),
			"-i", videoPath,
			"-frames:v", "1",
			"-q:v", "2",
			"-y", out,
		)
		if output, err := cmd.CombinedOutput(); err != nil {
			return nil, fmt.Errorf("ffmpeg frame %d: %w: %s", i, err, strings.TrimSpace(string(output)))
		}
		frames = append(frames, out)
	}
	return frames, nil
}

func (f *FFmpeg) probeDuration(ctx context.Context, videoPath string) (float64, error) {
	cmd := exec.CommandContext(ctx, "ffprobe",
		"-v", "quiet",
		"-print_format", "json",
		"-show_format",
		videoPath,
	)
	out, err := cmd.Output()
	if err != nil {
		return 0, fmt.Errorf("ffprobe: %w", err)
	}
	var probe struct {
		Format struct {
			Duration string `json:"duration"`
		} `json:"format"`
	}
	if err := json.Unmarshal(out, &probe); err != nil {
		return 0, fmt.Errorf("parse ffprobe output: %w", err)
	}
	duration, err := strconv.ParseFloat(probe.Format.Duration, 64)
	if err != nil || duration <= 0 {
		return 0, fmt.Errorf("invalid video duration %q", probe.Format.Duration)
	}
	return duration, nil
}

var _ FrameExtractor = (*FFmpeg)(nil)
