package video

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"io"
	"os/exec"
	"strconv"
	"strings"

	"github.com/banshee-data/hem.analyzer/internal/hem"
)

// FFmpegConfig names the binaries used by FFmpegSource. Empty fields use
// "ffmpeg" and "ffprobe" from PATH.
type FFmpegConfig struct {
	FFmpegPath  string
	FFprobePath string
}

func (c FFmpegConfig) ffmpeg() string {
	if c.FFmpegPath == "" {
		return "ffmpeg"
	}
	return c.FFmpegPath
}

func (c FFmpegConfig) ffprobe() string {
	if c.FFprobePath == "" {
		return "ffprobe"
	}
	return c.FFprobePath
}

// StreamInfo is the subset of ffprobe output the sampler needs.
type StreamInfo struct {
	Width  int
	Height int
	FPS    float64
}

type probeOutput struct {
	Streams []struct {
		Width        int    `json:"width"`
		Height       int    `json:"height"`
		RFrameRate   string `json:"r_frame_rate"`
		AvgFrameRate string `json:"avg_frame_rate"`
	} `json:"streams"`
}

// ParseProbe decodes `ffprobe -of json` output for the first video stream.
// The average frame rate is preferred; an unparseable rate yields FPS 0,
// which the sampler treats as unknown.
func ParseProbe(data []byte) (StreamInfo, error) {
	var out probeOutput
	if err := json.Unmarshal(data, &out); err != nil {
		return StreamInfo{}, fmt.Errorf("parse ffprobe output: %w", err)
	}
	if len(out.Streams) == 0 {
		return StreamInfo{}, errors.New("ffprobe found no video stream")
	}
	s := out.Streams[0]
	if s.Width <= 0 || s.Height <= 0 {
		return StreamInfo{}, fmt.Errorf("ffprobe reported frame size %dx%d", s.Width, s.Height)
	}
	fps := ParseRate(s.AvgFrameRate)
	if fps <= 0 {
		fps = ParseRate(s.RFrameRate)
	}
	return StreamInfo{Width: s.Width, Height: s.Height, FPS: fps}, nil
}

// ParseRate parses an ffmpeg rational such as "30000/1001" or a plain
// number. Malformed input and zero denominators yield 0.
func ParseRate(s string) float64 {
	num, den, found := strings.Cut(strings.TrimSpace(s), "/")
	n, err := strconv.ParseFloat(num, 64)
	if err != nil {
		return 0
	}
	if !found {
		return n
	}
	d, err := strconv.ParseFloat(den, 64)
	if err != nil || d == 0 {
		return 0
	}
	return n / d
}

// Probe runs ffprobe on path.
func Probe(ctx context.Context, path string, cfg FFmpegConfig) (StreamInfo, error) {
	cmd := exec.CommandContext(ctx, cfg.ffprobe(),
		"-v", "error",
		"-select_streams", "v:0",
		"-show_entries", "stream=width,height,r_frame_rate,avg_frame_rate",
		"-of", "json",
		path)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	data, err := cmd.Output()
	if err != nil {
		return StreamInfo{}, fmt.Errorf("ffprobe %s: %w: %s", path, err, strings.TrimSpace(stderr.String()))
	}
	return ParseProbe(data)
}

// FFmpegSource decodes a video file through an ffmpeg subprocess that
// writes raw 8-bit grayscale frames to a pipe.
type FFmpegSource struct {
	info   StreamInfo
	cmd    *exec.Cmd
	stdout io.ReadCloser
	reader *bufio.Reader
	stderr bytes.Buffer
	frames int
	done   bool
}

// NewFFmpegSource probes path and starts the decoder. Cancelling ctx kills
// the subprocess.
func NewFFmpegSource(ctx context.Context, path string, cfg FFmpegConfig) (*FFmpegSource, error) {
	info, err := Probe(ctx, path, cfg)
	if err != nil {
		return nil, err
	}

	s := &FFmpegSource{info: info}
	s.cmd = exec.CommandContext(ctx, cfg.ffmpeg(),
		"-v", "error",
		"-i", path,
		"-map", "0:v:0",
		"-f", "rawvideo",
		"-pix_fmt", "gray",
		"-")
	s.cmd.Stderr = &s.stderr
	s.stdout, err = s.cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("ffmpeg stdout: %w", err)
	}
	if err := s.cmd.Start(); err != nil {
		return nil, fmt.Errorf("start ffmpeg: %w", err)
	}
	s.reader = bufio.NewReaderSize(s.stdout, info.Width*info.Height*4)
	hem.Diagf("ffmpeg: decoding %s %dx%d @ %.3f fps", path, info.Width, info.Height, info.FPS)
	return s, nil
}

func (s *FFmpegSource) FPS() float64     { return s.info.FPS }
func (s *FFmpegSource) Size() (int, int) { return s.info.Width, s.info.Height }

// Read returns the next decoded frame. A short read ends the stream.
func (s *FFmpegSource) Read() (*image.Gray, bool) {
	if s.done {
		return nil, false
	}
	img := image.NewGray(image.Rect(0, 0, s.info.Width, s.info.Height))
	if _, err := io.ReadFull(s.reader, img.Pix); err != nil {
		s.done = true
		if !errors.Is(err, io.EOF) {
			hem.Opsf("ffmpeg: stream ended after %d frames: %v", s.frames, err)
		}
		return nil, false
	}
	s.frames++
	return img, true
}

// Close stops the decoder and reaps the process.
func (s *FFmpegSource) Close() error {
	s.done = true
	if s.cmd.Process == nil {
		return nil
	}
	_ = s.stdout.Close()
	_ = s.cmd.Process.Kill()
	err := s.cmd.Wait()
	if msg := strings.TrimSpace(s.stderr.String()); msg != "" {
		hem.Opsf("ffmpeg: %s", msg)
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		// Killed on purpose; the exit status carries no information.
		return nil
	}
	return err
}
