package audio

import (
	"bytes"
	"context"
	"os/exec"
	"strconv"
	"strings"

	"github.com/cockroachdb/errors"
)

// ErrNoDecoder is returned when ffmpeg is not on PATH.
var ErrNoDecoder = errors.New("ffmpeg not found")

// DecodeFile decodes any format ffmpeg understands into interleaved PCM in
// the player's frame format.
func DecodeFile(ctx context.Context, path string) ([]int16, error) {
	bin, err := exec.LookPath("ffmpeg")
	if err != nil {
		return nil, errors.Mark(errors.Wrap(err, "decode"), ErrNoDecoder)
	}

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, bin,
		"-nostdin",
		"-loglevel", "error",
		"-i", path,
		"-f", "s16le",
		"-acodec", "pcm_s16le",
		"-ar", strconv.Itoa(SampleRate),
		"-ac", strconv.Itoa(Channels),
		"pipe:1",
	)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return nil, errors.Wrapf(err, "decode %s: %s", path, msg)
		}
		return nil, errors.Wrapf(err, "decode %s", path)
	}
	return ParsePCM(stdout.Bytes()), nil
}
