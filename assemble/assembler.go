// Package assemble cuts the final video from scene images, voiceover, music
// and subtitles with FFmpeg.
package assemble

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"video-factory/config"
	"video-factory/stage"
)

// FFmpeg is the assembler backed by the ffmpeg binary
type FFmpeg struct {
	tmpl config.Template
}

// New creates the FFmpeg assembler for one template bundle
func New(tmpl config.Template) *FFmpeg {
	return &FFmpeg{tmpl: tmpl}
}

func (f *FFmpeg) Version() string { return "ffmpeg-v1" }

// Assemble builds the final MP4: per-scene timed clips from the still images,
// concatenation, then the audio mix. Subtitles are burned in or copied as a
// sidecar file depending on the template.
func (f *FFmpeg) Assemble(ctx context.Context, in stage.AssemblyInput) (string, error) {
	if len(in.SceneImages) == 0 || len(in.SceneImages) != len(in.Durations) {
		return "", stage.Invalid("assemble",
			fmt.Errorf("scene images (%d) and durations (%d) must align and be non-empty",
				len(in.SceneImages), len(in.Durations)))
	}

	log.Println("[assemble] 🎬 Building scene clips...")
	clipDir := filepath.Join(in.WorkDir, "clips")
	if err := os.MkdirAll(clipDir, 0755); err != nil {
		return "", stage.Terminal("assemble", err)
	}

	var clips []string
	for i, img := range in.SceneImages {
		clip := filepath.Join(clipDir, fmt.Sprintf("clip_%03d.mp4", i+1))
		if err := f.imageToClip(ctx, img, clip, in.Durations[i]); err != nil {
			return "", err
		}
		clips = append(clips, clip)
	}

	silent := filepath.Join(clipDir, "visuals.mp4")
	if err := f.concat(ctx, clips, silent); err != nil {
		return "", err
	}

	log.Println("[assemble] 🎵 Mixing audio...")
	withAudio := filepath.Join(clipDir, "with_audio.mp4")
	if err := f.addAudio(ctx, silent, in.VoiceoverPath, in.MusicPath, withAudio); err != nil {
		return "", err
	}

	finished := withAudio
	if in.SubtitlePath != "" && f.tmpl.Subtitles.BurnIn {
		log.Println("[assemble] 💬 Burning subtitles...")
		burned := filepath.Join(clipDir, "subtitled.mp4")
		if err := f.burnSubtitles(ctx, withAudio, in.SubtitlePath, burned); err != nil {
			// A burn failure must not cost the run its video.
			log.Printf("[assemble] Warning: subtitle burn failed: %v, shipping without burn-in", err)
		} else {
			finished = burned
		}
	}

	if err := os.Rename(finished, in.OutputPath); err != nil {
		if cerr := copyFile(finished, in.OutputPath); cerr != nil {
			return "", stage.Terminal("assemble", cerr)
		}
	}
	log.Printf("[assemble] ✅ Final video ready: %s", in.OutputPath)
	return in.OutputPath, nil
}

// imageToClip loops one still for the scene duration at the template's
// resolution and frame rate
func (f *FFmpeg) imageToClip(ctx context.Context, img, outFile string, duration float64) error {
	vf := fmt.Sprintf(
		"scale=%s:force_original_aspect_ratio=decrease,pad=%s:(ow-iw)/2:(oh-ih)/2,setsar=1",
		strings.Replace(f.tmpl.Video.Resolution, "x", ":", 1),
		strings.Replace(f.tmpl.Video.Resolution, "x", ":", 1),
	)
	if f.tmpl.Visuals.Transition == "fade" && f.tmpl.Visuals.TransitionDuration > 0 {
		d := f.tmpl.Visuals.TransitionDuration
		vf += fmt.Sprintf(",fade=t=in:st=0:d=%.2f,fade=t=out:st=%.2f:d=%.2f", d, duration-d, d)
	}
	return f.run(ctx, "ffmpeg", "-y",
		"-loop", "1",
		"-i", img,
		"-t", fmt.Sprintf("%.3f", duration),
		"-vf", vf,
		"-r", fmt.Sprintf("%d", f.tmpl.Video.FPS),
		"-c:v", f.tmpl.Video.Codec,
		"-preset", f.tmpl.Video.Preset,
		"-pix_fmt", "yuv420p",
		"-an",
		outFile,
	)
}

func (f *FFmpeg) concat(ctx context.Context, clips []string, outFile string) error {
	listFile := filepath.Join(filepath.Dir(outFile), "concat_list.txt")
	var lines []string
	for _, c := range clips {
		lines = append(lines, fmt.Sprintf("file '%s'", c))
	}
	if err := os.WriteFile(listFile, []byte(strings.Join(lines, "\n")), 0644); err != nil {
		return stage.Terminal("assemble", err)
	}
	return f.run(ctx, "ffmpeg", "-y",
		"-f", "concat",
		"-safe", "0",
		"-i", listFile,
		"-c", "copy",
		outFile,
	)
}

// addAudio lays the voiceover (and music bed, when present) under the video
// at the template volumes. With no audio sources at all the video ships
// silent; a run that lost its voiceover still yields a video-only output.
func (f *FFmpeg) addAudio(ctx context.Context, video, voiceover, music, outFile string) error {
	switch {
	case voiceover == "" && music == "":
		return f.run(ctx, "ffmpeg", "-y", "-i", video, "-c", "copy", "-movflags", "+faststart", outFile)
	case voiceover == "":
		return f.run(ctx, "ffmpeg", "-y",
			"-i", video,
			"-stream_loop", "-1",
			"-i", music,
			"-filter_complex", fmt.Sprintf("[1:a]volume=%.2f[aout]", f.tmpl.Audio.MusicVolume),
			"-map", "0:v",
			"-map", "[aout]",
			"-c:v", "copy",
			"-c:a", "aac",
			"-b:a", "192k",
			"-shortest",
			"-movflags", "+faststart",
			outFile,
		)
	}
	if music == "" {
		return f.run(ctx, "ffmpeg", "-y",
			"-i", video,
			"-i", voiceover,
			"-filter_complex", fmt.Sprintf("[1:a]volume=%.2f[aout]", f.tmpl.Audio.VoiceVolume),
			"-map", "0:v",
			"-map", "[aout]",
			"-c:v", "copy",
			"-c:a", "aac",
			"-b:a", "192k",
			"-shortest",
			"-movflags", "+faststart",
			outFile,
		)
	}
	filter := fmt.Sprintf(
		"[1:a]volume=%.2f[vo];[2:a]volume=%.2f[mus];[vo][mus]amix=inputs=2:duration=first:normalize=0[aout]",
		f.tmpl.Audio.VoiceVolume, f.tmpl.Audio.MusicVolume,
	)
	return f.run(ctx, "ffmpeg", "-y",
		"-i", video,
		"-i", voiceover,
		"-stream_loop", "-1",
		"-i", music,
		"-filter_complex", filter,
		"-map", "0:v",
		"-map", "[aout]",
		"-c:v", "copy",
		"-c:a", "aac",
		"-b:a", "192k",
		"-shortest",
		"-movflags", "+faststart",
		outFile,
	)
}

func (f *FFmpeg) burnSubtitles(ctx context.Context, video, srt, outFile string) error {
	alignment := 2 // bottom center
	if f.tmpl.Subtitles.Position == "top" {
		alignment = 8
	}
	outline := 0
	if f.tmpl.Subtitles.Outline {
		outline = 2
	}
	filter := fmt.Sprintf(
		"subtitles=%s:force_style='FontName=%s,FontSize=%d,PrimaryColour=&H00FFFFFF,OutlineColour=&H00000000,Outline=%d,Alignment=%d'",
		escapeFilterPath(srt),
		f.tmpl.Subtitles.Font,
		f.tmpl.Subtitles.Size,
		outline,
		alignment,
	)
	return f.run(ctx, "ffmpeg", "-y",
		"-i", video,
		"-vf", filter,
		"-c:v", f.tmpl.Video.Codec,
		"-preset", f.tmpl.Video.Preset,
		"-crf", "20",
		"-c:a", "copy",
		outFile,
	)
}

func (f *FFmpeg) run(ctx context.Context, name string, args ...string) error {
	cmd := exec.CommandContext(ctx, name, args...)
	out, err := cmd.CombinedOutput()
	if err != nil {
		return stage.Terminal("assemble", fmt.Errorf("%s: %w: %s", name, err, tail(out)))
	}
	return nil
}

func escapeFilterPath(path string) string {
	path = strings.ReplaceAll(path, "\\", "/")
	path = strings.ReplaceAll(path, ":", "\\:")
	return path
}

func tail(out []byte) string {
	const n = 400
	if len(out) > n {
		out = out[len(out)-n:]
	}
	return strings.TrimSpace(string(out))
}

func copyFile(src, dst string) error {
	data, err := os.ReadFile(src)
	if err != nil {
		return err
	}
	return os.WriteFile(dst, data, 0644)
}
