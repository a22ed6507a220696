package source

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"

	"github.com/MrWong99/lingosync/pkg/subtitle"
	"github.com/MrWong99/lingosync/pkg/types"
)

// fileExts lists the extensions a [File] source looks for, in order.
var fileExts = []string{".srt", ".vtt", ".ttml", ".xml"}

// maxFileSize bounds how much of a subtitle file is read.
const maxFileSize = 16 << 20

// File reads subtitle files from a directory. For video "abc" and language
// "en" it tries abc.en.srt, abc.en.vtt, abc.en.ttml, abc.en.xml and then any
// file named abc.<ext> with one of those extensions.
type File struct {
	dir string
}

var _ Source = (*File)(nil)

// NewFile returns a File source rooted at dir.
func NewFile(dir string) *File {
	return &File{dir: dir}
}

// Name implements Source.
func (f *File) Name() string { return "file" }

// Subtitles implements Source. A missing file yields no cues and no error.
func (f *File) Subtitles(ctx context.Context, videoID, lang string) ([]types.Cue, error) {
	if videoID == "" || filepath.Base(videoID) != videoID {
		return nil, fmt.Errorf("source: file: invalid video id %q", videoID)
	}
	for _, path := range f.candidates(videoID, lang) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		cues, err := ReadFile(path)
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return nil, err
		}
		return cues, nil
	}
	return nil, nil
}

func (f *File) candidates(videoID, lang string) []string {
	var out []string
	if lang != "" {
		for _, ext := range fileExts {
			out = append(out, filepath.Join(f.dir, videoID+"."+lang+ext))
		}
	}
	for _, ext := range fileExts {
		out = append(out, filepath.Join(f.dir, videoID+ext))
	}
	return slices.Compact(out)
}

// ReadFile parses the subtitle file at path, using its extension as a format
// hint.
func ReadFile(path string) ([]types.Cue, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("source: %w", err)
	}
	if info.Size() > maxFileSize {
		return nil, fmt.Errorf("source: %s: file too large (%d bytes)", path, info.Size())
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("source: %w", err)
	}
	return subtitle.Parse(string(data), subtitle.FormatFromExt(path)), nil
}
