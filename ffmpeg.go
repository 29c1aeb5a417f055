// FFmpeg shared-library loading via purego.
//
// The bindings target FFmpeg 6.x (libavcodec 60, libavutil 58, libswscale 7)
// and load dynamically at runtime with CGO_ENABLED=0.
//
// Library locations checked (in order):
//   - WEBCODECS_FFMPEG_LIB_PATH environment variable
//   - System library paths

package webcodecs

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"unsafe"

	"github.com/ebitengine/purego"
)

var (
	ffmpegOnce    sync.Once
	ffmpegInitErr error

	avutilHandle  uintptr
	avcodecHandle uintptr
	swscaleHandle uintptr
)

// loadFFmpeg loads libavutil, libavcodec and libswscale and registers all
// symbols. Safe to call from multiple goroutines; the work happens once.
func loadFFmpeg() error {
	ffmpegOnce.Do(func() {
		ffmpegInitErr = loadFFmpegLibs()
	})
	return ffmpegInitErr
}

func loadFFmpegLibs() error {
	var err error
	if avutilHandle, err = dlopenFirst(ffmpegLibPaths("libavutil", []string{"58"})); err != nil {
		return fmt.Errorf("%w: %v", ErrFFmpegUnavailable, err)
	}
	if avcodecHandle, err = dlopenFirst(ffmpegLibPaths("libavcodec", []string{"60"})); err != nil {
		return fmt.Errorf("%w: %v", ErrFFmpegUnavailable, err)
	}
	if swscaleHandle, err = dlopenFirst(ffmpegLibPaths("libswscale", []string{"7"})); err != nil {
		return fmt.Errorf("%w: %v", ErrFFmpegUnavailable, err)
	}

	registerAVUtilSymbols()
	registerAVCodecSymbols()
	registerSWScaleSymbols()
	return nil
}

func dlopenFirst(paths []string) (uintptr, error) {
	var lastErr error
	for _, path := range paths {
		handle, err := purego.Dlopen(path, purego.RTLD_NOW|purego.RTLD_GLOBAL)
		if err == nil {
			return handle, nil
		}
		lastErr = err
	}
	if lastErr != nil {
		return 0, lastErr
	}
	return 0, errors.New("no candidate library paths")
}

// ffmpegLibPaths builds the candidate paths for one FFmpeg library, versioned
// names first so we bind the struct layout we target.
func ffmpegLibPaths(stem string, majors []string) []string {
	var names []string
	switch runtime.GOOS {
	case "darwin":
		for _, v := range majors {
			names = append(names, fmt.Sprintf("%s.%s.dylib", stem, v))
		}
		names = append(names, stem+".dylib")
	default:
		for _, v := range majors {
			names = append(names, fmt.Sprintf("%s.so.%s", stem, v))
		}
		names = append(names, stem+".so")
	}

	var paths []string
	if envPath := os.Getenv("WEBCODECS_FFMPEG_LIB_PATH"); envPath != "" {
		for _, n := range names {
			paths = append(paths, filepath.Join(envPath, n))
		}
	}
	// Bare names defer to the system loader search path.
	paths = append(paths, names...)
	switch runtime.GOOS {
	case "darwin":
		for _, dir := range []string{"/usr/local/lib", "/opt/homebrew/lib"} {
			for _, n := range names {
				paths = append(paths, filepath.Join(dir, n))
			}
		}
	default:
		for _, dir := range []string{"/usr/lib/x86_64-linux-gnu", "/usr/lib/aarch64-linux-gnu", "/usr/local/lib", "/usr/lib"} {
			for _, n := range names {
				paths = append(paths, filepath.Join(dir, n))
			}
		}
	}
	return paths
}

// IsFFmpegAvailable reports whether the FFmpeg libraries could be loaded.
func IsFFmpegAvailable() bool {
	return loadFFmpeg() == nil
}

// goStringFromPtr converts a NUL-terminated C string pointer to a Go string.
func goStringFromPtr(ptr uintptr) string {
	if ptr == 0 {
		return ""
	}
	p := unsafe.Pointer(ptr)
	var length int
	for {
		if *(*byte)(unsafe.Pointer(uintptr(p) + uintptr(length))) == 0 {
			break
		}
		length++
		if length > 4096 { // Safety limit
			break
		}
	}
	if length == 0 {
		return ""
	}
	return string(unsafe.Slice((*byte)(p), length))
}

// copyToC copies a Go byte slice into C memory at dst.
func copyToC(dst uintptr, src []byte) {
	if len(src) == 0 || dst == 0 {
		return
	}
	copy(unsafe.Slice((*byte)(unsafe.Pointer(dst)), len(src)), src)
}

// copyFromC copies len(dst) bytes from C memory at src into dst.
func copyFromC(dst []byte, src uintptr) {
	if len(dst) == 0 || src == 0 {
		return
	}
	copy(dst, unsafe.Slice((*byte)(unsafe.Pointer(src)), len(dst)))
}
