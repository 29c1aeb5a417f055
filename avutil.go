// libavutil bindings: frames, options, buffers, hardware device/frame
// contexts, error strings.
//
// Struct field access prefers AVOptions where FFmpeg exposes one; the few
// fields without an option use documented offsets for libavutil 58
// (FFmpeg 6.x). Offsets verified with offsetof() against that release.

package webcodecs

import (
	"fmt"
	"runtime"
	"unsafe"

	"github.com/ebitengine/purego"
)

// libavutil function pointers.
var (
	avStrerror     func(errnum int32, buf uintptr, size uint64) int32
	avMalloc       func(size uint64) uintptr
	avFree         func(ptr uintptr)
	avOptSet       func(obj uintptr, name string, val string, searchFlags int32) int32
	avOptSetInt    func(obj uintptr, name string, val int64, searchFlags int32) int32
	avOptSetDouble func(obj uintptr, name string, val float64, searchFlags int32) int32

	avFrameAlloc     func() uintptr
	avFrameFree      func(frame *uintptr)
	avFrameGetBuffer func(frame uintptr, align int32) int32
	avFrameUnref     func(frame uintptr)

	avBufferRef   func(buf uintptr) uintptr
	avBufferUnref func(buf *uintptr)

	avHWDeviceCtxCreate   func(deviceCtx *uintptr, typ int32, device uintptr, opts uintptr, flags int32) int32
	avHWFrameCtxAlloc     func(deviceRef uintptr) uintptr
	avHWFrameCtxInit      func(ref uintptr) int32
	avHWFrameGetBuffer    func(hwFramesRef uintptr, frame uintptr, flags int32) int32
	avHWFrameTransferData func(dst uintptr, src uintptr, flags int32) int32
)

func registerAVUtilSymbols() {
	purego.RegisterLibFunc(&avStrerror, avutilHandle, "av_strerror")
	purego.RegisterLibFunc(&avMalloc, avutilHandle, "av_malloc")
	purego.RegisterLibFunc(&avFree, avutilHandle, "av_free")
	purego.RegisterLibFunc(&avOptSet, avutilHandle, "av_opt_set")
	purego.RegisterLibFunc(&avOptSetInt, avutilHandle, "av_opt_set_int")
	purego.RegisterLibFunc(&avOptSetDouble, avutilHandle, "av_opt_set_double")

	purego.RegisterLibFunc(&avFrameAlloc, avutilHandle, "av_frame_alloc")
	purego.RegisterLibFunc(&avFrameFree, avutilHandle, "av_frame_free")
	purego.RegisterLibFunc(&avFrameGetBuffer, avutilHandle, "av_frame_get_buffer")
	purego.RegisterLibFunc(&avFrameUnref, avutilHandle, "av_frame_unref")

	purego.RegisterLibFunc(&avBufferRef, avutilHandle, "av_buffer_ref")
	purego.RegisterLibFunc(&avBufferUnref, avutilHandle, "av_buffer_unref")

	purego.RegisterLibFunc(&avHWDeviceCtxCreate, avutilHandle, "av_hwdevice_ctx_create")
	purego.RegisterLibFunc(&avHWFrameCtxAlloc, avutilHandle, "av_hwframe_ctx_alloc")
	purego.RegisterLibFunc(&avHWFrameCtxInit, avutilHandle, "av_hwframe_ctx_init")
	purego.RegisterLibFunc(&avHWFrameGetBuffer, avutilHandle, "av_hwframe_get_buffer")
	purego.RegisterLibFunc(&avHWFrameTransferData, avutilHandle, "av_hwframe_transfer_data")
}

// AVOption search flag: descend into child objects (reaches priv_data
// options without touching the priv_data pointer).
const avOptSearchChildren = 1 << 0

// Pixel formats (libavutil 58).
const (
	pixFmtNone     = -1
	pixFmtYUV420P  = 0
	pixFmtYUVJ420P = 12
	pixFmtNV12     = 23
	pixFmtRGBA     = 26
	pixFmtBGRA     = 28
	pixFmtYUVA420P = 33
	pixFmtVAAPI    = 44
	pixFmtQSV      = 114
	pixFmtCUDA     = 117
	pixFmtVTB      = 158
)

// Hardware device types (enum AVHWDeviceType).
const (
	hwDeviceNone         = 0
	hwDeviceVDPAU        = 1
	hwDeviceCUDA         = 2
	hwDeviceVAAPI        = 3
	hwDeviceDXVA2        = 4
	hwDeviceQSV          = 5
	hwDeviceVideoToolbox = 6
)

// AVPictureType.
const pictureTypeI = 1

// averrEOF is FFERRTAG('E','O','F',' ').
const averrEOF = -541478725

// averrEAGAIN mirrors AVERROR(EAGAIN), which is platform-dependent.
var averrEAGAIN = func() int32 {
	if runtime.GOOS == "darwin" {
		return -35
	}
	return -11
}()

// averror wraps an FFmpeg error code with its human-readable string.
func averror(code int32, op string) error {
	buf := make([]byte, 256)
	if avStrerror != nil && avStrerror(code, uintptr(unsafe.Pointer(&buf[0])), uint64(len(buf))) == 0 {
		return fmt.Errorf("%s: %s", op, goStringFromPtr(uintptr(unsafe.Pointer(&buf[0]))))
	}
	return fmt.Errorf("%s: error %d", op, code)
}

// freeStaged calls an FFmpeg free-through-double-pointer function without
// handing it a pointer into Go memory: the pointer is staged in
// av_malloc'd memory first.
func freeStaged(ptr uintptr, free func(*uintptr)) {
	if ptr == 0 {
		return
	}
	tmp := avMalloc(uint64(unsafe.Sizeof(uintptr(0))))
	if tmp == 0 {
		var p = ptr
		free(&p)
		return
	}
	*(*uintptr)(unsafe.Pointer(tmp)) = ptr
	free((*uintptr)(unsafe.Pointer(tmp)))
	avFree(tmp)
}

// AVFrame field offsets (libavutil 58).
const (
	offFrameData     = 0   // uint8_t *data[8]
	offFrameLinesize = 64  // int linesize[8]
	offFrameWidth    = 104 // int width
	offFrameHeight   = 108 // int height
	offFrameFormat   = 116 // int format
	offFramePictType = 124 // enum AVPictureType pict_type
	offFramePTS      = 136 // int64_t pts
)

func frameDataPtr(frame uintptr, plane int) uintptr {
	return *(*uintptr)(unsafe.Pointer(frame + offFrameData + uintptr(plane)*8))
}

func frameLinesize(frame uintptr, plane int) int {
	return int(*(*int32)(unsafe.Pointer(frame + offFrameLinesize + uintptr(plane)*4)))
}

func frameWidth(frame uintptr) int  { return int(*(*int32)(unsafe.Pointer(frame + offFrameWidth))) }
func frameHeight(frame uintptr) int { return int(*(*int32)(unsafe.Pointer(frame + offFrameHeight))) }
func frameFormat(frame uintptr) int { return int(*(*int32)(unsafe.Pointer(frame + offFrameFormat))) }
func framePTS(frame uintptr) int64  { return *(*int64)(unsafe.Pointer(frame + offFramePTS)) }

func setFrameGeometry(frame uintptr, width, height, format int) {
	*(*int32)(unsafe.Pointer(frame + offFrameWidth)) = int32(width)
	*(*int32)(unsafe.Pointer(frame + offFrameHeight)) = int32(height)
	*(*int32)(unsafe.Pointer(frame + offFrameFormat)) = int32(format)
}

func setFramePTS(frame uintptr, pts int64) {
	*(*int64)(unsafe.Pointer(frame + offFramePTS)) = pts
}

func setFramePictType(frame uintptr, typ int32) {
	*(*int32)(unsafe.Pointer(frame + offFramePictType)) = typ
}

// AVHWFramesContext field offsets (libavutil 58). The context struct lives
// behind an AVBufferRef whose data pointer is at offset 8.
const (
	offBufferRefData = 8

	offHWFramesFormat   = 56 // enum AVPixelFormat format
	offHWFramesSWFormat = 60 // enum AVPixelFormat sw_format
	offHWFramesWidth    = 64 // int width
	offHWFramesHeight   = 68 // int height
	offHWFramesPoolSize = 72 // int initial_pool_size
)

func configureHWFramesCtx(framesRef uintptr, format, swFormat, width, height, poolSize int) {
	data := *(*uintptr)(unsafe.Pointer(framesRef + offBufferRefData))
	*(*int32)(unsafe.Pointer(data + offHWFramesFormat)) = int32(format)
	*(*int32)(unsafe.Pointer(data + offHWFramesSWFormat)) = int32(swFormat)
	*(*int32)(unsafe.Pointer(data + offHWFramesWidth)) = int32(width)
	*(*int32)(unsafe.Pointer(data + offHWFramesHeight)) = int32(height)
	*(*int32)(unsafe.Pointer(data + offHWFramesPoolSize)) = int32(poolSize)
}

// createHWDeviceContext allocates a hardware device context for the given
// device type. Returns 0 when the device cannot be opened.
func createHWDeviceContext(typ int32) uintptr {
	tmp := avMalloc(uint64(unsafe.Sizeof(uintptr(0))))
	if tmp == 0 {
		return 0
	}
	defer avFree(tmp)
	*(*uintptr)(unsafe.Pointer(tmp)) = 0
	if avHWDeviceCtxCreate((*uintptr)(unsafe.Pointer(tmp)), typ, 0, 0, 0) < 0 {
		return 0
	}
	return *(*uintptr)(unsafe.Pointer(tmp))
}

// avPixelFormat maps a package PixelFormat to the libavutil enum.
func avPixelFormat(p PixelFormat) int {
	switch p {
	case PixelFormatI420:
		return pixFmtYUV420P
	case PixelFormatI420A:
		return pixFmtYUVA420P
	case PixelFormatNV12:
		return pixFmtNV12
	case PixelFormatRGBA:
		return pixFmtRGBA
	case PixelFormatBGRA:
		return pixFmtBGRA
	default:
		return pixFmtNone
	}
}

// pixelFormatFromAV maps a libavutil pixel format back to the package enum.
// Unknown formats map to (PixelFormatI420, false).
func pixelFormatFromAV(f int) (PixelFormat, bool) {
	switch f {
	case pixFmtYUV420P, pixFmtYUVJ420P:
		return PixelFormatI420, true
	case pixFmtYUVA420P:
		return PixelFormatI420A, true
	case pixFmtNV12:
		return PixelFormatNV12, true
	case pixFmtRGBA:
		return PixelFormatRGBA, true
	case pixFmtBGRA:
		return PixelFormatBGRA, true
	default:
		return PixelFormatI420, false
	}
}
