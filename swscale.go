// libswscale bindings for pixel format conversion.

package webcodecs

import (
	"unsafe"

	"github.com/ebitengine/purego"
)

var (
	swsGetContext  func(srcW, srcH, srcFormat, dstW, dstH, dstFormat, flags int32, srcFilter, dstFilter, param uintptr) uintptr
	swsScale       func(ctx uintptr, srcSlice uintptr, srcStride uintptr, srcSliceY, srcSliceH int32, dst uintptr, dstStride uintptr) int32
	swsFreeContext func(ctx uintptr)
)

func registerSWScaleSymbols() {
	purego.RegisterLibFunc(&swsGetContext, swscaleHandle, "sws_getContext")
	purego.RegisterLibFunc(&swsScale, swscaleHandle, "sws_scale")
	purego.RegisterLibFunc(&swsFreeContext, swscaleHandle, "sws_freeContext")
}

const swsBilinear = 2 // SWS_BILINEAR

// swsScalePlanes runs one conversion over plane pointers. Pointers and
// strides are marshalled into the fixed-size arrays sws_scale expects.
func swsScalePlanes(ctx uintptr, src []uintptr, srcStride []int, height int, dst []uintptr, dstStride []int) int32 {
	var srcPtrs [4]uintptr
	var srcStrides [4]int32
	for i := 0; i < len(src) && i < 4; i++ {
		srcPtrs[i] = src[i]
		srcStrides[i] = int32(srcStride[i])
	}
	var dstPtrs [4]uintptr
	var dstStrides [4]int32
	for i := 0; i < len(dst) && i < 4; i++ {
		dstPtrs[i] = dst[i]
		dstStrides[i] = int32(dstStride[i])
	}
	return swsScale(ctx,
		uintptr(unsafe.Pointer(&srcPtrs[0])), uintptr(unsafe.Pointer(&srcStrides[0])),
		0, int32(height),
		uintptr(unsafe.Pointer(&dstPtrs[0])), uintptr(unsafe.Pointer(&dstStrides[0])))
}

// slicePtrs converts Go plane slices to raw pointers for swsScalePlanes.
// The slices must stay alive across the call.
func slicePtrs(planes [][]byte) []uintptr {
	out := make([]uintptr, len(planes))
	for i, p := range planes {
		if len(p) > 0 {
			out[i] = uintptr(unsafe.Pointer(&p[0]))
		}
	}
	return out
}
