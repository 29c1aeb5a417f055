// libavcodec bindings: codec lookup, context lifecycle, the send/receive
// pair in both directions, packet handling and side data.
//
// Offsets target libavcodec 60 (FFmpeg 6.x).

package webcodecs

import (
	"unsafe"

	"github.com/ebitengine/purego"
)

// libavcodec function pointers.
var (
	avcodecFindEncoderByName func(name string) uintptr
	avcodecFindDecoderByName func(name string) uintptr
	avcodecAllocContext3     func(codec uintptr) uintptr
	avcodecFreeContext       func(ctx *uintptr)
	avcodecOpen2             func(ctx uintptr, codec uintptr, options uintptr) int32
	avcodecSendFrame         func(ctx uintptr, frame uintptr) int32
	avcodecReceivePacket     func(ctx uintptr, pkt uintptr) int32
	avcodecSendPacket        func(ctx uintptr, pkt uintptr) int32
	avcodecReceiveFrame      func(ctx uintptr, frame uintptr) int32
	avcodecFlushBuffers      func(ctx uintptr)

	avPacketAlloc       func() uintptr
	avPacketFree        func(pkt *uintptr)
	avPacketUnref       func(pkt uintptr)
	avPacketGetSideData func(pkt uintptr, typ int32, size *uint64) uintptr
)

func registerAVCodecSymbols() {
	purego.RegisterLibFunc(&avcodecFindEncoderByName, avcodecHandle, "avcodec_find_encoder_by_name")
	purego.RegisterLibFunc(&avcodecFindDecoderByName, avcodecHandle, "avcodec_find_decoder_by_name")
	purego.RegisterLibFunc(&avcodecAllocContext3, avcodecHandle, "avcodec_alloc_context3")
	purego.RegisterLibFunc(&avcodecFreeContext, avcodecHandle, "avcodec_free_context")
	purego.RegisterLibFunc(&avcodecOpen2, avcodecHandle, "avcodec_open2")
	purego.RegisterLibFunc(&avcodecSendFrame, avcodecHandle, "avcodec_send_frame")
	purego.RegisterLibFunc(&avcodecReceivePacket, avcodecHandle, "avcodec_receive_packet")
	purego.RegisterLibFunc(&avcodecSendPacket, avcodecHandle, "avcodec_send_packet")
	purego.RegisterLibFunc(&avcodecReceiveFrame, avcodecHandle, "avcodec_receive_frame")
	purego.RegisterLibFunc(&avcodecFlushBuffers, avcodecHandle, "avcodec_flush_buffers")

	purego.RegisterLibFunc(&avPacketAlloc, avcodecHandle, "av_packet_alloc")
	purego.RegisterLibFunc(&avPacketFree, avcodecHandle, "av_packet_free")
	purego.RegisterLibFunc(&avPacketUnref, avcodecHandle, "av_packet_unref")
	purego.RegisterLibFunc(&avPacketGetSideData, avcodecHandle, "av_packet_get_side_data")
}

// Codec flags.
const (
	codecFlagGlobalHeader = 1 << 22 // AV_CODEC_FLAG_GLOBAL_HEADER
	codecFlagQScale       = 1 << 1  // AV_CODEC_FLAG_QSCALE
)

// Packet flags.
const pktFlagKey = 1 // AV_PKT_FLAG_KEY

// Packet side data types.
const pktDataMatroskaBlockAdditional = 15 // AV_PKT_DATA_MATROSKA_BLOCKADDITIONAL

// AVCodecContext field offsets (libavcodec 60).
const (
	offCtxPrivData      = 32
	offCtxBitRate       = 56
	offCtxGlobalQuality = 68
	offCtxFlags         = 76
	offCtxExtradata     = 88
	offCtxExtradataSize = 96
	offCtxTimeBaseNum   = 100
	offCtxTimeBaseDen   = 104
	offCtxWidth         = 116
	offCtxHeight        = 120
	offCtxGOPSize       = 132
	offCtxPixFmt        = 136
	offCtxMaxBFrames    = 160
	offCtxFramerateNum  = 704
	offCtxFramerateDen  = 708
	offCtxHWFramesCtx   = 840
	offCtxHWDeviceCtx   = 864
)

func ctxSetInt32(ctx uintptr, off uintptr, v int32) { *(*int32)(unsafe.Pointer(ctx + off)) = v }
func ctxSetInt64(ctx uintptr, off uintptr, v int64) { *(*int64)(unsafe.Pointer(ctx + off)) = v }
func ctxInt32(ctx uintptr, off uintptr) int32       { return *(*int32)(unsafe.Pointer(ctx + off)) }

func ctxSetGeometry(ctx uintptr, width, height int) {
	ctxSetInt32(ctx, offCtxWidth, int32(width))
	ctxSetInt32(ctx, offCtxHeight, int32(height))
}

func ctxSetTimeBase(ctx uintptr, num, den int) {
	ctxSetInt32(ctx, offCtxTimeBaseNum, int32(num))
	ctxSetInt32(ctx, offCtxTimeBaseDen, int32(den))
}

func ctxSetFramerate(ctx uintptr, num, den int) {
	ctxSetInt32(ctx, offCtxFramerateNum, int32(num))
	ctxSetInt32(ctx, offCtxFramerateDen, int32(den))
}

func ctxSetPixFmt(ctx uintptr, f int)    { ctxSetInt32(ctx, offCtxPixFmt, int32(f)) }
func ctxSetBitRate(ctx uintptr, v int64) { ctxSetInt64(ctx, offCtxBitRate, v) }
func ctxSetGOPSize(ctx uintptr, v int)   { ctxSetInt32(ctx, offCtxGOPSize, int32(v)) }
func ctxSetMaxBFrames(ctx uintptr, v int) {
	ctxSetInt32(ctx, offCtxMaxBFrames, int32(v))
}

func ctxSetGlobalQuality(ctx uintptr, v int) {
	ctxSetInt32(ctx, offCtxGlobalQuality, int32(v))
}

func ctxAddFlags(ctx uintptr, flags int32) {
	ctxSetInt32(ctx, offCtxFlags, ctxInt32(ctx, offCtxFlags)|flags)
}

func ctxSetHWDeviceCtx(ctx uintptr, ref uintptr) {
	*(*uintptr)(unsafe.Pointer(ctx + offCtxHWDeviceCtx)) = ref
}

func ctxSetHWFramesCtx(ctx uintptr, ref uintptr) {
	*(*uintptr)(unsafe.Pointer(ctx + offCtxHWFramesCtx)) = ref
}

// ctxExtradata copies the context's out-of-band parameter bytes, if any.
func ctxExtradata(ctx uintptr) []byte {
	size := ctxInt32(ctx, offCtxExtradataSize)
	if size <= 0 {
		return nil
	}
	data := *(*uintptr)(unsafe.Pointer(ctx + offCtxExtradata))
	if data == 0 {
		return nil
	}
	out := make([]byte, size)
	copy(out, unsafe.Slice((*byte)(unsafe.Pointer(data)), size))
	return out
}

// inputBufferPadding is AV_INPUT_BUFFER_PADDING_SIZE.
const inputBufferPadding = 64

// ctxSetExtradata hands the context a copy of out-of-band parameter bytes.
// The buffer must come from av_malloc with input padding; the context owns
// and frees it.
func ctxSetExtradata(ctx uintptr, data []byte) {
	buf := avMalloc(uint64(len(data) + inputBufferPadding))
	if buf == 0 {
		return
	}
	copyToC(buf, data)
	*(*uintptr)(unsafe.Pointer(ctx + offCtxExtradata)) = buf
	*(*int32)(unsafe.Pointer(ctx + offCtxExtradataSize)) = int32(len(data))
}

// AVPacket field offsets (libavcodec 60).
const (
	offPktPTS      = 8
	offPktDTS      = 16
	offPktData     = 24
	offPktSize     = 32
	offPktFlags    = 40
	offPktDuration = 64
)

func pktPTS(pkt uintptr) int64      { return *(*int64)(unsafe.Pointer(pkt + offPktPTS)) }
func pktDuration(pkt uintptr) int64 { return *(*int64)(unsafe.Pointer(pkt + offPktDuration)) }
func pktFlags(pkt uintptr) int32    { return *(*int32)(unsafe.Pointer(pkt + offPktFlags)) }

// pktData copies the packet payload.
func pktData(pkt uintptr) []byte {
	size := *(*int32)(unsafe.Pointer(pkt + offPktSize))
	if size <= 0 {
		return nil
	}
	data := *(*uintptr)(unsafe.Pointer(pkt + offPktData))
	if data == 0 {
		return nil
	}
	out := make([]byte, size)
	copy(out, unsafe.Slice((*byte)(unsafe.Pointer(data)), size))
	return out
}

// setPktData points the packet at caller-owned bytes. The bytes must stay
// alive and unmodified until the codec is done with the packet.
func setPktData(pkt uintptr, data []byte) {
	if len(data) == 0 {
		*(*uintptr)(unsafe.Pointer(pkt + offPktData)) = 0
		*(*int32)(unsafe.Pointer(pkt + offPktSize)) = 0
		return
	}
	*(*uintptr)(unsafe.Pointer(pkt + offPktData)) = uintptr(unsafe.Pointer(&data[0]))
	*(*int32)(unsafe.Pointer(pkt + offPktSize)) = int32(len(data))
}

func setPktPTS(pkt uintptr, pts int64)           { *(*int64)(unsafe.Pointer(pkt + offPktPTS)) = pts }
func setPktDTS(pkt uintptr, dts int64)           { *(*int64)(unsafe.Pointer(pkt + offPktDTS)) = dts }
func setPktDuration(pkt uintptr, duration int64) { *(*int64)(unsafe.Pointer(pkt + offPktDuration)) = duration }
func setPktFlags(pkt uintptr, flags int32)       { *(*int32)(unsafe.Pointer(pkt + offPktFlags)) = flags }

// pktAlphaSideData copies the encoded alpha plane attached as Matroska
// block-additional side data, if present.
func pktAlphaSideData(pkt uintptr) []byte {
	var size uint64
	data := avPacketGetSideData(pkt, pktDataMatroskaBlockAdditional, &size)
	if data == 0 || size == 0 {
		return nil
	}
	out := make([]byte, size)
	copy(out, unsafe.Slice((*byte)(unsafe.Pointer(data)), size))
	return out
}

// AVCodec name field offset (libavcodec 60: const char *name at offset 8).
const offCodecName = 8

// codecName reads the short name of an AVCodec.
func codecName(codec uintptr) string {
	if codec == 0 {
		return ""
	}
	return goStringFromPtr(*(*uintptr)(unsafe.Pointer(codec + offCodecName)))
}
