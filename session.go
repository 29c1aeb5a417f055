// Codec sessions.
//
// A session wraps one open FFmpeg codec context. Sessions are not safe for
// concurrent use; each is owned by exactly one worker goroutine after
// configure. The worker interacts with sessions only through the
// encodeSession/decodeSession interfaces so its queue and barrier logic can
// be tested without FFmpeg.

package webcodecs

import (
	"fmt"
	"strings"

	"github.com/hashicorp/go-multierror"
	"github.com/pion/logging"
)

// encodeSession is what the encoder worker drives.
type encodeSession interface {
	// Encode submits one frame and returns the chunks the codec produced.
	// A nil slice with nil error is normal; the codec may buffer.
	Encode(frame *VideoFrame, keyFrame bool) ([]*EncodedVideoChunk, error)
	// Drain signals end of stream and returns all remaining chunks. The
	// session cannot encode again until Reset.
	Drain() ([]*EncodedVideoChunk, error)
	// Reset drops codec-internal buffered state.
	Reset()
	Close() error
	// Implementation returns the FFmpeg implementation name in use.
	Implementation() string
	// HardwareAccelerated reports whether the open implementation runs on
	// an accelerator.
	HardwareAccelerated() bool
}

// decodeSession is what the decoder worker drives.
type decodeSession interface {
	Decode(chunk *EncodedVideoChunk) ([]*VideoFrame, error)
	Drain() ([]*VideoFrame, error)
	Reset()
	Close() error
	Implementation() string
	HardwareAccelerated() bool
}

const hwFramePoolSize = 20

type ffmpegEncodeSession struct {
	ctx      uintptr
	implName string
	hardware bool

	hwDeviceRef uintptr
	hwFramesRef uintptr

	width    int // configured output geometry
	height   int
	swFormat int // upload target pixel format
	conv     frameConverter

	frame   uintptr // staging software frame
	hwFrame uintptr // surface frame when hardware
	pkt     uintptr

	extradata []byte
	layerPlan *temporalLayerPlan
	pktIndex  int64
	durations map[int64]int64 // pts of in-flight frames to submitted Duration
	drained   bool

	log logging.LeveledLogger
}

// newEncodeSession walks the ranked implementation candidates and opens the
// first one that accepts the configuration. Hardware implementations are
// tried first unless software is preferred; a hardware open failure falls
// through to the software tier, so configure only fails once every
// candidate has been rejected.
func newEncodeSession(cfg VideoEncoderConfig, info CodecInfo, log logging.LeveledLogger) (*ffmpegEncodeSession, error) {
	if err := loadFFmpeg(); err != nil {
		return nil, err
	}
	candidates := rankEncoderCandidates(info.Codec, cfg.HardwareAcceleration)
	if len(candidates) == 0 {
		return nil, fmt.Errorf("%w: %s (%s)", ErrNoEncoder, info.Codec, cfg.HardwareAcceleration)
	}

	var errs error
	for _, cand := range candidates {
		s, err := openEncodeSession(cand, cfg, info, log)
		if err == nil {
			log.Debugf("encoder open: %s (hardware=%v)", s.implName, s.hardware)
			return s, nil
		}
		log.Debugf("encoder candidate %s failed: %v", cand.name, err)
		errs = multierror.Append(errs, fmt.Errorf("%s: %w", cand.name, err))
	}
	return nil, fmt.Errorf("%w: %v", ErrNoEncoder, errs)
}

func openEncodeSession(cand encoderCandidate, cfg VideoEncoderConfig, info CodecInfo, log logging.LeveledLogger) (s *ffmpegEncodeSession, err error) {
	codec := avcodecFindEncoderByName(cand.name)
	if codec == 0 {
		return nil, fmt.Errorf("%w: implementation %q not built in", ErrCodecNotSupported, cand.name)
	}
	ctx := avcodecAllocContext3(codec)
	if ctx == 0 {
		return nil, fmt.Errorf("avcodec_alloc_context3 failed")
	}
	s = &ffmpegEncodeSession{
		ctx:       ctx,
		implName:  cand.name,
		hardware:  cand.hardware,
		width:     cfg.Width,
		height:    cfg.Height,
		durations: make(map[int64]int64),
		log:       log,
	}
	defer func() {
		if err != nil {
			s.Close()
		}
	}()

	ctxSetGeometry(ctx, cfg.Width, cfg.Height)
	// Microsecond timebase so frame timestamps pass through unscaled.
	ctxSetTimeBase(ctx, 1, 1000000)
	if cfg.Framerate > 0 {
		ctxSetFramerate(ctx, int(cfg.Framerate*1000), 1000)
	}
	if cfg.KeyframeInterval > 0 {
		ctxSetGOPSize(ctx, cfg.KeyframeInterval)
	}

	s.swFormat = pixFmtYUV420P
	if cfg.Alpha == AlphaKeep && strings.HasPrefix(cand.name, "libvpx") {
		s.swFormat = pixFmtYUVA420P
		avOptSetInt(ctx, "auto-alt-ref", 0, avOptSearchChildren)
	}
	if cand.hardware {
		s.swFormat = pixFmtNV12
		ctxSetPixFmt(ctx, cand.backend.pixFmt)
	} else {
		ctxSetPixFmt(ctx, s.swFormat)
	}

	if cs := cfg.ColorSpace; cs != nil {
		avOptSetInt(ctx, "color_primaries", int64(ParseColorPrimaries(cs.Primaries)), avOptSearchChildren)
		avOptSetInt(ctx, "color_trc", int64(ParseColorTransfer(cs.Transfer)), avOptSearchChildren)
		avOptSetInt(ctx, "colorspace", int64(ParseColorMatrix(cs.Matrix)), avOptSearchChildren)
		r := int64(colRangeMPEG)
		if cs.FullRange {
			r = colRangeJPEG
		}
		avOptSetInt(ctx, "color_range", r, avOptSearchChildren)
	}

	// Length-prefixed output keeps parameter sets out of band, so the
	// context must collect them into extradata.
	if cfg.AVC.Format == AVCFormatAVC && (info.Codec == VideoCodecH264 || info.Codec == VideoCodecH265) {
		ctxAddFlags(ctx, codecFlagGlobalHeader)
	}
	if info.Codec == VideoCodecH264 && info.Profile >= 0 {
		avOptSetInt(ctx, "profile", int64(info.Profile), avOptSearchChildren)
	}

	applyRateControl(ctx, cand.name, cfg.BitrateMode, cfg.Bitrate, cfg.Quantizer)
	applyLatencyTuning(ctx, cand.name, cfg.LatencyMode)

	svc := ParseScalabilityMode(cfg.ScalabilityMode)
	if svc.TemporalLayers > 1 {
		if applyTemporalLayers(ctx, cand.name, svc.TemporalLayers, cfg.Bitrate) {
			plan := temporalLayerPlans[svc.TemporalLayers]
			s.layerPlan = &plan
		}
	}

	if cand.hardware {
		if err := s.setupHardwareFrames(cand.backend, cfg.Width, cfg.Height); err != nil {
			return nil, err
		}
	}

	if code := avcodecOpen2(ctx, codec, 0); code < 0 {
		return nil, averror(code, "avcodec_open2")
	}

	s.frame = avFrameAlloc()
	s.pkt = avPacketAlloc()
	if s.frame == 0 || s.pkt == 0 {
		return nil, fmt.Errorf("frame/packet allocation failed")
	}
	if cand.hardware {
		if s.hwFrame = avFrameAlloc(); s.hwFrame == 0 {
			return nil, fmt.Errorf("frame allocation failed")
		}
	}
	s.extradata = ctxExtradata(ctx)
	return s, nil
}

// setupHardwareFrames creates the device context and a fixed-size surface
// pool, and attaches both to the codec context.
func (s *ffmpegEncodeSession) setupHardwareFrames(b hwBackend, width, height int) error {
	s.hwDeviceRef = createHWDeviceContext(b.deviceType)
	if s.hwDeviceRef == 0 {
		return fmt.Errorf("hardware device %q not available", b.name)
	}
	s.hwFramesRef = avHWFrameCtxAlloc(s.hwDeviceRef)
	if s.hwFramesRef == 0 {
		return fmt.Errorf("av_hwframe_ctx_alloc failed")
	}
	configureHWFramesCtx(s.hwFramesRef, b.pixFmt, pixFmtNV12, width, height, hwFramePoolSize)
	if code := avHWFrameCtxInit(s.hwFramesRef); code < 0 {
		return averror(code, "av_hwframe_ctx_init")
	}
	ref := avBufferRef(s.hwFramesRef)
	if ref == 0 {
		return fmt.Errorf("av_buffer_ref failed")
	}
	ctxSetHWFramesCtx(s.ctx, ref)
	return nil
}

func (s *ffmpegEncodeSession) Implementation() string    { return s.implName }
func (s *ffmpegEncodeSession) HardwareAccelerated() bool { return s.hardware }

func (s *ffmpegEncodeSession) Encode(frame *VideoFrame, keyFrame bool) ([]*EncodedVideoChunk, error) {
	if s.drained {
		return nil, fmt.Errorf("encode after drain")
	}
	avFrameUnref(s.frame)
	if err := s.conv.upload(s.frame, frame, s.width, s.height, s.swFormat); err != nil {
		return nil, err
	}
	setFramePTS(s.frame, frame.Timestamp)
	if keyFrame {
		setFramePictType(s.frame, pictureTypeI)
	}

	send := s.frame
	if s.hardware {
		avFrameUnref(s.hwFrame)
		if code := avHWFrameGetBuffer(s.hwFramesRef, s.hwFrame, 0); code < 0 {
			return nil, averror(code, "av_hwframe_get_buffer")
		}
		if code := avHWFrameTransferData(s.hwFrame, s.frame, 0); code < 0 {
			return nil, averror(code, "av_hwframe_transfer_data")
		}
		setFramePTS(s.hwFrame, frame.Timestamp)
		if keyFrame {
			setFramePictType(s.hwFrame, pictureTypeI)
		}
		send = s.hwFrame
	}

	if code := avcodecSendFrame(s.ctx, send); code < 0 {
		return nil, averror(code, "avcodec_send_frame")
	}
	s.durations[frame.Timestamp] = frame.Duration
	return s.receiveChunks()
}

func (s *ffmpegEncodeSession) Drain() ([]*EncodedVideoChunk, error) {
	if s.drained {
		return nil, nil
	}
	s.drained = true
	if code := avcodecSendFrame(s.ctx, 0); code < 0 && code != averrEOF {
		return nil, averror(code, "avcodec_send_frame")
	}
	return s.receiveChunks()
}

// receiveChunks pulls every packet the codec has ready. EAGAIN and EOF end
// the loop cleanly; everything else is an error.
func (s *ffmpegEncodeSession) receiveChunks() ([]*EncodedVideoChunk, error) {
	var out []*EncodedVideoChunk
	for {
		code := avcodecReceivePacket(s.ctx, s.pkt)
		if code == averrEAGAIN || code == averrEOF {
			return out, nil
		}
		if code < 0 {
			return out, averror(code, "avcodec_receive_packet")
		}
		out = append(out, s.packetToChunk())
		avPacketUnref(s.pkt)
	}
}

func (s *ffmpegEncodeSession) packetToChunk() *EncodedVideoChunk {
	chunk := &EncodedVideoChunk{
		Data:      pktData(s.pkt),
		Timestamp: pktPTS(s.pkt),
		Duration:  pktDuration(s.pkt),
	}
	// Lookahead codecs emit packets for frames submitted several calls
	// ago, so the duration has to come from the matching submission.
	if chunk.Duration == 0 {
		chunk.Duration = s.durations[chunk.Timestamp]
	}
	delete(s.durations, chunk.Timestamp)
	if pktFlags(s.pkt)&pktFlagKey != 0 {
		chunk.Type = ChunkTypeKey
		chunk.DecoderConfig = s.extradata
	} else {
		chunk.Type = ChunkTypeDelta
	}
	chunk.AlphaSideData = pktAlphaSideData(s.pkt)
	if s.layerPlan != nil {
		chunk.TemporalLayerID = s.layerPlan.LayerSequence[s.pktIndex%int64(s.layerPlan.Periodicity)]
	}
	s.pktIndex++
	return chunk
}

// Reset drops buffered codec state without reopening. Output resumes at the
// next keyframe.
func (s *ffmpegEncodeSession) Reset() {
	avcodecFlushBuffers(s.ctx)
	s.drained = false
	s.pktIndex = 0
	s.durations = make(map[int64]int64)
}

func (s *ffmpegEncodeSession) Close() error {
	s.conv.Close()
	if s.frame != 0 {
		freeStaged(s.frame, avFrameFree)
		s.frame = 0
	}
	if s.hwFrame != 0 {
		freeStaged(s.hwFrame, avFrameFree)
		s.hwFrame = 0
	}
	if s.pkt != 0 {
		freeStaged(s.pkt, avPacketFree)
		s.pkt = 0
	}
	if s.ctx != 0 {
		freeStaged(s.ctx, avcodecFreeContext)
		s.ctx = 0
	}
	if s.hwFramesRef != 0 {
		freeStaged(s.hwFramesRef, avBufferUnref)
		s.hwFramesRef = 0
	}
	if s.hwDeviceRef != 0 {
		freeStaged(s.hwDeviceRef, avBufferUnref)
		s.hwDeviceRef = 0
	}
	return nil
}

type ffmpegDecodeSession struct {
	ctx      uintptr
	implName string
	hardware bool

	frame   uintptr
	swFrame uintptr // transfer target when the decoder outputs surfaces
	pkt     uintptr
	drained bool

	log logging.LeveledLogger
}

func newDecodeSession(cfg VideoDecoderConfig, info CodecInfo, log logging.LeveledLogger) (*ffmpegDecodeSession, error) {
	if err := loadFFmpeg(); err != nil {
		return nil, err
	}
	candidates := rankDecoderCandidates(info.Codec, cfg.HardwareAcceleration)
	if len(candidates) == 0 {
		return nil, fmt.Errorf("%w: no decoder for %s", ErrCodecNotSupported, info.Codec)
	}

	var errs error
	for _, cand := range candidates {
		s, err := openDecodeSession(cand, cfg, log)
		if err == nil {
			log.Debugf("decoder open: %s (hardware=%v)", s.implName, s.hardware)
			return s, nil
		}
		log.Debugf("decoder candidate %s failed: %v", cand.name, err)
		errs = multierror.Append(errs, fmt.Errorf("%s: %w", cand.name, err))
	}
	return nil, fmt.Errorf("%w: %v", ErrCodecNotSupported, errs)
}

func openDecodeSession(cand encoderCandidate, cfg VideoDecoderConfig, log logging.LeveledLogger) (s *ffmpegDecodeSession, err error) {
	codec := avcodecFindDecoderByName(cand.name)
	if codec == 0 {
		return nil, fmt.Errorf("%w: implementation %q not built in", ErrCodecNotSupported, cand.name)
	}
	ctx := avcodecAllocContext3(codec)
	if ctx == 0 {
		return nil, fmt.Errorf("avcodec_alloc_context3 failed")
	}
	s = &ffmpegDecodeSession{
		ctx:      ctx,
		implName: cand.name,
		hardware: cand.hardware,
		log:      log,
	}
	defer func() {
		if err != nil {
			s.Close()
		}
	}()

	if cfg.CodedWidth > 0 && cfg.CodedHeight > 0 {
		ctxSetGeometry(ctx, cfg.CodedWidth, cfg.CodedHeight)
	}
	ctxSetTimeBase(ctx, 1, 1000000)
	if len(cfg.Description) > 0 {
		ctxSetExtradata(ctx, cfg.Description)
	}
	if cfg.OptimizeForLatency {
		avOptSetInt(ctx, "threads", 1, avOptSearchChildren)
	}

	if code := avcodecOpen2(ctx, codec, 0); code < 0 {
		return nil, averror(code, "avcodec_open2")
	}

	s.frame = avFrameAlloc()
	s.swFrame = avFrameAlloc()
	s.pkt = avPacketAlloc()
	if s.frame == 0 || s.swFrame == 0 || s.pkt == 0 {
		return nil, fmt.Errorf("frame/packet allocation failed")
	}
	return s, nil
}

func (s *ffmpegDecodeSession) Implementation() string    { return s.implName }
func (s *ffmpegDecodeSession) HardwareAccelerated() bool { return s.hardware }

func (s *ffmpegDecodeSession) Decode(chunk *EncodedVideoChunk) ([]*VideoFrame, error) {
	if s.drained {
		return nil, fmt.Errorf("decode after drain")
	}
	if len(chunk.Data) == 0 {
		return nil, ErrInvalidFrame
	}
	avPacketUnref(s.pkt)
	setPktData(s.pkt, chunk.Data)
	setPktPTS(s.pkt, chunk.Timestamp)
	setPktDTS(s.pkt, chunk.Timestamp)
	setPktDuration(s.pkt, chunk.Duration)
	if chunk.Type == ChunkTypeKey {
		setPktFlags(s.pkt, pktFlagKey)
	} else {
		setPktFlags(s.pkt, 0)
	}

	code := avcodecSendPacket(s.ctx, s.pkt)
	// The packet points into chunk.Data; detach before anything else can
	// recycle the packet.
	setPktData(s.pkt, nil)
	if code < 0 {
		return nil, averror(code, "avcodec_send_packet")
	}
	return s.receiveFrames()
}

func (s *ffmpegDecodeSession) Drain() ([]*VideoFrame, error) {
	if s.drained {
		return nil, nil
	}
	s.drained = true
	if code := avcodecSendPacket(s.ctx, 0); code < 0 && code != averrEOF {
		return nil, averror(code, "avcodec_send_packet")
	}
	return s.receiveFrames()
}

func (s *ffmpegDecodeSession) receiveFrames() ([]*VideoFrame, error) {
	var out []*VideoFrame
	for {
		code := avcodecReceiveFrame(s.ctx, s.frame)
		if code == averrEAGAIN || code == averrEOF {
			return out, nil
		}
		if code < 0 {
			return out, averror(code, "avcodec_receive_frame")
		}
		src := s.frame
		if _, ok := pixelFormatFromAV(frameFormat(s.frame)); !ok {
			// Surface output; pull it back to system memory.
			avFrameUnref(s.swFrame)
			if c := avHWFrameTransferData(s.swFrame, s.frame, 0); c < 0 {
				avFrameUnref(s.frame)
				return out, averror(c, "av_hwframe_transfer_data")
			}
			setFramePTS(s.swFrame, framePTS(s.frame))
			src = s.swFrame
		}
		frame, err := downloadFrame(src)
		avFrameUnref(s.frame)
		if err != nil {
			return out, err
		}
		out = append(out, frame)
	}
}

func (s *ffmpegDecodeSession) Reset() {
	avcodecFlushBuffers(s.ctx)
	s.drained = false
}

func (s *ffmpegDecodeSession) Close() error {
	if s.frame != 0 {
		freeStaged(s.frame, avFrameFree)
		s.frame = 0
	}
	if s.swFrame != 0 {
		freeStaged(s.swFrame, avFrameFree)
		s.swFrame = 0
	}
	if s.pkt != 0 {
		freeStaged(s.pkt, avPacketFree)
		s.pkt = 0
	}
	if s.ctx != 0 {
		freeStaged(s.ctx, avcodecFreeContext)
		s.ctx = 0
	}
	return nil
}
