package webcodecs

// ScaleMode defines how scaling handles aspect ratio mismatches.
type ScaleMode int

const (
	// ScaleModeFit scales to fit within target dimensions, preserving aspect ratio (may letterbox).
	ScaleModeFit ScaleMode = iota
	// ScaleModeFill scales to fill target dimensions, preserving aspect ratio (may crop).
	ScaleModeFill
	// ScaleModeStretch scales to exactly match target dimensions (may distort).
	ScaleModeStretch
)

// VideoScaler scales planar YUV frames (I420 and I420A) in pure Go with
// fixed-point bilinear interpolation. Output buffers are reused across
// calls, so a scaled frame is only valid until the next Scale.
type VideoScaler struct {
	dstWidth, dstHeight int
	mode                ScaleMode

	planes [4][]byte
}

// NewVideoScaler creates a scaler targeting the given dimensions. Odd target
// dimensions are rounded up to keep the chroma planes aligned.
func NewVideoScaler(dstWidth, dstHeight int, mode ScaleMode) *VideoScaler {
	dstWidth = (dstWidth + 1) &^ 1
	dstHeight = (dstHeight + 1) &^ 1
	s := &VideoScaler{dstWidth: dstWidth, dstHeight: dstHeight, mode: mode}
	ySize := dstWidth * dstHeight
	uvSize := (dstWidth / 2) * (dstHeight / 2)
	s.planes[0] = make([]byte, ySize)
	s.planes[1] = make([]byte, uvSize)
	s.planes[2] = make([]byte, uvSize)
	s.planes[3] = make([]byte, ySize) // alpha, used only for I420A input
	return s
}

// Scale scales an I420 or I420A frame to the target dimensions. Frames
// already at the target size pass through untouched.
func (s *VideoScaler) Scale(frame *VideoFrame) *VideoFrame {
	if frame.Format != PixelFormatI420 && frame.Format != PixelFormatI420A {
		return frame
	}
	if frame.Width == s.dstWidth && frame.Height == s.dstHeight {
		return frame
	}

	srcX, srcY, srcW, srcH := s.sourceRegion(frame.Width, frame.Height)

	scalePlane(frame.Data[0], frame.Stride[0], srcX, srcY, srcW, srcH,
		s.planes[0], s.dstWidth, s.dstWidth, s.dstHeight)
	scalePlane(frame.Data[1], frame.Stride[1], srcX/2, srcY/2, srcW/2, srcH/2,
		s.planes[1], s.dstWidth/2, s.dstWidth/2, s.dstHeight/2)
	scalePlane(frame.Data[2], frame.Stride[2], srcX/2, srcY/2, srcW/2, srcH/2,
		s.planes[2], s.dstWidth/2, s.dstWidth/2, s.dstHeight/2)

	out := &VideoFrame{
		Data:      [][]byte{s.planes[0], s.planes[1], s.planes[2]},
		Stride:    []int{s.dstWidth, s.dstWidth / 2, s.dstWidth / 2},
		Width:     s.dstWidth,
		Height:    s.dstHeight,
		Format:    frame.Format,
		Timestamp: frame.Timestamp,
		Duration:  frame.Duration,
	}
	if frame.Format == PixelFormatI420A {
		scalePlane(frame.Data[3], frame.Stride[3], srcX, srcY, srcW, srcH,
			s.planes[3], s.dstWidth, s.dstWidth, s.dstHeight)
		out.Data = append(out.Data, s.planes[3])
		out.Stride = append(out.Stride, s.dstWidth)
	}
	return out
}

// sourceRegion picks the source rectangle for the configured mode. Fill
// crops the source to the target aspect ratio; the other modes use the
// whole source.
func (s *VideoScaler) sourceRegion(srcW, srcH int) (x, y, w, h int) {
	if s.mode != ScaleModeFill {
		return 0, 0, srcW, srcH
	}
	srcAspect := float64(srcW) / float64(srcH)
	dstAspect := float64(s.dstWidth) / float64(s.dstHeight)
	switch {
	case srcAspect > dstAspect:
		newW := int(float64(srcH) * dstAspect)
		return (srcW - newW) / 2, 0, newW, srcH
	case srcAspect < dstAspect:
		newH := int(float64(srcW) / dstAspect)
		return 0, (srcH - newH) / 2, srcW, newH
	}
	return 0, 0, srcW, srcH
}

// scalePlane scales one plane with 16.16 fixed-point bilinear interpolation.
func scalePlane(src []byte, srcStride, srcX, srcY, srcW, srcH int,
	dst []byte, dstStride, dstW, dstH int) {
	if srcW <= 0 || srcH <= 0 || dstW <= 0 || dstH <= 0 {
		return
	}

	xRatio := (srcW << 16) / dstW
	yRatio := (srcH << 16) / dstH

	for y := 0; y < dstH; y++ {
		syFP := y * yRatio
		sy0 := srcY + syFP>>16
		syFrac := syFP & 0xFFFF
		sy1 := sy0 + 1
		if sy1 >= srcY+srcH {
			sy1 = sy0
		}

		for x := 0; x < dstW; x++ {
			sxFP := x * xRatio
			sx0 := srcX + sxFP>>16
			sxFrac := sxFP & 0xFFFF
			sx1 := sx0 + 1
			if sx1 >= srcX+srcW {
				sx1 = sx0
			}

			p00 := int(src[sy0*srcStride+sx0])
			p10 := int(src[sy0*srcStride+sx1])
			p01 := int(src[sy1*srcStride+sx0])
			p11 := int(src[sy1*srcStride+sx1])

			top := (p00*(0x10000-sxFrac) + p10*sxFrac) >> 16
			bottom := (p01*(0x10000-sxFrac) + p11*sxFrac) >> 16
			dst[y*dstStride+x] = byte((top*(0x10000-syFrac) + bottom*syFrac) >> 16)
		}
	}
}

// FitScaledSize returns the dimensions a source fits into within maxW x maxH
// preserving aspect ratio, rounded to even for chroma alignment.
func FitScaledSize(srcW, srcH, maxW, maxH int) (w, h int) {
	srcAspect := float64(srcW) / float64(srcH)
	dstAspect := float64(maxW) / float64(maxH)
	if srcAspect > dstAspect {
		w = maxW
		h = int(float64(maxW) / srcAspect)
	} else {
		h = maxH
		w = int(float64(maxH) * srcAspect)
	}
	return (w + 1) &^ 1, (h + 1) &^ 1
}
