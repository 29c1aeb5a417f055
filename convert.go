// Pixel format conversion between package frames and codec frames.

package webcodecs

// converterKey identifies one swscale context configuration.
type converterKey struct {
	srcWidth, srcHeight int
	srcFormat           int
	dstWidth, dstHeight int
	dstFormat           int
}

// frameConverter uploads VideoFrames into codec-owned AVFrames, converting
// pixel format and size through swscale when they differ. Contexts are
// cached per source shape since consecutive frames almost always match.
type frameConverter struct {
	key converterKey
	ctx uintptr
}

func (c *frameConverter) Close() {
	if c.ctx != 0 {
		swsFreeContext(c.ctx)
		c.ctx = 0
	}
}

// upload fills dst (an allocated, unref'd AVFrame) from src. The dst frame
// ends up with the given format and dimensions, its buffers allocated by
// the codec's allocator; sources of a different size are scaled, not
// rejected.
func (c *frameConverter) upload(dst uintptr, src *VideoFrame, dstWidth, dstHeight, dstFormat int) error {
	setFrameGeometry(dst, dstWidth, dstHeight, dstFormat)
	if code := avFrameGetBuffer(dst, 32); code < 0 {
		return averror(code, "av_frame_get_buffer")
	}

	srcFormat := avPixelFormat(src.Format)
	if srcFormat == dstFormat && src.Width == dstWidth && src.Height == dstHeight {
		copyPlanes(dst, src)
		return nil
	}

	key := converterKey{
		srcWidth: src.Width, srcHeight: src.Height, srcFormat: srcFormat,
		dstWidth: dstWidth, dstHeight: dstHeight, dstFormat: dstFormat,
	}
	if c.ctx == 0 || c.key != key {
		if c.ctx != 0 {
			swsFreeContext(c.ctx)
		}
		c.ctx = swsGetContext(
			int32(key.srcWidth), int32(key.srcHeight), int32(key.srcFormat),
			int32(key.dstWidth), int32(key.dstHeight), int32(key.dstFormat),
			swsBilinear, 0, 0, 0)
		if c.ctx == 0 {
			return averror(-1, "sws_getContext")
		}
		c.key = key
	}

	var dstPtrs []uintptr
	var dstStrides []int
	for i := 0; i < 4; i++ {
		dstPtrs = append(dstPtrs, frameDataPtr(dst, i))
		dstStrides = append(dstStrides, frameLinesize(dst, i))
	}
	swsScalePlanes(c.ctx, slicePtrs(src.Data), src.Stride, src.Height, dstPtrs, dstStrides)
	return nil
}

// copyPlanes copies frame planes row by row, honoring both strides.
func copyPlanes(dst uintptr, src *VideoFrame) {
	n := src.Format.PlaneCount()
	for plane := 0; plane < n; plane++ {
		rows, rowBytes := planeShape(src, plane)
		dstPtr := frameDataPtr(dst, plane)
		dstStride := frameLinesize(dst, plane)
		srcStride := src.Stride[plane]
		data := src.Data[plane]
		for y := 0; y < rows; y++ {
			row := data[y*srcStride : y*srcStride+rowBytes]
			copyToC(dstPtr+uintptr(y*dstStride), row)
		}
	}
}

// planeShape returns row count and used bytes per row for one plane.
func planeShape(f *VideoFrame, plane int) (rows, rowBytes int) {
	switch f.Format {
	case PixelFormatI420, PixelFormatI420A:
		if plane == 1 || plane == 2 {
			return (f.Height + 1) / 2, (f.Width + 1) / 2
		}
		return f.Height, f.Width
	case PixelFormatNV12:
		if plane == 1 {
			return (f.Height + 1) / 2, f.Width
		}
		return f.Height, f.Width
	default: // packed RGBA/BGRA
		return f.Height, f.Width * 4
	}
}

// downloadFrame copies a decoded AVFrame into a package VideoFrame. The
// timebase is microseconds, so pts maps straight onto Timestamp.
func downloadFrame(av uintptr) (*VideoFrame, error) {
	format, ok := pixelFormatFromAV(frameFormat(av))
	if !ok {
		return nil, ErrInvalidFrame
	}
	width := frameWidth(av)
	height := frameHeight(av)
	out := &VideoFrame{
		Width:     width,
		Height:    height,
		Format:    format,
		Timestamp: framePTS(av),
	}
	n := format.PlaneCount()
	out.Data = make([][]byte, n)
	out.Stride = make([]int, n)
	for plane := 0; plane < n; plane++ {
		rows, rowBytes := planeShape(out, plane)
		srcPtr := frameDataPtr(av, plane)
		srcStride := frameLinesize(av, plane)
		if srcPtr == 0 {
			return nil, ErrInvalidFrame
		}
		buf := make([]byte, rows*rowBytes)
		for y := 0; y < rows; y++ {
			copyFromC(buf[y*rowBytes:(y+1)*rowBytes], srcPtr+uintptr(y*srcStride))
		}
		out.Data[plane] = buf
		out.Stride[plane] = rowBytes
	}
	return out, nil
}
