package native

func init() {
	fmts := make([]PixelFormat, 0, len(pixFmtDescriptors))
	for f := range pixFmtDescriptors {
		fmts = append(fmts, f)
	}
	for _, enc := range []bool{true, false} {
		registerCodec(&Codec{
			Name: "rawvideo", LongName: "raw video", Type: MediaTypeVideo, ID: CodecIDRawVideo,
			PixFmts: fmts,
			encoder: enc,
			newImpl: func() codecImpl { return rawVideoCodec{} },
		})
	}
}

type rawVideoCodec struct{}

func (rawVideoCodec) init(ctx *CodecContext) Status {
	if ctx.Width <= 0 || ctx.Height <= 0 {
		return EINVAL
	}
	if _, ok := ctx.PixFmt.Descriptor(); !ok {
		return EINVAL
	}
	if ctx.TimeBase.Num == 0 {
		ctx.TimeBase = Rational{1, 25}
		if ctx.Framerate.Num > 0 {
			ctx.TimeBase = Rational{ctx.Framerate.Den, ctx.Framerate.Num}
		}
	}
	return OK
}

func (rawVideoCodec) decode(ctx *CodecContext, frame *Frame, pkt *Packet) Status {
	frame.Format = int(ctx.PixFmt)
	frame.Width, frame.Height = ctx.Width, ctx.Height
	if st := frame.GetBuffer(0); st.Failed() {
		return st
	}
	if st := ImageCopyFromBuffer(frame, pkt.Data); st.Failed() {
		return st
	}
	frame.KeyFrame = true
	frame.PictType = PictureTypeI
	frame.SampleAspectRatio = ctx.SampleAspectRatio
	return OK
}

func (rawVideoCodec) encode(ctx *CodecContext, pkt *Packet, frame *Frame) Status {
	if PixelFormat(frame.Format) != ctx.PixFmt || frame.Width != ctx.Width || frame.Height != ctx.Height {
		return EINVAL
	}
	data, st := ImageCopyToBuffer(frame)
	if st.Failed() {
		return st
	}
	pkt.FromData(data)
	pkt.Duration = 1
	pkt.Flags |= PktFlagKey
	return OK
}
